package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/tasky/internal/model"
	"github.com/lib/pq"
)

// pqUniqueViolation はPostgreSQLの一意制約違反エラーコード。
const pqUniqueViolation = "23505"

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

const accountColumns = `id, name, email, password_hash, is_verified,
	verification_otp, verification_otp_expires_at,
	reset_otp, reset_otp_expires_at,
	pet, created_at, updated_at`

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`,
		id,
	)
	account, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find account by ID: %w", err)
	}
	return account, nil
}

// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`,
		email,
	)
	account, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find account by email: %w", err)
	}
	return account, nil
}

// Create はアカウントを作成する。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.Account) error {
	vCode, vExp := otpToNullable(account.VerificationOTP)
	rCode, rExp := otpToNullable(account.ResetOTP)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, email, password_hash, is_verified,
			verification_otp, verification_otp_expires_at,
			reset_otp, reset_otp_expires_at,
			pet, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		account.ID, account.Name, account.Email, account.PasswordHash, account.IsVerified,
		vCode, vExp, rCode, rExp,
		account.Pet, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// Update はアカウント全体を上書き保存する。
func (r *PostgresAccountRepo) Update(ctx context.Context, account *model.Account) error {
	vCode, vExp := otpToNullable(account.VerificationOTP)
	rCode, rExp := otpToNullable(account.ResetOTP)

	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET
			name = $2, password_hash = $3, is_verified = $4,
			verification_otp = $5, verification_otp_expires_at = $6,
			reset_otp = $7, reset_otp_expires_at = $8,
			pet = $9, updated_at = $10
		 WHERE id = $1`,
		account.ID, account.Name, account.PasswordHash, account.IsVerified,
		vCode, vExp, rCode, rExp,
		account.Pet, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("account not found: %s", account.ID)
	}
	return nil
}

// purgeOTPQueries はOTPの種類ごとに期限切れのコードをNULLに戻すUPDATE文。
var purgeOTPQueries = []string{
	`UPDATE accounts SET verification_otp = NULL, verification_otp_expires_at = NULL
	 WHERE verification_otp_expires_at < $1`,
	`UPDATE accounts SET reset_otp = NULL, reset_otp_expires_at = NULL
	 WHERE reset_otp_expires_at < $1`,
}

// PurgeExpiredOTPs は期限切れのOTPをNULLに戻し、クリアしたOTPの件数を返す。
// 両方のOTPが期限切れのアカウントは2件として数える。
// 期限判定は照合時にも行うため、この処理は保存データの整理のみを目的とする。
func (r *PostgresAccountRepo) PurgeExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for _, query := range purgeOTPQueries {
		result, err := r.db.ExecContext(ctx, query, now)
		if err != nil {
			return total, fmt.Errorf("failed to purge expired otps: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to get rows affected: %w", err)
		}
		total += n
	}
	return total, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanAccount は1行をアカウントに変換する。行が存在しない場合はnilを返す。
func scanAccount(row rowScanner) (*model.Account, error) {
	var (
		a            model.Account
		vCode, rCode sql.NullString
		vExp, rExp   sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.IsVerified,
		&vCode, &vExp, &rCode, &rExp,
		&a.Pet, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.VerificationOTP = otpFromNullable(vCode, vExp)
	a.ResetOTP = otpFromNullable(rCode, rExp)
	return &a, nil
}

// otpToNullable はOTPをNULL許容カラムの値に変換する。nilはNULLとして保存する。
func otpToNullable(otp *model.OTP) (sql.NullString, sql.NullTime) {
	if otp == nil {
		return sql.NullString{}, sql.NullTime{}
	}
	return sql.NullString{String: otp.Code, Valid: true},
		sql.NullTime{Time: otp.ExpiresAt, Valid: true}
}

// otpFromNullable はNULL許容カラムの値からOTPを復元する。
func otpFromNullable(code sql.NullString, expiresAt sql.NullTime) *model.OTP {
	if !code.Valid || code.String == "" {
		return nil
	}
	var exp time.Time
	if expiresAt.Valid {
		exp = expiresAt.Time
	}
	return &model.OTP{Code: code.String, ExpiresAt: exp}
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
