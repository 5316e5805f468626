package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/hitoshi/tasky/internal/model"
	"github.com/hitoshi/tasky/internal/repository"
)

// OTPコードは100000〜999999の6桁。
const (
	otpMin   = 100000
	otpRange = 900000
)

// OTPConfig はOTPの有効期間設定。
type OTPConfig struct {
	VerifyTTL time.Duration
	ResetTTL  time.Duration
}

// OTPManager はメール検証用・パスワードリセット用OTPの発行と消費を行う。
// 2種類のコードはアカウント上の独立したフィールドに保持する。
type OTPManager struct {
	accounts repository.AccountRepository
	hasher   PasswordHasher
	notifier Notifier
	config   OTPConfig
	now      func() time.Time
	generate func() (string, error)
}

// NewOTPManager はOTPManagerを生成する。
func NewOTPManager(
	accounts repository.AccountRepository,
	hasher PasswordHasher,
	notifier Notifier,
	config OTPConfig,
) *OTPManager {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &OTPManager{
		accounts: accounts,
		hasher:   hasher,
		notifier: notifier,
		config:   config,
		now:      time.Now,
		generate: generateOTP,
	}
}

// IssueVerification はメール検証用OTPを発行し、メール送信を依頼する。
func (m *OTPManager) IssueVerification(ctx context.Context, accountID string) error {
	account, err := m.accounts.FindByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return model.NewUserNotFoundError()
	}
	if account.IsVerified {
		return model.NewAlreadyVerifiedError()
	}

	otp, err := m.newOTP(m.config.VerifyTTL)
	if err != nil {
		return err
	}
	account.VerificationOTP = otp
	account.UpdatedAt = m.now()

	if err := m.accounts.Update(ctx, account); err != nil {
		return fmt.Errorf("failed to save verification otp: %w", err)
	}

	m.notifier.NotifyVerificationOTP(ctx, account, otp.Code)
	slog.Info("verification otp issued", slog.String("user_id", account.ID))
	return nil
}

// ConsumeVerification はメール検証用OTPを照合し、一致すればアカウントを検証済みにする。
func (m *OTPManager) ConsumeVerification(ctx context.Context, accountID, code string) error {
	if accountID == "" || code == "" {
		return model.NewAllFieldsRequiredError()
	}

	account, err := m.accounts.FindByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return model.NewUserNotFoundError()
	}

	if err := m.check(ctx, account, &account.VerificationOTP, code); err != nil {
		return err
	}

	account.IsVerified = true
	account.VerificationOTP = nil
	account.UpdatedAt = m.now()
	if err := m.accounts.Update(ctx, account); err != nil {
		return fmt.Errorf("failed to save verified account: %w", err)
	}

	slog.Info("email verified", slog.String("user_id", account.ID))
	return nil
}

// IssueReset はパスワードリセット用OTPを発行し、メール送信を依頼する。
// 検証済みかどうかは問わない。
func (m *OTPManager) IssueReset(ctx context.Context, email string) error {
	if email == "" {
		return model.NewAllFieldsRequiredError()
	}

	account, err := m.accounts.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return model.NewUserNotFoundError()
	}

	otp, err := m.newOTP(m.config.ResetTTL)
	if err != nil {
		return err
	}
	account.ResetOTP = otp
	account.UpdatedAt = m.now()

	if err := m.accounts.Update(ctx, account); err != nil {
		return fmt.Errorf("failed to save reset otp: %w", err)
	}

	m.notifier.NotifyResetOTP(ctx, account, otp.Code)
	slog.Info("reset otp issued", slog.String("user_id", account.ID))
	return nil
}

// ConsumeReset はリセット用OTPを照合し、一致すればパスワードを置き換える。
func (m *OTPManager) ConsumeReset(ctx context.Context, email, code, newPassword string) error {
	if email == "" || code == "" || newPassword == "" {
		return model.NewAllFieldsRequiredError()
	}
	if passwordTooLong(newPassword) {
		return model.NewValidationError([]string{passwordTooLongMessage})
	}

	account, err := m.accounts.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return model.NewUserNotFoundError()
	}

	if err := m.check(ctx, account, &account.ResetOTP, code); err != nil {
		return err
	}

	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	account.PasswordHash = hash
	account.ResetOTP = nil
	account.UpdatedAt = m.now()
	if err := m.accounts.Update(ctx, account); err != nil {
		return fmt.Errorf("failed to save new password: %w", err)
	}

	slog.Info("password reset", slog.String("user_id", account.ID))
	return nil
}

// check はslotが指す保持中のOTPと入力コードを照合する。
// コード不一致を期限切れより先に判定する。
// 期限切れを検出した場合はそのOTPを消去して保存してから OTP_EXPIRED を返す。
func (m *OTPManager) check(ctx context.Context, account *model.Account, slot **model.OTP, code string) error {
	stored := *slot
	if stored == nil || stored.Code == "" {
		return model.NewInvalidCodeError()
	}
	if subtle.ConstantTimeCompare([]byte(stored.Code), []byte(code)) != 1 {
		return model.NewInvalidCodeError()
	}

	now := m.now()
	if stored.Expired(now) {
		*slot = nil
		account.UpdatedAt = now
		if err := m.accounts.Update(ctx, account); err != nil {
			return fmt.Errorf("failed to clear expired otp: %w", err)
		}
		return model.NewOTPExpiredError()
	}
	return nil
}

func (m *OTPManager) newOTP(ttl time.Duration) (*model.OTP, error) {
	code, err := m.generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate otp: %w", err)
	}
	return &model.OTP{
		Code:      code,
		ExpiresAt: m.now().Add(ttl),
	}, nil
}

// generateOTP は暗号論的乱数から一様な6桁コードを生成する。
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpRange))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}
