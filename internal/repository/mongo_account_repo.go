package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hitoshi/tasky/internal/model"
)

// accountDocument はaccountsコレクションのドキュメント表現。
type accountDocument struct {
	ID              string       `bson:"_id"`
	Name            string       `bson:"name"`
	Email           string       `bson:"email"`
	PasswordHash    string       `bson:"password_hash"`
	IsVerified      bool         `bson:"is_verified"`
	VerificationOTP *otpDocument `bson:"verification_otp,omitempty"`
	ResetOTP        *otpDocument `bson:"reset_otp,omitempty"`
	Pet             string       `bson:"pet"`
	CreatedAt       time.Time    `bson:"created_at"`
	UpdatedAt       time.Time    `bson:"updated_at"`
}

// otpDocument はOTPの埋め込みドキュメント表現。
type otpDocument struct {
	Code      string    `bson:"code"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// MongoAccountRepo はMongoDBを使用したアカウントリポジトリ。
type MongoAccountRepo struct {
	col *mongo.Collection
}

// NewMongoAccountRepo はMongoAccountRepoを生成する。
func NewMongoAccountRepo(db *mongo.Database) *MongoAccountRepo {
	return &MongoAccountRepo{col: db.Collection("accounts")}
}

// EnsureIndexes はメールアドレスの一意インデックスを作成する。冪等。
func (r *MongoAccountRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create account indexes: %w", err)
	}
	return nil
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *MongoAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
func (r *MongoAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// Create はアカウントを作成する。
func (r *MongoAccountRepo) Create(ctx context.Context, account *model.Account) error {
	if _, err := r.col.InsertOne(ctx, toAccountDocument(account)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("mongo insert account: %w", err)
	}
	return nil
}

// Update はアカウント全体を上書き保存する。
func (r *MongoAccountRepo) Update(ctx context.Context, account *model.Account) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": account.ID}, toAccountDocument(account))
	if err != nil {
		return fmt.Errorf("mongo replace account: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("account not found: %s", account.ID)
	}
	return nil
}

// PurgeExpiredOTPs は期限切れのOTPフィールドを削除し、クリアしたOTPの件数を返す。
// 両方のOTPが期限切れのアカウントは2件として数える。
// 検証用とリセット用は独立に期限切れになるため2回に分けて更新する。
func (r *MongoAccountRepo) PurgeExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for _, field := range []string{"verification_otp", "reset_otp"} {
		res, err := r.col.UpdateMany(ctx,
			bson.M{field + ".expires_at": bson.M{"$lt": now}},
			bson.M{"$unset": bson.M{field: ""}},
		)
		if err != nil {
			return total, fmt.Errorf("mongo purge %s: %w", field, err)
		}
		total += res.ModifiedCount
	}
	return total, nil
}

func (r *MongoAccountRepo) findOne(ctx context.Context, filter bson.M) (*model.Account, error) {
	var doc accountDocument
	err := r.col.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongo find account: %w", err)
	}
	return doc.toModel(), nil
}

func toAccountDocument(a *model.Account) accountDocument {
	return accountDocument{
		ID:              a.ID,
		Name:            a.Name,
		Email:           a.Email,
		PasswordHash:    a.PasswordHash,
		IsVerified:      a.IsVerified,
		VerificationOTP: toOTPDocument(a.VerificationOTP),
		ResetOTP:        toOTPDocument(a.ResetOTP),
		Pet:             a.Pet,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func (d accountDocument) toModel() *model.Account {
	return &model.Account{
		ID:              d.ID,
		Name:            d.Name,
		Email:           d.Email,
		PasswordHash:    d.PasswordHash,
		IsVerified:      d.IsVerified,
		VerificationOTP: d.VerificationOTP.toModel(),
		ResetOTP:        d.ResetOTP.toModel(),
		Pet:             d.Pet,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func toOTPDocument(otp *model.OTP) *otpDocument {
	if otp == nil {
		return nil
	}
	return &otpDocument{Code: otp.Code, ExpiresAt: otp.ExpiresAt}
}

func (d *otpDocument) toModel() *model.OTP {
	if d == nil || d.Code == "" {
		return nil
	}
	return &model.OTP{Code: d.Code, ExpiresAt: d.ExpiresAt}
}

// compile-time interface check
var _ AccountRepository = (*MongoAccountRepo)(nil)
