// Package auth はアカウント登録・ログイン、セッショントークン、OTPを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/tasky/internal/model"
	"github.com/hitoshi/tasky/internal/repository"
)

const passwordTooLongMessage = "Password must be at most 72 bytes"

// Notifier はアカウント関連メールの送信依頼を受け付ける。
// 送信は非同期で行い、失敗は呼び出し元に返さない。
type Notifier interface {
	NotifyWelcome(ctx context.Context, account *model.Account)
	NotifyVerificationOTP(ctx context.Context, account *model.Account, code string)
	NotifyResetOTP(ctx context.Context, account *model.Account, code string)
}

type noopNotifier struct{}

func (noopNotifier) NotifyWelcome(context.Context, *model.Account) {}
func (noopNotifier) NotifyVerificationOTP(context.Context, *model.Account, string) {}
func (noopNotifier) NotifyResetOTP(context.Context, *model.Account, string) {}

// Session はログイン成功時に発行されるセッション情報。
type Session struct {
	AccountID string
	Token     string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	accounts repository.AccountRepository
	hasher   PasswordHasher
	tokens   *TokenIssuer
	notifier Notifier
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	accounts repository.AccountRepository,
	hasher PasswordHasher,
	tokens *TokenIssuer,
	notifier Notifier,
) *Service {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Service{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		now:      time.Now,
	}
}

// Register は未検証アカウントを作成し、セッションを発行する。
// メールアドレスは大文字小文字を区別して一意とする。
func (s *Service) Register(ctx context.Context, name, email, password string) (*Session, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return nil, model.NewAllFieldsRequiredError()
	}
	if passwordTooLong(password) {
		return nil, model.NewValidationError([]string{passwordTooLongMessage})
	}

	existing, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if existing != nil {
		return nil, model.NewAlreadyExistsError()
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	account := &model.Account{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		// 検索と作成の間に同じメールアドレスで登録された場合
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewAlreadyExistsError()
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	token, err := s.tokens.Issue(account.ID)
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyWelcome(ctx, account)
	slog.Info("account registered", slog.String("user_id", account.ID))

	return &Session{AccountID: account.ID, Token: token}, nil
}

// Login はメールアドレスとパスワードを照合し、セッションを発行する。
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, model.NewAllFieldsRequiredError()
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, model.NewUserNotFoundError()
	}

	if err := s.hasher.Compare(account.PasswordHash, password); err != nil {
		return nil, model.NewInvalidCredentialError()
	}

	token, err := s.tokens.Issue(account.ID)
	if err != nil {
		return nil, err
	}

	slog.Info("account logged in", slog.String("user_id", account.ID))
	return &Session{AccountID: account.ID, Token: token}, nil
}
