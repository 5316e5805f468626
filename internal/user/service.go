// Package user はアカウントのプロフィール操作のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/tasky/internal/model"
	"github.com/hitoshi/tasky/internal/repository"
)

// Profile はクライアントに公開するアカウント情報。
// パスワードハッシュとOTPは含めない。
type Profile struct {
	ID                string
	Name              string
	Email             string
	IsAccountVerified bool
	Pet               string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Service はプロフィール操作のサービス層。
type Service struct {
	accounts repository.AccountRepository
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(accounts repository.AccountRepository) *Service {
	return &Service{
		accounts: accounts,
		now:      time.Now,
	}
}

// GetUserData は認証済みアカウントのプロフィールを返す。
func (s *Service) GetUserData(ctx context.Context, userID string) (*Profile, error) {
	account, err := s.findAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toProfile(account), nil
}

// ChoosePet はコンパニオンを設定し、保存後の値を返す。
func (s *Service) ChoosePet(ctx context.Context, userID, pet string) (string, error) {
	pet = strings.TrimSpace(pet)
	if !model.ValidPet(pet) {
		return "", model.NewInvalidPetError()
	}

	account, err := s.findAccount(ctx, userID)
	if err != nil {
		return "", err
	}

	account.Pet = pet
	account.UpdatedAt = s.now()
	if err := s.accounts.Update(ctx, account); err != nil {
		return "", fmt.Errorf("failed to save pet: %w", err)
	}

	slog.Info("pet chosen",
		slog.String("user_id", userID),
		slog.String("pet", pet),
	)
	return account.Pet, nil
}

func (s *Service) findAccount(ctx context.Context, userID string) (*model.Account, error) {
	account, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, model.NewUserNotFoundError()
	}
	return account, nil
}

func toProfile(a *model.Account) *Profile {
	return &Profile{
		ID:                a.ID,
		Name:              a.Name,
		Email:             a.Email,
		IsAccountVerified: a.IsVerified,
		Pet:               a.Pet,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}
