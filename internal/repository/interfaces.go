// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/tasky/internal/model"
)

// ErrDuplicateEmail は既に登録済みのメールアドレスでアカウントを作成しようとした場合のエラー。
var ErrDuplicateEmail = errors.New("email already registered")

// AccountRepository はアカウントデータの永続化インターフェース。
type AccountRepository interface {
	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// Create はアカウントを作成する。
	// メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, account *model.Account) error

	// Update はアカウント全体（OTP状態を含む）を上書き保存する。
	Update(ctx context.Context, account *model.Account) error
}

// TaskRepository はタスクデータの永続化インターフェース。
// すべての参照・変更はタスクIDと所有者IDの両方で絞り込む。
type TaskRepository interface {
	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error

	// ListByUserID はユーザーのタスク一覧を作成日時の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Task, error)

	// FindByIDAndUserID は所有者が一致するタスクを取得する。見つからない場合はnilを返す。
	FindByIDAndUserID(ctx context.Context, id, userID string) (*model.Task, error)

	// Update はタスクを上書き保存する。所有者が一致しない場合は何もせずfalseを返す。
	Update(ctx context.Context, task *model.Task) (bool, error)

	// DeleteByIDAndUserID は所有者が一致するタスクを削除する。削除した場合はtrueを返す。
	DeleteByIDAndUserID(ctx context.Context, id, userID string) (bool, error)
}

// HealthChecker はストレージの疎通確認インターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}
