// Package task はタスク管理のドメインロジックを提供する。
package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/tasky/internal/model"
	"github.com/hitoshi/tasky/internal/repository"
	"github.com/hitoshi/tasky/internal/security"
)

// CreateInput はタスク作成の入力。
type CreateInput struct {
	Title       string
	Description string
	DueDate     string
	Priority    string
	Category    string
}

// UpdateInput はタスク部分更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Title       *string
	Description *string
	DueDate     *string
	Priority    *string
	Category    *string
	Completed   *bool
}

// CreationRecorder はタスク作成数を記録する。metrics.Collectorが満たす。
type CreationRecorder interface {
	RecordTaskCreated()
}

// Service はタスク管理のサービス層。
// すべての操作は認証済みアカウントが所有するタスクに限定する。
type Service struct {
	taskRepo  repository.TaskRepository
	sanitizer security.TextSanitizer
	recorder  CreationRecorder
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。recorderはnilでもよい。
func NewService(taskRepo repository.TaskRepository, sanitizer security.TextSanitizer, recorder CreationRecorder) *Service {
	return &Service{
		taskRepo:  taskRepo,
		sanitizer: sanitizer,
		recorder:  recorder,
		now:       time.Now,
	}
}

// Create は入力を検証してタスクを作成する。
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.Task, error) {
	now := s.now()

	title := s.cleanText(in.Title)
	description := s.cleanText(in.Description)

	v := &validator{}
	v.title(title, true)
	v.description(description, true)
	dueDate := v.dueDate(in.DueDate, now)
	priority := v.priority(strings.TrimSpace(in.Priority), true)
	category := v.category(strings.TrimSpace(in.Category), true)
	if err := v.err(); err != nil {
		return nil, err
	}

	task := &model.Task{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       title,
		Description: description,
		Priority:    priority,
		Category:    category,
		DueDate:     dueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if s.recorder != nil {
		s.recorder.RecordTaskCreated()
	}
	slog.Debug("task created",
		slog.String("user_id", userID),
		slog.String("task_id", task.ID),
	)
	return task, nil
}

// List はユーザーのタスクを作成日時の降順で返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Task, error) {
	tasks, err := s.taskRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// Update はタスクを部分更新する。
// 他アカウントのタスクは存在しない場合と同じエラーを返す。
func (s *Service) Update(ctx context.Context, userID, taskID string, in UpdateInput) (*model.Task, error) {
	if err := validateTaskID(taskID); err != nil {
		return nil, err
	}

	now := s.now()
	patch, err := s.buildPatch(in, now)
	if err != nil {
		return nil, err
	}

	task, err := s.taskRepo.FindByIDAndUserID(ctx, taskID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	if task == nil {
		return nil, model.NewTaskNotFoundError()
	}

	patch.Apply(task)
	task.UpdatedAt = now

	updated, err := s.taskRepo.Update(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	if !updated {
		// 取得後に削除された場合
		return nil, model.NewTaskNotFoundError()
	}
	return task, nil
}

// Delete はタスクを削除する。
func (s *Service) Delete(ctx context.Context, userID, taskID string) error {
	if err := validateTaskID(taskID); err != nil {
		return err
	}

	deleted, err := s.taskRepo.DeleteByIDAndUserID(ctx, taskID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if !deleted {
		return model.NewTaskNotFoundError()
	}
	return nil
}

// buildPatch は更新入力を検証し、変更内容に変換する。
func (s *Service) buildPatch(in UpdateInput, now time.Time) (model.TaskPatch, error) {
	var patch model.TaskPatch
	v := &validator{}

	if in.Title != nil {
		title := s.cleanText(*in.Title)
		v.title(title, false)
		patch.Title = &title
	}
	if in.Description != nil {
		description := s.cleanText(*in.Description)
		v.description(description, false)
		patch.Description = &description
	}
	if in.DueDate != nil {
		dueDate := v.dueDate(*in.DueDate, now)
		patch.DueDate = &dueDate
	}
	if in.Priority != nil {
		priority := v.priority(strings.TrimSpace(*in.Priority), false)
		patch.Priority = &priority
	}
	if in.Category != nil {
		category := v.category(strings.TrimSpace(*in.Category), false)
		patch.Category = &category
	}
	patch.Completed = in.Completed

	if err := v.err(); err != nil {
		return model.TaskPatch{}, err
	}
	return patch, nil
}

// cleanText はマークアップを除去して前後の空白を取り除く。
func (s *Service) cleanText(text string) string {
	if s.sanitizer != nil {
		text = s.sanitizer.Sanitize(text)
	}
	return strings.TrimSpace(text)
}

func validateTaskID(taskID string) error {
	if _, err := uuid.Parse(taskID); err != nil {
		return model.NewInvalidTaskIDError()
	}
	return nil
}
