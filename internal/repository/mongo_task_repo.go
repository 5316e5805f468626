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

// taskDocument はtasksコレクションのドキュメント表現。
type taskDocument struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"user_id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Completed   bool      `bson:"completed"`
	Priority    string    `bson:"priority"`
	Category    string    `bson:"category"`
	DueDate     time.Time `bson:"due_date"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

// MongoTaskRepo はMongoDBを使用したタスクリポジトリ。
type MongoTaskRepo struct {
	col *mongo.Collection
}

// NewMongoTaskRepo はMongoTaskRepoを生成する。
func NewMongoTaskRepo(db *mongo.Database) *MongoTaskRepo {
	return &MongoTaskRepo{col: db.Collection("tasks")}
}

// EnsureIndexes は所有者別一覧用のインデックスを作成する。冪等。
func (r *MongoTaskRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create task indexes: %w", err)
	}
	return nil
}

// Create はタスクを作成する。
func (r *MongoTaskRepo) Create(ctx context.Context, task *model.Task) error {
	if _, err := r.col.InsertOne(ctx, toTaskDocument(task)); err != nil {
		return fmt.Errorf("mongo insert task: %w", err)
	}
	return nil
}

// ListByUserID はユーザーのタスク一覧を作成日時の降順で返す。
func (r *MongoTaskRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find tasks: %w", err)
	}
	defer cur.Close(ctx)

	var docs []taskDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode tasks: %w", err)
	}

	tasks := make([]*model.Task, len(docs))
	for i := range docs {
		tasks[i] = docs[i].toModel()
	}
	return tasks, nil
}

// FindByIDAndUserID は所有者が一致するタスクを取得する。見つからない場合はnilを返す。
func (r *MongoTaskRepo) FindByIDAndUserID(ctx context.Context, id, userID string) (*model.Task, error) {
	var doc taskDocument
	err := r.col.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongo find task: %w", err)
	}
	return doc.toModel(), nil
}

// Update はタスクを上書き保存する。所有者が一致しない場合はfalseを返す。
func (r *MongoTaskRepo) Update(ctx context.Context, task *model.Task) (bool, error) {
	res, err := r.col.ReplaceOne(ctx,
		bson.M{"_id": task.ID, "user_id": task.UserID},
		toTaskDocument(task),
	)
	if err != nil {
		return false, fmt.Errorf("mongo replace task: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// DeleteByIDAndUserID は所有者が一致するタスクを削除する。
func (r *MongoTaskRepo) DeleteByIDAndUserID(ctx context.Context, id, userID string) (bool, error) {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return false, fmt.Errorf("mongo delete task: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func toTaskDocument(t *model.Task) taskDocument {
	return taskDocument{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		Priority:    string(t.Priority),
		Category:    string(t.Category),
		DueDate:     t.DueDate,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (d taskDocument) toModel() *model.Task {
	return &model.Task{
		ID:          d.ID,
		UserID:      d.UserID,
		Title:       d.Title,
		Description: d.Description,
		Completed:   d.Completed,
		Priority:    model.Priority(d.Priority),
		Category:    model.Category(d.Category),
		DueDate:     d.DueDate,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// compile-time interface check
var _ TaskRepository = (*MongoTaskRepo)(nil)
