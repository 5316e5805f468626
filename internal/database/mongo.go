package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoConnectTimeout は接続確認（Ping）の最大待ち時間。
const mongoConnectTimeout = 10 * time.Second

// OpenMongo はMongoDBに接続し、指定データベースのハンドルを返す。
// 呼び出し側は不要になった時点でclient.Disconnectを呼ぶこと。
func OpenMongo(ctx context.Context, uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return client, client.Database(dbName), nil
}

// MongoHealthChecker はMongoDBクライアントをヘルスチェック用のPingContextに適合させる。
type MongoHealthChecker struct {
	Client *mongo.Client
}

// PingContext はプライマリへの疎通を確認する。
func (h MongoHealthChecker) PingContext(ctx context.Context) error {
	return h.Client.Ping(ctx, nil)
}
