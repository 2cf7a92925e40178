package db

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schema string

// Migrate 创建表结构（幂等）
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		logger.Error("Schema migration failed", zap.Error(err))
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	logger.Info("Schema is up to date")
	return nil
}
