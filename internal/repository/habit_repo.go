package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	mqcontracts "habittracker/contracts/mq"
	"habittracker/internal/access"
	"habittracker/internal/model"
	"habittracker/pkg/mq"
	"habittracker/pkg/outbox"
	"habittracker/pkg/trace"
)

const habitColumns = `
    id, name, user_id, place, to_char(time, 'HH24:MI:SS'), action, is_pleasant,
    related_habit_id, frequency_number, frequency_unit, reward, duration_seconds,
    is_public, created_at, updated_at`

type HabitRepository struct {
	db     *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger
}

// NewHabitRepository outboxRepo 为 nil 时不写入事件
func NewHabitRepository(db *pgxpool.Pool, outboxRepo *outbox.Repository, logger *zap.Logger) *HabitRepository {
	return &HabitRepository{
		db:     db,
		outbox: outboxRepo,
		logger: logger,
	}
}

// Ping 检查数据库是否可用
func (r *HabitRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// whereClause 把 Scope 和搜索条件翻译成 WHERE 子句
func whereClause(q HabitQuery) (string, []any) {
	var conds []string
	var args []any

	switch q.Scope.Kind() {
	case access.ScopePublic:
		conds = append(conds, "is_public = TRUE")
	case access.ScopeOwner:
		ownerID, _ := q.Scope.OwnerID()
		args = append(args, ownerID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}

	if q.Search != "" {
		args = append(args, escapeLike(q.Search))
		conds = append(conds, fmt.Sprintf("action ILIKE '%%' || $%d || '%%'", len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func orderClause(orderBy string) string {
	switch orderBy {
	case OrderByTime:
		return "ORDER BY time ASC, id ASC"
	case OrderByTimeDesc:
		return "ORDER BY time DESC, id ASC"
	default:
		return "ORDER BY id ASC"
	}
}

// List 返回当前页的习惯和满足条件的总数
func (r *HabitRepository) List(ctx context.Context, q HabitQuery) ([]model.Habit, int, error) {
	r.logger.Debug("Listing habits",
		zap.String("scope", q.Scope.String()),
		zap.String("search", q.Search),
		zap.String("order_by", q.OrderBy),
		zap.Int("limit", q.Limit),
		zap.Int("offset", q.Offset),
	)

	where, args := whereClause(q)

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM habits "+where, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count habits", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count habits: %w", err)
	}

	query := "SELECT " + habitColumns + " FROM habits " + where + " " + orderClause(q.OrderBy)
	if q.Limit > 0 {
		args = append(args, q.Limit, q.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list habits", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list habits: %w", err)
	}
	defer rows.Close()

	habits := make([]model.Habit, 0)
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			r.logger.Error("Failed to scan habit", zap.Error(err))
			return nil, 0, err
		}
		habits = append(habits, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate habits: %w", err)
	}

	r.logger.Debug("Listed habits",
		zap.String("scope", q.Scope.String()),
		zap.Int("count", len(habits)),
		zap.Int("total", total),
	)
	return habits, total, nil
}

// GetByID 按主键取习惯，不存在时返回 ErrNotFound
func (r *HabitRepository) GetByID(ctx context.Context, id int) (*model.Habit, error) {
	row := r.db.QueryRow(ctx, "SELECT "+habitColumns+" FROM habits WHERE id = $1", id)
	h, err := scanHabit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get habit", zap.Int("id", id), zap.Error(err))
		return nil, err
	}
	return h, nil
}

// Exists 判断习惯是否存在
func (r *HabitRepository) Exists(ctx context.Context, id int) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM habits WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check habit: %w", err)
	}
	return exists, nil
}

// Create 插入习惯，并在同一事务中写入 habit.created 事件
func (r *HabitRepository) Create(ctx context.Context, h *model.Habit) error {
	r.logger.Debug("Inserting habit",
		zap.Intp("user_id", h.OwnerID),
		zap.String("action", h.Action),
	)

	return r.inTx(ctx, func(tx pgx.Tx) error {
		query := `
            INSERT INTO habits (name, user_id, place, time, action, is_pleasant, related_habit_id,
                                frequency_number, frequency_unit, reward, duration_seconds, is_public)
            VALUES ($1, $2, $3, $4::time, $5, $6, $7, $8, $9, $10, $11, $12)
            RETURNING id, created_at, updated_at
        `
		err := tx.QueryRow(ctx, query,
			h.Name, h.OwnerID, h.Place, h.Time, h.Action, h.IsPleasant, h.RelatedHabitID,
			h.FrequencyNumber, h.FrequencyUnit, h.Reward, h.Duration, h.IsPublic,
		).Scan(&h.ID, &h.CreatedAt, &h.UpdatedAt)
		if err != nil {
			r.logger.Error("Failed to insert habit", zap.Error(err))
			return fmt.Errorf("failed to insert habit: %w", err)
		}

		if err := r.emit(ctx, tx, mq.RoutingKeyHabitCreated, h); err != nil {
			return err
		}

		r.logger.Info("Habit inserted successfully",
			zap.Int("id", h.ID),
			zap.Intp("user_id", h.OwnerID),
		)
		return nil
	})
}

// Update 覆盖习惯的可变字段，并写入 habit.updated 事件
func (r *HabitRepository) Update(ctx context.Context, h *model.Habit) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		query := `
            UPDATE habits
            SET name = $1, place = $2, time = $3::time, action = $4, is_pleasant = $5,
                related_habit_id = $6, frequency_number = $7, frequency_unit = $8,
                reward = $9, duration_seconds = $10, is_public = $11, updated_at = NOW()
            WHERE id = $12
            RETURNING updated_at
        `
		err := tx.QueryRow(ctx, query,
			h.Name, h.Place, h.Time, h.Action, h.IsPleasant, h.RelatedHabitID,
			h.FrequencyNumber, h.FrequencyUnit, h.Reward, h.Duration, h.IsPublic, h.ID,
		).Scan(&h.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			r.logger.Error("Failed to update habit", zap.Int("id", h.ID), zap.Error(err))
			return fmt.Errorf("failed to update habit: %w", err)
		}

		if err := r.emit(ctx, tx, mq.RoutingKeyHabitUpdated, h); err != nil {
			return err
		}

		r.logger.Info("Habit updated", zap.Int("id", h.ID))
		return nil
	})
}

// Delete 删除习惯，并写入 habit.deleted 事件
func (r *HabitRepository) Delete(ctx context.Context, h *model.Habit) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "DELETE FROM habits WHERE id = $1", h.ID)
		if err != nil {
			r.logger.Error("Failed to delete habit", zap.Int("id", h.ID), zap.Error(err))
			return fmt.Errorf("failed to delete habit: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}

		if err := r.emit(ctx, tx, mq.RoutingKeyHabitDeleted, h); err != nil {
			return err
		}

		r.logger.Info("Habit deleted", zap.Int("id", h.ID))
		return nil
	})
}

func (r *HabitRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *HabitRepository) emit(ctx context.Context, tx pgx.Tx, routingKey string, h *model.Habit) error {
	if r.outbox == nil {
		return nil
	}

	aggregateID := int64(h.ID)
	payload := mqcontracts.HabitEventPayload{
		HabitID:  h.ID,
		UserID:   h.OwnerID,
		Action:   h.Action,
		IsPublic: h.IsPublic,
		TraceID:  trace.FromContext(ctx),
	}
	if err := outbox.InsertEventInTx(ctx, tx, r.outbox, "habit", &aggregateID, routingKey, payload); err != nil {
		r.logger.Error("Failed to write outbox event",
			zap.String("routing_key", routingKey),
			zap.Int("habit_id", h.ID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func scanHabit(row pgx.Row) (*model.Habit, error) {
	var h model.Habit
	err := row.Scan(
		&h.ID,
		&h.Name,
		&h.OwnerID,
		&h.Place,
		&h.Time,
		&h.Action,
		&h.IsPleasant,
		&h.RelatedHabitID,
		&h.FrequencyNumber,
		&h.FrequencyUnit,
		&h.Reward,
		&h.Duration,
		&h.IsPublic,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &h, nil
}
