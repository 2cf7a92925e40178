package habit

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"habittracker/internal/access"
	"habittracker/internal/model"
	"habittracker/internal/repository"
	"habittracker/pkg/logger"
	"habittracker/pkg/metrics"
)

var (
	ErrNotFound    = errors.New("habit not found")
	ErrInvalidPage = errors.New("invalid page")
)

// Store 习惯的持久化
type Store interface {
	List(ctx context.Context, q repository.HabitQuery) ([]model.Habit, int, error)
	GetByID(ctx context.Context, id int) (*model.Habit, error)
	Exists(ctx context.Context, id int) (bool, error)
	Create(ctx context.Context, h *model.Habit) error
	Update(ctx context.Context, h *model.Habit) error
	Delete(ctx context.Context, h *model.Habit) error
}

// Policy 访问策略
type Policy interface {
	access.Authorizer
	RequiresObjectCheck(action access.Action) bool
	Scope(action access.Action, actor access.Actor) access.Scope
	PublicScope() access.Scope
}

// Options 分页配置
type Options struct {
	PageSize    int
	MaxPageSize int
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = 5
	}
	if o.MaxPageSize < o.PageSize {
		o.MaxPageSize = max(50, o.PageSize)
	}
	return o
}

type Service struct {
	store    Store
	policy   Policy
	opts     Options
	validate *validator.Validate
	logger   *zap.Logger
}

func NewService(store Store, policy Policy, opts Options, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		policy:   policy,
		opts:     opts.withDefaults(),
		validate: newValidator(),
		logger:   logger,
	}
}

// List 列出 actor 可见的习惯
func (s *Service) List(ctx context.Context, actor access.Actor, params ListParams) (*Page, error) {
	if err := s.authorize(ctx, access.ActionList, actor); err != nil {
		return nil, err
	}
	return s.list(ctx, "list", s.policy.Scope(access.ActionList, actor), params)
}

// ListPublic 公开习惯列表，不需要登录
func (s *Service) ListPublic(ctx context.Context, params ListParams) (*Page, error) {
	return s.list(ctx, "list_public", s.policy.PublicScope(), params)
}

func (s *Service) list(ctx context.Context, operation string, scope access.Scope, params ListParams) (*Page, error) {
	q, err := params.query(s.opts)
	if err != nil {
		return nil, err
	}
	q.Scope = scope

	habits, total, err := s.store.List(ctx, q)
	if err != nil {
		metrics.IncrementHabitOperation(operation, "failed")
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}

	page := newPage(habits, total, q)
	if page.Page > 1 && len(habits) == 0 {
		return nil, ErrInvalidPage
	}

	metrics.IncrementHabitOperation(operation, "success")
	return page, nil
}

// Create 创建习惯，所有者总是当前用户
func (s *Service) Create(ctx context.Context, actor access.Actor, in Input) (*model.Habit, error) {
	if err := s.authorize(ctx, access.ActionCreate, actor); err != nil {
		return nil, err
	}
	userID, _ := actor.UserID()

	if err := s.validateInput(&in); err != nil {
		return nil, err
	}
	if err := s.checkRelated(ctx, in.RelatedHabitID, 0); err != nil {
		return nil, err
	}

	h := &model.Habit{OwnerID: &userID, IsPublic: true}
	in.applyTo(h)

	if err := s.store.Create(ctx, h); err != nil {
		metrics.IncrementHabitOperation("create", "failed")
		return nil, fmt.Errorf("failed to create habit: %w", err)
	}

	metrics.IncrementHabitOperation("create", "success")
	logger.WithTrace(ctx, s.logger).Info("Habit created",
		zap.Int("habit_id", h.ID),
		zap.Int("user_id", userID),
	)
	return h, nil
}

// Retrieve 按 ID 获取习惯，只有所有者可以访问
func (s *Service) Retrieve(ctx context.Context, actor access.Actor, id int) (*model.Habit, error) {
	return s.load(ctx, access.ActionRetrieve, actor, id)
}

// Update 整体更新
func (s *Service) Update(ctx context.Context, actor access.Actor, id int, in Input) (*model.Habit, error) {
	h, err := s.load(ctx, access.ActionUpdate, actor, id)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, "update", h, in)
}

// PartialUpdate 只修改提交了的字段
func (s *Service) PartialUpdate(ctx context.Context, actor access.Actor, id int, patch Patch) (*model.Habit, error) {
	h, err := s.load(ctx, access.ActionPartialUpdate, actor, id)
	if err != nil {
		return nil, err
	}
	in := inputFromHabit(h)
	patch.applyTo(&in)
	return s.save(ctx, "partial_update", h, in)
}

// Destroy 删除习惯，权限检查失败时不做任何修改
func (s *Service) Destroy(ctx context.Context, actor access.Actor, id int) error {
	h, err := s.load(ctx, access.ActionDestroy, actor, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, h); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		metrics.IncrementHabitOperation("destroy", "failed")
		return fmt.Errorf("failed to delete habit: %w", err)
	}

	metrics.IncrementHabitOperation("destroy", "success")
	logger.WithTrace(ctx, s.logger).Info("Habit deleted",
		zap.Int("habit_id", h.ID),
		zap.String("actor", actor.String()),
	)
	return nil
}

func (s *Service) save(ctx context.Context, operation string, h *model.Habit, in Input) (*model.Habit, error) {
	if err := s.validateInput(&in); err != nil {
		return nil, err
	}
	if err := s.checkRelated(ctx, in.RelatedHabitID, h.ID); err != nil {
		return nil, err
	}

	in.applyTo(h)
	if err := s.store.Update(ctx, h); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		metrics.IncrementHabitOperation(operation, "failed")
		return nil, fmt.Errorf("failed to update habit: %w", err)
	}

	metrics.IncrementHabitOperation(operation, "success")
	return h, nil
}

// load 操作级检查 -> 按主键取记录 -> 对象级检查。
// 非所有者访问私有习惯时返回 ErrNotFound，不暴露记录是否存在。
func (s *Service) load(ctx context.Context, action access.Action, actor access.Actor, id int) (*model.Habit, error) {
	if err := s.authorize(ctx, action, actor); err != nil {
		return nil, err
	}

	h, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get habit: %w", err)
	}
	if !s.policy.Scope(action, actor).Match(h) {
		return nil, ErrNotFound
	}

	if s.policy.RequiresObjectCheck(action) {
		err := s.policy.AuthorizeObject(actor, h)
		s.record(ctx, action, actor, err)
		if err != nil {
			if !h.IsPublic {
				return nil, ErrNotFound
			}
			return nil, err
		}
	}
	return h, nil
}

// Authorize 只做操作级检查，供处理器在解析请求体之前调用
func (s *Service) Authorize(ctx context.Context, action access.Action, actor access.Actor) error {
	return s.authorize(ctx, action, actor)
}

func (s *Service) authorize(ctx context.Context, action access.Action, actor access.Actor) error {
	err := s.policy.Authorize(action, actor)
	s.record(ctx, action, actor, err)
	return err
}

func (s *Service) record(ctx context.Context, action access.Action, actor access.Actor, err error) {
	decision := "allow"
	if denied, ok := access.IsDenied(err); ok {
		decision = string(denied.Reason)
		metrics.IncrementHabitOperation(string(action), "denied")
	}
	metrics.RecordAccessDecision(string(action), decision)

	logger.WithTrace(ctx, s.logger).Debug("habit access decision",
		zap.String("action", string(action)),
		zap.String("actor", actor.String()),
		zap.String("decision", decision),
	)
}

// checkRelated 关联习惯必须存在，且不能是自己
func (s *Service) checkRelated(ctx context.Context, relatedID *int, selfID int) error {
	if relatedID == nil {
		return nil
	}
	if *relatedID == selfID {
		return fieldError("related_habit", "a habit cannot be related to itself")
	}
	exists, err := s.store.Exists(ctx, *relatedID)
	if err != nil {
		return fmt.Errorf("failed to check related habit: %w", err)
	}
	if !exists {
		return fieldError("related_habit", fmt.Sprintf("habit %d does not exist", *relatedID))
	}
	return nil
}
