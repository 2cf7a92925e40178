package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"habittracker/internal/access"
	"habittracker/internal/model"
	"habittracker/internal/repository"
	"habittracker/pkg/util"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already exists")
)

// UserStore 用户的持久化
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id int) (*model.User, error)
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email    string  `json:"email" validate:"required,email,max=254"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
	TgChatID *string `json:"tg_chat_id" validate:"omitempty,max=50"`
}

// InvalidRequestError 注册参数不合法
type InvalidRequestError struct {
	Field   string
	Message string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type Service struct {
	users     UserStore
	jwtSecret string
	tokenTTL  time.Duration
	validate  *validator.Validate
	logger    *zap.Logger
}

func NewService(users UserStore, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{
		users:     users,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		validate:  validator.New(),
		logger:    logger,
	}
}

// Register creates a new user.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, &InvalidRequestError{
				Field:   strings.ToLower(fe.Field()),
				Message: fmt.Sprintf("failed on %q", fe.Tag()),
			}
		}
		return nil, err
	}

	hash, err := util.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &model.User{
		Email:        req.Email,
		PasswordHash: hash,
		TgChatID:     req.TgChatID,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.Int("user_id", u.ID))
	return u, nil
}

// Login checks user credentials and returns JWT.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to find user: %w", err)
	}

	if !util.CheckPassword(password, u.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	return util.GenerateJWT(u.ID, s.jwtSecret, s.tokenTTL)
}

// Me 当前登录用户
func (s *Service) Me(ctx context.Context, actor access.Actor) (*model.User, error) {
	userID, ok := actor.UserID()
	if !ok {
		return nil, access.ErrUnauthenticated
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// token 有效但用户已被删除
			return nil, access.ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

// Authenticate 解析 bearer token 得到 Actor；空 token 表示匿名
func (s *Service) Authenticate(token string) (access.Actor, error) {
	if token == "" {
		return access.Anonymous(), nil
	}
	userID, err := util.ParseJWT(token, s.jwtSecret)
	if err != nil {
		return access.Anonymous(), err
	}
	return access.Authenticated(userID), nil
}
