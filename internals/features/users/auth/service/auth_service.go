package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"drivingschool_backend/internals/constants"
	"drivingschool_backend/internals/features/users/auth/dto"
	"drivingschool_backend/internals/features/users/auth/model"
	"drivingschool_backend/internals/features/users/auth/store"
	helper "drivingschool_backend/internals/helpers"
	"drivingschool_backend/internals/helpers/clock"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserInactive       = errors.New("account is deactivated")
	ErrMissingSecret      = errors.New("JWT secret is not configured")
)

type AuthService struct {
	DB     *gorm.DB
	Tokens store.RevokedTokenStore
	Secret string
	TTL    time.Duration
	Clock  clock.Clock
}

func NewAuthService(db *gorm.DB, tokens store.RevokedTokenStore, secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{DB: db, Tokens: tokens, Secret: secret, TTL: ttl, Clock: clock.System{}}
}

// Register always creates a student.
func (s *AuthService) Register(ctx context.Context, in dto.RegisterRequest) (*model.UserModel, error) {
	return s.create(ctx, in, constants.RoleStudent)
}

func (s *AuthService) CreateUser(ctx context.Context, in dto.CreateUserRequest) (*model.UserModel, error) {
	return s.create(ctx, in.RegisterRequest, strings.ToLower(in.Role))
}

func (s *AuthService) create(ctx context.Context, in dto.RegisterRequest, role string) (*model.UserModel, error) {
	in.Normalize()
	if !constants.IsValidRole(role) {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := model.UserModel{
		UserName: in.UserName,
		Email:    in.Email,
		Password: string(hash),
		Role:     role,
		IsActive: true,
	}
	if in.Phone != nil {
		p := helper.NormalizeKenyanPhone(*in.Phone)
		user.Phone = &p
	}

	if err := s.DB.WithContext(ctx).Create(&user).Error; err != nil {
		if helper.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) Login(ctx context.Context, in dto.LoginRequest) (*dto.LoginResponse, error) {
	var user model.UserModel
	err := s.DB.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(in.Email))).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	token, exp, err := s.IssueToken(&user)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   exp,
		User:        dto.FromUser(&user),
	}, nil
}

func (s *AuthService) IssueToken(user *model.UserModel) (string, time.Time, error) {
	if s.Secret == "" {
		return "", time.Time{}, ErrMissingSecret
	}
	now := s.Clock.Now()
	exp := now.Add(s.TTL)
	claims := jwt.MapClaims{
		"id":        user.ID.String(),
		"role":      user.Role,
		"user_name": user.UserName,
		"iat":       now.Unix(),
		"exp":       exp.Unix(),
		"jti":       uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, time.Unix(exp.Unix(), 0).UTC(), nil
}

func (s *AuthService) Logout(ctx context.Context, token string, expiresAt time.Time) error {
	if expiresAt.IsZero() {
		expiresAt = s.Clock.Now().Add(s.TTL)
	}
	return s.Tokens.Revoke(ctx, token, expiresAt)
}

func (s *AuthService) FindByID(ctx context.Context, id uuid.UUID) (*model.UserModel, error) {
	var user model.UserModel
	if err := s.DB.WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
