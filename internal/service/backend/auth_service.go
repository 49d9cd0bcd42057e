// Package backend 开发用日记服务端的业务逻辑
// 包含账号认证、日记、分类、统计和用户偏好，数据通过GORM保存在SQLite中
package backend

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/weiwangfds/scijournal/internal/database"
	apperrors "github.com/weiwangfds/scijournal/internal/errors"
	"github.com/weiwangfds/scijournal/internal/logger"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Claims 访问令牌声明
type Claims struct {
	UserID uint   `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenValidator 校验访问令牌
type TokenValidator interface {
	ValidateToken(token string) (*Claims, error)
}

// AuthService 账号认证服务接口
type AuthService interface {
	TokenValidator

	// Register 注册新账号
	// 参数:
	//   email - 邮箱，全局唯一
	//   password - 明文密码，使用bcrypt保存
	// 返回:
	//   string - 访问令牌
	//   error - 邮箱已存在时返回 ErrRecordAlreadyExists
	// 功能:
	//   - 创建默认偏好设置
	//   - 创建默认分类
	Register(ctx context.Context, email, password string) (string, error)

	// Login 校验密码并签发令牌
	Login(ctx context.Context, email, password string) (string, error)
}

type authService struct {
	db     *gorm.DB
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewAuthService 创建认证服务
func NewAuthService(db *gorm.DB, secret string, expiry time.Duration) AuthService {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &authService{
		db:     db,
		secret: []byte(secret),
		expiry: expiry,
		now:    time.Now,
	}
}

func (s *authService) Register(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", apperrors.New(apperrors.ErrInvalidParams, "Email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, "Failed to create user", err)
	}

	var user database.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&database.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperrors.New(apperrors.ErrRecordAlreadyExists, "User already exists")
		}

		user = database.User{Email: email, PasswordHash: string(hash)}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		prefs := database.UserPreference{
			UserID:             user.ID,
			Theme:              "light",
			DefaultView:        "list",
			DateFormat:         "MM/DD/YYYY",
			EmailNotifications: true,
		}
		if err := tx.Create(&prefs).Error; err != nil {
			return err
		}
		return database.SeedDefaultCategories(tx, user.ID)
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return "", appErr
		}
		logger.Errorf("[认证] 创建用户失败: %v", err)
		return "", apperrors.Wrap(apperrors.ErrDatabaseQuery, "Failed to create user", err)
	}

	logger.Infof("[认证] 新用户注册: id=%d", user.ID)
	return s.generateToken(&user)
}

func (s *authService) Login(ctx context.Context, email, password string) (string, error) {
	invalid := apperrors.New(apperrors.ErrUnauthorized, "Invalid credentials")

	var user database.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", invalid
		}
		return "", apperrors.Wrap(apperrors.ErrDatabaseQuery, "Login failed", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", invalid
	}
	return s.generateToken(&user)
}

func (s *authService) generateToken(user *database.User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, "Failed to generate token", err)
	}
	return token, nil
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrUnauthorized, "Invalid token", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, apperrors.New(apperrors.ErrUnauthorized, "Invalid token")
	}
	return claims, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
