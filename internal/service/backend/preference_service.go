package backend

import (
	"context"
	"errors"

	"github.com/weiwangfds/scijournal/internal/database"
	apperrors "github.com/weiwangfds/scijournal/internal/errors"
	"github.com/weiwangfds/scijournal/internal/model"
	"gorm.io/gorm"
)

// PreferenceDTO 服务端偏好响应
type PreferenceDTO struct {
	Theme              string `json:"theme"`
	DefaultView        string `json:"defaultView"`
	DateFormat         string `json:"dateFormat"`
	EmailNotifications bool   `json:"emailNotifications"`
}

// PreferenceUpdate 偏好部分更新，未提供的字段保持不变
type PreferenceUpdate struct {
	Theme              *string `json:"theme"`
	DefaultView        *string `json:"defaultView"`
	DateFormat         *string `json:"dateFormat"`
	EmailNotifications *bool   `json:"emailNotifications"`
}

// PreferenceService 服务端用户偏好接口
type PreferenceService interface {
	// Get 返回用户偏好，不存在时按默认值创建
	Get(ctx context.Context, userID uint) (PreferenceDTO, error)
	// Update 部分更新用户偏好
	Update(ctx context.Context, userID uint, in PreferenceUpdate) (PreferenceDTO, error)
}

type preferenceService struct {
	db *gorm.DB
}

// NewPreferenceService 创建偏好服务
func NewPreferenceService(db *gorm.DB) PreferenceService {
	return &preferenceService{db: db}
}

func (s *preferenceService) Get(ctx context.Context, userID uint) (PreferenceDTO, error) {
	prefs, err := s.load(s.db.WithContext(ctx), userID)
	if err != nil {
		return PreferenceDTO{}, wrapDB(err, "Failed to retrieve user preferences")
	}
	return toPreferenceDTO(prefs), nil
}

func (s *preferenceService) Update(ctx context.Context, userID uint, in PreferenceUpdate) (PreferenceDTO, error) {
	if err := in.validate(); err != nil {
		return PreferenceDTO{}, err
	}

	var prefs *database.UserPreference
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if prefs, err = s.load(tx, userID); err != nil {
			return err
		}
		if in.Theme != nil {
			prefs.Theme = *in.Theme
		}
		if in.DefaultView != nil {
			prefs.DefaultView = *in.DefaultView
		}
		if in.DateFormat != nil {
			prefs.DateFormat = *in.DateFormat
		}
		if in.EmailNotifications != nil {
			prefs.EmailNotifications = *in.EmailNotifications
		}
		return tx.Save(prefs).Error
	})
	if err != nil {
		return PreferenceDTO{}, wrapDB(err, "Failed to update user preferences")
	}
	return toPreferenceDTO(prefs), nil
}

func (s *preferenceService) load(tx *gorm.DB, userID uint) (*database.UserPreference, error) {
	var prefs database.UserPreference
	err := tx.Where("user_id = ?", userID).First(&prefs).Error
	if err == nil {
		return &prefs, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	prefs = database.UserPreference{
		UserID:             userID,
		Theme:              "light",
		DefaultView:        string(model.ViewList),
		DateFormat:         string(model.DateFormatMDY),
		EmailNotifications: true,
	}
	if err := tx.Create(&prefs).Error; err != nil {
		return nil, err
	}
	return &prefs, nil
}

func (in PreferenceUpdate) validate() error {
	invalid := func(msg string) error {
		return apperrors.New(apperrors.ErrInvalidParams, msg)
	}
	if in.Theme != nil && *in.Theme != "light" && *in.Theme != "dark" {
		return invalid("Invalid theme")
	}
	if in.DefaultView != nil && !model.View(*in.DefaultView).Valid() {
		return invalid("Invalid default view")
	}
	if in.DateFormat != nil && !model.DateFormat(*in.DateFormat).Valid() {
		return invalid("Invalid date format")
	}
	return nil
}

func toPreferenceDTO(p *database.UserPreference) PreferenceDTO {
	return PreferenceDTO{
		Theme:              p.Theme,
		DefaultView:        p.DefaultView,
		DateFormat:         p.DateFormat,
		EmailNotifications: p.EmailNotifications,
	}
}
