// Package model 定义日记客户端与服务端共享的数据结构
// 包含日记、标签、分类、统计和偏好设置，以及输入校验和展示格式化
package model

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/weiwangfds/scijournal/internal/errors"
	"github.com/weiwangfds/scijournal/internal/i18n"
)

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// validate 包级校验器，使用json字段名输出错误
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// rgbhex 仅接受 #RGB 和 #RRGGBB
	_ = v.RegisterValidation("rgbhex", func(fl validator.FieldLevel) bool {
		return hexColorPattern.MatchString(fl.Field().String())
	})
	// mood 允许为空，非空时必须属于固定集合
	_ = v.RegisterValidation("mood", func(fl validator.FieldLevel) bool {
		return Mood(fl.Field().String()).Valid()
	})

	return v
}

// validateStruct 校验结构体，失败时返回带字段详情的应用错误
func validateStruct(s any, code apperrors.ErrorCode) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return apperrors.Wrap(code, "", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s %s", fe.Field(), friendlyMessage(fe)))
	}
	sort.Strings(msgs)
	return apperrors.NewWithDetails(code, apperrors.GetErrorMessage(code), strings.Join(msgs, "; "))
}

func friendlyMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "rgbhex":
		return "must be a hex color like #RRGGBB"
	case "mood":
		return "must be one of: " + strings.Join(moodNames(), " ")
	default:
		return "is invalid"
	}
}

func translate(key string) string {
	return i18n.GetInstance().T(key)
}
