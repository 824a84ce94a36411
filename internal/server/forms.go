package server

import (
	"reflect"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SignupForm is the registration request. Password rules mirror the
// account policy: 8-64 chars with at least one letter and one digit.
type SignupForm struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,password"`
	Name     string `json:"name" binding:"required,min=1,max=50"`
	Nickname string `json:"nickname" binding:"omitempty,min=2,max=20"`
	Phone    string `json:"phone" binding:"omitempty,max=20"`
}

// LoginForm carries login credentials.
type LoginForm struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshForm carries the presented refresh token.
type RefreshForm struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// EmailForm carries a bare email address.
type EmailForm struct {
	Email string `json:"email" binding:"required,email"`
}

// VerifyForm carries an email and its six-digit code.
type VerifyForm struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6,numeric"`
}

// UpdateForm carries optional profile fields; absent fields stay
// unchanged.
type UpdateForm struct {
	Name            *string `json:"name" binding:"omitempty,min=1,max=50"`
	Nickname        *string `json:"nickname" binding:"omitempty,min=2,max=20"`
	Phone           *string `json:"phone" binding:"omitempty,max=20"`
	ProfileImageURL *string `json:"profileImageUrl" binding:"omitempty,url,max=512"`
}

// RoleForm carries a role change.
type RoleForm struct {
	Role string `json:"role" binding:"required,oneof=USER ADMIN"`
}

// ChangePasswordForm carries a password change.
type ChangePasswordForm struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,password"`
}

// SetPasswordForm carries the initial password for a social account.
type SetPasswordForm struct {
	NewPassword string `json:"newPassword" binding:"required,password"`
}

// PasswordForm carries a password to verify.
type PasswordForm struct {
	Password string `json:"password" binding:"required"`
}

// FormValidator is the binding.StructValidator installed on gin. It
// registers the custom password rule on first use.
type FormValidator struct {
	once     sync.Once
	validate *validator.Validate
}

var _ binding.StructValidator = (*FormValidator)(nil)

// ValidateStruct validates struct-kind values against their binding
// tags.
func (v *FormValidator) ValidateStruct(obj interface{}) error {
	if kindOfData(obj) != reflect.Struct {
		return nil
	}
	v.lazyinit()
	return v.validate.Struct(obj)
}

// Engine returns the underlying validator engine.
func (v *FormValidator) Engine() interface{} {
	v.lazyinit()
	return v.validate
}

func (v *FormValidator) lazyinit() {
	v.once.Do(func() {
		v.validate = validator.New()
		v.validate.SetTagName("binding")
		_ = v.validate.RegisterValidation("password", validPassword)
	})
}

func validPassword(fl validator.FieldLevel) bool {
	pw := fl.Field().String()
	if len(pw) < 8 || len(pw) > 64 {
		return false
	}
	var letter, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}

func kindOfData(data interface{}) reflect.Kind {
	value := reflect.ValueOf(data)
	kind := value.Kind()
	if kind == reflect.Ptr {
		kind = value.Elem().Kind()
	}
	return kind
}
