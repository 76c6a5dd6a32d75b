// Package validator registers the domain validation tags used in binding
// tags across the API.
package validator

import (
	"regexp"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	TagBloodType = "bloodtype"
	TagPhone     = "phone"
)

var BloodTypes = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

// Digits with optional leading +, spaces, dashes and parentheses.
var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()\-]{5,19}$`)

func IsBloodType(s string) bool {
	for _, bt := range BloodTypes {
		if s == bt {
			return true
		}
	}
	return false
}

func IsPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// Register adds the domain tags to v.
func Register(v *validator.Validate) error {
	if err := v.RegisterValidation(TagBloodType, func(fl validator.FieldLevel) bool {
		return IsBloodType(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation(TagPhone, func(fl validator.FieldLevel) bool {
		return IsPhone(fl.Field().String())
	})
}

var (
	ginOnce sync.Once
	ginErr  error
)

// RegisterWithGin installs the domain tags on gin's binding validator. Safe
// to call more than once.
func RegisterWithGin() error {
	ginOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			ginErr = Register(v)
		}
	})
	return ginErr
}
