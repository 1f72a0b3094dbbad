package config

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func defaultValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})

	return validate
}

// ValidateStruct validates a struct using validator tags
func ValidateStruct(target any) error {
	if err := defaultValidator().Struct(target); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}
