package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration against its struct tags.
//
// Validation runs after ApplyDefaults, so a failure here means an explicit
// value is out of range, not a missing one.
func Validate(cfg *Config) error {
	v := validator.New()

	err := v.Struct(cfg)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if errors.As(err, &errs) && len(errs) > 0 {
		first := errs[0]
		return fmt.Errorf("field %q failed %q validation", first.Namespace(), first.Tag())
	}
	return err
}
