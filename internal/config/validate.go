package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their config key rather than Go name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldError describes one invalid configuration value.
type FieldError struct {
	Field string
	Rule  string
	Param string
	Value interface{}
}

func (e FieldError) String() string {
	switch e.Rule {
	case "required":
		return fmt.Sprintf("%s is required", e.Field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", e.Field, e.Param, fmt.Sprint(e.Value))
	case "gte":
		return fmt.Sprintf("%s must be >= %s, got %v", e.Field, e.Param, e.Value)
	default:
		return fmt.Sprintf("%s failed %s validation (value: %v)", e.Field, e.Rule, e.Value)
	}
}

// ValidationError is returned by Validate when one or more fields are invalid.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.String())
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Validate checks the config against its field rules.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("invalid config: nil")
	}
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field: fieldPath(fe.Namespace()),
			Rule:  fe.Tag(),
			Param: fe.Param(),
			Value: fe.Value(),
		})
	}
	return out
}

// fieldPath turns "Config.parallel.max_workers" into "parallel.max_workers".
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
