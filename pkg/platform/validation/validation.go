// Package validation runs struct-tag checks on request DTOs with
// go-playground/validator and reports failures as domain violations keyed by
// JSON field name.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	dErrors "findthem/pkg/domain-errors"
)

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		instance = v
	})
	return instance
}

// Struct checks the validate tags of s and adds one violation per failing field.
func Struct(s any, violations *dErrors.Violations) {
	err := get().Struct(s)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		violations.Add("body", "is invalid")
		return
	}
	for _, fe := range verrs {
		violations.Add(fe.Field(), message(fe))
	}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "eqfield":
		return "does not match"
	case "http_url":
		return "must be an absolute http(s) URL"
	case "email":
		return "must be a valid email address"
	}
	return "is invalid"
}

// Var checks a single value against a validator tag such as "email" or
// "http_url".
func Var(value any, tag string) error {
	return get().Var(value, tag)
}
