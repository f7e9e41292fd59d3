// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

// Package validation provides struct validation using go-playground/validator
// v10 plus the submission sanitizers for collected and processed records.
//
// Validation is pure and side-effect-free: sanitizers return a canonical
// record (unknown fields dropped, defaults coerced, missing UUID filled) or
// a structured error naming the offending field.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// singleton validator instance
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is a single field validation failure.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Message string
}

// Error returns the human-readable message.
func (e *FieldError) Error() string { return e.Message }

// SchemaError is a collection of field validation failures for one record.
type SchemaError struct {
	errs []FieldError
}

// Fields returns the individual field errors.
func (se *SchemaError) Fields() []FieldError { return se.errs }

// Error implements the error interface with a combined message.
func (se *SchemaError) Error() string {
	if len(se.errs) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(se.errs))
	for i, e := range se.errs {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// GetValidator returns the singleton validator instance. Thread-safe; the
// instance caches struct metadata across calls.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Struct validates a struct using the singleton validator. Returns nil on
// success, or *SchemaError describing every failing field.
func Struct(s interface{}) *SchemaError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &SchemaError{errs: []FieldError{{
			Field:   "unknown",
			Tag:     "unknown",
			Message: err.Error(),
		}}}
	}

	out := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		out[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: translateError(fe),
		}
	}
	return &SchemaError{errs: out}
}

// errorMessageTemplates maps validation tags to message templates.
var errorMessageTemplates = map[string]string{
	"required": "%s is required",
	"uuid":     "%s must be a valid UUID",
	"datetime": "%s must be a valid date/time in RFC3339 format",
}

// translateError converts a validator.FieldError to a human-readable message.
func translateError(fe validator.FieldError) string {
	if tpl, ok := errorMessageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(tpl, fe.Field())
	}
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
