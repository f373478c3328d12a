package service

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Error kinds. Every error returned by a service wraps exactly one of these.
var (
	ErrPermission = errors.New("permission denied")
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
)

var (
	ErrStudentNotFound  = fmt.Errorf("student %w", ErrNotFound)
	ErrTeacherNotFound  = fmt.Errorf("teacher %w", ErrNotFound)
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
	ErrTaskNotFound     = fmt.Errorf("task %w", ErrNotFound)
	ErrOpsTaskNotFound  = fmt.Errorf("operations task %w", ErrNotFound)
	ErrNotATeacher      = fmt.Errorf("%w: user does not hold the teacher role", ErrValidation)
	ErrEmptySelection   = fmt.Errorf("%w: no rows selected", ErrValidation)
	ErrEmptyNote        = fmt.Errorf("%w: note must not be empty", ErrValidation)
	ErrEmptyRoles       = fmt.Errorf("%w: role set must not be empty", ErrValidation)
	ErrInvalidStatus    = fmt.Errorf("%w: unknown status", ErrValidation)
	ErrInvalidSource    = fmt.Errorf("%w: unknown flag source", ErrValidation)
	ErrDuplicateStudent = fmt.Errorf("%w: external user id already registered", ErrConflict)
	ErrDuplicateUser    = fmt.Errorf("%w: username already taken", ErrConflict)
	ErrOpenOpsTask      = fmt.Errorf("%w: student already has an open operations task", ErrConflict)
	ErrTaskNotActive    = fmt.Errorf("%w: task is no longer active", ErrConflict)
	ErrInactiveUser     = fmt.Errorf("%w: account is deactivated", ErrPermission)
	ErrNotTaskOwner     = fmt.Errorf("%w: task is assigned to another teacher", ErrPermission)
)

// IsValidation reports whether err is a validation failure, including struct tag failures.
func IsValidation(err error) bool {
	var tagErrs validator.ValidationErrors
	return errors.Is(err, ErrValidation) || errors.As(err, &tagErrs)
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// notFound maps gorm's missing-row error onto a specific not-found error.
func notFound(err error, specific error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return specific
	}
	return err
}
