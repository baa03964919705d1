package uorm

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinels matched by the typed errors below (errors.Is)
var (
	ErrIntegrity          = errors.New("integrity error")
	ErrMissingSubmodel    = errors.New("missing submodel")
	ErrWrongSubmodel      = errors.New("wrong submodel")
	ErrUnknownSubmodel    = errors.New("unknown submodel")
	ErrModelDestroyed     = errors.New("model destroyed")
	ErrObjectSaveRequired = errors.New("object save required")
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation error")
)

// IntegrityError reports a violated structural contract: instantiating an abstract model,
// registering a name or model twice, registering on a concrete submodel or reassigning _id.
type IntegrityError struct {
	Msg string
}

func (e *IntegrityError) Error() string        { return "integrity error: " + e.Msg }
func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

func integrityError(format string, args ...any) *IntegrityError {
	return &IntegrityError{Msg: fmt.Sprintf(format, args...)}
}

// MissingSubmodel is returned when a loaded row has no discriminator
type MissingSubmodel struct {
	Collection string
	ID         any
}

func (e *MissingSubmodel) Error() string {
	return fmt.Sprintf("missing submodel in %s row %v", e.Collection, e.ID)
}
func (e *MissingSubmodel) Is(target error) bool { return target == ErrMissingSubmodel }

// WrongSubmodel is returned when a discriminator does not match the model
type WrongSubmodel struct {
	Collection string
	Expected   string
	Got        any
}

func (e *WrongSubmodel) Error() string {
	return fmt.Sprintf("wrong submodel in %s: expected %q, got %v", e.Collection, e.Expected, e.Got)
}
func (e *WrongSubmodel) Is(target error) bool { return target == ErrWrongSubmodel }

// UnknownSubmodel is returned when a discriminator is not registered
type UnknownSubmodel struct {
	Collection string
	Name       any
}

func (e *UnknownSubmodel) Error() string {
	return fmt.Sprintf("unknown submodel %v in %s", e.Name, e.Collection)
}
func (e *UnknownSubmodel) Is(target error) bool { return target == ErrUnknownSubmodel }

// ModelDestroyed is returned by Reload when the row is gone
type ModelDestroyed struct {
	Collection string
	ID         any
}

func (e *ModelDestroyed) Error() string {
	return fmt.Sprintf("%s %v has been destroyed", e.Collection, e.ID)
}
func (e *ModelDestroyed) Is(target error) bool { return target == ErrModelDestroyed }

// ObjectSaveRequired is returned when an operation needs a persisted record
type ObjectSaveRequired struct {
	Collection string
	Op         string
}

func (e *ObjectSaveRequired) Error() string {
	return fmt.Sprintf("%s on a new %s record: save it first", e.Op, e.Collection)
}
func (e *ObjectSaveRequired) Is(target error) bool { return target == ErrObjectSaveRequired }

// NotFound is the default error of Get and CacheGet with RaiseIfNone
type NotFound struct {
	Collection string
	Expr       any
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s %v not found", e.Collection, e.Expr)
}
func (e *NotFound) Is(target error) bool { return target == ErrNotFound }

// ValidationError reports a missing required field or an unknown field
type ValidationError struct {
	Collection string
	Field      string
	Msg        string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s.%s: %s", e.Collection, e.Field, e.Msg)
}
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
