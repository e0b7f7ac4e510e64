package service

import (
	"errors"
	"fmt"

	"rideshare/internal/repository"
)

// Error kinds. Every error returned by a service wraps exactly one of these,
// so callers can branch with errors.Is.
var (
	// ErrNotFound is returned when a ride, booking, wallet or payment does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the actor is not allowed to perform the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState is returned when the entity is not in a state that allows the operation.
	ErrInvalidState = errors.New("invalid state")

	// ErrCapacity is returned when a ride does not have enough seats.
	ErrCapacity = errors.New("insufficient capacity")

	// ErrInsufficientFunds is returned when a wallet cannot cover a debit or freeze.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrConflict is returned for duplicates and lost races.
	ErrConflict = errors.New("conflict")

	// ErrUnavailable is returned when a collaborator could not be reached in time.
	ErrUnavailable = errors.New("service unavailable")

	// ErrInvalidInput is returned when request parameters fail validation.
	ErrInvalidInput = errors.New("invalid input")
)

// Error is a service error carrying its kind, a message and structured context
// such as ids and requested/available quantities.
type Error struct {
	Kind   error
	Msg    string
	Fields map[string]any
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap returns the error kind.
func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, msg string, kv ...any) *Error {
	e := &Error{Kind: kind, Msg: msg}
	if len(kv) > 0 {
		e.Fields = make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			if k, ok := kv[i].(string); ok {
				e.Fields[k] = kv[i+1]
			}
		}
	}
	return e
}

func notFound(entity, id string) *Error {
	return newError(ErrNotFound, entity+" not found", entity+"_id", id)
}

func forbidden(msg string) *Error {
	return newError(ErrForbidden, msg)
}

func invalidState(entity, id string, current any, op string) *Error {
	return newError(ErrInvalidState, fmt.Sprintf("cannot %s %s in state %v", op, entity, current),
		entity+"_id", id, "status", current)
}

func invalidInput(msg string, kv ...any) *Error {
	return newError(ErrInvalidInput, msg, kv...)
}

// translate maps repository errors onto service kinds. Other errors pass through.
func translate(err error, entity, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound(entity, id)
	case errors.Is(err, repository.ErrConflict), errors.Is(err, repository.ErrStale):
		return newError(ErrConflict, entity+" was modified concurrently", entity+"_id", id)
	default:
		return err
	}
}

// Fields returns the structured context of err, if it carries any.
func Fields(err error) map[string]any {
	var se *Error
	if errors.As(err, &se) {
		return se.Fields
	}
	return nil
}

var kindCodes = []struct {
	kind error
	code string
}{
	{ErrNotFound, "not_found"},
	{ErrForbidden, "forbidden"},
	{ErrInvalidState, "invalid_state"},
	{ErrCapacity, "capacity"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrConflict, "conflict"},
	{ErrUnavailable, "unavailable"},
	{ErrInvalidInput, "invalid_input"},
}

// Code returns the wire code of the error's kind, or "internal" for errors
// that carry no kind.
func Code(err error) string {
	for _, kc := range kindCodes {
		if errors.Is(err, kc.kind) {
			return kc.code
		}
	}
	return "internal"
}

// FromCode rebuilds a service error received from another deployment.
// Unknown codes come back as ErrUnavailable.
func FromCode(code, msg string, fields map[string]any) *Error {
	for _, kc := range kindCodes {
		if kc.code == code {
			return &Error{Kind: kc.kind, Msg: msg, Fields: fields}
		}
	}
	return &Error{Kind: ErrUnavailable, Msg: msg, Fields: fields}
}
