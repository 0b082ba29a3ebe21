package domain

import (
	"context"
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeInvalidArgument  ErrorCode = "INVALID_ARGUMENT"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeUnavailable      ErrorCode = "UNAVAILABLE"
	CodeFailedPrecond    ErrorCode = "FAILED_PRECONDITION"
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	CodeInternal         ErrorCode = "INTERNAL"
	CodeCanceled         ErrorCode = "CANCELED"
	CodeDeadlineExceeded ErrorCode = "DEADLINE_EXCEEDED"
)

var (
	ErrServerNotFound     = errors.New("server not found")
	ErrEntrypointMissing  = errors.New("entrypoint missing")
	ErrSpawnFailed        = errors.New("spawn failed")
	ErrExecutableNotFound = errors.New("executable not found")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrToolNotFound       = errors.New("tool not found")
	ErrToolFailed         = errors.New("tool failed")
	ErrCredentialMissing  = errors.New("credential missing")
	ErrNoServers          = errors.New("no servers found to start")
	ErrNoProcessRecord    = errors.New("no pid found for server")
	ErrProcessNotFound    = errors.New("process not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrStoreClosed        = errors.New("process store closed")
)

type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
	Meta    map[string]string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op == "" {
		if msg == "" {
			return string(e.Code)
		}
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func E(code ErrorCode, op, msg string, cause error) *Error {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Code:    code,
		Op:      op,
		Message: msg,
		Cause:   cause,
	}
}

// Wrap attaches an operation to err, keeping the code of an existing *Error.
func Wrap(code ErrorCode, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		if existing.Op != "" || op == "" {
			return existing
		}
		return &Error{
			Code:    existing.Code,
			Op:      op,
			Message: existing.Message,
			Cause:   existing.Cause,
			Meta:    existing.Meta,
		}
	}
	return E(code, op, "", err)
}

// CredentialError reports a missing credential by name.
func CredentialError(op, name string) *Error {
	return &Error{
		Code:    CodeFailedPrecond,
		Op:      op,
		Message: fmt.Sprintf("%s not found in environment or .env", name),
		Cause:   ErrCredentialMissing,
		Meta:    map[string]string{"credential": name},
	}
}

func CodeFrom(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code, true
	}
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument, true
	case errors.Is(err, ErrServerNotFound), errors.Is(err, ErrEntrypointMissing), errors.Is(err, ErrToolNotFound),
		errors.Is(err, ErrNoProcessRecord), errors.Is(err, ErrProcessNotFound):
		return CodeNotFound, true
	case errors.Is(err, ErrCredentialMissing), errors.Is(err, ErrNoServers), errors.Is(err, ErrSpawnFailed),
		errors.Is(err, ErrExecutableNotFound):
		return CodeFailedPrecond, true
	case errors.Is(err, ErrPermissionDenied):
		return CodePermissionDenied, true
	case errors.Is(err, ErrToolFailed):
		return CodeInternal, true
	case errors.Is(err, ErrStoreClosed):
		return CodeUnavailable, true
	case errors.Is(err, context.DeadlineExceeded):
		return CodeDeadlineExceeded, true
	case errors.Is(err, context.Canceled):
		return CodeCanceled, true
	default:
		return "", false
	}
}
