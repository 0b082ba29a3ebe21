package main

import "travelmcp/internal/domain"

// exitCodeStartFailure is returned when start-all could not bring up every
// enabled server, including the missing credential case.
const exitCodeStartFailure = 2

// Exit codes for classified failures follow sysexits(3).
const (
	exitCodeGeneric     = 1
	exitCodeUsage       = 64
	exitCodeNoInput     = 66
	exitCodeUnavailable = 69
	exitCodeTempFail    = 75
	exitCodeNoPerm      = 77
)

type exitError struct {
	code    int
	message string
	silent  bool
}

func (e exitError) Error() string {
	return e.message
}

func exitSilent(code int) error {
	return exitError{code: code, silent: true}
}

// exitCodeFor maps an unhandled command error to a process exit code.
func exitCodeFor(err error) int {
	code, ok := domain.CodeFrom(err)
	if !ok {
		return exitCodeGeneric
	}
	switch code {
	case domain.CodeInvalidArgument:
		return exitCodeUsage
	case domain.CodeNotFound:
		return exitCodeNoInput
	case domain.CodeFailedPrecond, domain.CodeUnavailable:
		return exitCodeUnavailable
	case domain.CodeDeadlineExceeded, domain.CodeCanceled:
		return exitCodeTempFail
	case domain.CodePermissionDenied:
		return exitCodeNoPerm
	default:
		return exitCodeGeneric
	}
}
