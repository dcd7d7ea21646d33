package plugin

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Native error codes reported by the plugin backends.
const (
	CodeStoreNotFound    uint32 = 0x80092004
	CodeStoreClosed      uint32 = 0x80090020
	CodeInvalidParameter uint32 = 0x80070057
	CodeInvalidIndex     uint32 = 0x8007000D
	CodeNotSupported     uint32 = 0x80090029
	CodeNotReady         uint32 = 0x8007046A
)

// Error is a native plugin failure.
type Error struct {
	Code    uint32
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s (0x%08X)", msg, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds a native plugin error with the given code.
func Errorf(code uint32, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

var reTrailingCode = regexp.MustCompile(`(?i)(?:\s*\(?0x[0-9a-f]+\)?|\s)+$`)

// ExtractMessage returns the human readable part of a plugin failure, without
// trailing native codes and ending with a period. It returns "" when err holds
// no *Error or the plugin message carries nothing a user could read.
func ExtractMessage(err error) string {
	var perr *Error
	if !errors.As(err, &perr) {
		return ""
	}

	msg := perr.Message
	if msg == "" && perr.Err != nil {
		msg = perr.Err.Error()
	}

	msg = strings.TrimSpace(reTrailingCode.ReplaceAllString(msg, ""))
	msg = strings.TrimRight(msg, ".")
	if !strings.ContainsFunc(msg, unicode.IsLetter) {
		return ""
	}
	return msg + "."
}
