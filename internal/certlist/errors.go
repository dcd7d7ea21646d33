package certlist

import (
	"errors"

	"github.com/vocdoni/gofirma/usercerts/internal/plugin"
)

// Error kinds. Match them with errors.Is.
var (
	ErrPluginUnavailable     = errors.New("certlist: plugin unavailable")
	ErrStoreAccess           = errors.New("certlist: cannot create certificate store")
	ErrStoreOpen             = errors.New("certlist: cannot open certificate store")
	ErrCertificateList       = errors.New("certlist: cannot read certificate list")
	ErrNoCertificates        = errors.New("certlist: no certificates available")
	ErrCertificateProcessing = errors.New("certlist: cannot process certificate")
	ErrNotFound              = errors.New("certlist: certificate not found")
)

// Error is a retrieval failure. Its text is meant for the user: the plugin's
// own message when it has a readable one, the localized fallback of the kind
// otherwise.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func newError(kind error, cause error, msgs Messages) *Error {
	msg := plugin.ExtractMessage(cause)
	if msg == "" {
		msg = msgs.Fallback(kind)
	}
	return &Error{Kind: kind, Message: msg, Err: cause}
}
