package tmdb

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

var (
	ErrAPIKeyMissing     = errors.New("TMDB API key is not configured")
	ErrIDMissing         = errors.New("item has no TMDB id")
	ErrTransport         = errors.New("TMDB request failed")
	ErrAPIError          = errors.New("TMDB API error")
	ErrMalformedResponse = errors.New("TMDB response could not be decoded")
	ErrCancelled         = errors.New("TMDB request cancelled")

	errTrailingData = errors.New("unexpected data after JSON value")
)

// ErrorKind classifies why an image fetch produced no results.
type ErrorKind int

const (
	ConfigurationMissing ErrorKind = iota + 1
	IdentifierMissing
	TransportFailure
	UpstreamRejected
	MalformedResponse
	OperationCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case ConfigurationMissing:
		return "configuration_missing"
	case IdentifierMissing:
		return "identifier_missing"
	case TransportFailure:
		return "transport_failure"
	case UpstreamRejected:
		return "upstream_rejected"
	case MalformedResponse:
		return "malformed_response"
	case OperationCancelled:
		return "operation_cancelled"
	default:
		return "unknown"
	}
}

// Severity is the log level a failure of this kind is reported at.
func (k ErrorKind) Severity() zerolog.Level {
	switch k {
	case ConfigurationMissing, IdentifierMissing, OperationCancelled:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case ConfigurationMissing:
		return ErrAPIKeyMissing
	case IdentifierMissing:
		return ErrIDMissing
	case TransportFailure:
		return ErrTransport
	case UpstreamRejected:
		return ErrAPIError
	case MalformedResponse:
		return ErrMalformedResponse
	case OperationCancelled:
		return ErrCancelled
	default:
		return ErrTransport
	}
}

// FetchError is returned by Provider.Fetch. Messages never contain the API key.
type FetchError struct {
	Kind       ErrorKind
	URL        string // redacted request URL
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// KindOf extracts the ErrorKind from err, or 0 if err is not a FetchError.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}
