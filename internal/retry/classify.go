package retry

import (
	"errors"
	"strings"
)

// Classification is the retry category of a failed remote call.
type Classification int

const (
	// Unknown means the adapter had no structured status to go on.
	Unknown Classification = iota
	RateLimit
	ServerError
	Timeout
	Fatal
)

func (c Classification) String() string {
	switch c {
	case RateLimit:
		return "rate_limit"
	case ServerError:
		return "server_error"
	case Timeout:
		return "timeout"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Retryable reports whether failures of this class are transient.
func (c Classification) Retryable() bool {
	return c == RateLimit || c == ServerError || c == Timeout
}

// Classifier is implemented by errors that come from a remote provider.
// Adapters with structured status information return a concrete class;
// returning Unknown defers to message matching.
type Classifier interface {
	Classification() Classification
}

// markers are matched case-insensitively against the error message when no
// structured classification is available.
var markers = []struct {
	text  string
	class Classification
}{
	{"rate_limit", RateLimit},
	{"429", RateLimit},
	{"server_error", ServerError},
	{"500", ServerError},
	{"503", ServerError},
	{"timeout", Timeout},
}

type remoteError struct {
	err error
}

// Remote marks err as a provider failure that carries no structured status.
func Remote(err error) error {
	if err == nil {
		return nil
	}
	return &remoteError{err: err}
}

func (e *remoteError) Error() string { return e.err.Error() }

func (e *remoteError) Unwrap() error { return e.err }

func (e *remoteError) Classification() Classification { return Unknown }

// Classify returns the classification of err and whether err is a remote
// provider error at all. Errors that are not remote are "unexpected".
func Classify(err error) (Classification, bool) {
	if err == nil {
		return Unknown, false
	}
	var c Classifier
	if !errors.As(err, &c) {
		return Unknown, false
	}
	if class := c.Classification(); class != Unknown {
		return class, true
	}
	return ClassifyMessage(err.Error()), true
}

// ClassifyMessage applies the substring allow-list to msg.
func ClassifyMessage(msg string) Classification {
	lower := strings.ToLower(msg)
	for _, m := range markers {
		if strings.Contains(lower, m.text) {
			return m.class
		}
	}
	return Fatal
}
