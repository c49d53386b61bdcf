package pipeline

import "fmt"

// Kind classifies why a URL's analysis failed. Every kind except TLSFailure
// is fatal to that URL's run; TLSFailure only degrades the ssl_valid field.
type Kind int

const (
	// KindNetworkFailure covers DNS, connect, and refused-connection errors.
	KindNetworkFailure Kind = iota
	// KindTimeout covers deadline expiry anywhere in a fetch.
	KindTimeout
	// KindHTTPStatus covers a non-2xx status on the primary fetch.
	KindHTTPStatus
	// KindTLSFailure covers handshake or certificate problems.
	KindTLSFailure
	// KindParseFailure covers markup that cannot be traversed.
	KindParseFailure
)

// String returns the kind's name for logs.
func (k Kind) String() string {
	switch k {
	case KindNetworkFailure:
		return "network_failure"
	case KindTimeout:
		return "timeout"
	case KindHTTPStatus:
		return "http_status"
	case KindTLSFailure:
		return "tls_failure"
	case KindParseFailure:
		return "parse_failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the failure half of a pipeline run. Message is the human-readable
// text that becomes the result's status; Cause preserves the underlying error
// for errors.Is/As.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}
