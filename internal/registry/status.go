package registry

// Status is the closed outcome taxonomy of a lookup.
type Status int

const (
	StatusFound Status = iota + 1
	StatusNotFound
	StatusUnknownResponse
	StatusTimeout
	StatusTransportError
	StatusInvalidIdentifier
)

// Statuses lists every status in display order.
var Statuses = []Status{
	StatusFound,
	StatusNotFound,
	StatusUnknownResponse,
	StatusTimeout,
	StatusTransportError,
	StatusInvalidIdentifier,
}

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusUnknownResponse:
		return "unknown_response"
	case StatusTimeout:
		return "timeout"
	case StatusTransportError:
		return "transport_error"
	case StatusInvalidIdentifier:
		return "invalid_identifier"
	default:
		return "unset"
	}
}

// Describe returns the user-facing phrase for a non-found status.
func (s Status) Describe() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not found in registry"
	case StatusUnknownResponse:
		return "registry returned an unexpected response"
	case StatusTimeout:
		return "request timed out"
	case StatusTransportError:
		return "request failed"
	case StatusInvalidIdentifier:
		return "identifier is invalid"
	default:
		return "no result"
	}
}

// MarshalText renders the status name for JSON output.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the settled outcome of one lookup. Payload is set only when
// Status is StatusFound.
type Result struct {
	Status     Status
	Payload    string
	HTTPStatus int
	Err        error
}

// Found reports whether the lookup returned metadata.
func (r Result) Found() bool {
	return r.Status == StatusFound
}

// Invalid builds the result for an identifier rejected before dispatch.
func Invalid(err error) Result {
	return Result{Status: StatusInvalidIdentifier, Err: err}
}
