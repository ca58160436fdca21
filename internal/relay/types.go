package relay

// ServiceName is the RPC service the relay registers.
const ServiceName = "Relay"

// FetchRequest asks the relay to perform one GET.
type FetchRequest struct {
	URL           string            `json:"url"`
	Headers       map[string]string `json:"headers,omitempty"`
	TimeoutMillis int64             `json:"timeout_ms,omitempty"`
}

// FetchResponse is the verbatim reply.
type FetchResponse struct {
	Status   int               `json:"status"`
	Headers  map[string]string `json:"headers,omitempty"`
	Body     string            `json:"body"`
	TimedOut bool              `json:"timed_out,omitempty"`
}

// PingRequest checks relay liveness.
type PingRequest struct{}

// PingResponse reports relay identity.
type PingResponse struct {
	PID     int   `json:"pid"`
	Served  int64 `json:"served"`
	Started int64 `json:"started_unix"`
}
