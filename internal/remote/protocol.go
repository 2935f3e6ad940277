package remote

import "encoding/json"

// Wire messages for the websocket store protocol, shared by the client in
// this package and the relay server. Requests carry a client sequence
// number echoed on the matching result. Observe requests also carry a
// client-chosen watch identifier; change messages reference it.
type Request struct {
	Op    string          `json:"op"`
	Seq   int64           `json:"seq"`
	Path  string          `json:"path,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
	Watch int64           `json:"watch,omitempty"`
}

type Response struct {
	Type  string          `json:"type"`
	Seq   int64           `json:"seq,omitempty"`
	Watch int64           `json:"watch,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
	Error string          `json:"error,omitempty"`
}

const (
	OpPut       = "put"
	OpGet       = "get"
	OpRemove    = "remove"
	OpObserve   = "observe"
	OpUnobserve = "unobserve"

	TypeResult = "result"
	TypeChange = "change"
)
