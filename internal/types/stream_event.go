package types

import "encoding/json"

type StreamEventKind string

const (
	StreamConnected      StreamEventKind = "connected"
	StreamDisconnected   StreamEventKind = "disconnected"
	StreamError          StreamEventKind = "error"
	StreamThreadSync     StreamEventKind = "thread_sync"
	StreamThreadSnapshot StreamEventKind = "thread_snapshot"
	StreamNotification   StreamEventKind = "notification"
	StreamRequest        StreamEventKind = "request"
)

// StreamEvent is the tagged union emitted by the event stream. ThreadID and
// Seq are optional; lifecycle events (connected/disconnected/error) carry
// neither.
type StreamEvent struct {
	Kind      StreamEventKind `json:"kind"`
	ThreadID  string          `json:"thread_id,omitempty"`
	Seq       *int64          `json:"seq,omitempty"`
	LatestSeq int64           `json:"latest_seq,omitempty"`
	SeqBase   int64           `json:"seq_base,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Snapshot  *ThreadSnapshot `json:"snapshot,omitempty"`
	RequestID *int            `json:"request_id,omitempty"`
	Message   string          `json:"message,omitempty"`
}
