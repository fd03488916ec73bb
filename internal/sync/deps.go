package sync

import (
	"context"

	"tether/internal/client"
	"tether/internal/types"
)

// Gateway is the REST-like request/response surface the engine drives.
// *client.Client satisfies it; tests substitute fakes.
type Gateway interface {
	GetThread(ctx context.Context, id string) (*types.ThreadSnapshot, error)
	ListThreads(ctx context.Context) ([]types.ThreadSummary, error)
	SendMessage(ctx context.Context, id string, req client.SendMessageRequest) (client.SendAck, error)
	Interrupt(ctx context.Context, id string, req client.InterruptRequest) (client.InterruptAck, error)
	UploadAttachment(ctx context.Context, id string, att types.Attachment) (types.PreparedRef, error)
	GetConfig(ctx context.Context, cwd string) (client.ClientConfig, error)
	CreateThread(ctx context.Context, cwd string) (types.ThreadSummary, error)
	ArchiveThread(ctx context.Context, id string) error
}

// Stream is the event-stream connection. Connect returns a channel the
// engine's consumer goroutine drains; events never mutate engine state from
// the transport's goroutine.
type Stream interface {
	Connect(ctx context.Context) (<-chan types.StreamEvent, error)
	Subscribe(ctx context.Context, threadID string, resume bool, resumeFrom int64) error
	Unsubscribe(ctx context.Context, threadID string) error
	Ack(ctx context.Context, requestID int, ok bool) error
	Close() error
}
