package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"tether/internal/logging"
	"tether/internal/types"
)

const streamEventBuffer = 256

type streamFrame struct {
	Type       string `json:"type"`
	ThreadID   string `json:"thread_id,omitempty"`
	Resume     bool   `json:"resume,omitempty"`
	ResumeFrom int64  `json:"resume_from,omitempty"`
	RequestID  *int   `json:"request_id,omitempty"`
	OK         bool   `json:"ok,omitempty"`
	Error      string `json:"error,omitempty"`
}

// StreamClient is the websocket event-stream connection. One connection can
// carry events for any number of subscribed threads.
type StreamClient struct {
	url string
	log logging.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewStreamClient(url string, log logging.Logger) (*StreamClient, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("stream url is required")
	}
	if log == nil {
		log = logging.Nop()
	}
	return &StreamClient{url: url, log: log}, nil
}

// Connect dials the stream and starts the read loop. The returned channel
// yields a connected event first, then inbound events, and a disconnected
// event before closing. Slow consumers drop events rather than block the
// read loop; the periodic refresh covers anything dropped.
func (s *StreamClient) Connect(ctx context.Context) (<-chan types.StreamEvent, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, s.url, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(4 << 20)

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	ch := make(chan types.StreamEvent, streamEventBuffer)
	ch <- types.StreamEvent{Kind: types.StreamConnected}

	go func() {
		defer close(ch)
		defer func() {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
			}
			s.mu.Unlock()
			_ = conn.Close(websocket.StatusNormalClosure, "")
		}()

		count := 0
		start := time.Now()
		for {
			var event types.StreamEvent
			if err := wsjson.Read(ctx, conn, &event); err != nil {
				if ctx.Err() == nil {
					s.log.Warn("stream read ended", logging.F("err", err))
					ch <- types.StreamEvent{Kind: types.StreamError, Message: err.Error()}
				}
				ch <- types.StreamEvent{Kind: types.StreamDisconnected}
				s.log.Debug("stream closed",
					logging.F("events", count),
					logging.F("dur", time.Since(start)))
				return
			}
			count++
			select {
			case ch <- event:
			default:
				s.log.Warn("stream event dropped", logging.F("kind", string(event.Kind)))
			}
		}
	}()

	return ch, nil
}

func (s *StreamClient) Subscribe(ctx context.Context, threadID string, resume bool, resumeFrom int64) error {
	return s.write(ctx, streamFrame{
		Type:       "subscribe",
		ThreadID:   threadID,
		Resume:     resume,
		ResumeFrom: resumeFrom,
	})
}

func (s *StreamClient) Unsubscribe(ctx context.Context, threadID string) error {
	return s.write(ctx, streamFrame{Type: "unsubscribe", ThreadID: threadID})
}

func (s *StreamClient) Ack(ctx context.Context, requestID int, ok bool) error {
	frame := streamFrame{Type: "ack", RequestID: &requestID, OK: ok}
	if !ok {
		frame.Error = "unsupported method"
	}
	return s.write(ctx, frame)
}

func (s *StreamClient) write(ctx context.Context, frame streamFrame) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.New("stream not connected")
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(writeCtx, conn, frame)
}

func (s *StreamClient) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "client closing")
}
