package sync

import (
	"context"
	stdsync "sync"

	"tether/internal/client"
	"tether/internal/types"
)

// fakeGateway is a scriptable Gateway for engine tests.
type fakeGateway struct {
	mu stdsync.Mutex

	snapshot     *types.ThreadSnapshot
	getErr       error
	threads      []types.ThreadSummary
	listErr      error
	sendErr      error
	sendAccepted bool
	sent         []client.SendMessageRequest
	interruptErr error
	interrupts   []client.InterruptRequest
	uploads      []types.Attachment
	uploadErr    error
	cfg          client.ClientConfig
	cfgErr       error
	created      []string
	archived     []string
	archiveErr   error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sendAccepted: true}
}

func (g *fakeGateway) setSnapshot(snapshot *types.ThreadSnapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.snapshot = snapshot
}

func (g *fakeGateway) GetThread(ctx context.Context, id string) (*types.ThreadSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.getErr != nil {
		return nil, g.getErr
	}
	if g.snapshot != nil {
		return g.snapshot, nil
	}
	return &types.ThreadSnapshot{ID: id}, nil
}

func (g *fakeGateway) ListThreads(ctx context.Context) ([]types.ThreadSummary, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	return append([]types.ThreadSummary(nil), g.threads...), nil
}

func (g *fakeGateway) SendMessage(ctx context.Context, id string, req client.SendMessageRequest) (client.SendAck, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return client.SendAck{}, g.sendErr
	}
	g.sent = append(g.sent, req)
	return client.SendAck{Accepted: g.sendAccepted}, nil
}

func (g *fakeGateway) Interrupt(ctx context.Context, id string, req client.InterruptRequest) (client.InterruptAck, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.interrupts = append(g.interrupts, req)
	if g.interruptErr != nil {
		return client.InterruptAck{}, g.interruptErr
	}
	return client.InterruptAck{Pending: true}, nil
}

func (g *fakeGateway) UploadAttachment(ctx context.Context, id string, att types.Attachment) (types.PreparedRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.uploadErr != nil {
		return types.PreparedRef{}, g.uploadErr
	}
	g.uploads = append(g.uploads, att)
	return types.PreparedRef{ID: "ref-" + att.Filename, Filename: att.Filename, MimeType: att.MimeType}, nil
}

func (g *fakeGateway) GetConfig(ctx context.Context, cwd string) (client.ClientConfig, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg, g.cfgErr
}

func (g *fakeGateway) CreateThread(ctx context.Context, cwd string) (types.ThreadSummary, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := "th_new"
	g.created = append(g.created, cwd)
	return types.ThreadSummary{ID: id, Cwd: cwd}, nil
}

func (g *fakeGateway) ArchiveThread(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.archiveErr != nil {
		return g.archiveErr
	}
	g.archived = append(g.archived, id)
	return nil
}

func (g *fakeGateway) sentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

func (g *fakeGateway) interruptCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.interrupts)
}

type subscribeCall struct {
	threadID   string
	resume     bool
	resumeFrom int64
}

// fakeStream records subscription traffic and lets tests inject events.
type fakeStream struct {
	mu stdsync.Mutex

	ch         chan types.StreamEvent
	connectErr error
	subs       []subscribeCall
	unsubs     []string
	acks       map[int]bool
	closed     bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{acks: make(map[int]bool)}
}

func (s *fakeStream) Connect(ctx context.Context) (<-chan types.StreamEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectErr != nil {
		return nil, s.connectErr
	}
	s.ch = make(chan types.StreamEvent, 64)
	return s.ch, nil
}

func (s *fakeStream) Subscribe(ctx context.Context, threadID string, resume bool, resumeFrom int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, subscribeCall{threadID: threadID, resume: resume, resumeFrom: resumeFrom})
	return nil
}

func (s *fakeStream) Unsubscribe(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubs = append(s.unsubs, threadID)
	return nil
}

func (s *fakeStream) Ack(ctx context.Context, requestID int, ok bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acks[requestID] = ok
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.ch != nil {
		close(s.ch)
		s.ch = nil
	}
	return nil
}

func (s *fakeStream) lastSub() (subscribeCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) == 0 {
		return subscribeCall{}, false
	}
	return s.subs[len(s.subs)-1], true
}

func (s *fakeStream) subCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// memCursors is an in-memory CursorStore for tests.
type memCursors struct {
	mu   stdsync.Mutex
	seqs map[string]int64
}

func newMemCursors() *memCursors {
	return &memCursors{seqs: make(map[string]int64)}
}

func (m *memCursors) Get(ctx context.Context, threadID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seqs[threadID], nil
}

func (m *memCursors) Set(ctx context.Context, threadID string, seq int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seqs[threadID] = seq
	return nil
}

func (m *memCursors) Clear(ctx context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seqs, threadID)
	return nil
}

func (m *memCursors) Close() error { return nil }
