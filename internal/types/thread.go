package types

import "time"

type RunOwner string

const (
	RunOwnerLocal    RunOwner = "local"
	RunOwnerExternal RunOwner = "external"
	RunOwnerNone     RunOwner = "none"
)

// ExternalRun describes a run the server reports on the thread, which may
// have been started by this client or by another surface.
type ExternalRun struct {
	Active bool     `json:"active"`
	Owner  RunOwner `json:"owner,omitempty"`
	TurnID string   `json:"turn_id,omitempty"`
}

type ThreadSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Cwd       string    `json:"cwd,omitempty"`
	Active    bool      `json:"active,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// ThreadSnapshot is the server-authoritative state for one thread. It is
// replaced wholesale on every refresh or stream snapshot, never patched.
type ThreadSnapshot struct {
	ID          string       `json:"id"`
	Title       string       `json:"title,omitempty"`
	Cwd         string       `json:"cwd,omitempty"`
	Turns       []Turn       `json:"turns"`
	ExternalRun *ExternalRun `json:"external_run,omitempty"`
}

type Turn struct {
	ID          string     `json:"id"`
	Status      string     `json:"status,omitempty"`
	Items       []Item     `json:"items,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// RunActive reports whether the snapshot itself claims an active run, either
// through the external run descriptor or through a still-running final turn.
func (s *ThreadSnapshot) RunActive() bool {
	if s == nil {
		return false
	}
	if s.ExternalRun != nil && s.ExternalRun.Active {
		return true
	}
	if len(s.Turns) == 0 {
		return false
	}
	return NormalizeTurnStatus(s.Turns[len(s.Turns)-1].Status) == TurnPhaseRunning
}

// ExternallyOwned reports whether the active run belongs to another client
// surface and therefore cannot be steered or interrupted locally.
func (s *ThreadSnapshot) ExternallyOwned() bool {
	if s == nil || s.ExternalRun == nil {
		return false
	}
	return s.ExternalRun.Active && s.ExternalRun.Owner == RunOwnerExternal
}
