package types

import "strings"

type TurnPhase int

const (
	TurnPhaseUnknown TurnPhase = iota
	TurnPhaseRunning
	TurnPhaseTerminal
)

var statusStripper = strings.NewReplacer("_", "", "-", "", " ", "")

// NormalizeTurnStatus classifies a free-form turn status string. The server
// is not consistent about casing or separators, so both are stripped before
// classification. Unrecognized statuses are treated as non-terminal.
func NormalizeTurnStatus(raw string) TurnPhase {
	switch statusStripper.Replace(strings.ToLower(strings.TrimSpace(raw))) {
	case "pending", "running", "inprogress", "active", "started", "executing":
		return TurnPhaseRunning
	case "completed", "interrupted", "failed":
		return TurnPhaseTerminal
	default:
		return TurnPhaseUnknown
	}
}
