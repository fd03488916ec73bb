package types

import (
	"encoding/json"
	"strings"
)

type ItemKind string

const (
	ItemKindUserMessage       ItemKind = "user_message"
	ItemKindAgentMessage      ItemKind = "agent_message"
	ItemKindPlan              ItemKind = "plan"
	ItemKindReasoning         ItemKind = "reasoning"
	ItemKindCommandExecution  ItemKind = "command_execution"
	ItemKindFileChange        ItemKind = "file_change"
	ItemKindTurnDiff          ItemKind = "turn_diff"
	ItemKindContextCompaction ItemKind = "context_compaction"
	ItemKindUnknown           ItemKind = "unknown"
)

// Item is one typed unit of turn content. Kind selects which payload fields
// are meaningful; unknown kinds are preserved here and dropped later when the
// timeline is derived.
type Item struct {
	ID          string       `json:"id"`
	Kind        ItemKind     `json:"kind"`
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Command     *CommandRun  `json:"command,omitempty"`
	FileChanges []FileChange `json:"file_changes,omitempty"`
	Diff        string       `json:"diff,omitempty"`
	PlanSteps   []PlanStep   `json:"plan_steps,omitempty"`
	RawKind     string       `json:"raw_kind,omitempty"`
}

// UnmarshalJSON normalizes the wire kind onto the closed kind set while
// keeping the server's original string in RawKind.
func (i *Item) UnmarshalJSON(data []byte) error {
	type alias Item
	var decoded alias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*i = Item(decoded)
	i.RawKind = string(decoded.Kind)
	i.Kind = NormalizeItemKind(i.RawKind)
	return nil
}

type CommandRun struct {
	Command    string          `json:"command"`
	Output     string          `json:"output,omitempty"`
	Status     string          `json:"status,omitempty"`
	DurationMS int64           `json:"duration_ms,omitempty"`
	Actions    []CommandAction `json:"actions,omitempty"`
}

type CommandAction struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
	Text string `json:"text,omitempty"`
}

type FileChange struct {
	Path    string `json:"path"`
	Kind    string `json:"kind,omitempty"`
	Added   int    `json:"added,omitempty"`
	Removed int    `json:"removed,omitempty"`
}

type PlanStep struct {
	Title  string `json:"title"`
	Status string `json:"status,omitempty"`
}

// NormalizeItemKind maps free-form server kind strings onto the closed kind
// set. Anything unrecognized becomes ItemKindUnknown.
func NormalizeItemKind(raw string) ItemKind {
	switch strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.TrimSpace(raw))) {
	case "usermessage":
		return ItemKindUserMessage
	case "agentmessage", "assistantmessage":
		return ItemKindAgentMessage
	case "plan", "planupdate":
		return ItemKindPlan
	case "reasoning":
		return ItemKindReasoning
	case "commandexecution", "command":
		return ItemKindCommandExecution
	case "filechange":
		return ItemKindFileChange
	case "turndiff":
		return ItemKindTurnDiff
	case "contextcompaction", "compaction":
		return ItemKindContextCompaction
	default:
		return ItemKindUnknown
	}
}
