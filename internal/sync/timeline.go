package sync

import (
	"fmt"
	"strings"
	"time"

	"tether/internal/types"
)

type RowKind string

const (
	RowUserText    RowKind = "user_text"
	RowAttachment  RowKind = "attachment"
	RowAgentText   RowKind = "agent_text"
	RowPlan        RowKind = "plan"
	RowReasoning   RowKind = "reasoning"
	RowCommand     RowKind = "command"
	RowFileChanges RowKind = "file_changes"
	RowCompaction  RowKind = "compaction"
)

// TimelineRow is one externally-observed row of the derived timeline.
// Pending rows come from optimistic messages the server has not confirmed.
type TimelineRow struct {
	Kind        RowKind
	TurnID      string
	ItemID      string
	Text        string
	Attachment  *types.Attachment
	Command     *types.CommandRun
	FileChanges []types.FileChange
	PlanSteps   []types.PlanStep
	Final       bool
	FinalLabel  string
	Pending     bool
}

const (
	contextWrapperOpen  = "<ide-context>"
	contextWrapperClose = "</ide-context>"

	minWorkedDuration = time.Second
	maxWorkedDuration = 12 * time.Hour

	genericFinalLabel = "Final response"
)

// StripContextWrapper removes IDE-context spans injected around user
// messages before display or signature derivation.
func StripContextWrapper(text string) string {
	for {
		start := strings.Index(text, contextWrapperOpen)
		if start < 0 {
			break
		}
		end := strings.Index(text[start:], contextWrapperClose)
		if end < 0 {
			text = text[:start]
			break
		}
		text = text[:start] + text[start+end+len(contextWrapperClose):]
	}
	return strings.TrimSpace(text)
}

// BuildTimeline derives the display rows from confirmed turns plus pending
// optimistic messages. It is a pure function of its inputs. runActive
// suppresses all final markers, including for already-terminal turns, so a
// terminal turn followed by a fresh run in the same refresh never flashes a
// final marker.
func BuildTimeline(turns []types.Turn, pending []OptimisticMessage, runActive bool) []TimelineRow {
	var rows []TimelineRow
	for i := range turns {
		rows = append(rows, turnRows(&turns[i], runActive)...)
	}
	for _, msg := range pending {
		rows = append(rows, TimelineRow{
			Kind:    RowUserText,
			ItemID:  msg.ID,
			Text:    msg.Text,
			Pending: true,
		})
		for j := range msg.Attachments {
			att := msg.Attachments[j]
			rows = append(rows, TimelineRow{
				Kind:       RowAttachment,
				ItemID:     msg.ID,
				Attachment: &att,
				Pending:    true,
			})
		}
	}
	return rows
}

func turnRows(turn *types.Turn, runActive bool) []TimelineRow {
	var rows []TimelineRow
	lastAgentRow := -1
	for _, item := range turn.Items {
		switch item.Kind {
		case types.ItemKindUserMessage:
			if text := StripContextWrapper(item.Text); text != "" {
				rows = append(rows, TimelineRow{Kind: RowUserText, TurnID: turn.ID, ItemID: item.ID, Text: text})
			}
			for j := range item.Attachments {
				att := item.Attachments[j]
				rows = append(rows, TimelineRow{Kind: RowAttachment, TurnID: turn.ID, ItemID: item.ID, Attachment: &att})
			}
		case types.ItemKindAgentMessage:
			rows = append(rows, TimelineRow{Kind: RowAgentText, TurnID: turn.ID, ItemID: item.ID, Text: item.Text})
			lastAgentRow = len(rows) - 1
		case types.ItemKindPlan:
			rows = append(rows, TimelineRow{Kind: RowPlan, TurnID: turn.ID, ItemID: item.ID, Text: item.Text, PlanSteps: item.PlanSteps})
		case types.ItemKindReasoning:
			rows = append(rows, TimelineRow{Kind: RowReasoning, TurnID: turn.ID, ItemID: item.ID, Text: item.Text})
		case types.ItemKindCommandExecution:
			rows = append(rows, TimelineRow{Kind: RowCommand, TurnID: turn.ID, ItemID: item.ID, Command: item.Command})
		case types.ItemKindFileChange:
			changes := make([]types.FileChange, 0, len(item.FileChanges))
			for _, change := range item.FileChanges {
				if strings.TrimSpace(change.Path) == "" {
					continue
				}
				changes = append(changes, change)
			}
			if len(changes) > 0 {
				rows = append(rows, TimelineRow{Kind: RowFileChanges, TurnID: turn.ID, ItemID: item.ID, FileChanges: changes})
			}
		case types.ItemKindTurnDiff:
			if changes := ParseUnifiedDiff(item.Diff); len(changes) > 0 {
				rows = append(rows, TimelineRow{Kind: RowFileChanges, TurnID: turn.ID, ItemID: item.ID, FileChanges: changes})
			}
		case types.ItemKindContextCompaction:
			rows = append(rows, TimelineRow{Kind: RowCompaction, TurnID: turn.ID, ItemID: item.ID, Text: item.Text})
		default:
			// Unrecognized kinds are dropped, not errored.
		}
	}
	if lastAgentRow >= 0 && !runActive && types.NormalizeTurnStatus(turn.Status) == types.TurnPhaseTerminal {
		rows[lastAgentRow].Final = true
		rows[lastAgentRow].FinalLabel = finalLabel(turn)
	}
	return rows
}

func finalLabel(turn *types.Turn) string {
	dur, ok := turnDuration(turn)
	if !ok || dur < minWorkedDuration || dur > maxWorkedDuration {
		return genericFinalLabel
	}
	return "Worked for " + formatWorked(dur)
}

func turnDuration(turn *types.Turn) (time.Duration, bool) {
	if turn.CompletedAt != nil && turn.StartedAt != nil {
		return turn.CompletedAt.Sub(*turn.StartedAt), true
	}
	if turn.UpdatedAt != nil && turn.CreatedAt != nil {
		return turn.UpdatedAt.Sub(*turn.CreatedAt), true
	}
	return 0, false
}

func formatWorked(dur time.Duration) string {
	switch {
	case dur < time.Minute:
		return fmt.Sprintf("%ds", int(dur.Seconds()))
	case dur < time.Hour:
		return fmt.Sprintf("%dm", int(dur.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(dur.Hours()))
	}
}
