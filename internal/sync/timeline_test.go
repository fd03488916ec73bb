package sync

import (
	"testing"
	"time"

	"tether/internal/types"
)

func timePtr(t time.Time) *time.Time { return &t }

func terminalTurn(id string, items ...types.Item) types.Turn {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return types.Turn{
		ID:          id,
		Status:      "completed",
		Items:       items,
		StartedAt:   timePtr(start),
		CompletedAt: timePtr(start.Add(90 * time.Second)),
	}
}

func TestStripContextWrapper(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"<ide-context>file: a.go</ide-context>question", "question"},
		{"before<ide-context>x</ide-context>after", "beforeafter"},
		{"<ide-context>a</ide-context><ide-context>b</ide-context>text", "text"},
		{"<ide-context>unterminated", ""},
	}
	for _, tc := range cases {
		if got := StripContextWrapper(tc.in); got != tc.want {
			t.Fatalf("StripContextWrapper(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFinalMarkerOnLastAgentMessageOfTerminalTurn(t *testing.T) {
	turn := terminalTurn("t1",
		types.Item{ID: "i1", Kind: types.ItemKindAgentMessage, Text: "first"},
		types.Item{ID: "i2", Kind: types.ItemKindAgentMessage, Text: "second"},
	)
	rows := BuildTimeline([]types.Turn{turn}, nil, false)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Final {
		t.Fatal("first agent message carries the final marker")
	}
	if !rows[1].Final {
		t.Fatal("last agent message missing the final marker")
	}
	if rows[1].FinalLabel != "Worked for 1m" {
		t.Fatalf("final label = %q, want %q", rows[1].FinalLabel, "Worked for 1m")
	}
}

func TestFinalMarkerSuppressedWhileRunActive(t *testing.T) {
	turn := terminalTurn("t1",
		types.Item{ID: "i1", Kind: types.ItemKindAgentMessage, Text: "done"},
	)
	rows := BuildTimeline([]types.Turn{turn}, nil, true)
	if rows[0].Final {
		t.Fatal("final marker set while a run is active")
	}
}

func TestFinalMarkerSkippedForRunningTurn(t *testing.T) {
	turn := types.Turn{
		ID:     "t1",
		Status: "in_progress",
		Items:  []types.Item{{ID: "i1", Kind: types.ItemKindAgentMessage, Text: "partial"}},
	}
	rows := BuildTimeline([]types.Turn{turn}, nil, false)
	if rows[0].Final {
		t.Fatal("final marker set on a running turn")
	}
}

func TestFinalLabelBounds(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		dur  time.Duration
		want string
	}{
		{"sub-second", 300 * time.Millisecond, "Final response"},
		{"seconds", 42 * time.Second, "Worked for 42s"},
		{"hours", 3 * time.Hour, "Worked for 3h"},
		{"absurd", 20 * time.Hour, "Final response"},
	}
	for _, tc := range cases {
		turn := types.Turn{
			ID:          "t1",
			Status:      "completed",
			Items:       []types.Item{{ID: "i1", Kind: types.ItemKindAgentMessage, Text: "x"}},
			StartedAt:   timePtr(start),
			CompletedAt: timePtr(start.Add(tc.dur)),
		}
		rows := BuildTimeline([]types.Turn{turn}, nil, false)
		if rows[0].FinalLabel != tc.want {
			t.Fatalf("%s: label = %q, want %q", tc.name, rows[0].FinalLabel, tc.want)
		}
	}
}

func TestFinalLabelWithoutTimestamps(t *testing.T) {
	turn := types.Turn{
		ID:     "t1",
		Status: "completed",
		Items:  []types.Item{{ID: "i1", Kind: types.ItemKindAgentMessage, Text: "x"}},
	}
	rows := BuildTimeline([]types.Turn{turn}, nil, false)
	if rows[0].FinalLabel != "Final response" {
		t.Fatalf("label = %q, want the generic fallback", rows[0].FinalLabel)
	}
}

func TestPendingOptimisticRowsAppendedAfterTurns(t *testing.T) {
	turn := terminalTurn("t1",
		types.Item{ID: "i1", Kind: types.ItemKindAgentMessage, Text: "answer"},
	)
	pending := []OptimisticMessage{{
		ID:   "local-1",
		Text: "next question",
		Attachments: []types.Attachment{
			{Filename: "notes.md", MimeType: "text/markdown"},
		},
	}}
	rows := BuildTimeline([]types.Turn{turn}, pending, false)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[1].Kind != RowUserText || !rows[1].Pending {
		t.Fatalf("row 1 = %+v, want pending user text", rows[1])
	}
	if rows[2].Kind != RowAttachment || !rows[2].Pending || rows[2].Attachment.Filename != "notes.md" {
		t.Fatalf("row 2 = %+v, want pending attachment", rows[2])
	}
}

func TestUserRowsStripWrapperAndDropEmpty(t *testing.T) {
	turn := types.Turn{
		ID:     "t1",
		Status: "completed",
		Items: []types.Item{
			{ID: "i1", Kind: types.ItemKindUserMessage, Text: "<ide-context>ctx</ide-context>hi"},
			{ID: "i2", Kind: types.ItemKindUserMessage, Text: "<ide-context>only ctx</ide-context>"},
		},
	}
	rows := BuildTimeline([]types.Turn{turn}, nil, false)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1 (wrapper-only message dropped)", len(rows))
	}
	if rows[0].Text != "hi" {
		t.Fatalf("text = %q, want %q", rows[0].Text, "hi")
	}
}

func TestUnknownItemKindsDropped(t *testing.T) {
	turn := types.Turn{
		ID:     "t1",
		Status: "completed",
		Items: []types.Item{
			{ID: "i1", Kind: types.ItemKindUnknown, RawKind: "telepathy"},
			{ID: "i2", Kind: types.ItemKindAgentMessage, Text: "ok"},
		},
	}
	rows := BuildTimeline([]types.Turn{turn}, nil, false)
	if len(rows) != 1 || rows[0].Kind != RowAgentText {
		t.Fatalf("rows = %+v, want only the agent message", rows)
	}
}

func TestTurnDiffItemBecomesFileChangeRows(t *testing.T) {
	diff := "diff --git a/x.go b/x.go\n--- a/x.go\n+++ b/x.go\n@@ -1,2 +1,3 @@\n+added\n context\n-removed\n"
	turn := types.Turn{
		ID:     "t1",
		Status: "completed",
		Items:  []types.Item{{ID: "i1", Kind: types.ItemKindTurnDiff, Diff: diff}},
	}
	rows := BuildTimeline([]types.Turn{turn}, nil, false)
	if len(rows) != 1 || rows[0].Kind != RowFileChanges {
		t.Fatalf("rows = %+v, want one file-changes row", rows)
	}
	changes := rows[0].FileChanges
	if len(changes) != 1 || changes[0].Path != "x.go" || changes[0].Added != 1 || changes[0].Removed != 1 {
		t.Fatalf("changes = %+v, want x.go +1 -1", changes)
	}
}
