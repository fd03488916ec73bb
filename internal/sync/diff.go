package sync

import (
	"strings"

	"tether/internal/types"
)

// ParseUnifiedDiff splits unified-diff text into per-file change records.
// Chunks are delimited by "diff --git" headers, or bare "+++ b/" headers for
// diffs produced without the git preamble. Chunks without a b-side path are
// discarded.
func ParseUnifiedDiff(text string) []types.FileChange {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var chunks []string
	if strings.Contains(text, "diff --git") {
		for _, chunk := range strings.Split(text, "diff --git") {
			if strings.TrimSpace(chunk) != "" {
				chunks = append(chunks, chunk)
			}
		}
	} else {
		lines := strings.Split(text, "\n")
		var current []string
		for _, line := range lines {
			if strings.HasPrefix(line, "+++ b/") && len(current) > 0 {
				chunks = append(chunks, strings.Join(current, "\n"))
				current = current[:0]
			}
			current = append(current, line)
		}
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n"))
		}
	}

	out := make([]types.FileChange, 0, len(chunks))
	for _, chunk := range chunks {
		path := diffChunkPath(chunk)
		if path == "" {
			continue
		}
		added, removed := countDiffLines(chunk)
		out = append(out, types.FileChange{Path: path, Added: added, Removed: removed})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func diffChunkPath(chunk string) string {
	for _, line := range strings.Split(chunk, "\n") {
		if strings.HasPrefix(line, "+++ b/") {
			return strings.TrimSpace(strings.TrimPrefix(line, "+++ b/"))
		}
		if strings.HasPrefix(line, "+++ ") {
			path := strings.TrimSpace(strings.TrimPrefix(line, "+++ "))
			if path == "/dev/null" {
				return ""
			}
			return strings.TrimPrefix(path, "b/")
		}
	}
	// Fall back to the "a/x b/x" header when no +++ line is present.
	header := strings.TrimSpace(strings.SplitN(chunk, "\n", 2)[0])
	if idx := strings.LastIndex(header, " b/"); idx >= 0 {
		return strings.TrimSpace(header[idx+len(" b/"):])
	}
	return ""
}

func countDiffLines(chunk string) (added, removed int) {
	for _, line := range strings.Split(chunk, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"), strings.HasPrefix(line, "@@"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}
