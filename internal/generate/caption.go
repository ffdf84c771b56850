package generate

import (
	"strings"

	"ccbench/internal/inference"
)

// JoinFragments folds the engine's caption fragments into one commentary
// string: fragments with empty text are dropped, the repeated " ..."
// continuation marker is stripped from each remaining fragment, the pieces
// are joined with single spaces, and one trailing ellipsis is appended.
func JoinFragments(fragments []inference.Fragment) string {
	parts := make([]string, 0, len(fragments))
	for _, fragment := range fragments {
		if fragment.Text == "" {
			continue
		}
		parts = append(parts, strings.ReplaceAll(fragment.Text, " ...", ""))
	}
	return strings.TrimSpace(strings.Join(parts, " ")) + "..."
}
