package generate

import (
	"fmt"
	"strings"
)

const commentaryPreamble = "You are an expert video commentator providing real-time, insightful, " +
	"and engaging commentary on visual content.\n"

// BuildPrompt assembles the query string for one example. Two mutually
// exclusive templates exist: the simple-context form used for base models
// and the instruct form used for instruction-tuned models.
//
// In simple-context mode a non-empty prior transcript displaces the title
// entirely; the prompt is whichever of the two is available, trimmed.
func BuildPrompt(title, preasr string, simpleCtx bool) string {
	if simpleCtx {
		if preasr != "" {
			title = ""
		}
		return strings.TrimSpace(title + "\n" + preasr)
	}

	var b strings.Builder
	b.WriteString(commentaryPreamble)
	if title != "" {
		fmt.Fprintf(&b, "This is a video titled \"%s\".\n", title)
	}
	if preasr != "" {
		fmt.Fprintf(&b, "Here is previous commentary of the video:\n\n%s\n\n", preasr)
		b.WriteString("Please continue to comment the video.")
	}
	return b.String()
}
