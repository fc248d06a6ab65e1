package searchknowledgebase

import (
	"fmt"
	"strings"
)

// SplitMarkdown cuts a knowledge document into one passage per second-level heading.
// Text before the first heading becomes a passage titled after the document.
func SplitMarkdown(docID, title, text string) []Passage {
	var (
		out     []Passage
		heading = title
		body    strings.Builder
	)
	flush := func() {
		content := strings.TrimSpace(body.String())
		body.Reset()
		if content == "" {
			return
		}
		out = append(out, Passage{
			ID:      fmt.Sprintf("%s#%d", docID, len(out)+1),
			Title:   heading,
			Content: content,
		})
	}

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if h, ok := strings.CutPrefix(line, "## "); ok {
			flush()
			heading = strings.TrimSpace(h)
			continue
		}
		if h, ok := strings.CutPrefix(line, "# "); ok && len(out) == 0 && body.Len() == 0 {
			heading = strings.TrimSpace(h)
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	flush()
	return out
}
