package searchknowledgebase

import "strings"

type Input struct {
	Query string `json:"query"`
	TopK  int    `json:"topK,omitempty"`
}

// Passage is one retrieved knowledge-base text.
type Passage struct {
	ID      string  `json:"id"`
	Title   string  `json:"title,omitempty"`
	Content string  `json:"content"`
	Score   float32 `json:"score"`
}

type Output struct {
	Passages []Passage `json:"passages"`
	Backend  string    `json:"backend"`
}

// Text joins the passages into the appendix handed to the synthesizer.
func (o *Output) Text() string {
	var b strings.Builder
	for i, p := range o.Passages {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		if p.Title != "" {
			b.WriteString("## " + p.Title + "\n")
		}
		b.WriteString(p.Content)
	}
	return b.String()
}
