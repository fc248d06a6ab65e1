package answerquestion

import (
	"errors"
	"strings"
	"unicode"

	"care-assistant/internal/models"
)

var errClientGone = errors.New("client disconnected")

// turnStream enforces the event order of one turn: a single start, text in
// order, complete before end, a single end. Once the client is gone nothing
// more is emitted.
type turnStream struct {
	out        Emitter
	chunkWords int
	text       strings.Builder
	started    bool
	completed  bool
	ended      bool
	gone       bool
}

func newTurnStream(out Emitter, chunkWords int) *turnStream {
	if chunkWords <= 0 {
		chunkWords = 15
	}
	return &turnStream{out: out, chunkWords: chunkWords}
}

func (s *turnStream) emit(t models.EventType, data map[string]interface{}) error {
	if s.gone || s.out == nil {
		return nil
	}
	if err := s.out.Emit(models.StreamEvent{Type: t, Data: data}); err != nil {
		s.gone = true
		return err
	}
	return nil
}

func (s *turnStream) start(data map[string]interface{}) {
	if s.started {
		return
	}
	s.started = true
	_ = s.emit(models.EventStart, data)
}

// chunk forwards one model token chunk. It is the synthesizer's callback; an
// error stops the model stream.
func (s *turnStream) chunk(text string) error {
	if s.gone {
		return errClientGone
	}
	if text == "" {
		return nil
	}
	if err := s.emit(models.EventText, map[string]interface{}{"content": text}); err != nil {
		return err
	}
	s.text.WriteString(text)
	return nil
}

// write delivers finished text as word chunks.
func (s *turnStream) write(text string) {
	for _, c := range splitWords(text, s.chunkWords) {
		_ = s.chunk(c)
	}
}

func (s *turnStream) toolStart(data map[string]interface{}) {
	_ = s.emit(models.EventToolStart, data)
}

func (s *turnStream) toolResult(data map[string]interface{}) {
	_ = s.emit(models.EventToolResult, data)
}

func (s *turnStream) clarification(prompt string, attempt int, options []string) {
	_ = s.emit(models.EventClarification, map[string]interface{}{
		"prompt":  prompt,
		"attempt": attempt,
		"options": options,
	})
}

func (s *turnStream) fail(code, message string) {
	_ = s.emit(models.EventError, map[string]interface{}{"code": code, "message": message})
}

// finish emits complete and end. The complete payload is the text emitted so far.
func (s *turnStream) finish(data map[string]interface{}) {
	if !s.completed {
		s.completed = true
		if data == nil {
			data = map[string]interface{}{}
		}
		data["answer"] = s.text.String()
		_ = s.emit(models.EventComplete, data)
	}
	if !s.ended {
		s.ended = true
		_ = s.emit(models.EventEnd, nil)
	}
}

func (s *turnStream) answer() string { return s.text.String() }

// splitWords cuts text into pieces of n words each. Whitespace stays attached
// to the following piece, so the pieces concatenate back to text.
func splitWords(text string, n int) []string {
	if text == "" {
		return nil
	}
	var chunks []string
	start, words, inWord := 0, 0, false
	for i, r := range text {
		if unicode.IsSpace(r) {
			if inWord {
				inWord = false
				words++
				if words == n {
					chunks = append(chunks, text[start:i])
					start, words = i, 0
				}
			}
			continue
		}
		inWord = true
	}
	if start < len(text) {
		chunks = append(chunks, text[start:])
	}
	return chunks
}
