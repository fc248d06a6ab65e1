package answerquestion

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"care-assistant/internal/models"
)

func TestSplitWords(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want []string
	}{
		{name: "empty", text: "", n: 3, want: nil},
		{name: "shorter than a chunk", text: "Hallo Welt", n: 3, want: []string{"Hallo Welt"}},
		{name: "exact chunks", text: "eins zwei drei vier", n: 2, want: []string{"eins zwei", " drei vier"}},
		{name: "newlines kept", text: "# Titel\n\n- eins\n- zwei", n: 2, want: []string{"# Titel", "\n\n- eins", "\n- zwei"}},
		{name: "trailing space", text: "a b c ", n: 2, want: []string{"a b", " c "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitWords(tt.text, tt.n)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.text, strings.Join(got, ""))
		})
	}
}

func TestTurnStream_FinishOnce(t *testing.T) {
	c := &collector{}
	s := newTurnStream(c, 2)

	s.start(nil)
	s.start(nil)
	s.write("Sie haben drei Kunden.")
	s.finish(map[string]interface{}{"approach": "analytical"})
	s.finish(nil)

	assert.Equal(t, []models.EventType{
		models.EventStart, models.EventText, models.EventText, models.EventComplete, models.EventEnd,
	}, c.types())
	assert.Equal(t, "Sie haben drei Kunden.", c.first(models.EventComplete).Data["answer"])
}

func TestTurnStream_GoneStopsEmitting(t *testing.T) {
	c := &collector{failAt: 3}
	s := newTurnStream(c, 1)

	s.start(nil)
	assert.NoError(t, s.chunk("Erste"))
	assert.Error(t, s.chunk(" Zweite"))
	assert.ErrorIs(t, s.chunk(" Dritte"), errClientGone)
	s.finish(nil)

	assert.True(t, s.gone)
	assert.Equal(t, []models.EventType{models.EventStart, models.EventText}, c.types())
	assert.Equal(t, "Erste", s.answer(), "text that never reached the client is not part of the answer")
}

func TestTurnStream_NilEmitterCollectsText(t *testing.T) {
	s := newTurnStream(nil, 0)

	s.start(nil)
	s.write("Guten Tag")
	s.fail("X", "kaputt")
	s.finish(nil)

	assert.False(t, s.gone)
	assert.Equal(t, "Guten Tag", s.answer())
	assert.Equal(t, 15, s.chunkWords)
}

func TestEmitterFunc(t *testing.T) {
	var got models.EventType
	e := EmitterFunc(func(ev models.StreamEvent) error {
		got = ev.Type
		return errors.New("closed")
	})

	assert.Error(t, e.Emit(models.StreamEvent{Type: models.EventEnd}))
	assert.Equal(t, models.EventEnd, got)
}
