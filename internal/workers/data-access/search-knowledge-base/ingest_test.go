package searchknowledgebase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMarkdown(t *testing.T) {
	doc := "# Care Stay\n\nEin Care Stay ist ein Betreuungseinsatz.\n\n## Dauer\nMeist 6 bis 12 Wochen.\n\n## Wechsel\n\nDie Betreuungskraft wechselt am Ende.\n"

	passages := SplitMarkdown("care-stay", "care-stay.md", doc)

	require.Len(t, passages, 3)
	assert.Equal(t, "care-stay#1", passages[0].ID)
	assert.Equal(t, "Care Stay", passages[0].Title)
	assert.Equal(t, "Ein Care Stay ist ein Betreuungseinsatz.", passages[0].Content)
	assert.Equal(t, "Dauer", passages[1].Title)
	assert.Equal(t, "Meist 6 bis 12 Wochen.", passages[1].Content)
	assert.Equal(t, "care-stay#3", passages[2].ID)
}

func TestSplitMarkdown_NoHeadings(t *testing.T) {
	passages := SplitMarkdown("faq", "FAQ", "Nur ein Absatz.\r\nZweite Zeile.")

	require.Len(t, passages, 1)
	assert.Equal(t, "FAQ", passages[0].Title)
	assert.Equal(t, "Nur ein Absatz.\nZweite Zeile.", passages[0].Content)
}

func TestSplitMarkdown_EmptySectionsSkipped(t *testing.T) {
	assert.Empty(t, SplitMarkdown("x", "X", "## Leer\n\n## Auch leer\n"))
}
