package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_InvalidLimit(t *testing.T) {
	_, err := Split("some text", 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = Split("some text", -5)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestSplit_EmptyInput(t *testing.T) {
	_, err := Split("", 100)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = Split("   \n\n  ", 100)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestSplit_SingleSmallParagraph(t *testing.T) {
	chunks, err := Split("A short paragraph.", 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"A short paragraph."}, chunks)
}

func TestSplit_PacksParagraphsGreedily(t *testing.T) {
	text := "First para.\n\nSecond para.\n\nThird para."

	chunks, err := Split(text, 30)
	require.NoError(t, err)
	// "First para." + "\n\n" + "Second para." is 25 chars, third doesn't fit.
	assert.Equal(t, []string{"First para.\n\nSecond para.", "Third para."}, chunks)
}

func TestSplit_RespectsLimit(t *testing.T) {
	text := strings.Repeat("One sentence here. ", 50)

	chunks, err := Split(text, 80)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 80, "chunk %d over limit", i)
	}
}

func TestSplit_OversizedParagraphSplitsAtSentences(t *testing.T) {
	para := "Alpha is first. Beta follows after. Gamma closes the set."

	chunks, err := Split(para, 40)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Alpha is first. Beta follows after.",
		"Gamma closes the set.",
	}, chunks)
}

func TestSplit_DecimalNotASentenceBoundary(t *testing.T) {
	para := "The value of pi is 3.14 approximately. The rest follows here now."

	chunks, err := Split(para, 45)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"The value of pi is 3.14 approximately.",
		"The rest follows here now.",
	}, chunks)
}

func TestSplit_CJKSentences(t *testing.T) {
	para := "第一句话在这里。第二句话在这里。第三句话在这里。"

	chunks, err := Split(para, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"第一句话在这里。",
		"第二句话在这里。",
		"第三句话在这里。",
	}, chunks)
}

func TestSplit_HardSplitsOversizedSentence(t *testing.T) {
	// One sentence with no terminal punctuation until the very end, longer
	// than the limit, forcing whitespace cuts.
	sent := strings.Repeat("word ", 30) + "end."

	chunks, err := Split(sent, 50)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 50, "chunk %d over limit", i)
	}
	// No content lost.
	joined := strings.Join(chunks, " ")
	assert.Equal(t, strings.Fields(sent), strings.Fields(joined))
}

func TestSplit_Deterministic(t *testing.T) {
	text := "Para one with words.\n\nPara two has more words in it.\n\nPara three."

	first, err := Split(text, 30)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Split(text, 30)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSplit_LosslessModuloWhitespace(t *testing.T) {
	text := "The rain fell for days. Nobody left the house.\n\n" +
		"On the fourth morning the sky cleared at last. The children ran outside.\n\n" +
		"Everything smelled of wet earth."

	chunks, err := Split(text, 60)
	require.NoError(t, err)

	joined := Join(chunks)
	assert.Equal(t, strings.Fields(text), strings.Fields(joined))
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "a\n\nb\n\nc", Join([]string{"a", "b", "c"}))
	assert.Equal(t, "only", Join([]string{"only"}))
	assert.Equal(t, "", Join(nil))
}
