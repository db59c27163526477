package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeBook lays out one book the way the upload layer does.
func writeBook(t *testing.T, root, bookID, listing string, chapters map[string]string) {
	t.Helper()
	dir := filepath.Join(root, bookID, "chapters")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, bookID, "chapters.json"), []byte(listing), 0o644))
	for id, text := range chapters {
		require.NoError(t, os.WriteFile(filepath.Join(dir, id+".txt"), []byte(text), 0o644))
	}
}

func TestFSSource_GetText(t *testing.T) {
	root := t.TempDir()
	writeBook(t, root, "book-1", `[]`, map[string]string{
		"ch-1": "Once upon a time.",
	})

	s := NewFSSource(root)
	text, err := s.GetText(context.Background(), "book-1", "ch-1")
	require.NoError(t, err)
	assert.Equal(t, "Once upon a time.", text)
}

func TestFSSource_GetText_SanitizesChapterID(t *testing.T) {
	root := t.TempDir()
	// EPUB internal paths contain slashes; the writer flattens them.
	writeBook(t, root, "book-1", `[]`, map[string]string{
		"OEBPS_ch01.xhtml": "Flattened chapter.",
	})

	s := NewFSSource(root)
	text, err := s.GetText(context.Background(), "book-1", "OEBPS/ch01.xhtml")
	require.NoError(t, err)
	assert.Equal(t, "Flattened chapter.", text)
}

func TestFSSource_GetText_NotFound(t *testing.T) {
	s := NewFSSource(t.TempDir())

	_, err := s.GetText(context.Background(), "book-1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFSSource_ListChapters_SortedByOrder(t *testing.T) {
	root := t.TempDir()
	writeBook(t, root, "book-1", `[
		{"id": "ch-3", "title": "Third", "order": 3},
		{"id": "ch-1", "title": "First", "order": 1},
		{"id": "ch-2", "title": "Second", "order": 2}
	]`, nil)

	s := NewFSSource(root)
	chapters, err := s.ListChapters(context.Background(), "book-1")
	require.NoError(t, err)

	require.Len(t, chapters, 3)
	assert.Equal(t, "ch-1", chapters[0].ID)
	assert.Equal(t, "ch-2", chapters[1].ID)
	assert.Equal(t, "ch-3", chapters[2].ID)
	assert.Equal(t, "Second", chapters[1].Title)
}

func TestFSSource_ListChapters_BookNotFound(t *testing.T) {
	s := NewFSSource(t.TempDir())

	_, err := s.ListChapters(context.Background(), "missing-book")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFSSource_ListChapters_MalformedListing(t *testing.T) {
	root := t.TempDir()
	writeBook(t, root, "book-1", `{not json`, nil)

	s := NewFSSource(root)
	_, err := s.ListChapters(context.Background(), "book-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
