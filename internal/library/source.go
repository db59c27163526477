// Package library is the read-only boundary to the book storage maintained
// by the upload/EPUB layer: chapter text and chapter ordering.
package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var ErrNotFound = errors.New("book or chapter not found")

// Chapter identifies one chapter of a book in reading order.
type Chapter struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Order int    `json:"order"`
}

// Source supplies chapter text and listings.
type Source interface {
	GetText(ctx context.Context, bookID, chapterID string) (string, error)
	ListChapters(ctx context.Context, bookID string) ([]Chapter, error)
}

// FSSource reads the on-disk layout the upload layer writes:
// <root>/<bookID>/chapters.json for the listing and
// <root>/<bookID>/chapters/<chapterID>.txt for extracted text. Chapter ids
// may contain slashes (EPUB internal paths); they are flattened to
// underscores in filenames, matching the writer.
type FSSource struct {
	root string
}

func NewFSSource(root string) *FSSource {
	return &FSSource{root: root}
}

func (s *FSSource) GetText(_ context.Context, bookID, chapterID string) (string, error) {
	path := filepath.Join(s.root, sanitize(bookID), "chapters", sanitize(chapterID)+".txt")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read chapter text: %w", err)
	}
	return string(data), nil
}

func (s *FSSource) ListChapters(_ context.Context, bookID string) ([]Chapter, error) {
	path := filepath.Join(s.root, sanitize(bookID), "chapters.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read chapter listing: %w", err)
	}

	var chapters []Chapter
	if err := json.Unmarshal(data, &chapters); err != nil {
		return nil, fmt.Errorf("parse chapter listing: %w", err)
	}
	sort.Slice(chapters, func(i, j int) bool { return chapters[i].Order < chapters[j].Order })
	return chapters, nil
}

// sanitize flattens path separators the same way the upload layer does when
// it writes chapter files.
func sanitize(id string) string {
	r := strings.NewReplacer("/", "_", `\`, "_", ":", "_")
	return r.Replace(id)
}

var _ Source = (*FSSource)(nil)
