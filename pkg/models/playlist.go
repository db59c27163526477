package models

// ChapterAudio describes one chapter's merged audio artifact.
type ChapterAudio struct {
	BookID       string  `json:"book_id"`
	ChapterID    string  `json:"chapter_id"`
	AudioRef     string  `json:"audio_ref"`
	DurationSecs float64 `json:"duration_secs"`
}

// PlaylistItem is one entry of a book playlist, ordered by chapter position.
type PlaylistItem struct {
	ChapterID    string  `json:"chapter_id"`
	ChapterTitle string  `json:"chapter_title"`
	AudioRef     string  `json:"audio_ref"`
	DurationSecs float64 `json:"duration_secs"`
	Order        int     `json:"order"`
}

// BookPlaylist aggregates the completed chapter audio of one book. Chapters
// without synthesized audio are omitted, not errors.
type BookPlaylist struct {
	BookID            string         `json:"book_id"`
	TotalDurationSecs float64        `json:"total_duration_secs"`
	Items             []PlaylistItem `json:"items"`
}
