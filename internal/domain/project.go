package domain

import "time"

// Project stores one finished generation session: the uploaded image plus the
// streamed analysis and prompt text the user chose to keep.
type Project struct {
	ID           string
	UserID       string
	Title        string
	Style        Style
	ImageURL     string
	AnalysisText string
	PromptText   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
