package layout

import "github.com/MeKo-Tech/feedocr/internal/box"

// ParsedPost is the header and body of the post above the comments.
type ParsedPost struct {
	Author string `json:"author"`
	Date   string `json:"date"`
	Text   string `json:"text"`
}

// ParsedComment is one top-level comment.
type ParsedComment struct {
	Username string `json:"username"`
	Date     string `json:"date"`
	Text     string `json:"text"`
}

// Document is the structured result for one screenshot sequence.
type Document struct {
	Post     ParsedPost      `json:"post"`
	Comments []ParsedComment `json:"comments"`
}

// Region is a vertical slice of the merged capture that holds one comment.
type Region struct {
	StartY float64
	EndY   float64
	// Marker is the reply button closing the region.
	Marker box.Box
	Boxes  box.Collection
	// Comment is nil when the region holds no boxes.
	Comment *ParsedComment
}

// Height returns the vertical extent of the region.
func (r Region) Height() float64 { return r.EndY - r.StartY }
