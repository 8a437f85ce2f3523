package domain

import (
	"time"
)

// UnknownName is reported when no identity clears the match threshold.
const UnknownName = "Unknown"

// Identity is one stored template: a name bound to a single embedding.
// A person registered several times owns several Identity records.
type Identity struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Embedding    []float64 `json:"-"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Box is a face rectangle in pixel coordinates of the source image.
type Box struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

type MatchResult struct {
	Box        Box     `json:"box"`
	Name       string  `json:"name"`
	Distance   float64 `json:"distance"`
	Confidence float64 `json:"confidence"`
}

// IsKnown reports whether the result resolved to a registered identity.
func (m MatchResult) IsKnown() bool {
	return m.Name != UnknownName
}

// IdentitySummary groups every template stored under one name.
type IdentitySummary struct {
	Name         string    `json:"name"`
	Templates    int       `json:"templates"`
	RegisteredAt time.Time `json:"registered_at"`
}
