package domain

// Card is a catalog entry describing one tarot card.
type Card struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Arcana   string   `json:"arcana"`
	ImageRef string   `json:"image_ref"`
	Meaning  string   `json:"meaning"`
	Keywords []string `json:"keywords"`
}

// DrawnCard is one card selected for a reading, in spread order.
// Reversed cards carry the inverted interpretation.
type DrawnCard struct {
	CardID   int64    `json:"card_id"`
	Name     string   `json:"name"`
	Position int      `json:"position"`
	Reversed bool     `json:"reversed"`
	Meaning  string   `json:"meaning"`
	Keywords []string `json:"keywords"`
}

// Spread size bounds for a single reading.
const (
	MinSpreadSize = 3
	MaxSpreadSize = 5
)
