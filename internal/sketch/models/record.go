package models

// ============================================================
// Sketch Record
// ============================================================

// Sketch хранит сохраненный эскиз и его метаданные.
type Sketch struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Document  *Document `json:"document"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
}
