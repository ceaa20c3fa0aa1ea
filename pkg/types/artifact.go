package types

import "time"

// Upload is an original spec document kept for later refinements.
type Upload struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Title     string    `json:"title"`
	TitleKey  string    `json:"title_key"`
	Format    string    `json:"format"`
	Content   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Artifact is generated test source keyed by its derived filename.
type Artifact struct {
	Filename  string    `json:"filename"`
	Title     string    `json:"title"`
	UploadID  string    `json:"upload_id,omitempty"`
	Prompt    string    `json:"-"`
	Content   string    `json:"content"`
	Revision  int       `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Refinement records one round of user feedback applied to an artifact.
type Refinement struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Feedback  string    `json:"feedback"`
	CreatedAt time.Time `json:"created_at"`
}
