package types

// Status tracks the record lifecycle of a row (not the business status of an invoice or service).
// Archived rows are excluded from every read path.
type Status string

const (
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)
