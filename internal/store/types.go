package store

import (
	"time"

	"github.com/lib/pq"
)

// Classification is an audit row for one classified email. Only the masked body is kept.
type Classification struct {
	ID          int64          `db:"id" json:"id"`
	RequestID   string         `db:"request_id" json:"request_id"`
	TextHash    string         `db:"text_hash" json:"text_hash"`
	MaskedEmail string         `db:"masked_email" json:"masked_email"`
	Category    string         `db:"category" json:"category"`
	EntityCount int            `db:"entity_count" json:"entity_count"`
	Categories  pq.StringArray `db:"entity_categories" json:"entity_categories"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// MaskedEmail is a training corpus row produced by the ETL pipeline
type MaskedEmail struct {
	ID          int64     `db:"id" json:"id"`
	TextHash    string    `db:"text_hash" json:"text_hash"`
	MaskedEmail string    `db:"masked_email" json:"masked_email"`
	Label       string    `db:"label" json:"label"`
	EntityCount int       `db:"entity_count" json:"entity_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CategoryTotal is a row count for one category
type CategoryTotal struct {
	Category string `db:"category" json:"category"`
	Count    int64  `db:"count" json:"count"`
}

// Stats summarizes the store contents
type Stats struct {
	TotalClassifications int64           `json:"total_classifications"`
	TotalMaskedEmails    int64           `json:"total_masked_emails"`
	ByCategory           []CategoryTotal `json:"by_category"`
}

// BatchInsertResult represents the result of a batch insert operation
type BatchInsertResult struct {
	Inserted   int64         `json:"inserted"`
	Duplicates int64         `json:"duplicates"`
	Duration   time.Duration `json:"duration"`
}
