// Package models defines the records exchanged between the extraction engine,
// the record store, and the CLI.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TradeInput is the free-text description of a single trade within a group.
type TradeInput struct {
	TradeGroup string `json:"trade_group"`
	TradeID    int    `json:"trade_id"`
	EntryText  string `json:"entry_text"`
}

// Key returns the store identifier for the input.
func (t TradeInput) Key() string {
	return fmt.Sprintf("input:%s:%d", t.TradeGroup, t.TradeID)
}

// CompletionRecord is one LLM round trip. Records are immutable once created;
// a new (llm, query, trial) combination produces a new record rather than
// updating an old one.
type CompletionRecord struct {
	CompletionID string `json:"completion_id"` // digest of (query, llm, trial)
	LlmID        string `json:"llm_id"`
	TrialID      string `json:"trial_id,omitempty"`
	Timestamp    string `json:"timestamp"` // UUIDv7, time-ordered within the process
	Query        string `json:"query"`
	Completion   string `json:"completion"`
}

// Key returns the store identifier for the completion.
func (c CompletionRecord) Key() string {
	return "completion:" + c.CompletionID
}

// NewRequestID returns a globally unique, time-ordered identifier for one LLM
// request. UUIDv7 keeps ids monotonically increasing within the process.
func NewRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does; fall back to v4
		// rather than propagate an error through every caller.
		return uuid.NewString()
	}
	return id.String()
}

// RetrievalRecord is one attempt to extract a single field from one input
// text. It is persisted at each checkpoint of the attempt so partial failures
// stay observable.
type RetrievalRecord struct {
	RetrievalID      string   `json:"retrieval_id"`
	RetrieverID      string   `json:"retriever_id"`
	TrialID          string   `json:"trial_id,omitempty"`
	InputText        string   `json:"input_text"`
	FieldDescription string   `json:"field_description"`
	FieldSamples     []string `json:"field_samples,omitempty"`
	IsRequired       bool     `json:"is_required"`

	// Populated from the LLM response.
	Success       string `json:"success,omitempty"` // "Y", "N" or empty
	AnnotatedText string `json:"annotated_text,omitempty"`
	Justification string `json:"justification,omitempty"`
	OutputText    string `json:"output_text,omitempty"`
}

// Key returns the store identifier for the retrieval attempt.
func (r RetrievalRecord) Key() string {
	return "retrieval:" + r.RetrievalID
}

// TermSheet is a fetched term-sheet page before it is registered as a trade
// input.
type TermSheet struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	ContentType string    `json:"content_type"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// TermSheetID creates a deterministic ID from the page URL.
// The ID is a SHA-256 hash (first 16 chars) of the URL.
func TermSheetID(url string) string {
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:])[:16]
}
