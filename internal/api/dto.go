package api

import (
	"github.com/starford/dia/internal/journal"
	"github.com/starford/dia/internal/models"
	"github.com/starford/dia/internal/store"
)

// CreateEntryRequest is the request body for logging an entry.
type CreateEntryRequest struct {
	Content string `json:"content" example:"Met @Alice about %Launch #urgent" validate:"required"`
	Date    string `json:"date,omitempty" example:"2025-03-14"`
}

// EntryDetail is the full entry response type (aliased from the domain layer).
type EntryDetail = journal.EntryDetail

// EntryListResponse wraps filtered entry listings.
type EntryListResponse struct {
	Entries []EntryDetail `json:"entries" validate:"required"`
	Total   int           `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []journal.SearchHit `json:"results" validate:"required"`
}

// EntityListResponse lists the names of one namespace.
type EntityListResponse struct {
	Namespace models.Namespace `json:"namespace" example:"person" validate:"required"`
	Names     []string         `json:"names" validate:"required"`
}

// CompleteResponse carries completion candidates and the byte offset of the
// word they replace.
type CompleteResponse struct {
	Start      int                 `json:"start" example:"11"`
	Candidates []journal.Candidate `json:"candidates" validate:"required"`
}

// Stats is the row-count summary (aliased from the store).
type Stats = store.Counts
