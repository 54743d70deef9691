// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"time"
)

// SearchType tags what kind of partial-string search produced a SearchEvent.
type SearchType string

// Known search types.
const (
	SearchTypeTitle  SearchType = "title"
	SearchTypeAuthor SearchType = "author"
)

// Valid reports whether t is one of the known search types.
func (t SearchType) Valid() bool {
	return t == SearchTypeTitle || t == SearchTypeAuthor
}

// SearchEvent records one search-by-partial-string lookup.
type SearchEvent struct {
	SearchQuery  string     `json:"searchQuery"`
	SearchType   SearchType `json:"searchType"`
	ResultsCount int        `json:"resultsCount"`
	Timestamp    int64      `json:"timestamp"` // ms since epoch, producer clock
}

// NewSearchEvent stamps a search outcome with the current producer time.
func NewSearchEvent(query string, searchType SearchType, resultsCount int) SearchEvent {
	if resultsCount < 0 {
		resultsCount = 0
	}
	return SearchEvent{
		SearchQuery:  query,
		SearchType:   searchType,
		ResultsCount: resultsCount,
		Timestamp:    time.Now().UnixMilli(),
	}
}

func (e SearchEvent) String() string {
	return fmt.Sprintf("SearchEvent[query=%q, type=%q, results=%d, time=%d]",
		e.SearchQuery, e.SearchType, e.ResultsCount, e.Timestamp)
}

// ViewEvent records one resolved single-record lookup.
type ViewEvent struct {
	BookID        string  `json:"bookId"`
	Title         string  `json:"title"`
	Authors       string  `json:"authors"`
	AverageRating float64 `json:"averageRating"`
	Timestamp     int64   `json:"timestamp"` // ms since epoch, producer clock
}

// NewViewEvent stamps a resolved entry with the current producer time.
func NewViewEvent(e CatalogEntry) ViewEvent { //nolint:gocritic // hugeParam: entries are passed by value across layers
	return ViewEvent{
		BookID:        e.ID,
		Title:         e.Title,
		Authors:       e.Authors,
		AverageRating: e.AverageRating,
		Timestamp:     time.Now().UnixMilli(),
	}
}

func (e ViewEvent) String() string {
	return fmt.Sprintf("ViewEvent[id=%q, title=%q, authors=%q, rating=%.2f, time=%d]",
		e.BookID, e.Title, e.Authors, e.AverageRating, e.Timestamp)
}
