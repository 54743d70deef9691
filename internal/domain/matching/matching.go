// Package matching picks the single best catalog entry for an ambiguous
// title query. It performs no I/O and holds no state.
package matching

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/okian/booklookup/internal/domain/model"
)

// minTokenRunes is the shortest query token that counts towards overlap.
// Tokens of this length or shorter ("a", "of", "to") are ignored.
const minTokenRunes = 2

// Score is the outcome of comparing one candidate text against a query.
// An exact match outranks every partial score regardless of Points.
type Score struct {
	Exact  bool
	Points int
}

// Less reports whether s ranks strictly below o.
func (s Score) Less(o Score) bool {
	if s.Exact != o.Exact {
		return o.Exact
	}
	return s.Points < o.Points
}

func (s Score) String() string {
	if s.Exact {
		return "exact"
	}
	return fmt.Sprintf("partial(%d)", s.Points)
}

// Normalize case-folds and trims a query or candidate text.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ScoreText scores candidateText against an already normalized query.
//
// Precedence, highest first: exact equality after normalization, substring
// containment (worth the query length), then the summed length of every
// query token longer than two characters found inside the candidate.
// Overlap is deliberately not normalized by query or candidate length.
func ScoreText(candidateText, normalizedQuery string) Score {
	if candidateText == "" {
		return Score{}
	}
	text := Normalize(candidateText)
	if text == normalizedQuery {
		return Score{Exact: true}
	}
	if strings.Contains(text, normalizedQuery) {
		return Score{Points: utf8.RuneCountInString(normalizedQuery)}
	}

	points := 0
	for _, token := range strings.Fields(normalizedQuery) {
		n := utf8.RuneCountInString(token)
		if n > minTokenRunes && strings.Contains(text, token) {
			points += n
		}
	}
	return Score{Points: points}
}

// Result is the winning candidate of a Resolve call together with its score.
type Result struct {
	Entry model.CatalogEntry
	Score Score
	Index int // position of the winner in the candidate slice
}

// Best scores every candidate title against query and returns the winner.
// Ties go to the earliest candidate in input order. ok is false only when
// candidates is empty; a set where every score is zero still yields its
// first member.
func Best(query string, candidates []model.CatalogEntry) (res Result, ok bool) {
	if len(candidates) == 0 {
		return Result{}, false
	}
	q := Normalize(query)

	res = Result{Entry: candidates[0], Score: ScoreText(candidates[0].Title, q)}
	for i := 1; i < len(candidates); i++ {
		s := ScoreText(candidates[i].Title, q)
		// strict comparison keeps the first of equally scored candidates
		if res.Score.Less(s) {
			res = Result{Entry: candidates[i], Score: s, Index: i}
		}
	}
	return res, true
}

// Resolve returns the best matching candidate for query, or false when the
// candidate set is empty.
func Resolve(query string, candidates []model.CatalogEntry) (model.CatalogEntry, bool) {
	res, ok := Best(query, candidates)
	if !ok {
		return model.CatalogEntry{}, false
	}
	return res.Entry, true
}

// TitleLookup is the storage capability needed for the two-tier policy.
type TitleLookup interface {
	// FindFirstByTitle returns the entry whose title equals title exactly.
	FindFirstByTitle(ctx context.Context, title string) (model.CatalogEntry, bool, error)
	// FindAllByTitleContaining returns entries whose title contains title,
	// case-insensitively, in the store's natural order.
	FindAllByTitleContaining(ctx context.Context, title string) ([]model.CatalogEntry, error)
}

// ResolveExact applies the exact-then-fuzzy policy: the exact lookup is
// always attempted first, and only on a miss is the weak-match candidate set
// fetched and scored. Storage failures are returned as errors; an empty
// fallback set is reported as ok == false.
func ResolveExact(ctx context.Context, query string, lookup TitleLookup) (model.CatalogEntry, bool, error) {
	entry, found, err := lookup.FindFirstByTitle(ctx, query)
	if err != nil {
		return model.CatalogEntry{}, false, fmt.Errorf("exact title lookup: %w", err)
	}
	if found {
		return entry, true, nil
	}

	candidates, err := lookup.FindAllByTitleContaining(ctx, query)
	if err != nil {
		return model.CatalogEntry{}, false, fmt.Errorf("title candidates lookup: %w", err)
	}
	entry, found = Resolve(query, candidates)
	return entry, found, nil
}
