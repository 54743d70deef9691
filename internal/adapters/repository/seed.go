package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// csvColumns maps accepted header names to the entry field they fill.
// Both snake_case dataset headers and the JSON field names are accepted.
var csvColumns = map[string]string{
	"id":               "id",
	"bookid":           "id",
	"title":            "title",
	"authors":          "authors",
	"ratings_count":    "ratings_count",
	"ratingscount":     "ratings_count",
	"average_rating":   "average_rating",
	"averagerating":    "average_rating",
	"publisher":        "publisher",
	"publication_date": "published_date",
	"publisheddate":    "published_date",
}

// LoadCSVFile seeds w from a CSV file with a header row.
func LoadCSVFile(ctx context.Context, path string, w Writer) (int, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSeed, err)
	}
	defer f.Close()
	return LoadCSV(ctx, f, w)
}

// LoadCSV reads entries from CSV and writes them in file order. Unknown
// columns are ignored; rows with unparsable numbers are rejected.
func LoadCSV(ctx context.Context, r io.Reader, w Writer) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("%w: read header: %w", ErrSeed, err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		if field, ok := csvColumns[strings.ToLower(strings.TrimSpace(h))]; ok {
			index[field] = i
		}
	}
	if _, ok := index["title"]; !ok {
		return 0, fmt.Errorf("%w: missing title column", ErrSeed)
	}

	loaded := 0
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return loaded, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return loaded, nil
		}
		if err != nil {
			return loaded, fmt.Errorf("%w: line %d: %w", ErrSeed, line, err)
		}

		e, err := entryFromRecord(rec, index)
		if err != nil {
			return loaded, fmt.Errorf("%w: line %d: %w", ErrSeed, line, err)
		}
		if _, err := w.Put(ctx, e); err != nil {
			return loaded, fmt.Errorf("%w: line %d: %w", ErrSeed, line, err)
		}
		loaded++
	}
}

func entryFromRecord(rec []string, index map[string]int) (Entry, error) {
	get := func(field string) string {
		i, ok := index[field]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	e := Entry{
		ID:            get("id"),
		Title:         get("title"),
		Authors:       get("authors"),
		Publisher:     get("publisher"),
		PublishedDate: get("published_date"),
	}
	if v := get("ratings_count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Entry{}, fmt.Errorf("ratings_count: %w", err)
		}
		e.RatingsCount = n
	}
	if v := get("average_rating"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Entry{}, fmt.Errorf("average_rating: %w", err)
		}
		e.AverageRating = f
	}
	return e, nil
}
