package model

// CatalogEntry is one book record as held by the catalog store.
// The store assigns ID and owns mutation; everything else treats it as read-only.
type CatalogEntry struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Authors       string  `json:"authors"`
	RatingsCount  int     `json:"ratingsCount"`
	AverageRating float64 `json:"averageRating"` // 0.0 means unrated
	Publisher     string  `json:"publisher,omitempty"`
	PublishedDate string  `json:"publishedDate,omitempty"`
}

// Rated reports whether the entry carries an average rating.
func (e *CatalogEntry) Rated() bool {
	return e.AverageRating > 0
}
