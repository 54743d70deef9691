package api

import (
	"fmt"
	"net/http"
	"strings"
)

// queryParam reads a required, non-blank query parameter from a GET request.
// On failure the response has already been written.
func queryParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return "", false
	}
	v := r.URL.Query().Get(name)
	if strings.TrimSpace(v) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: missing %s", ErrBadRequest, name))
		return "", false
	}
	return v, true
}
