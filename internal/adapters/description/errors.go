package description

import "errors"

var (
	// ErrMissingAPIKey is returned when no Gemini API key is configured.
	ErrMissingAPIKey = errors.New("missing GOOGLE_GENAI_API_KEY")
	// ErrUpstream wraps non-200 responses from the model API.
	ErrUpstream = errors.New("gemini request failed")
)
