package gemini

import (
	"errors"

	"google.golang.org/api/googleapi"
)

// ErrEmbeddingUnavailable is returned when the embedding backend cannot
// produce a vector. Callers must not substitute a zero vector.
var ErrEmbeddingUnavailable = errors.New("gemini: embedding unavailable")

// IsRateLimited reports whether err is an upstream 429.
func IsRateLimited(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429
	}
	return false
}
