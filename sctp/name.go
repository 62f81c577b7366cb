package sctp

import "github.com/google/uuid"

// generateName produces a stable per-association identifier for logging
// when the caller did not supply one via Config.Name. The reference
// implementation uses a formatted pointer address for this; any unique id
// works (spec.md §9), so this module uses a UUID instead of exposing an
// internal address.
func generateName() string {
	return uuid.NewString()
}
