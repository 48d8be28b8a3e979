package linking

import "github.com/google/uuid"

// parseUUID parses s as a UUID. A failure here means an
// invalid/hallucinated ID from an LLM response, not a programmer error.
func parseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}
