package core

import (
	"strings"

	"github.com/google/uuid"
)

// Identifier tags long-lived objects (submit contexts, anonymous frame
// callbacks) so they can be traced in logs.
type Identifier struct {
	uuid.UUID
}

func NewIdentifier() Identifier {
	return Identifier{UUID: uuid.New()}
}

// Short is the first group of the UUID, enough to tell objects apart in a log line.
func (id Identifier) Short() string {
	s := id.String()
	if i := strings.IndexByte(s, '-'); i > 0 {
		return s[:i]
	}
	return s
}
