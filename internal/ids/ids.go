package ids

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator hands out lexicographically sortable identifiers.
// Identifiers from one generator are strictly increasing, even within
// the same millisecond.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

func NewGenerator() *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

var defaultGenerator = NewGenerator()

// New produces an identifier from the shared process-wide generator.
// Used for acknowledgment command ids and for notifications that arrive
// without one.
func New() string {
	return defaultGenerator.New()
}
