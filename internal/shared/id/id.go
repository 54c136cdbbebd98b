// Package id provides identifier generation for the bridge.
//
//   - Session IDs are random UUIDs, matching what dev servers expect in the
//     fwsid query parameter.
//   - Cache-busting tokens and reload request IDs are ULIDs: unique and
//     lexicographically sortable, so reload URLs in logs order by time.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// SessionID identifies a client session.
type SessionID string

// ReloadID identifies a queued reload request.
type ReloadID string

// ReloadPrefix tags reload request IDs in logs.
const ReloadPrefix = "rld"

// Generator generates ULIDs
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewSessionID generates a random session ID.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// NewReloadID generates a reload request ID.
func NewReloadID() ReloadID {
	return ReloadID(Default().GenerateWithPrefix(ReloadPrefix))
}

// CacheBuster returns a token unique for this process, used to defeat caches
// when re-fetching a resource.
func CacheBuster() string {
	return Default().GenerateString()
}

func (id SessionID) String() string { return string(id) }
func (id ReloadID) String() string  { return string(id) }

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}
