package id

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	assert.NotEqual(t, id1.String(), id2.String())
	assert.Len(t, gen.GenerateString(), 26)
}

func TestGenerateSortable(t *testing.T) {
	gen := NewGenerator()

	prev := gen.GenerateString()
	for i := 0; i < 100; i++ {
		next := gen.GenerateString()
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestNewReloadID(t *testing.T) {
	rid := NewReloadID().String()

	require.True(t, strings.HasPrefix(rid, ReloadPrefix+"_"))
	assert.True(t, IsValid(strings.TrimPrefix(rid, ReloadPrefix+"_")))
}

func TestNewSessionID(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()

	assert.NotEqual(t, a, b)
	assert.Len(t, a.String(), 36)
}

func TestCacheBusterConcurrent(t *testing.T) {
	const n = 200
	seen := sync.Map{}
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, dup := seen.LoadOrStore(CacheBuster(), true)
			assert.False(t, dup)
		}()
	}
	wg.Wait()
}
