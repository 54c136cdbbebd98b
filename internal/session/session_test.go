package session

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu      sync.Mutex
	saved   []Session
	initial Session
	loadErr error
	saveErr error
}

func (m *memoryStore) Load() (Session, error) { return m.initial, m.loadErr }

func (m *memoryStore) Save(s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, s)
	return m.saveErr
}

func TestUpdatePartial(t *testing.T) {
	store := NewStore(nil, nil)

	store.Update(Session{ID: "id-1", Name: "brave-fox"})
	assert.Equal(t, Session{ID: "id-1", Name: "brave-fox"}, store.Get())

	// only session-id present: name untouched
	store.Update(Session{ID: "id-2"})
	assert.Equal(t, "id-2", store.ID())
	assert.Equal(t, "brave-fox", store.Name())

	// only session-name present: id untouched
	store.Update(Session{Name: "calm-owl"})
	assert.Equal(t, "id-2", store.ID())
	assert.Equal(t, "calm-owl", store.Name())

	store.Update(Session{})
	assert.Equal(t, Session{ID: "id-2", Name: "calm-owl"}, store.Get())
}

func TestApplyClearsPresentEmptyFields(t *testing.T) {
	store := NewStore(nil, nil)
	store.Update(Session{ID: "id-1", Name: "brave-fox"})

	empty := ""
	assert.Equal(t, Session{ID: "id-1"}, store.Apply(Patch{Name: &empty}))

	id := "id-2"
	assert.Equal(t, Session{ID: "id-2"}, store.Apply(Patch{ID: &id}))
	assert.Equal(t, Session{ID: "id-2"}, store.Apply(Patch{}))
}

func TestSideStoreMirror(t *testing.T) {
	side := &memoryStore{initial: Session{ID: "persisted"}}
	store := NewStore(side, nil)

	assert.Equal(t, "persisted", store.ID())

	store.Update(Session{Name: "n"})
	require.Len(t, side.saved, 1)
	assert.Equal(t, Session{ID: "persisted", Name: "n"}, side.saved[0])
}

func TestSideStoreErrorsAreNotFatal(t *testing.T) {
	side := &memoryStore{loadErr: errors.New("corrupt"), saveErr: errors.New("disk full")}
	store := NewStore(side, nil)

	assert.Equal(t, Session{}, store.Get())
	assert.Equal(t, Session{ID: "x"}, store.Update(Session{ID: "x"}))
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	fs := NewFileStore(path)

	empty, err := fs.Load()
	require.NoError(t, err)
	assert.Equal(t, Session{}, empty)

	require.NoError(t, fs.Save(Session{ID: "abc", Name: "quiet-lynx"}))

	store := NewStore(NewFileStore(path), nil)
	assert.Equal(t, Session{ID: "abc", Name: "quiet-lynx"}, store.Get())
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o600))

	_, err := NewFileStore(path).Load()
	assert.Error(t, err)
}

func TestConcurrentAccess(t *testing.T) {
	store := NewStore(nil, nil)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			store.Update(Session{ID: "same"})
		}()
		go func() {
			defer wg.Done()
			_ = store.Get()
		}()
	}
	wg.Wait()
	assert.Equal(t, "same", store.ID())
}
