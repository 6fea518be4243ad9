// Package manifeststore holds the currently-published master playlist,
// media playlist, and subtitle playlists as atomically swappable byte
// blobs.
//
// Reads never observe a torn write: each slot is an atomic.Pointer swap, the
// same pattern the upstream config reloader uses to publish a validated
// configuration snapshot without a lock in the read path.
package manifeststore

import (
	"sync"
	"sync/atomic"
)

// Slot identifies one published blob.
type Slot string

const (
	SlotMaster Slot = "master"
	SlotMedia  Slot = "media"
)

// SubsSlot builds the slot key for a subtitle playlist under the given
// track tag (the pipeline uses "single", "orig" and "trans").
func SubsSlot(lang string) Slot {
	return Slot("subs/" + lang)
}

type blob struct {
	data []byte
}

// Store holds byte-blob slots behind atomic pointers, one per slot.
type Store struct {
	slots sync.Map // Slot -> *atomic.Pointer[blob]
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

func (s *Store) pointerFor(slot Slot) *atomic.Pointer[blob] {
	if v, ok := s.slots.Load(slot); ok {
		return v.(*atomic.Pointer[blob])
	}
	p := &atomic.Pointer[blob]{}
	actual, _ := s.slots.LoadOrStore(slot, p)
	return actual.(*atomic.Pointer[blob])
}

// Put atomically replaces the contents of slot with data. The byte slice
// must not be mutated by the caller after this call; pass a fresh copy if
// the caller retains its own reference.
func (s *Store) Put(slot Slot, data []byte) {
	s.pointerFor(slot).Store(&blob{data: data})
}

// Get returns the current contents of slot and true, or (nil, false) if the
// slot has never been populated.
func (s *Store) Get(slot Slot) ([]byte, bool) {
	p := s.pointerFor(slot)
	b := p.Load()
	if b == nil {
		return nil, false
	}
	return b.data, true
}

// Drop clears a slot so subsequent Get calls report absent. The pipeline
// never tears down a slot at runtime; tests use Drop for isolation.
func (s *Store) Drop(slot Slot) {
	s.pointerFor(slot).Store(nil)
}
