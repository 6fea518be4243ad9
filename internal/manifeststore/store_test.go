package manifeststore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetAbsentSlot(t *testing.T) {
	s := New()
	_, ok := s.Get(SlotMaster)
	require.False(t, ok)
}

func TestPutGetRoundTrip(t *testing.T) {
	s := New()
	s.Put(SlotMedia, []byte("#EXTM3U\n"))
	data, ok := s.Get(SlotMedia)
	require.True(t, ok)
	require.Equal(t, "#EXTM3U\n", string(data))
}

func TestSubsSlotIsolatedByLanguage(t *testing.T) {
	s := New()
	s.Put(SubsSlot("en"), []byte("english"))
	s.Put(SubsSlot("ru"), []byte("russian"))

	en, ok := s.Get(SubsSlot("en"))
	require.True(t, ok)
	require.Equal(t, "english", string(en))

	ru, ok := s.Get(SubsSlot("ru"))
	require.True(t, ok)
	require.Equal(t, "russian", string(ru))
}

func TestDrop(t *testing.T) {
	s := New()
	s.Put(SlotMaster, []byte("x"))
	s.Drop(SlotMaster)
	_, ok := s.Get(SlotMaster)
	require.False(t, ok)
}

// TestConcurrentReadersNeverSeeTornWrite asserts that a reader racing a
// writer always observes one complete generation of bytes, never a mix.
func TestConcurrentReadersNeverSeeTornWrite(t *testing.T) {
	s := New()
	s.Put(SlotMedia, []byte("AAAA"))

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		gen := byte('A')
		for {
			select {
			case <-stop:
				return
			default:
			}
			s.Put(SlotMedia, []byte{gen, gen, gen, gen})
			gen++
			if gen > 'Z' {
				gen = 'A'
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		data, ok := s.Get(SlotMedia)
		require.True(t, ok)
		require.Len(t, data, 4)
		for _, b := range data {
			require.Equal(t, data[0], b, "torn write observed: %v", data)
		}
	}
	close(stop)
	wg.Wait()
}
