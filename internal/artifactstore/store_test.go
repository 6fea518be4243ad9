package artifactstore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(contents), 0o644))
	return p
}

func TestPutHasGetTS(t *testing.T) {
	dir := t.TempDir()
	p := writeTempFile(t, dir, "seg1.ts", "data")

	s := New()
	require.False(t, s.HasTS("/seg1.ts"))
	s.PutTS("/seg1.ts", p)
	require.True(t, s.HasTS("/seg1.ts"))

	got, release, ok := s.GetTS("/seg1.ts")
	require.True(t, ok)
	require.Equal(t, p, got)
	release()
}

func TestDropTSUnlinksWhenNoReaders(t *testing.T) {
	dir := t.TempDir()
	p := writeTempFile(t, dir, "seg1.ts", "data")

	s := New()
	s.PutTS("/seg1.ts", p)
	s.DropTS("/seg1.ts")

	require.False(t, s.HasTS("/seg1.ts"))
	_, err := os.Stat(p)
	require.True(t, os.IsNotExist(err), "expected file removed")
}

func TestDropTSDefersUnlinkUntilReaderReleases(t *testing.T) {
	dir := t.TempDir()
	p := writeTempFile(t, dir, "seg1.ts", "data")

	s := New()
	s.PutTS("/seg1.ts", p)

	_, release, ok := s.GetTS("/seg1.ts")
	require.True(t, ok)

	s.DropTS("/seg1.ts")

	// File must still exist while the reader holds its token.
	_, err := os.Stat(p)
	require.NoError(t, err, "file must survive while reader is mid-stream")
	require.False(t, s.HasTS("/seg1.ts"), "key must be gone from the store immediately")

	release()

	_, err = os.Stat(p)
	require.True(t, os.IsNotExist(err), "expected file removed after release")
}

func TestGetTSAfterDropReturnsAbsent(t *testing.T) {
	dir := t.TempDir()
	p := writeTempFile(t, dir, "seg1.ts", "data")

	s := New()
	s.PutTS("/seg1.ts", p)
	s.DropTS("/seg1.ts")

	_, _, ok := s.GetTS("/seg1.ts")
	require.False(t, ok)
}

func TestVTTRoundTrip(t *testing.T) {
	s := New()
	_, ok := s.GetVTT("/seg1.vtt")
	require.False(t, ok)

	s.PutVTT("/seg1.vtt", []byte("WEBVTT\n\n"))
	data, ok := s.GetVTT("/seg1.vtt")
	require.True(t, ok)
	require.Equal(t, "WEBVTT\n\n", string(data))

	s.DropVTT("/seg1.vtt")
	_, ok = s.GetVTT("/seg1.vtt")
	require.False(t, ok)
}

func TestKeysExcludesTombstoned(t *testing.T) {
	dir := t.TempDir()
	p1 := writeTempFile(t, dir, "seg1.ts", "a")
	p2 := writeTempFile(t, dir, "seg2.ts", "b")

	s := New()
	s.PutTS("/seg1.ts", p1)
	s.PutTS("/seg2.ts", p2)
	s.DropTS("/seg1.ts")

	keys := s.Keys()
	require.ElementsMatch(t, []string{"/seg2.ts"}, keys)
}

func TestConcurrentReadDuringDrop(t *testing.T) {
	dir := t.TempDir()
	p := writeTempFile(t, dir, "seg1.ts", "data")

	s := New()
	s.PutTS("/seg1.ts", p)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		_, release, ok := s.GetTS("/seg1.ts")
		if ok {
			time.Sleep(10 * time.Millisecond)
			release()
		}
	}()
	go func() {
		defer wg.Done()
		time.Sleep(2 * time.Millisecond)
		s.DropTS("/seg1.ts")
	}()

	wg.Wait()

	require.Eventually(t, func() bool {
		_, err := os.Stat(p)
		return os.IsNotExist(err)
	}, time.Second, 5*time.Millisecond)
}
