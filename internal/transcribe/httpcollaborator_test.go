package transcribe

import (
	"mime"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPCollaboratorPostsAudioAndDecodesCues(t *testing.T) {
	var gotTask, gotLanguage string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		require.Equal(t, "multipart/form-data", mediaType)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotTask = r.FormValue("task")
		gotLanguage = r.FormValue("language")

		_, _, err = r.FormFile("audio")
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"start":0,"end":1.5,"text":"hello there"}]`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	audioPath := filepath.Join(dir, "segment.wav")
	require.NoError(t, os.WriteFile(audioPath, []byte("fake-audio"), 0o644))

	c := NewHTTPCollaborator(srv.URL, 0)
	cues, err := c.Transcribe(t.Context(), audioPath, CollaboratorOptions{Task: "transcribe", Language: "en", BeamSize: 5})
	require.NoError(t, err)
	require.Equal(t, "transcribe", gotTask)
	require.Equal(t, "en", gotLanguage)
	require.Len(t, cues, 1)
	require.Equal(t, "hello there", cues[0].Text)
	require.Equal(t, 1.5, cues[0].End)
}

func TestHTTPCollaboratorReturnsErrorOnServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	audioPath := filepath.Join(dir, "segment.wav")
	require.NoError(t, os.WriteFile(audioPath, []byte("fake-audio"), 0o644))

	c := NewHTTPCollaborator(srv.URL, 0)
	_, err := c.Transcribe(t.Context(), audioPath, CollaboratorOptions{Task: "transcribe", Language: "en"})
	require.Error(t, err)
}
