package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hlscap/retranscoder/internal/platform/httpx"
)

// HTTPCollaborator is a Collaborator that delegates to a remote speech-to-text
// service over HTTP: the audio file is posted as multipart form data and the
// response is a JSON array of timed cues.
type HTTPCollaborator struct {
	endpoint string
	device   string // compute device hint forwarded to the service ("cuda", "cpu")
	client   *http.Client
}

// NewHTTPCollaborator returns a Collaborator backed by a remote transcription
// service reachable at endpoint (e.g. a local whisper-server instance).
func NewHTTPCollaborator(endpoint string, timeout time.Duration) *HTTPCollaborator {
	client := httpx.NewClient(timeout)
	// The service transcribes before sending any response bytes, so the
	// header wait is as long as the transcription itself; the hardened
	// client's short header timeout would kill every real call.
	if t, ok := client.Transport.(*http.Transport); ok {
		t.ResponseHeaderTimeout = timeout
	}
	return &HTTPCollaborator{
		endpoint: endpoint,
		client:   client,
	}
}

// WithDevice sets the compute device hint sent with each request.
func (c *HTTPCollaborator) WithDevice(device string) *HTTPCollaborator {
	c.device = device
	return c
}

type httpCue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcribe posts audioPath's contents to the remote collaborator and
// decodes its response into cues, honoring the abstract interface's field
// names (task, language, beam_size, vad_filter, initial_prompt).
func (c *HTTPCollaborator) Transcribe(ctx context.Context, audioPath string, opts CollaboratorOptions) ([]Cue, error) {
	body, contentType, err := buildMultipart(audioPath, opts, c.device)
	if err != nil {
		return nil, fmt.Errorf("httpcollaborator: build request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("httpcollaborator: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpcollaborator: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("httpcollaborator: unexpected status %d", resp.StatusCode)
	}

	var decoded []httpCue
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("httpcollaborator: decode response: %w", err)
	}

	cues := make([]Cue, len(decoded))
	for i, dc := range decoded {
		cues[i] = Cue{Start: dc.Start, End: dc.End, Text: dc.Text}
	}
	return cues, nil
}

func buildMultipart(audioPath string, opts CollaboratorOptions, device string) (*bytes.Buffer, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	part, err := w.CreateFormFile("audio", filepath.Base(audioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}

	fields := map[string]string{
		"task":       opts.Task,
		"language":   opts.Language,
		"beam_size":  fmt.Sprintf("%d", opts.BeamSize),
		"vad_filter": fmt.Sprintf("%t", opts.VADFilter),
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if opts.InitialPrompt != "" {
		if err := w.WriteField("initial_prompt", opts.InitialPrompt); err != nil {
			return nil, "", err
		}
	}
	if device != "" {
		if err := w.WriteField("device", device); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
