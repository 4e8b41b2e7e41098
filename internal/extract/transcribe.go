package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avoronov/billfold/internal/domain"
)

// HTTPTranscriber posts audio to an external speech-to-text service and
// concatenates the returned segments into one text. The service contract:
//
//	POST <url>  (body: raw audio, Content-Type: the audio MIME type)
//	200 → {"segments": [{"start": N, "end": N, "text": S}, ...]}
//
// Any non-2xx status or unparsable payload is a hard transcription failure.
type HTTPTranscriber struct {
	url    string
	client *http.Client
}

// NewHTTPTranscriber creates a transcriber against the given endpoint URL.
func NewHTTPTranscriber(url string) *HTTPTranscriber {
	return &HTTPTranscriber{
		url:    url,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type transcriptionSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type transcriptionResponse struct {
	Segments []transcriptionSegment `json:"segments"`
}

// Transcribe implements Transcriber.
func (t *HTTPTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(audio))
	if err != nil {
		return "", domain.External("transcription", "building request", err)
	}
	req.Header.Set("Content-Type", mimeType)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", domain.External("transcription", "backend unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", domain.External("transcription",
			fmt.Sprintf("backend returned status %d", resp.StatusCode), nil)
	}

	var body transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", domain.External("transcription", "unparsable backend response", err)
	}

	parts := make([]string, 0, len(body.Segments))
	for _, seg := range body.Segments {
		if s := strings.TrimSpace(seg.Text); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " "), nil
}

var _ Transcriber = (*HTTPTranscriber)(nil)
