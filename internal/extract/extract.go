package extract

import (
	"context"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/avoronov/billfold/internal/domain"
)

// DefaultModelName is the generative model used for extraction.
const DefaultModelName = "gemini-2.5-flash"

// ModelClient issues one completion request against the generative model
// and returns its raw text output. The indirection keeps the adapter
// testable without network access.
type ModelClient interface {
	GenerateContent(ctx context.Context, parts []*genai.Part) (string, error)
}

// Transcriber turns an audio payload into plain text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Extractor normalizes heterogeneous inputs (free text, audio, photo) into
// transaction candidates by delegating to the generative model. It performs
// no retries; callers own retry policy.
type Extractor struct {
	model       ModelClient
	transcriber Transcriber
	now         func() time.Time
}

// New creates an extractor. transcriber may be nil when the audio path is
// not configured; ExtractAudio then fails cleanly.
func New(model ModelClient, transcriber Transcriber) *Extractor {
	return &Extractor{
		model:       model,
		transcriber: transcriber,
		now:         time.Now,
	}
}

// ExtractText extracts zero or more transaction candidates from free text.
// Found=false on the result means "nothing financial detected" and is not
// an error.
func (e *Extractor) ExtractText(ctx context.Context, user domain.User, text string) (domain.ExtractionResult, error) {
	if strings.TrimSpace(text) == "" {
		return domain.ExtractionResult{Found: false}, nil
	}

	localTime := e.now()
	prompt := buildTextPrompt(user, localTime, text)

	raw, err := e.model.GenerateContent(ctx, []*genai.Part{{Text: prompt}})
	if err != nil {
		return domain.ExtractionResult{}, err
	}
	return parseTextResult(raw, user, localTime)
}

// ExtractAudio transcribes the audio and delegates to the text path. A
// transcription failure is a hard failure surfaced as-is.
func (e *Extractor) ExtractAudio(ctx context.Context, user domain.User, audio []byte, mimeType string) (domain.ExtractionResult, error) {
	if e.transcriber == nil {
		return domain.ExtractionResult{}, domain.External("transcription", "no transcription backend configured", nil)
	}

	text, err := e.transcriber.Transcribe(ctx, audio, mimeType)
	if err != nil {
		return domain.ExtractionResult{}, err
	}
	return e.ExtractText(ctx, user, text)
}

// ExtractImage extracts a single transaction candidate from a photo.
func (e *Extractor) ExtractImage(ctx context.Context, user domain.User, image []byte, mimeType string) (domain.ExtractionResult, error) {
	localTime := e.now()
	prompt := buildImagePrompt(user, localTime)

	parts := []*genai.Part{
		{Text: prompt},
		{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
	}

	raw, err := e.model.GenerateContent(ctx, parts)
	if err != nil {
		return domain.ExtractionResult{}, err
	}
	return parseImageResult(raw, user, localTime)
}

// GeminiClient is the genai-backed ModelClient.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a client for the given model name; empty means
// DefaultModelName. Credentials come from the environment (GEMINI_API_KEY).
func NewGeminiClient(ctx context.Context, model string) (*GeminiClient, error) {
	if model == "" {
		model = DefaultModelName
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, domain.External("extraction", "create genai client", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// GenerateContent implements ModelClient.
func (g *GeminiClient) GenerateContent(ctx context.Context, parts []*genai.Part) (string, error) {
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", domain.External("extraction", "generate content", err)
	}

	text := resp.Text()
	if text == "" {
		return "", domain.External("extraction", "empty response from model", nil)
	}
	return text, nil
}

var _ ModelClient = (*GeminiClient)(nil)
