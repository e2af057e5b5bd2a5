package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// DefaultModelName is the default Gemini model.
const DefaultModelName = "gemini-2.5-flash"

// Document is a statement to extract: raw bytes with a MIME type (PDF,
// image) or plain text.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
	Text     string
}

// SuggestionRequest is the material for one entry suggestion.
type SuggestionRequest struct {
	Accounts        []domain.Account
	Transactions    []domain.Transaction
	BankAccountCode string
	Memo            string
}

// Extractor turns documents and memos into validated domain values.
type Extractor interface {
	ExtractStatement(ctx context.Context, doc Document) ([]domain.Transaction, error)
	SuggestEntry(ctx context.Context, req SuggestionRequest, accounts AccountLookup) (domain.Suggestion, error)
}

// Generator sends a prompt, with an optional attachment, to a model and
// returns its raw text.
type Generator interface {
	Generate(ctx context.Context, prompt string, attachment *Document) (string, error)
}

// GeminiGenerator is the Generator backed by the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a GenAI client. Credentials come from the
// environment (GOOGLE_API_KEY or Vertex AI application default credentials).
func NewGeminiGenerator(ctx context.Context, model string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiGenerator: create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, attachment *Document) (string, error) {
	parts := []*genai.Part{{Text: prompt}}
	if attachment != nil && len(attachment.Data) > 0 {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: attachment.MIMEType, Data: attachment.Data},
		})
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Generate: generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("Generate: empty response from model")
	}
	return text, nil
}

// GeminiExtractor implements Extractor on top of a Generator, enforcing the
// daily quota and the parse boundary.
type GeminiExtractor struct {
	gen   Generator
	quota *Quota
	log   zerolog.Logger
	now   func() time.Time
}

// NewGeminiExtractor creates an extractor. quota may be nil for no limit.
func NewGeminiExtractor(gen Generator, quota *Quota, log zerolog.Logger) *GeminiExtractor {
	return &GeminiExtractor{gen: gen, quota: quota, log: log, now: time.Now}
}

// ExtractStatement implements Extractor. Records with an unreadable date are
// dated today.
func (e *GeminiExtractor) ExtractStatement(ctx context.Context, doc Document) ([]domain.Transaction, error) {
	var attachment *Document
	if len(doc.Data) > 0 {
		attachment = &doc
	}
	raw, err := e.call(ctx, "statement", buildStatementPrompt(doc.Text), attachment)
	if err != nil {
		return nil, err
	}
	today := e.now().UTC().Truncate(24 * time.Hour)
	res := ParseStatementRecords(raw, today)
	if !res.OK() {
		e.log.Warn().Str("document", doc.Name).Int("field_errors", len(res.Errors)).Msg("statement extraction rejected")
	}
	return res.Unwrap()
}

// SuggestEntry implements Extractor.
func (e *GeminiExtractor) SuggestEntry(ctx context.Context, req SuggestionRequest, accounts AccountLookup) (domain.Suggestion, error) {
	raw, err := e.call(ctx, "suggestion", buildSuggestionPrompt(req), nil)
	if err != nil {
		return domain.Suggestion{}, err
	}
	res := ParseEntrySuggestion(raw, accounts)
	if !res.OK() {
		e.log.Warn().Int("field_errors", len(res.Errors)).Msg("entry suggestion rejected")
	}
	return res.Unwrap()
}

func (e *GeminiExtractor) call(ctx context.Context, kind, prompt string, attachment *Document) (string, error) {
	if err := e.quota.Take(); err != nil {
		return "", err
	}
	start := e.now()
	raw, err := e.gen.Generate(ctx, prompt, attachment)
	if err != nil {
		return "", &domain.ExternalServiceError{Service: "extraction", Err: err}
	}
	e.log.Debug().Str("kind", kind).Dur("took", e.now().Sub(start)).
		Int("response_bytes", len(strings.TrimSpace(raw))).Msg("model call finished")
	return raw, nil
}
