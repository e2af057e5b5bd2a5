package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// MockGenerator is a mock implementation of Generator for testing.
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, prompt string, attachment *Document) (string, error)
	Prompts      []string
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string, attachment *Document) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, attachment)
	}
	return "[]", nil
}

func TestGeminiExtractor_ExtractStatement(t *testing.T) {
	var gotAttachment *Document
	gen := &MockGenerator{GenerateFunc: func(ctx context.Context, prompt string, attachment *Document) (string, error) {
		gotAttachment = attachment
		return `[{"date":"2024-02-02","description":"Coffee","debit":3.2}]`, nil
	}}
	ex := NewGeminiExtractor(gen, nil, zerolog.Nop())

	txs, err := ex.ExtractStatement(context.Background(), Document{Name: "feb.pdf", MIMEType: "application/pdf", Data: []byte("%PDF")})
	if err != nil {
		t.Fatalf("ExtractStatement: %v", err)
	}
	if len(txs) != 1 || !txs[0].Amount.Equal(decimal.RequireFromString("3.2")) {
		t.Errorf("txs = %+v", txs)
	}
	if gotAttachment == nil || gotAttachment.MIMEType != "application/pdf" {
		t.Errorf("attachment = %+v", gotAttachment)
	}
}

func TestGeminiExtractor_TextDocumentInPrompt(t *testing.T) {
	gen := &MockGenerator{}
	ex := NewGeminiExtractor(gen, nil, zerolog.Nop())
	if _, err := ex.ExtractStatement(context.Background(), Document{Text: "01/02 TESCO 12.00"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(gen.Prompts[0], "TESCO") {
		t.Error("statement text missing from prompt")
	}
}

func TestGeminiExtractor_Failures(t *testing.T) {
	t.Run("model error", func(t *testing.T) {
		boom := errors.New("503")
		ex := NewGeminiExtractor(&MockGenerator{GenerateFunc: func(context.Context, string, *Document) (string, error) {
			return "", boom
		}}, nil, zerolog.Nop())
		_, err := ex.ExtractStatement(context.Background(), Document{Text: "x"})
		if !errors.Is(err, domain.ErrExternalService) || !errors.Is(err, boom) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("malformed response", func(t *testing.T) {
		ex := NewGeminiExtractor(&MockGenerator{GenerateFunc: func(context.Context, string, *Document) (string, error) {
			return `{"date":"2024-01-01"}`, nil
		}}, nil, zerolog.Nop())
		_, err := ex.SuggestEntry(context.Background(), SuggestionRequest{Memo: "paid rent"}, chart)
		if !errors.Is(err, domain.ErrExternalService) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("quota", func(t *testing.T) {
		gen := &MockGenerator{}
		ex := NewGeminiExtractor(gen, NewQuota(1), zerolog.Nop())
		if _, err := ex.ExtractStatement(context.Background(), Document{Text: "x"}); err != nil {
			t.Fatal(err)
		}
		if _, err := ex.ExtractStatement(context.Background(), Document{Text: "x"}); !errors.Is(err, ErrQuotaExceeded) {
			t.Errorf("err = %v", err)
		}
		if len(gen.Prompts) != 1 {
			t.Errorf("model called %d times", len(gen.Prompts))
		}
	})
}

func TestGeminiExtractor_SuggestEntryPrompt(t *testing.T) {
	gen := &MockGenerator{GenerateFunc: func(context.Context, string, *Document) (string, error) {
		return `{"date":"2024-03-01","description":"Rent","lines":[{"accountCode":"6000","debit":500},{"accountCode":"1000","credit":500}]}`, nil
	}}
	ex := NewGeminiExtractor(gen, nil, zerolog.Nop())
	req := SuggestionRequest{
		Accounts: []domain.Account{{Code: "1000", Name: "Bank", Type: "Asset", IsBankAccount: true}, {Code: "6000", Name: "Rent", Type: "Expense"}},
		Transactions: []domain.Transaction{
			{Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Description: "LANDLORD", Amount: decimal.NewFromInt(500), Type: domain.TxDebit},
		},
		BankAccountCode: "1000",
	}
	s, err := ex.SuggestEntry(context.Background(), req, chart)
	if err != nil {
		t.Fatal(err)
	}
	if s.Lines[0].AccountID != "acc-rent" || s.Lines[1].AccountID != "acc-bank" {
		t.Errorf("lines = %+v", s.Lines)
	}
	p := gen.Prompts[0]
	for _, want := range []string{"1000: Bank [Asset] (bank)", "LANDLORD | 500.00 money out", domain.SuspenseCode} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestQuota(t *testing.T) {
	now := time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)
	q := NewQuota(2)
	q.now = func() time.Time { return now }

	if q.Remaining() != 2 {
		t.Errorf("Remaining = %d", q.Remaining())
	}
	for i := 0; i < 2; i++ {
		if err := q.Take(); err != nil {
			t.Fatalf("Take %d: %v", i, err)
		}
	}
	if err := q.Take(); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("Take over limit = %v", err)
	}

	now = now.Add(2 * time.Hour)
	if q.Remaining() != 2 {
		t.Errorf("quota did not reset on a new day: %d", q.Remaining())
	}

	unlimited := NewQuota(0)
	if unlimited.Take() != nil || unlimited.Remaining() != -1 {
		t.Error("zero limit should be unlimited")
	}
}
