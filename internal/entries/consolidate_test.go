package entries

import (
	"errors"
	"testing"

	"github.com/dvloznov/bookkeeper/internal/domain"
)

func tx(typ domain.TxType, amount string) domain.Transaction {
	return domain.Transaction{Date: testDate, Description: string(typ) + " " + amount, Amount: dec(amount), Type: typ}
}

func TestConsolidate_NetsBankSide(t *testing.T) {
	txs := []domain.Transaction{tx(domain.TxDebit, "100"), tx(domain.TxDebit, "50"), tx(domain.TxCredit, "30")}

	e, err := Consolidate(txs, "bank", "suspense", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(e.Lines) != 2 {
		t.Fatalf("lines = %+v", e.Lines)
	}
	bank := e.Lines[0]
	if bank.AccountID != "bank" || !bank.Credit.Equal(dec("120")) || !bank.Debit.IsZero() {
		t.Errorf("bank line = %+v", bank)
	}
	if err := ValidateForSave(e, resolvAll); err != nil {
		t.Errorf("ValidateForSave: %v", err)
	}
}

func TestConsolidate_CreditHeavy(t *testing.T) {
	txs := []domain.Transaction{tx(domain.TxCredit, "200"), tx(domain.TxDebit, "50")}
	e, err := Consolidate(txs, "bank", "suspense", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !e.Lines[0].Debit.Equal(dec("150")) || !e.Lines[0].Credit.IsZero() {
		t.Errorf("bank line = %+v", e.Lines[0])
	}
}

func TestConsolidate_NetZeroOmitsBankLine(t *testing.T) {
	txs := []domain.Transaction{tx(domain.TxCredit, "75"), tx(domain.TxDebit, "75")}
	s := &domain.Suggestion{
		Date:        testDate,
		Description: "Transfer in and out",
		Lines: []domain.SuggestedLine{
			{AccountID: "bank", Debit: dec("75")},
			{AccountID: "A", Debit: dec("75")},
			{AccountID: "B", Credit: dec("75")},
		},
	}
	e, err := Consolidate(txs, "bank", "suspense", s)
	if err != nil {
		t.Fatal(err)
	}
	for _, l := range e.Lines {
		if l.AccountID == "bank" {
			t.Fatalf("net-zero bank line should be omitted: %+v", e.Lines)
		}
	}
	if len(e.Lines) != 2 || e.Description != "Transfer in and out" {
		t.Errorf("entry = %+v", e)
	}
}

func TestConsolidate_WithSuggestion(t *testing.T) {
	txs := []domain.Transaction{tx(domain.TxDebit, "40"), tx(domain.TxDebit, "60")}
	s := &domain.Suggestion{
		Date:        testDate,
		Description: "Utilities",
		Lines:       []domain.SuggestedLine{{AccountID: "A", Debit: dec("100")}},
	}
	e, err := Consolidate(txs, "bank", "suspense", s)
	if err != nil {
		t.Fatal(err)
	}
	if err := ValidateForSave(e, resolvAll); err != nil {
		t.Errorf("ValidateForSave: %v", err)
	}
}

func TestConsolidate_Empty(t *testing.T) {
	if _, err := Consolidate(nil, "bank", "suspense", nil); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("got %v", err)
	}
}
