package entries

import (
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/shopspring/decimal"
)

type setResolver map[string]bool

func (r setResolver) Resolve(id string) bool { return r[id] }

var (
	testDate  = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	resolvAll = setResolver{"bank": true, "suspense": true, "A": true, "B": true, "rent": true}
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func line(account, debit, credit string) domain.Line {
	l := NewLine()
	l.AccountID = account
	l.Debit = dec(debit)
	l.Credit = dec(credit)
	return l
}

func entryOf(lines ...domain.Line) domain.Entry {
	e := ManualSkeleton(testDate)
	e.Lines = lines
	return e
}

func TestIsBalanced(t *testing.T) {
	tests := []struct {
		name  string
		entry domain.Entry
		want  bool
	}{
		{"bank credit against suspense debit", entryOf(line("bank", "0", "500"), line("suspense", "500", "0")), true},
		{"unbalanced", entryOf(line("A", "100", "0"), line("B", "0", "90")), false},
		{"all zero lines", entryOf(line("A", "0", "0"), line("B", "0", "0")), false},
		{"float noise", entryOf(line("A", "0.1", "0"), line("A", "0.2", "0"), line("B", "0", "0.3")), true},
		{"sub-cent rounding", entryOf(line("A", "10.004", "0"), line("B", "0", "10")), true},
		{"sub-cent total", entryOf(line("A", "0.004", "0"), line("B", "0", "0.004")), true},
		{"credit only", entryOf(line("A", "0", "0"), line("B", "0", "0.001")), false},
		{"three way split", entryOf(line("A", "70", "0"), line("B", "30", "0"), line("bank", "0", "100")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBalanced(tt.entry); got != tt.want {
				t.Errorf("IsBalanced() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeTotals(t *testing.T) {
	e := entryOf(line("A", "70.25", "0"), line("B", "0", "30"), line("bank", "0", "40.25"))
	got := ComputeTotals(e)
	if !got.Debit.Equal(dec("70.25")) || !got.Credit.Equal(dec("70.25")) {
		t.Errorf("ComputeTotals() = %v/%v", got.Debit, got.Credit)
	}
}

func TestValidateForSave(t *testing.T) {
	t.Run("balanced entry passes", func(t *testing.T) {
		e := entryOf(line("bank", "0", "500"), line("suspense", "500", "0"))
		if err := ValidateForSave(e, resolvAll); err != nil {
			t.Fatalf("ValidateForSave() = %v", err)
		}
	})

	t.Run("balance failure is a structured error", func(t *testing.T) {
		e := entryOf(line("A", "100", "0"), line("B", "0", "90"))
		err := ValidateForSave(e, resolvAll)
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("got %v, want ValidationError", err)
		}
		if len(ve.Errors) != 1 || ve.Errors[0].Field != "balance" {
			t.Errorf("errors = %+v", ve.Errors)
		}
	})

	t.Run("missing and unknown accounts", func(t *testing.T) {
		e := entryOf(line("", "50", "0"), line("ghost", "0", "50"))
		var ve *domain.ValidationError
		if !errors.As(ValidateForSave(e, resolvAll), &ve) {
			t.Fatal("expected ValidationError")
		}
		if len(ve.Errors) != 2 {
			t.Fatalf("errors = %+v", ve.Errors)
		}
		for _, fe := range ve.Errors {
			if fe.Field != FieldAccountID || fe.LineID == "" {
				t.Errorf("unexpected field error %+v", fe)
			}
		}
	})

	t.Run("duplicate line ids", func(t *testing.T) {
		first := line("A", "50", "0")
		second := line("B", "0", "50")
		second.ID = first.ID
		var ve *domain.ValidationError
		if !errors.As(ValidateForSave(entryOf(first, second), resolvAll), &ve) {
			t.Fatal("expected ValidationError")
		}
		if len(ve.Errors) != 1 || ve.Errors[0].Field != "id" || ve.Errors[0].LineID != first.ID {
			t.Errorf("errors = %+v", ve.Errors)
		}
	})

	t.Run("single line", func(t *testing.T) {
		e := entryOf(line("A", "0", "0"))
		if err := ValidateForSave(e, resolvAll); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("malformed amount input is rejected not zeroed", func(t *testing.T) {
		e := entryOf(line("A", "50", "0"), line("B", "0", "50"))
		if err := SetLine(&e, e.Lines[0].ID, FieldDebit, "5o"); err != nil {
			t.Fatal(err)
		}
		var ve *domain.ValidationError
		if !errors.As(ValidateForSave(e, resolvAll), &ve) {
			t.Fatal("expected ValidationError")
		}
		if ve.Errors[0].Field != FieldDebit {
			t.Errorf("first error = %+v", ve.Errors[0])
		}
		if !e.Lines[0].Debit.Equal(dec("50")) {
			t.Errorf("previous debit was overwritten: %v", e.Lines[0].Debit)
		}
	})
}

func TestSetLine_MutualExclusivity(t *testing.T) {
	e := ManualSkeleton(testDate)
	id := e.Lines[0].ID

	if err := SetLine(&e, id, FieldCredit, "40"); err != nil {
		t.Fatal(err)
	}
	if err := SetLine(&e, id, FieldDebit, "25.50"); err != nil {
		t.Fatal(err)
	}
	if !e.Lines[0].Credit.IsZero() || !e.Lines[0].Debit.Equal(dec("25.5")) {
		t.Fatalf("after debit: %+v", e.Lines[0])
	}
	if err := SetLine(&e, id, FieldCredit, "1,000"); err != nil {
		t.Fatal(err)
	}
	if !e.Lines[0].Debit.IsZero() || !e.Lines[0].Credit.Equal(dec("1000")) {
		t.Fatalf("after credit: %+v", e.Lines[0])
	}
	// A zero does not clear the other side.
	if err := SetLine(&e, id, FieldDebit, "0"); err != nil {
		t.Fatal(err)
	}
	if !e.Lines[0].Credit.Equal(dec("1000")) {
		t.Errorf("zero debit cleared credit: %+v", e.Lines[0])
	}
}

func TestSetLine_Errors(t *testing.T) {
	e := ManualSkeleton(testDate)
	if err := SetLine(&e, "nope", FieldDebit, "1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown line: %v", err)
	}
	if err := SetLine(&e, e.Lines[0].ID, "memo", "1"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("unknown field: %v", err)
	}
	if err := SetLine(&e, e.Lines[0].ID, FieldDebit, "-5"); err != nil {
		t.Fatal(err)
	}
	if e.Lines[0].Invalid[FieldDebit] != "-5" {
		t.Errorf("negative input not recorded: %+v", e.Lines[0])
	}
	if err := SetLine(&e, e.Lines[0].ID, FieldDebit, "5"); err != nil {
		t.Fatal(err)
	}
	if e.Lines[0].Invalid != nil {
		t.Errorf("valid input did not clear invalid marker: %+v", e.Lines[0].Invalid)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "0", false},
		{" 12.30 ", "12.3", false},
		{"1,234.56", "1234.56", false},
		{"abc", "", true},
		{"-1", "", true},
		{"12..3", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAmount(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(dec(tt.want)) {
				t.Errorf("ParseAmount(%q) = %v, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestRemoveLine(t *testing.T) {
	e := ManualSkeleton(testDate)
	var me *domain.MinimumLinesError
	if err := RemoveLine(&e, e.Lines[0].ID); !errors.As(err, &me) {
		t.Fatalf("got %v, want MinimumLinesError", err)
	}
	extra := AddLine(&e)
	if err := RemoveLine(&e, extra.ID); err != nil {
		t.Fatalf("RemoveLine: %v", err)
	}
	if len(e.Lines) != 2 {
		t.Errorf("len = %d", len(e.Lines))
	}
}

func TestFromTransaction(t *testing.T) {
	withdrawal := domain.Transaction{Date: testDate, Description: "Rent", Amount: dec("500"), Type: domain.TxDebit}
	e := FromTransaction(withdrawal, "bank", "suspense")
	if !e.Lines[0].Credit.Equal(dec("500")) || !e.Lines[1].Debit.Equal(dec("500")) {
		t.Errorf("withdrawal lines = %+v", e.Lines)
	}
	if err := ValidateForSave(e, resolvAll); err != nil {
		t.Errorf("skeleton does not validate: %v", err)
	}

	deposit := domain.Transaction{Date: testDate, Description: "Salary", Amount: dec("1200"), Type: domain.TxCredit}
	e = FromTransaction(deposit, "bank", "suspense")
	if !e.Lines[0].Debit.Equal(dec("1200")) || !e.Lines[1].Credit.Equal(dec("1200")) {
		t.Errorf("deposit lines = %+v", e.Lines)
	}
}

func TestFromSuggestion(t *testing.T) {
	s := domain.Suggestion{
		Date:        testDate,
		Description: "Office rent",
		Lines: []domain.SuggestedLine{
			{AccountID: " rent ", Debit: dec("300")},
			{AccountID: "bank", Credit: dec("300")},
		},
	}
	e := FromSuggestion(s)
	if e.Description != "Office rent" || len(e.Lines) != 2 || e.Lines[0].AccountID != "rent" {
		t.Fatalf("entry = %+v", e)
	}
	if !IsBalanced(e) {
		t.Error("suggested entry should balance")
	}
}

func TestFromCashbook(t *testing.T) {
	e := FromCashbook(CashbookInput{
		Date: testDate, Description: "Sale", BankAccountID: "bank", AccountID: "A", Receipt: dec("80"),
	})
	if e.Kind != domain.KindCashbook {
		t.Errorf("Kind = %s", e.Kind)
	}
	if !e.Lines[0].Debit.Equal(dec("80")) || !e.Lines[1].Credit.Equal(dec("80")) {
		t.Errorf("lines = %+v", e.Lines)
	}
}
