package extraction

import (
	"fmt"

	"github.com/dvloznov/bookkeeper/internal/domain"
)

// AccountLookup resolves account references found in a suggestion.
type AccountLookup interface {
	Resolve(accountID string) bool
	ByCode(code string) (domain.Account, bool)
}

// ParseEntrySuggestion converts a model suggestion
// {date, description, lines:[{accountId, debit, credit}]} into a Suggestion.
// It is rejected outright when date, description or a non-empty lines array
// is missing. Missing amounts become zero and negative amounts their
// magnitude. A line may name its account by id or by code ("accountCode",
// or a code given as accountId); codes are mapped to ids through accounts.
// Whether accounts exist is left to entry validation.
func ParseEntrySuggestion(raw string, accounts AccountLookup) Result[domain.Suggestion] {
	v, err := decodeJSON(raw)
	if err != nil {
		return reject[domain.Suggestion]([]domain.FieldError{{
			Entity: "response", Field: "body", Message: fmt.Sprintf("invalid JSON: %v", err),
		}})
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return reject[domain.Suggestion]([]domain.FieldError{{
			Entity: "response", Field: "body", Message: fmt.Sprintf("has type %T, want object", v),
		}})
	}

	var errs []domain.FieldError
	fail := func(id, field, msg string) {
		errs = append(errs, domain.FieldError{Entity: "suggestion", ID: id, Field: field, Message: msg})
	}

	var s domain.Suggestion
	dateStr, ok, err := getStringField(obj, "date")
	switch {
	case err != nil:
		fail("", "date", err.Error())
	case !ok:
		fail("", "date", "date is required")
	default:
		if s.Date, ok = parseDate(dateStr); !ok {
			fail("", "date", fmt.Sprintf("invalid date %q", dateStr))
		}
	}

	desc, ok, err := getStringField(obj, "description")
	if !ok && err == nil {
		desc, ok, err = getStringField(obj, "narration")
	}
	switch {
	case err != nil:
		fail("", "description", err.Error())
	case !ok:
		fail("", "description", "description is required")
	default:
		s.Description = desc
	}

	rawLines, _ := obj["lines"].([]any)
	if len(rawLines) == 0 {
		fail("", "lines", "a non-empty lines array is required")
	}
	for i, item := range rawLines {
		id := fmt.Sprintf("line %d", i)
		lineObj, ok := item.(map[string]any)
		if !ok {
			fail(id, "line", fmt.Sprintf("has type %T, want object", item))
			continue
		}
		line := domain.SuggestedLine{AccountID: resolveAccount(lineObj, accounts)}
		debit, _, err := getAmountField(lineObj, "debit")
		if err != nil {
			fail(id, "debit", err.Error())
		}
		credit, _, err := getAmountField(lineObj, "credit")
		if err != nil {
			fail(id, "credit", err.Error())
		}
		line.Debit, line.Credit = debit.Abs(), credit.Abs()
		s.Lines = append(s.Lines, line)
	}

	if len(errs) > 0 {
		return reject[domain.Suggestion](errs)
	}
	return Result[domain.Suggestion]{Value: s}
}

func resolveAccount(line map[string]any, accounts AccountLookup) string {
	ref := coerceString(line["accountId"])
	if ref != "" && (accounts == nil || accounts.Resolve(ref)) {
		return ref
	}
	code := coerceString(line["accountCode"])
	if code == "" {
		code = ref
	}
	if accounts != nil && code != "" {
		if a, ok := accounts.ByCode(code); ok {
			return a.ID
		}
	}
	return ref
}
