package extraction

import (
	"fmt"
	"time"

	"github.com/dvloznov/bookkeeper/internal/domain"
)

// PlaceholderDescription replaces a missing or unusable description.
const PlaceholderDescription = "(no description)"

// ParseStatementRecords converts model output for a statement into
// transactions. The output is a JSON array of records, or an object holding
// it under "transactions". Each record carries "date", "description" and
// either "debit"/"credit" (money out / money in, non-negative, null when
// absent) or a single signed "amount" (negative for money out).
//
// Malformed dates fall back to defaultDate and non-string descriptions are
// coerced. Any other bad field rejects the whole response.
func ParseStatementRecords(raw string, defaultDate time.Time) Result[[]domain.Transaction] {
	v, err := decodeJSON(raw)
	if err != nil {
		return reject[[]domain.Transaction]([]domain.FieldError{{
			Entity: "response", Field: "body", Message: fmt.Sprintf("invalid JSON: %v", err),
		}})
	}
	if obj, ok := v.(map[string]any); ok {
		v = obj["transactions"]
	}
	items, ok := v.([]any)
	if !ok {
		return reject[[]domain.Transaction]([]domain.FieldError{{
			Entity: "response", Field: "transactions", Message: fmt.Sprintf("has type %T, want array", v),
		}})
	}

	var errs []domain.FieldError
	txs := make([]domain.Transaction, 0, len(items))
	for i, item := range items {
		tx, fieldErrs := parseStatementRecord(i, item, defaultDate)
		if len(fieldErrs) > 0 {
			errs = append(errs, fieldErrs...)
			continue
		}
		txs = append(txs, tx)
	}
	if len(errs) > 0 {
		return reject[[]domain.Transaction](errs)
	}
	return Result[[]domain.Transaction]{Value: txs}
}

func parseStatementRecord(i int, item any, defaultDate time.Time) (domain.Transaction, []domain.FieldError) {
	id := fmt.Sprintf("record %d", i)
	var errs []domain.FieldError
	fail := func(field, msg string) {
		errs = append(errs, domain.FieldError{Entity: "transaction", ID: id, Field: field, Message: msg})
	}

	obj, ok := item.(map[string]any)
	if !ok {
		fail("record", fmt.Sprintf("has type %T, want object", item))
		return domain.Transaction{}, errs
	}

	tx := domain.Transaction{Date: defaultDate, Description: PlaceholderDescription}
	if d, ok := parseDate(coerceString(obj["date"])); ok {
		tx.Date = d
	}
	if desc := coerceString(obj["description"]); desc != "" {
		tx.Description = desc
	}

	debit, hasDebit, err := getAmountField(obj, "debit")
	if err != nil {
		fail("debit", err.Error())
	}
	credit, hasCredit, err := getAmountField(obj, "credit")
	if err != nil {
		fail("credit", err.Error())
	}
	if len(errs) > 0 {
		return tx, errs
	}

	switch {
	case hasDebit && debit.IsNegative():
		fail("debit", "amount must not be negative")
	case hasCredit && credit.IsNegative():
		fail("credit", "amount must not be negative")
	case debit.IsPositive() && credit.IsPositive():
		fail("amount", "record has both a debit and a credit")
	case debit.IsPositive():
		tx.Type, tx.Amount = domain.TxDebit, debit
	case credit.IsPositive():
		tx.Type, tx.Amount = domain.TxCredit, credit
	default:
		amount, hasAmount, err := getAmountField(obj, "amount")
		switch {
		case err != nil:
			fail("amount", err.Error())
		case !hasAmount || amount.IsZero():
			fail("amount", "record has no amount")
		case amount.IsNegative():
			tx.Type, tx.Amount = domain.TxDebit, amount.Neg()
		default:
			tx.Type, tx.Amount = domain.TxCredit, amount
		}
	}
	return tx, errs
}
