// Package accounts implements the chart of accounts: a flat, user-editable
// list of account records with code uniqueness and non-empty field checks.
package accounts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/google/uuid"
)

// Editable account fields accepted by UpdateAccount.
const (
	FieldCode          = "code"
	FieldName          = "name"
	FieldType          = "type"
	FieldIsBankAccount = "isBankAccount"
)

// FieldErrors maps a field name to its message for one account.
type FieldErrors map[string]string

// ImportResult reports the outcome of ImportRows.
type ImportResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// Directory holds the accounts in insertion order. It is not safe for
// concurrent use; the reconcile.Book serializes access.
type Directory struct {
	accounts []domain.Account

	// errs keeps the last ValidateAll result so field edits can clear it.
	errs map[string]FieldErrors
}

// NewDirectory returns a directory seeded with the suspense account.
func NewDirectory() *Directory {
	d := &Directory{}
	d.ensureSuspense()
	return d
}

// FromAccounts rebuilds a directory from persisted records, adding the
// suspense account if it is missing.
func FromAccounts(accts []domain.Account) *Directory {
	d := &Directory{accounts: make([]domain.Account, len(accts))}
	copy(d.accounts, accts)
	d.ensureSuspense()
	return d
}

func (d *Directory) ensureSuspense() {
	for _, a := range d.accounts {
		if a.IsSuspense() {
			return
		}
	}
	d.accounts = append([]domain.Account{{
		ID:   uuid.NewString(),
		Code: domain.SuspenseCode,
		Name: domain.SuspenseName,
		Type: "Suspense",
	}}, d.accounts...)
}

// Clone returns an independent copy.
func (d *Directory) Clone() *Directory {
	out := &Directory{accounts: make([]domain.Account, len(d.accounts))}
	copy(out.accounts, d.accounts)
	if d.errs != nil {
		out.errs = make(map[string]FieldErrors, len(d.errs))
		for id, fe := range d.errs {
			cp := make(FieldErrors, len(fe))
			for k, v := range fe {
				cp[k] = v
			}
			out.errs[id] = cp
		}
	}
	return out
}

// List returns a copy of all accounts.
func (d *Directory) List() []domain.Account {
	out := make([]domain.Account, len(d.accounts))
	copy(out, d.accounts)
	return out
}

// Get returns the account with the given id.
func (d *Directory) Get(id string) (domain.Account, bool) {
	if i := d.index(id); i >= 0 {
		return d.accounts[i], true
	}
	return domain.Account{}, false
}

// Resolve reports whether id names an existing account.
func (d *Directory) Resolve(id string) bool {
	return id != "" && d.index(id) >= 0
}

// ByCode looks up an account by code, case-insensitively.
func (d *Directory) ByCode(code string) (domain.Account, bool) {
	norm := normalizeCode(code)
	if norm == "" {
		return domain.Account{}, false
	}
	for _, a := range d.accounts {
		if normalizeCode(a.Code) == norm {
			return a, true
		}
	}
	return domain.Account{}, false
}

// Suspense returns the reserved suspense account.
func (d *Directory) Suspense() domain.Account {
	a, _ := d.ByCode(domain.SuspenseCode)
	return a
}

// AddAccount appends a blank editable record. Uniqueness is not checked until
// ValidateAll.
func (d *Directory) AddAccount() domain.Account {
	a := domain.Account{ID: uuid.NewString()}
	d.accounts = append(d.accounts, a)
	return a
}

// UpdateAccount mutates one field in place and clears any recorded
// validation error for that field.
func (d *Directory) UpdateAccount(id, field, value string) error {
	i := d.index(id)
	if i < 0 {
		return &domain.NotFoundError{Kind: "account", ID: id}
	}
	a := &d.accounts[i]
	switch field {
	case FieldCode:
		if a.IsSuspense() && strings.TrimSpace(value) != domain.SuspenseCode {
			return &domain.ProtectedAccountError{AccountID: id, Code: a.Code}
		}
		a.Code = strings.TrimSpace(value)
	case FieldName:
		a.Name = value
	case FieldType:
		a.Type = value
	case FieldIsBankAccount:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes":
			a.IsBankAccount = true
		case "false", "0", "no", "":
			a.IsBankAccount = false
		default:
			return &domain.ValidationError{Errors: []domain.FieldError{{
				Entity: "account", ID: id, Field: field, Message: fmt.Sprintf("invalid boolean %q", value),
			}}}
		}
	default:
		return &domain.ValidationError{Errors: []domain.FieldError{{
			Entity: "account", ID: id, Field: field, Message: "unknown field",
		}}}
	}
	if fe, ok := d.errs[id]; ok {
		delete(fe, field)
		if len(fe) == 0 {
			delete(d.errs, id)
		}
	}
	return nil
}

// DeleteAccount removes an account. The suspense account is protected.
// Ledger lines that still reference the account are left dangling.
func (d *Directory) DeleteAccount(id string) error {
	i := d.index(id)
	if i < 0 {
		return &domain.NotFoundError{Kind: "account", ID: id}
	}
	if d.accounts[i].IsSuspense() {
		return &domain.ProtectedAccountError{AccountID: id, Code: d.accounts[i].Code}
	}
	d.accounts = append(d.accounts[:i], d.accounts[i+1:]...)
	delete(d.errs, id)
	return nil
}

// ImportRows adds accounts from [code, name, type] rows. Rows with a missing
// field and rows whose code already exists are skipped; existing accounts are
// never overwritten.
func (d *Directory) ImportRows(rows [][]string) ImportResult {
	var res ImportResult
	for _, row := range rows {
		if len(row) < 3 {
			res.Skipped++
			continue
		}
		code, name, typ := strings.TrimSpace(row[0]), strings.TrimSpace(row[1]), strings.TrimSpace(row[2])
		if code == "" || name == "" || typ == "" {
			res.Skipped++
			continue
		}
		if _, exists := d.ByCode(code); exists {
			res.Skipped++
			continue
		}
		d.accounts = append(d.accounts, domain.Account{
			ID:   uuid.NewString(),
			Code: code,
			Name: name,
			Type: typ,
		})
		res.Added++
	}
	return res
}

// ValidateAll checks every account for non-empty code, name and type, and
// for code uniqueness (first occurrence wins). Saving is blocked while the
// returned map is non-empty.
func (d *Directory) ValidateAll() map[string]FieldErrors {
	errs := make(map[string]FieldErrors)
	seen := make(map[string]string)
	add := func(id, field, msg string) {
		if errs[id] == nil {
			errs[id] = make(FieldErrors)
		}
		errs[id][field] = msg
	}
	for _, a := range d.accounts {
		if strings.TrimSpace(a.Code) == "" {
			add(a.ID, FieldCode, "code is required")
		} else {
			norm := normalizeCode(a.Code)
			if firstID, dup := seen[norm]; dup {
				add(a.ID, FieldCode, fmt.Sprintf("code %q duplicates account %s", a.Code, firstID))
			} else {
				seen[norm] = a.ID
			}
		}
		if strings.TrimSpace(a.Name) == "" {
			add(a.ID, FieldName, "name is required")
		}
		if strings.TrimSpace(a.Type) == "" {
			add(a.ID, FieldType, "type is required")
		}
	}
	d.errs = errs
	return errs
}

// Errors returns the errors recorded by the last ValidateAll, minus fields
// edited since.
func (d *Directory) Errors() map[string]FieldErrors {
	return d.Clone().errs
}

// AsValidationError flattens a ValidateAll result into a ValidationError.
func AsValidationError(errs map[string]FieldErrors) error {
	ids := make([]string, 0, len(errs))
	for id := range errs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	ve := &domain.ValidationError{}
	for _, id := range ids {
		fields := make([]string, 0, len(errs[id]))
		for f := range errs[id] {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			ve.Add(domain.FieldError{Entity: "account", ID: id, Field: f, Message: errs[id][f]})
		}
	}
	return ve.OrNil()
}

func (d *Directory) index(id string) int {
	for i := range d.accounts {
		if d.accounts[i].ID == id {
			return i
		}
	}
	return -1
}

// normalizeCode trims and uppercases a code for comparison.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
