package reconcile

import (
	"github.com/dvloznov/bookkeeper/internal/accounts"
	"github.com/dvloznov/bookkeeper/internal/domain"
)

// Account directory edits are drafts: they are visible immediately but only
// persisted by the next SavePeriod.

// Accounts returns the directory in insertion order.
func (b *Book) Accounts() []domain.Account {
	var out []domain.Account
	b.locked(func(s *state) { out = s.accounts.List() })
	return out
}

// Account returns one account.
func (b *Book) Account(id string) (domain.Account, bool) {
	var (
		a  domain.Account
		ok bool
	)
	b.locked(func(s *state) { a, ok = s.accounts.Get(id) })
	return a, ok
}

// AccountByCode looks up an account by code.
func (b *Book) AccountByCode(code string) (domain.Account, bool) {
	var (
		a  domain.Account
		ok bool
	)
	b.locked(func(s *state) { a, ok = s.accounts.ByCode(code) })
	return a, ok
}

// Suspense returns the reserved suspense account.
func (b *Book) Suspense() domain.Account {
	var a domain.Account
	b.locked(func(s *state) { a = s.accounts.Suspense() })
	return a
}

// AddAccount appends a blank account record.
func (b *Book) AddAccount() domain.Account {
	var a domain.Account
	b.locked(func(s *state) { a = s.accounts.AddAccount() })
	return a
}

// UpdateAccount edits one field of an account.
func (b *Book) UpdateAccount(id, field, value string) error {
	var err error
	b.locked(func(s *state) { err = s.accounts.UpdateAccount(id, field, value) })
	return err
}

// DeleteAccount removes an account. Lines referencing it are left dangling.
func (b *Book) DeleteAccount(id string) error {
	var err error
	b.locked(func(s *state) { err = s.accounts.DeleteAccount(id) })
	if err == nil {
		b.log.Info().Str("account_id", id).Msg("account deleted")
	}
	return err
}

// ImportAccounts adds [code, name, type] rows to the directory.
func (b *Book) ImportAccounts(rows [][]string) accounts.ImportResult {
	var res accounts.ImportResult
	b.locked(func(s *state) { res = s.accounts.ImportRows(rows) })
	return res
}

// ValidateAccounts runs the directory checks that gate SavePeriod.
func (b *Book) ValidateAccounts() map[string]accounts.FieldErrors {
	var errs map[string]accounts.FieldErrors
	b.locked(func(s *state) {
		s.accounts.ValidateAll()
		errs = s.accounts.Errors()
	})
	return errs
}

// AccountName returns the display name of an account id, or the unknown
// account placeholder for a dangling reference.
func (b *Book) AccountName(id string) string {
	if a, ok := b.Account(id); ok {
		return a.Name
	}
	return domain.UnknownAccountName
}
