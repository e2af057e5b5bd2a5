package domain

// SuspenseCode is the code of the reserved "Uncategorized" account. It always
// exists in a directory and cannot be deleted.
const SuspenseCode = "0000"

// SuspenseName is the display name of the reserved suspense account.
const SuspenseName = "Uncategorized"

// UnknownAccountName is shown for ledger lines whose account id no longer resolves.
const UnknownAccountName = "Unknown Account"

// Account is one record of the chart of accounts.
type Account struct {
	ID            string `json:"id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	IsBankAccount bool   `json:"isBankAccount,omitempty"`
}

// IsSuspense reports whether the account is the reserved suspense account.
func (a Account) IsSuspense() bool {
	return a.Code == SuspenseCode
}
