package handlers

import (
	"net/http"

	"github.com/dvloznov/bookkeeper/internal/api/middleware"
	"github.com/dvloznov/bookkeeper/internal/reconcile"
	"github.com/rs/zerolog"
)

// AccountsHandler handles chart-of-accounts endpoints.
type AccountsHandler struct {
	book *reconcile.Book
	log  zerolog.Logger
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(book *reconcile.Book, log zerolog.Logger) *AccountsHandler {
	return &AccountsHandler{book: book, log: log}
}

// ListAccounts handles GET /api/accounts
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accts := h.book.Accounts()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accts,
		"count":    len(accts),
	})
}

// AddAccount handles POST /api/accounts. The new account is blank and is
// filled in with UpdateAccount.
func (h *AccountsHandler) AddAccount(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusCreated, h.book.AddAccount())
}

// UpdateAccount handles PATCH /api/accounts/{id}
func (h *AccountsHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if !decode(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	if err := h.book.UpdateAccount(id, req.Field, req.Value); err != nil {
		writeDomainError(w, r, err)
		return
	}
	acct, _ := h.book.Account(id)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"account": acct,
		"errors":  h.book.ValidateAccounts()[id],
	})
}

// DeleteAccount handles DELETE /api/accounts/{id}
func (h *AccountsHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.book.DeleteAccount(r.PathValue("id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportAccounts handles POST /api/accounts/import with rows of
// [code, name, type].
func (h *AccountsHandler) ImportAccounts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rows [][]string `json:"rows"`
	}
	if !decode(w, r, &req) {
		return
	}
	res := h.book.ImportAccounts(req.Rows)
	h.log.Info().Int("added", res.Added).Msg("Accounts imported")
	middleware.WriteJSON(w, http.StatusOK, res)
}

// ValidateAccounts handles GET /api/accounts/validate
func (h *AccountsHandler) ValidateAccounts(w http.ResponseWriter, r *http.Request) {
	errs := h.book.ValidateAccounts()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"valid":  len(errs) == 0,
		"errors": errs,
	})
}
