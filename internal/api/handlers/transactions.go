package handlers

import (
	"fmt"
	"net/http"

	"github.com/dvloznov/bookkeeper/internal/api/middleware"
	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/dvloznov/bookkeeper/internal/reconcile"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TransactionsHandler handles statement transaction endpoints.
type TransactionsHandler struct {
	book *reconcile.Book
	log  zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(book *reconcile.Book, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{book: book, log: log}
}

type transactionInput struct {
	ID          string          `json:"id"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        domain.TxType   `json:"type"`
}

// ListTransactions handles GET /api/transactions?status=unlinked|linked
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	var txs []domain.Transaction
	switch status := domain.Status(r.URL.Query().Get("status")); status {
	case "":
		txs = h.book.Transactions()
	case domain.StatusUnlinked:
		txs = h.book.UnlinkedTransactions()
	case domain.StatusLinked:
		for _, tx := range h.book.Transactions() {
			if tx.Status == domain.StatusLinked {
				txs = append(txs, tx)
			}
		}
	default:
		middleware.WriteError(w, http.StatusBadRequest, "status must be linked or unlinked")
		return
	}

	if txs == nil {
		txs = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, txs)
}

// ImportTransactions handles POST /api/transactions/import
func (h *TransactionsHandler) ImportTransactions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transactions []transactionInput `json:"transactions"`
	}
	if !decode(w, r, &req) {
		return
	}

	txs := make([]domain.Transaction, 0, len(req.Transactions))
	for i, in := range req.Transactions {
		date, err := parseDate(in.Date)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("transaction %d: %v", i, err))
			return
		}
		txs = append(txs, domain.Transaction{
			ID:          in.ID,
			Date:        date,
			Description: in.Description,
			Amount:      in.Amount,
			Type:        in.Type,
		})
	}

	res, err := h.book.ImportTransactions(r.Context(), txs)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

// StartStatement handles POST /api/transactions/start-statement
func (h *TransactionsHandler) StartStatement(w http.ResponseWriter, r *http.Request) {
	if err := h.book.StartStatement(r.Context()); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetNotes handles PATCH /api/transactions/{id}/notes
func (h *TransactionsHandler) SetNotes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes string `json:"notes"`
	}
	if !decode(w, r, &req) {
		return
	}
	tx, err := h.book.SetTransactionNotes(r.Context(), r.PathValue("id"), req.Notes)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// GetEntryForTransaction handles GET /api/transactions/{id}/entry
func (h *TransactionsHandler) GetEntryForTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	e, ok := h.book.FindEntryForTransaction(id)
	if !ok {
		writeDomainError(w, r, &domain.NotFoundError{Kind: "link", ID: id})
		return
	}
	link, _ := h.book.Link(id)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entry": e,
		"link":  link,
	})
}
