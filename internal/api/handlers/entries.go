package handlers

import (
	"net/http"

	"github.com/dvloznov/bookkeeper/internal/api/middleware"
	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/dvloznov/bookkeeper/internal/entries"
	"github.com/dvloznov/bookkeeper/internal/reconcile"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// EntriesHandler handles ledger entry, link and draft endpoints.
type EntriesHandler struct {
	book   *reconcile.Book
	drafts *entries.Builder
	log    zerolog.Logger
}

// NewEntriesHandler creates a new entries handler.
func NewEntriesHandler(book *reconcile.Book, drafts *entries.Builder, log zerolog.Logger) *EntriesHandler {
	return &EntriesHandler{book: book, drafts: drafts, log: log}
}

type lineInput struct {
	ID        string `json:"id"`
	AccountID string `json:"accountId"`
	Debit     string `json:"debit"`
	Credit    string `json:"credit"`
}

// entryInput carries amounts as text so that bad input is reported by
// validation instead of failing the whole body.
type entryInput struct {
	Kind        domain.EntryKind `json:"kind"`
	Date        string           `json:"date"`
	Description string           `json:"description"`
	Reference   string           `json:"reference"`
	Lines       []lineInput      `json:"lines"`
}

func (in entryInput) toEntry() (domain.Entry, error) {
	date, err := parseDate(in.Date)
	if err != nil {
		return domain.Entry{}, err
	}
	e := domain.Entry{
		Kind:        in.Kind,
		Date:        date,
		Description: in.Description,
		Reference:   in.Reference,
	}
	dups := &domain.ValidationError{}
	seen := make(map[string]bool, len(in.Lines))
	for _, li := range in.Lines {
		l := entries.NewLine()
		if li.ID != "" {
			if seen[li.ID] {
				dups.Add(domain.FieldError{Entity: "entry", LineID: li.ID, Field: "id", Message: "duplicate line id"})
				continue
			}
			seen[li.ID] = true
			l.ID = li.ID
		}
		e.Lines = append(e.Lines, l)
		if err := entries.SetLine(&e, l.ID, entries.FieldAccountID, li.AccountID); err != nil {
			return domain.Entry{}, err
		}
		if li.Debit != "" {
			if err := entries.SetLine(&e, l.ID, entries.FieldDebit, li.Debit); err != nil {
				return domain.Entry{}, err
			}
		}
		if li.Credit != "" {
			if err := entries.SetLine(&e, l.ID, entries.FieldCredit, li.Credit); err != nil {
				return domain.Entry{}, err
			}
		}
	}
	if err := dups.OrNil(); err != nil {
		return domain.Entry{}, err
	}
	return e, nil
}

// ListEntries handles GET /api/entries
func (h *EntriesHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	list := h.book.Entries()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": list,
		"count":   len(list),
	})
}

// GetEntry handles GET /api/entries/{id}
func (h *EntriesHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	e, err := h.book.Entry(id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	txIDs := h.book.FindTransactionsForEntry(id)
	if txIDs == nil {
		txIDs = []string{}
	}
	// transactionId is the primary link; consolidated entries list the rest
	// in transactionIds.
	primary, _ := h.book.FindTransactionForEntry(id)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entry":          e,
		"totals":         entries.ComputeTotals(e),
		"transactionId":  primary,
		"transactionIds": txIDs,
	})
}

// PostEntry handles POST /api/entries. Transaction ids are linked to the new
// entry in the same step.
func (h *EntriesHandler) PostEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		entryInput
		TransactionIDs []string `json:"transactionIds"`
		BankAccountID  string   `json:"bankAccountId"`
	}
	if !decode(w, r, &req) {
		return
	}
	e, err := req.toEntry()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	posted, err := h.book.PostEntry(r.Context(), e, req.TransactionIDs, req.BankAccountID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, posted)
}

// PostCashbook handles POST /api/entries/cashbook. The single-line cashbook
// row is expanded into a bank line and a contra line.
func (h *EntriesHandler) PostCashbook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date          string `json:"date"`
		Description   string `json:"description"`
		Reference     string `json:"reference"`
		BankAccountID string `json:"bankAccountId"`
		AccountID     string `json:"accountId"`
		Receipt       string `json:"receipt"`
		Payment       string `json:"payment"`
		TransactionID string `json:"transactionId"`
	}
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	verr := &domain.ValidationError{}
	amount := func(field, s string) decimal.Decimal {
		d, err := entries.ParseAmount(s)
		if err != nil {
			verr.Add(domain.FieldError{Entity: "cashbook", Field: field, Message: err.Error()})
		}
		return d
	}
	receipt := amount("receipt", req.Receipt)
	payment := amount("payment", req.Payment)
	if err := verr.OrNil(); err != nil {
		writeDomainError(w, r, err)
		return
	}

	e := entries.FromCashbook(entries.CashbookInput{
		Date:          date,
		Description:   req.Description,
		Reference:     req.Reference,
		BankAccountID: req.BankAccountID,
		AccountID:     req.AccountID,
		Receipt:       receipt,
		Payment:       payment,
	})
	var txIDs []string
	if req.TransactionID != "" {
		txIDs = []string{req.TransactionID}
	}
	posted, err := h.book.PostEntry(r.Context(), e, txIDs, req.BankAccountID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, posted)
}

// EditEntry handles PUT /api/entries/{id}
func (h *EntriesHandler) EditEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		entryInput
		LinkChange *reconcile.LinkChange `json:"linkChange"`
	}
	if !decode(w, r, &req) {
		return
	}
	e, err := req.toEntry()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	updated, err := h.book.EditEntry(r.Context(), r.PathValue("id"), e, req.LinkChange)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, updated)
}

// DeleteEntry handles DELETE /api/entries/{id}
func (h *EntriesHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	unlinked, err := h.book.DeleteEntry(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if unlinked == nil {
		unlinked = []string{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"unlinkedTransactionIds": unlinked,
	})
}

// BulkPost handles POST /api/entries/bulk
func (h *EntriesHandler) BulkPost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TransactionIDs []string `json:"transactionIds"`
		BankAccountID  string   `json:"bankAccountId"`
	}
	if !decode(w, r, &req) {
		return
	}
	res, err := h.book.BulkPost(r.Context(), req.TransactionIDs, req.BankAccountID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

// ChangeTransaction handles POST /api/entries/{id}/change-transaction
func (h *EntriesHandler) ChangeTransaction(w http.ResponseWriter, r *http.Request) {
	var req reconcile.LinkChange
	if !decode(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	if err := h.book.ChangeLinkedTransaction(r.Context(), id, req.OldTransactionID, req.NewTransactionID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entryId":        id,
		"transactionIds": h.book.FindTransactionsForEntry(id),
	})
}

// PostLink handles POST /api/links
func (h *EntriesHandler) PostLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TransactionID string `json:"transactionId"`
		EntryID       string `json:"entryId"`
		BankAccountID string `json:"bankAccountId"`
	}
	if !decode(w, r, &req) {
		return
	}
	link, err := h.book.PostLink(r.Context(), req.TransactionID, req.EntryID, req.BankAccountID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, link)
}

// ListLinks handles GET /api/links
func (h *EntriesHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	links := h.book.Links()
	if links == nil {
		links = []domain.Link{}
	}
	middleware.WriteJSON(w, http.StatusOK, links)
}

// Unlink handles DELETE /api/links/{txId}
func (h *EntriesHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	if err := h.book.Unlink(r.Context(), r.PathValue("txId")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Relink handles PUT /api/links/{txId}
func (h *EntriesHandler) Relink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EntryID string `json:"entryId"`
	}
	if !decode(w, r, &req) {
		return
	}
	link, err := h.book.Relink(r.Context(), r.PathValue("txId"), req.EntryID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, link)
}

// draftView is a draft with its running totals.
type draftView struct {
	Entry    domain.Entry   `json:"entry"`
	Totals   entries.Totals `json:"totals"`
	Balanced bool           `json:"balanced"`
}

func viewOf(e domain.Entry) draftView {
	return draftView{Entry: e, Totals: entries.ComputeTotals(e), Balanced: entries.IsBalanced(e)}
}

// CreateDraft handles POST /api/drafts. With a transactionId the draft is
// pre-filled from that transaction against the bank and suspense accounts.
func (h *EntriesHandler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date          string `json:"date"`
		TransactionID string `json:"transactionId"`
		BankAccountID string `json:"bankAccountId"`
	}
	if !decode(w, r, &req) {
		return
	}

	if req.TransactionID == "" {
		date, err := parseDate(req.Date)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		middleware.WriteJSON(w, http.StatusCreated, viewOf(h.drafts.NewDraft(date)))
		return
	}

	tx, err := h.book.Transaction(req.TransactionID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if tx.Status == domain.StatusLinked {
		link, _ := h.book.Link(tx.ID)
		writeDomainError(w, r, &domain.AlreadyLinkedError{TransactionID: tx.ID, EntryID: link.EntryID})
		return
	}
	e := h.drafts.NewDraftFromTransaction(tx, req.BankAccountID, h.book.Suspense().ID)
	middleware.WriteJSON(w, http.StatusCreated, viewOf(e))
}

// GetDraft handles GET /api/drafts/{id}
func (h *EntriesHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	e, err := h.drafts.Draft(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, viewOf(e))
}

// UpdateDraft handles PATCH /api/drafts/{id}
func (h *EntriesHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date        string `json:"date"`
		Description string `json:"description"`
		Reference   string `json:"reference"`
	}
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	e, err := h.drafts.SetHeader(r.PathValue("id"), date, req.Description, req.Reference)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, viewOf(e))
}

// SetDraftLine handles PATCH /api/drafts/{id}/lines/{lineId}
func (h *EntriesHandler) SetDraftLine(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if !decode(w, r, &req) {
		return
	}
	e, err := h.drafts.SetLine(r.PathValue("id"), r.PathValue("lineId"), req.Field, req.Value)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, viewOf(e))
}

// AddDraftLine handles POST /api/drafts/{id}/lines
func (h *EntriesHandler) AddDraftLine(w http.ResponseWriter, r *http.Request) {
	e, err := h.drafts.AddLine(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, viewOf(e))
}

// RemoveDraftLine handles DELETE /api/drafts/{id}/lines/{lineId}
func (h *EntriesHandler) RemoveDraftLine(w http.ResponseWriter, r *http.Request) {
	e, err := h.drafts.RemoveLine(r.PathValue("id"), r.PathValue("lineId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, viewOf(e))
}

// PostDraft handles POST /api/drafts/{id}/post. The draft is kept when the
// post is rejected so the user can fix it.
func (h *EntriesHandler) PostDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TransactionIDs []string `json:"transactionIds"`
		BankAccountID  string   `json:"bankAccountId"`
	}
	if !decode(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	e, err := h.drafts.Draft(id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	posted, err := h.book.PostEntry(r.Context(), e, req.TransactionIDs, req.BankAccountID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.drafts.Discard(id)
	middleware.WriteJSON(w, http.StatusCreated, posted)
}

// DiscardDraft handles DELETE /api/drafts/{id}
func (h *EntriesHandler) DiscardDraft(w http.ResponseWriter, r *http.Request) {
	h.drafts.Discard(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}
