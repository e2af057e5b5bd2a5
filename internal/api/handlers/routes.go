package handlers

import (
	"net/http"
	"time"

	"github.com/dvloznov/bookkeeper/internal/api/middleware"
	"github.com/dvloznov/bookkeeper/internal/assist"
	"github.com/dvloznov/bookkeeper/internal/entries"
	"github.com/dvloznov/bookkeeper/internal/reconcile"
	"github.com/rs/zerolog"
)

// Routes registers every API endpoint on a new mux. assistant may be nil, in
// which case the suggestion and statement endpoints are not registered.
func Routes(book *reconcile.Book, assistant *assist.Assistant, log zerolog.Logger) *http.ServeMux {
	accountsHandler := NewAccountsHandler(book, log)
	transactionsHandler := NewTransactionsHandler(book, log)
	entriesHandler := NewEntriesHandler(book, entries.NewBuilder(), log)
	periodsHandler := NewPeriodsHandler(book, log)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"period": book.PeriodID(),
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Accounts
	mux.HandleFunc("GET /api/accounts", accountsHandler.ListAccounts)
	mux.HandleFunc("POST /api/accounts", accountsHandler.AddAccount)
	mux.HandleFunc("POST /api/accounts/import", accountsHandler.ImportAccounts)
	mux.HandleFunc("GET /api/accounts/validate", accountsHandler.ValidateAccounts)
	mux.HandleFunc("PATCH /api/accounts/{id}", accountsHandler.UpdateAccount)
	mux.HandleFunc("DELETE /api/accounts/{id}", accountsHandler.DeleteAccount)

	// Transactions
	mux.HandleFunc("GET /api/transactions", transactionsHandler.ListTransactions)
	mux.HandleFunc("POST /api/transactions/import", transactionsHandler.ImportTransactions)
	mux.HandleFunc("POST /api/transactions/start-statement", transactionsHandler.StartStatement)
	mux.HandleFunc("PATCH /api/transactions/{id}/notes", transactionsHandler.SetNotes)
	mux.HandleFunc("GET /api/transactions/{id}/entry", transactionsHandler.GetEntryForTransaction)

	// Entries
	mux.HandleFunc("GET /api/entries", entriesHandler.ListEntries)
	mux.HandleFunc("POST /api/entries", entriesHandler.PostEntry)
	mux.HandleFunc("POST /api/entries/bulk", entriesHandler.BulkPost)
	mux.HandleFunc("POST /api/entries/cashbook", entriesHandler.PostCashbook)
	mux.HandleFunc("GET /api/entries/{id}", entriesHandler.GetEntry)
	mux.HandleFunc("PUT /api/entries/{id}", entriesHandler.EditEntry)
	mux.HandleFunc("DELETE /api/entries/{id}", entriesHandler.DeleteEntry)
	mux.HandleFunc("POST /api/entries/{id}/change-transaction", entriesHandler.ChangeTransaction)

	// Links
	mux.HandleFunc("GET /api/links", entriesHandler.ListLinks)
	mux.HandleFunc("POST /api/links", entriesHandler.PostLink)
	mux.HandleFunc("PUT /api/links/{txId}", entriesHandler.Relink)
	mux.HandleFunc("DELETE /api/links/{txId}", entriesHandler.Unlink)

	// Drafts
	mux.HandleFunc("POST /api/drafts", entriesHandler.CreateDraft)
	mux.HandleFunc("GET /api/drafts/{id}", entriesHandler.GetDraft)
	mux.HandleFunc("PATCH /api/drafts/{id}", entriesHandler.UpdateDraft)
	mux.HandleFunc("DELETE /api/drafts/{id}", entriesHandler.DiscardDraft)
	mux.HandleFunc("POST /api/drafts/{id}/lines", entriesHandler.AddDraftLine)
	mux.HandleFunc("PATCH /api/drafts/{id}/lines/{lineId}", entriesHandler.SetDraftLine)
	mux.HandleFunc("DELETE /api/drafts/{id}/lines/{lineId}", entriesHandler.RemoveDraftLine)
	mux.HandleFunc("POST /api/drafts/{id}/post", entriesHandler.PostDraft)

	// Periods and exports
	mux.HandleFunc("GET /api/periods", periodsHandler.ListPeriods)
	mux.HandleFunc("POST /api/periods/{id}/save", periodsHandler.SavePeriod)
	mux.HandleFunc("POST /api/periods/{id}/load", periodsHandler.LoadPeriod)
	mux.HandleFunc("DELETE /api/periods/{id}", periodsHandler.DeletePeriod)
	mux.HandleFunc("GET /api/snapshot", periodsHandler.GetSnapshot)
	mux.HandleFunc("PUT /api/snapshot", periodsHandler.RestoreSnapshot)
	mux.HandleFunc("GET /api/export/entries.csv", periodsHandler.ExportEntries)
	mux.HandleFunc("GET /api/export/transactions.csv", periodsHandler.ExportTransactions)
	mux.HandleFunc("GET /api/invariants", periodsHandler.CheckInvariants)

	if assistant == nil {
		log.Warn().Msg("No extraction assistant configured - suggestion and statement endpoints are disabled")
		return mux
	}

	// Jobs
	jobsHandler := NewJobsHandler(assistant, log)
	mux.HandleFunc("POST /api/suggestions", jobsHandler.RequestSuggestion)
	mux.HandleFunc("POST /api/statements", jobsHandler.ExtractStatement)
	mux.HandleFunc("GET /api/jobs", jobsHandler.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", jobsHandler.GetJob)
	mux.HandleFunc("POST /api/jobs/{id}/apply", jobsHandler.ApplyJob)
	mux.HandleFunc("POST /api/jobs/{id}/dismiss", jobsHandler.DismissJob)

	return mux
}
