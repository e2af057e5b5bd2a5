package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dvloznov/bookkeeper/internal/api/middleware"
	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/dvloznov/bookkeeper/internal/export"
	"github.com/dvloznov/bookkeeper/internal/reconcile"
	"github.com/rs/zerolog"
)

// PeriodsHandler handles saved periods, exports and the consistency check.
type PeriodsHandler struct {
	book *reconcile.Book
	log  zerolog.Logger
}

// NewPeriodsHandler creates a new periods handler.
func NewPeriodsHandler(book *reconcile.Book, log zerolog.Logger) *PeriodsHandler {
	return &PeriodsHandler{book: book, log: log}
}

// ListPeriods handles GET /api/periods
func (h *PeriodsHandler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	ids, err := h.book.ListPeriods(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"periods": ids,
		"current": h.book.PeriodID(),
	})
}

// SavePeriod handles POST /api/periods/{id}/save
func (h *PeriodsHandler) SavePeriod(w http.ResponseWriter, r *http.Request) {
	if err := h.book.SavePeriod(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LoadPeriod handles POST /api/periods/{id}/load
func (h *PeriodsHandler) LoadPeriod(w http.ResponseWriter, r *http.Request) {
	if err := h.book.LoadPeriod(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	snap := h.book.Snapshot()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"periodId":     snap.PeriodID,
		"accounts":     len(snap.Accounts),
		"entries":      len(snap.Entries),
		"transactions": len(snap.Transactions),
	})
}

// DeletePeriod handles DELETE /api/periods/{id}
func (h *PeriodsHandler) DeletePeriod(w http.ResponseWriter, r *http.Request) {
	if err := h.book.DeletePeriod(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSnapshot handles GET /api/snapshot. The bundle can be restored later
// with RestoreSnapshot.
func (h *PeriodsHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.book.Snapshot())
}

// RestoreSnapshot handles PUT /api/snapshot. A bundle that breaks the ledger
// invariants is rejected and the current state is kept.
func (h *PeriodsHandler) RestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap domain.Snapshot
	if !decode(w, r, &snap) {
		return
	}
	if err := h.book.Restore(snap); err != nil {
		if errors.Is(err, reconcile.ErrInconsistent) {
			middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeDomainError(w, r, err)
		return
	}
	h.log.Info().Str("period_id", snap.PeriodID).Int("entries", len(snap.Entries)).Msg("Snapshot restored")
	w.WriteHeader(http.StatusNoContent)
}

// ExportEntries handles GET /api/export/entries.csv
func (h *PeriodsHandler) ExportEntries(w http.ResponseWriter, r *http.Request) {
	rows := export.EntryRows(h.book.Snapshot())
	h.writeCSV(w, r, "entries", func() error { return export.WriteEntriesCSV(w, rows) })
}

// ExportTransactions handles GET /api/export/transactions.csv
func (h *PeriodsHandler) ExportTransactions(w http.ResponseWriter, r *http.Request) {
	rows := export.TransactionRows(h.book.Snapshot())
	h.writeCSV(w, r, "transactions", func() error { return export.WriteTransactionsCSV(w, rows) })
}

func (h *PeriodsHandler) writeCSV(w http.ResponseWriter, r *http.Request, name string, write func() error) {
	filename := name + ".csv"
	if period := h.book.PeriodID(); period != "" {
		filename = fmt.Sprintf("%s-%s.csv", period, name)
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := write(); err != nil {
		// Headers are already sent.
		h.log.Error().Err(err).Str("export", name).Msg("Failed to write CSV export")
	}
}

// CheckInvariants handles GET /api/invariants
func (h *PeriodsHandler) CheckInvariants(w http.ResponseWriter, r *http.Request) {
	if err := h.book.CheckInvariants(); err != nil {
		h.log.Error().Err(err).Msg("Ledger consistency check failed")
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"consistent": false,
			"error":      err.Error(),
		})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"consistent": true})
}
