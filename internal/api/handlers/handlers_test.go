package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/bookkeeper/internal/accounts"
	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/dvloznov/bookkeeper/internal/logger"
	"github.com/dvloznov/bookkeeper/internal/reconcile"
	"github.com/shopspring/decimal"
)

var day = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

type fixture struct {
	book  *reconcile.Book
	mux   http.Handler
	bank  domain.Account
	rent  domain.Account
	txIDs []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	book := reconcile.NewBook(reconcile.WithLogger(logger.Nop()))
	book.ImportAccounts([][]string{{"1000", "Bank", "Asset"}, {"6000", "Rent", "Expense"}})
	bank, _ := book.AccountByCode("1000")
	if err := book.UpdateAccount(bank.ID, accounts.FieldIsBankAccount, "true"); err != nil {
		t.Fatal(err)
	}
	bank, _ = book.AccountByCode("1000")
	rent, _ := book.AccountByCode("6000")

	res, err := book.ImportTransactions(context.Background(), []domain.Transaction{
		{Date: day, Description: "Rent March", Amount: decimal.RequireFromString("500"), Type: domain.TxDebit},
		{Date: day, Description: "Coffee", Amount: decimal.RequireFromString("4.50"), Type: domain.TxDebit},
	})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{
		book:  book,
		mux:   Routes(book, nil, logger.Nop()),
		bank:  bank,
		rent:  rent,
		txIDs: res.IDs,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) rentEntry(txIDs ...string) map[string]interface{} {
	return map[string]interface{}{
		"date":        "2024-03-15",
		"description": "Rent March",
		"lines": []map[string]string{
			{"accountId": f.rent.ID, "debit": "500"},
			{"accountId": f.bank.ID, "credit": "500"},
		},
		"transactionIds": txIDs,
		"bankAccountId":  f.bank.ID,
	}
}

func TestPostEntry_StatusMapping(t *testing.T) {
	f := newFixture(t)

	unbalanced := f.rentEntry()
	unbalanced["lines"] = []map[string]string{
		{"accountId": f.rent.ID, "debit": "500"},
		{"accountId": f.bank.ID, "credit": "450"},
	}
	badAmount := f.rentEntry()
	badAmount["lines"] = []map[string]string{
		{"accountId": f.rent.ID, "debit": "five hundred"},
		{"accountId": f.bank.ID, "credit": "500"},
	}

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
	}{
		{name: "posted and linked", body: f.rentEntry(f.txIDs[0]), wantStatus: http.StatusCreated},
		{name: "already linked", body: f.rentEntry(f.txIDs[0]), wantStatus: http.StatusConflict},
		{name: "unbalanced", body: unbalanced, wantStatus: http.StatusUnprocessableEntity},
		{name: "unparseable amount", body: badAmount, wantStatus: http.StatusUnprocessableEntity},
		{name: "unknown transaction", body: f.rentEntry("tx-missing"), wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/entries", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
		})
	}

	if len(f.book.Entries()) != 1 {
		t.Errorf("entries = %d, want 1", len(f.book.Entries()))
	}
	if err := f.book.CheckInvariants(); err != nil {
		t.Errorf("CheckInvariants: %v", err)
	}
}

func TestPostEntry_ValidationDetails(t *testing.T) {
	f := newFixture(t)
	body := f.rentEntry()
	body["date"] = ""

	rec := f.do(t, http.MethodPost, "/api/entries", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var resp struct {
		Error   string              `json:"error"`
		Details []domain.FieldError `json:"details"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, d := range resp.Details {
		if d.Field == "date" {
			found = true
		}
	}
	if !found {
		t.Errorf("details = %+v, want a date error", resp.Details)
	}
}

func TestDeleteAccount_SuspenseIsForbidden(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodDelete, "/api/accounts/"+f.book.Suspense().ID, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestUnlink_NotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodDelete, "/api/links/"+f.txIDs[1], nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestPeriods_WithoutStore(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/periods", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestInvalidBody(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/entries", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDraftFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/drafts", map[string]string{
		"transactionId": f.txIDs[0],
		"bankAccountId": f.bank.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create draft status = %d (body %s)", rec.Code, rec.Body)
	}
	var view draftView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if !view.Balanced || len(view.Entry.Lines) != 2 {
		t.Fatalf("draft = %+v", view)
	}
	draftID := view.Entry.ID
	offset := view.Entry.Lines[1]
	if offset.AccountID != f.book.Suspense().ID {
		t.Errorf("offset account = %s, want suspense", offset.AccountID)
	}

	rec = f.do(t, http.MethodPatch, "/api/drafts/"+draftID+"/lines/"+offset.ID, map[string]string{
		"field": "accountId",
		"value": f.rent.ID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("set line status = %d (body %s)", rec.Code, rec.Body)
	}

	// A two-line draft cannot lose a line.
	rec = f.do(t, http.MethodDelete, "/api/drafts/"+draftID+"/lines/"+offset.ID, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("remove line status = %d, want 422", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/drafts/"+draftID+"/post", map[string]interface{}{
		"transactionIds": []string{f.txIDs[0]},
		"bankAccountId":  f.bank.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("post draft status = %d (body %s)", rec.Code, rec.Body)
	}

	tx, err := f.book.Transaction(f.txIDs[0])
	if err != nil {
		t.Fatal(err)
	}
	if tx.Status != domain.StatusLinked {
		t.Errorf("status = %s, want linked", tx.Status)
	}
	e, _ := f.book.FindEntryForTransaction(f.txIDs[0])
	if e.Lines[1].AccountID != f.rent.ID {
		t.Errorf("posted offset account = %s, want rent", e.Lines[1].AccountID)
	}

	rec = f.do(t, http.MethodGet, "/api/drafts/"+draftID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("posted draft still present: status = %d", rec.Code)
	}

	// A linked transaction cannot seed another draft.
	rec = f.do(t, http.MethodPost, "/api/drafts", map[string]string{
		"transactionId": f.txIDs[0],
		"bankAccountId": f.bank.ID,
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("draft from linked tx status = %d, want 409", rec.Code)
	}
}

func TestDeleteEntry_UnlinksTransactions(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/entries", f.rentEntry(f.txIDs[0]))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body)
	}
	var posted domain.Entry
	if err := json.NewDecoder(rec.Body).Decode(&posted); err != nil {
		t.Fatal(err)
	}

	rec = f.do(t, http.MethodDelete, "/api/entries/"+posted.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	var resp struct {
		Unlinked []string `json:"unlinkedTransactionIds"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Unlinked) != 1 || resp.Unlinked[0] != f.txIDs[0] {
		t.Errorf("unlinked = %v", resp.Unlinked)
	}

	rec = f.do(t, http.MethodGet, "/api/transactions?status=unlinked", nil)
	var txs []domain.Transaction
	if err := json.NewDecoder(rec.Body).Decode(&txs); err != nil {
		t.Fatal(err)
	}
	if len(txs) != 2 {
		t.Errorf("unlinked transactions = %d, want 2", len(txs))
	}
}

func TestExportEntriesCSV(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(t, http.MethodPost, "/api/entries", f.rentEntry(f.txIDs[0])); rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/api/export/entries.csv", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("csv lines = %d, want header and two rows:\n%s", len(lines), rec.Body)
	}
	if !strings.HasPrefix(lines[0], "entry_id,") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(rec.Body.String(), f.txIDs[0]) {
		t.Errorf("export does not mention the linked transaction")
	}
}

func TestJobsNotRegisteredWithoutAssistant(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/suggestions", map[string]string{"memo": "x"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestPostCashbook(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/entries/cashbook", map[string]string{
		"date":          "2024-03-15",
		"description":   "Coffee",
		"bankAccountId": f.bank.ID,
		"accountId":     f.rent.ID,
		"payment":       "4.50",
		"transactionId": f.txIDs[1],
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body)
	}
	var posted domain.Entry
	if err := json.NewDecoder(rec.Body).Decode(&posted); err != nil {
		t.Fatal(err)
	}
	if posted.Kind != domain.KindCashbook || len(posted.Lines) != 2 {
		t.Fatalf("posted = %+v", posted)
	}
	if !posted.Lines[0].Credit.Equal(decimal.RequireFromString("4.50")) {
		t.Errorf("bank line credit = %s, want 4.50", posted.Lines[0].Credit)
	}
	if id, ok := f.book.FindTransactionForEntry(posted.ID); !ok || id != f.txIDs[1] {
		t.Errorf("linked transaction = %q, %v", id, ok)
	}

	rec = f.do(t, http.MethodPost, "/api/entries/cashbook", map[string]string{
		"date":          "2024-03-15",
		"bankAccountId": f.bank.ID,
		"accountId":     f.rent.ID,
		"payment":       "-3",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("negative payment status = %d, want 422", rec.Code)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(t, http.MethodPost, "/api/entries", f.rentEntry(f.txIDs[0])); rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/api/snapshot", nil)
	var snap domain.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}

	other := newFixture(t)
	if rec := other.do(t, http.MethodPut, "/api/snapshot", snap); rec.Code != http.StatusNoContent {
		t.Fatalf("restore status = %d (body %s)", rec.Code, rec.Body)
	}
	if e, ok := other.book.FindEntryForTransaction(f.txIDs[0]); !ok || e.Description != "Rent March" {
		t.Errorf("restored link = %+v, %v", e, ok)
	}

	// A bundle whose link points at a missing entry is refused.
	snap.Entries = nil
	if rec := other.do(t, http.MethodPut, "/api/snapshot", snap); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("inconsistent restore status = %d, want 422", rec.Code)
	}
	if err := other.book.CheckInvariants(); err != nil {
		t.Errorf("state changed by rejected restore: %v", err)
	}
}

func TestPostEntry_DuplicateLineIDs(t *testing.T) {
	f := newFixture(t)
	body := f.rentEntry()
	body["lines"] = []map[string]string{
		{"id": "line-1", "accountId": f.rent.ID, "debit": "500"},
		{"id": "line-1", "accountId": f.bank.ID, "credit": "500"},
	}

	rec := f.do(t, http.MethodPost, "/api/entries", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 (body %s)", rec.Code, rec.Body)
	}
	var resp struct {
		Details []domain.FieldError `json:"details"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Details) != 1 || resp.Details[0].Field != "id" || resp.Details[0].LineID != "line-1" {
		t.Errorf("details = %+v", resp.Details)
	}
	if len(f.book.Entries()) != 0 {
		t.Error("entry with duplicate line ids was posted")
	}
}
