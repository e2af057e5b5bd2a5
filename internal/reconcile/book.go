// Package reconcile owns the ledger state of one period: the account
// directory, the working set of source transactions, the ledger entries and
// the reconciliation links between them.
//
// Book is the only writer of transaction status. Every mutation is applied
// to a copy of the state, checked, optionally written through to the period
// store, and only then made visible, so a failure at any step leaves the
// previous state untouched.
package reconcile

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/bookkeeper/internal/accounts"
	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/rs/zerolog"
)

// PeriodStore persists period snapshots. *store.Repository implements it.
type PeriodStore interface {
	LoadPeriod(ctx context.Context, id string) (domain.Snapshot, error)
	SavePeriod(ctx context.Context, id string, snap domain.Snapshot) error
	DeletePeriod(ctx context.Context, id string) error
	ListPeriods(ctx context.Context) ([]string, error)
}

// state is the full mutable ledger. It is never shared between Book
// generations: mutations work on a clone.
type state struct {
	accounts *accounts.Directory
	txs      []domain.Transaction
	entries  []domain.Entry
	links    map[string]domain.Link // keyed by transaction id
}

func newState() *state {
	return &state{
		accounts: accounts.NewDirectory(),
		links:    make(map[string]domain.Link),
	}
}

func (s *state) clone() *state {
	out := &state{
		accounts: s.accounts.Clone(),
		txs:      make([]domain.Transaction, len(s.txs)),
		entries:  make([]domain.Entry, len(s.entries)),
		links:    make(map[string]domain.Link, len(s.links)),
	}
	copy(out.txs, s.txs)
	for i, e := range s.entries {
		out.entries[i] = e.Clone()
	}
	for k, v := range s.links {
		out.links[k] = v
	}
	return out
}

func (s *state) txIndex(id string) int {
	for i := range s.txs {
		if s.txs[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *state) entryIndex(id string) int {
	for i := range s.entries {
		if s.entries[i].ID == id {
			return i
		}
	}
	return -1
}

// linksForEntry returns the transaction ids linked to entryID, sorted.
func (s *state) linksForEntry(entryID string) []string {
	var ids []string
	for txID, l := range s.links {
		if l.EntryID == entryID {
			ids = append(ids, txID)
		}
	}
	sort.Strings(ids)
	return ids
}

// setStatus is the single place a transaction status is written. Links for
// transactions outside the working set are kept without a status to flip.
func (s *state) setStatus(txID string, st domain.Status) {
	if i := s.txIndex(txID); i >= 0 {
		s.txs[i].Status = st
	}
}

func (s *state) addLink(l domain.Link) {
	s.links[l.TransactionID] = l
	s.setStatus(l.TransactionID, domain.StatusLinked)
}

func (s *state) removeLink(txID string) {
	delete(s.links, txID)
	s.setStatus(txID, domain.StatusUnlinked)
}

// Book serializes all access to one period's ledger state.
type Book struct {
	mu  sync.Mutex
	st  *state
	log zerolog.Logger
	now func() time.Time

	repo     PeriodStore
	periodID string
	autosave bool

	// savedAccounts is the directory as of the last explicit save or load.
	// Autosaves write it instead of unsaved directory drafts.
	savedAccounts []domain.Account
}

// Option configures a Book.
type Option func(*Book)

// WithStore sets the period store used by SavePeriod, LoadPeriod and
// DeletePeriod.
func WithStore(repo PeriodStore) Option {
	return func(b *Book) { b.repo = repo }
}

// WithAutosave writes every ledger mutation through to repo under periodID
// before it becomes visible. A failed write rolls the mutation back.
func WithAutosave(repo PeriodStore, periodID string) Option {
	return func(b *Book) {
		b.repo = repo
		b.periodID = periodID
		b.autosave = true
	}
}

// WithLogger sets the logger used for mutation events.
func WithLogger(log zerolog.Logger) Option {
	return func(b *Book) { b.log = log }
}

// WithClock overrides time.Now for link and snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Book) { b.now = now }
}

// NewBook returns an empty book whose directory holds only the suspense
// account.
func NewBook(opts ...Option) *Book {
	b := &Book{
		st:  newState(),
		log: zerolog.Nop(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.savedAccounts = b.st.accounts.List()
	return b
}

// PeriodID returns the id of the period last saved or loaded.
func (b *Book) PeriodID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.periodID
}

// mutate applies fn to a copy of the state and commits it only when fn
// succeeds, the invariants hold and the autosave (if any) succeeds.
func (b *Book) mutate(ctx context.Context, op string, fn func(s *state) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := b.st.clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := checkInvariants(next); err != nil {
		b.log.Error().Err(err).Str("op", op).Msg("mutation would break ledger invariants")
		return err
	}
	if b.autosave {
		accts := referencedAccounts(next, b.savedAccounts)
		if err := b.repo.SavePeriod(ctx, b.periodID, b.snapshotOf(next, accts)); err != nil {
			b.log.Warn().Err(err).Str("op", op).Str("period_id", b.periodID).Msg("autosave failed, mutation rolled back")
			return err
		}
		b.savedAccounts = accts
	}
	b.st = next
	return nil
}

// referencedAccounts returns saved plus every unsaved account that an entry
// line or a link of s points at, so a reloaded bundle resolves all of them.
func referencedAccounts(s *state, saved []domain.Account) []domain.Account {
	known := make(map[string]bool, len(saved))
	for _, a := range saved {
		known[a.ID] = true
	}
	out := saved
	add := func(id string) {
		if id == "" || known[id] {
			return
		}
		known[id] = true
		if a, ok := s.accounts.Get(id); ok {
			if len(out) == len(saved) {
				out = append(make([]domain.Account, 0, len(saved)+1), saved...)
			}
			out = append(out, a)
		}
	}
	for _, e := range s.entries {
		for _, l := range e.Lines {
			add(l.AccountID)
		}
	}
	for _, l := range s.links {
		add(l.BankAccountID)
	}
	return out
}

// locked runs fn against the current state under the lock.
func (b *Book) locked(fn func(s *state)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b.st)
}

func (b *Book) snapshotOf(s *state, accts []domain.Account) domain.Snapshot {
	snap := domain.Snapshot{
		Version:      domain.SnapshotVersion,
		PeriodID:     b.periodID,
		SavedAt:      b.now().UTC(),
		Accounts:     make([]domain.Account, len(accts)),
		Transactions: make([]domain.Transaction, len(s.txs)),
		Entries:      make([]domain.Entry, len(s.entries)),
		Links:        make([]domain.Link, 0, len(s.links)),
	}
	copy(snap.Accounts, accts)
	copy(snap.Transactions, s.txs)
	for i, e := range s.entries {
		snap.Entries[i] = e.Clone()
	}
	for _, l := range s.links {
		snap.Links = append(snap.Links, l)
	}
	sort.Slice(snap.Links, func(i, j int) bool {
		return snap.Links[i].TransactionID < snap.Links[j].TransactionID
	})
	return snap
}
