package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/dvloznov/bookkeeper/internal/store"
	"github.com/dvloznov/bookkeeper/internal/store/file"
	"github.com/dvloznov/bookkeeper/internal/store/inmemory"
)

func sampleSnapshot() domain.Snapshot {
	return domain.Snapshot{
		SavedAt:  time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC),
		Accounts: []domain.Account{{ID: "a1", Code: "1000", Name: "Cash", Type: "Asset", IsBankAccount: true}},
		Links:    []domain.Link{{TransactionID: "tx_1", EntryID: "e1", BankAccountID: "a1"}},
	}
}

func backends(t *testing.T) map[string]store.BlobStore {
	fs, err := file.NewBlobStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return map[string]store.BlobStore{
		"inmemory": inmemory.NewBlobStore(),
		"file":     fs,
	}
}

func TestRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, blobs := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := store.NewRepository(blobs)

			if _, err := repo.LoadPeriod(ctx, "2024-03"); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("LoadPeriod on empty store: %v", err)
			}
			if err := repo.SavePeriod(ctx, "2024-03", sampleSnapshot()); err != nil {
				t.Fatalf("SavePeriod: %v", err)
			}
			if err := repo.SavePeriod(ctx, "2024-04", sampleSnapshot()); err != nil {
				t.Fatalf("SavePeriod: %v", err)
			}

			got, err := repo.LoadPeriod(ctx, "2024-03")
			if err != nil {
				t.Fatalf("LoadPeriod: %v", err)
			}
			if got.PeriodID != "2024-03" || got.Version != domain.SnapshotVersion {
				t.Errorf("header = %q v%d", got.PeriodID, got.Version)
			}
			if len(got.Accounts) != 1 || got.Accounts[0].Code != "1000" || !got.Accounts[0].IsBankAccount {
				t.Errorf("accounts = %+v", got.Accounts)
			}

			ids, err := repo.ListPeriods(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(ids) != 2 || ids[0] != "2024-03" || ids[1] != "2024-04" {
				t.Errorf("ListPeriods = %v", ids)
			}

			if err := repo.DeletePeriod(ctx, "2024-03"); err != nil {
				t.Fatalf("DeletePeriod: %v", err)
			}
			if err := repo.DeletePeriod(ctx, "2024-03"); !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("second DeletePeriod: %v", err)
			}
		})
	}
}

func TestRepository_InvalidPeriodID(t *testing.T) {
	repo := store.NewRepository(inmemory.NewBlobStore())
	for _, id := range []string{"", "  ", "../etc", "a/b", ".."} {
		if err := repo.SavePeriod(context.Background(), id, domain.Snapshot{}); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("SavePeriod(%q) = %v, want validation error", id, err)
		}
	}
}

func TestRepository_CorruptBlob(t *testing.T) {
	ctx := context.Background()
	blobs := inmemory.NewBlobStore()
	if err := blobs.Put(ctx, "periods/bad.json", []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	_, err := store.NewRepository(blobs).LoadPeriod(ctx, "bad")
	if !errors.Is(err, domain.ErrExternalService) {
		t.Errorf("LoadPeriod(corrupt) = %v, want external service error", err)
	}
}

func TestRepository_PutFailure(t *testing.T) {
	ctx := context.Background()
	blobs := inmemory.NewBlobStore()
	boom := errors.New("disk full")
	blobs.FailPuts(0, boom)

	err := store.NewRepository(blobs).SavePeriod(ctx, "p", sampleSnapshot())
	if !errors.Is(err, domain.ErrExternalService) || !errors.Is(err, boom) {
		t.Errorf("SavePeriod = %v", err)
	}
}

func TestInmemoryFailPutsAfter(t *testing.T) {
	ctx := context.Background()
	blobs := inmemory.NewBlobStore()
	blobs.FailPuts(1, errors.New("boom"))
	if err := blobs.Put(ctx, "a", nil); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := blobs.Put(ctx, "b", nil); err == nil {
		t.Fatal("second put should fail")
	}
	blobs.FailPuts(0, nil)
	if err := blobs.Put(ctx, "c", nil); err != nil {
		t.Fatalf("put after clearing: %v", err)
	}
	if blobs.Puts() != 2 {
		t.Errorf("Puts = %d", blobs.Puts())
	}
}
