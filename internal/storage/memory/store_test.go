package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	xerrors "Attest-Resolver/internal/errors"
	"Attest-Resolver/internal/storage"
)

func TestCommitMakesWritesVisible(t *testing.T) {
	ctx := context.Background()
	store := New()

	txn, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := txn.Put(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := txn.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v1" {
		t.Fatalf("read own write: %q %v %v", got, ok, err)
	}

	other, _ := store.Begin(ctx)
	if _, ok, _ := other.Get(ctx, "k"); ok {
		t.Fatalf("uncommitted write leaked to another transaction")
	}
	_ = other.Rollback()

	if err := txn.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 key, got %d", store.Len())
	}
}

func TestRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	store := New()

	txn, _ := store.Begin(ctx)
	_ = txn.Put(ctx, "k", []byte("v"))
	if err := txn.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("rollback leaked writes")
	}
	if err := txn.Put(ctx, "k", []byte("v")); err == nil {
		t.Fatalf("expected error using finished transaction")
	}
}

func TestConcurrentModificationConflicts(t *testing.T) {
	ctx := context.Background()
	store := New()

	first, _ := store.Begin(ctx)
	second, _ := store.Begin(ctx)

	if _, _, err := first.Get(ctx, "balance"); err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = first.Put(ctx, "balance", []byte{1})

	_, _, _ = second.Get(ctx, "balance")
	_ = second.Put(ctx, "balance", []byte{2})
	if err := second.Commit(ctx); err != nil {
		t.Fatalf("second commit: %v", err)
	}

	err := first.Commit(ctx)
	if !errors.Is(err, xerrors.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRLPHelpers(t *testing.T) {
	type record struct {
		Owner  common.Address
		Amount uint64
		Active bool
	}
	ctx := context.Background()
	store := New()
	key := storage.ContractKey(common.HexToAddress("0xAB"), "instance")
	if key != "c/0x00000000000000000000000000000000000000ab/instance" {
		t.Fatalf("unexpected key: %s", key)
	}

	txn, _ := store.Begin(ctx)
	in := record{Owner: common.HexToAddress("0x01"), Amount: 7, Active: true}
	if err := storage.PutRLP(ctx, txn, key, in); err != nil {
		t.Fatalf("put rlp: %v", err)
	}
	if err := txn.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	reader, _ := store.Begin(ctx)
	defer reader.Rollback()
	var out record
	ok, err := storage.GetRLP(ctx, reader, key, &out)
	if err != nil || !ok {
		t.Fatalf("get rlp: %v %v", ok, err)
	}
	if out != in {
		t.Fatalf("unexpected decoded record: %+v", out)
	}

	ok, err = storage.GetRLP(ctx, reader, "missing", &out)
	if err != nil || ok {
		t.Fatalf("missing key should report false without error")
	}
}
