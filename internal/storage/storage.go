// Package storage defines the transactional key/value contract that backs
// resolver state. Every resolver invocation runs inside exactly one Txn and
// either commits all of its writes or none of them.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	xerrors "Attest-Resolver/internal/errors"
)

// Reader exposes point reads.
type Reader interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

// Txn is a unit of work against the store. Reads observe the transaction's
// own pending writes. Nothing becomes visible to other transactions until
// Commit succeeds.
type Txn interface {
	Reader
	Put(ctx context.Context, key string, value []byte) error
	Commit(ctx context.Context) error
	Rollback() error
}

// Store opens transactions.
type Store interface {
	Begin(ctx context.Context) (Txn, error)
	Close() error
}

// ReadOnlyBeginner is implemented by stores that can open a transaction
// which never takes write locks.
type ReadOnlyBeginner interface {
	BeginReadOnly(ctx context.Context) (Txn, error)
}

// BeginTxn opens a transaction on s. Read-only transactions use
// BeginReadOnly when s provides it.
func BeginTxn(ctx context.Context, s Store, readOnly bool) (Txn, error) {
	if readOnly {
		if ro, ok := s.(ReadOnlyBeginner); ok {
			return ro.BeginReadOnly(ctx)
		}
	}
	return s.Begin(ctx)
}

// ContractKey namespaces a slot under the owning contract address.
func ContractKey(contract common.Address, slot string) string {
	return "c/" + strings.ToLower(contract.Hex()) + "/" + slot
}

// GetRLP loads and decodes an RLP value. The boolean reports whether the
// key existed.
func GetRLP(ctx context.Context, r Reader, key string, out any) (bool, error) {
	raw, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, xerrors.Wrap(xerrors.CodeStorageFailure, err, fmt.Sprintf("解码状态 %s 失败", key))
	}
	return true, nil
}

// PutRLP encodes value with RLP and stores it under key.
func PutRLP(ctx context.Context, txn Txn, key string, value any) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, fmt.Sprintf("编码状态 %s 失败", key))
	}
	return txn.Put(ctx, key, raw)
}
