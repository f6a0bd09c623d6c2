// Package resolver defines the contract every attestation resolver
// implements: the registry calls OnAttest when an attestation is created,
// OnRevoke when it is revoked and OnResolve when it is settled.
package resolver

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"Attest-Resolver/internal/auth"
)

// Kind tags resolver variants.
type Kind string

const (
	KindDefault       Kind = "Default"
	KindAuthority     Kind = "Authority"
	KindTokenReward   Kind = "TokenReward"
	KindFeeCollection Kind = "FeeCollection"
	KindCustom        Kind = "Custom"
)

// Metadata is the static self-description of a resolver.
type Metadata struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Kind        Kind   `json:"kind"`
}

// Resolver is the lifecycle hook set invoked by the attestation registry.
// Every call except Metadata requires the resolver to be initialized.
type Resolver interface {
	Metadata() Metadata
	Address() common.Address
	OnAttest(ctx context.Context, proofs auth.Proofs, att Attestation) (bool, error)
	OnRevoke(ctx context.Context, proofs auth.Proofs, att Attestation) (bool, error)
	OnResolve(ctx context.Context, proofs auth.Proofs, uid common.Hash, attester common.Address) error
}

// Operation carries the arguments of an administrative call. Fields not used
// by an operation are ignored.
type Operation struct {
	Caller    common.Address `json:"caller"`
	Amount    *big.Int       `json:"amount,omitempty"`
	Recipient common.Address `json:"recipient,omitempty"`
}

// Operator is implemented by resolvers that accept administrative calls by
// name.
type Operator interface {
	Operations() []string
	Operate(ctx context.Context, name string, proofs auth.Proofs, op Operation) error
}

// Inspector is implemented by resolvers that expose their accounting state.
type Inspector interface {
	Initialized(ctx context.Context) (bool, error)
	State(ctx context.Context) (any, error)
	Account(ctx context.Context, addr common.Address) (any, error)
}
