package resolver

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"Attest-Resolver/internal/auth"
	xerrors "Attest-Resolver/internal/errors"
)

type stubResolver struct {
	addr common.Address
	kind Kind
}

func (s stubResolver) Metadata() Metadata {
	return Metadata{Name: "stub", Version: "0.0.1", Kind: s.kind}
}

func (s stubResolver) Address() common.Address { return s.addr }

func (stubResolver) OnAttest(context.Context, auth.Proofs, Attestation) (bool, error) {
	return true, nil
}

func (stubResolver) OnRevoke(context.Context, auth.Proofs, Attestation) (bool, error) {
	return true, nil
}

func (stubResolver) OnResolve(context.Context, auth.Proofs, common.Hash, common.Address) error {
	return nil
}

func TestRegistryKeepsOrderAndRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	first := stubResolver{addr: common.HexToAddress("0x01"), kind: KindTokenReward}
	second := stubResolver{addr: common.HexToAddress("0x02"), kind: KindFeeCollection}

	if err := reg.Register("rewards", first); err != nil {
		t.Fatalf("register rewards: %v", err)
	}
	if err := reg.Register("fees", second); err != nil {
		t.Fatalf("register fees: %v", err)
	}

	entries := reg.List()
	if len(entries) != 2 || entries[0].Name != "rewards" || entries[1].Name != "fees" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[1].Metadata.Kind != KindFeeCollection {
		t.Fatalf("unexpected kind: %s", entries[1].Metadata.Kind)
	}

	if err := reg.Register("rewards", stubResolver{addr: common.HexToAddress("0x03")}); !errors.Is(err, xerrors.ErrConflict) {
		t.Fatalf("expected CONFLICT for duplicate name, got %v", err)
	}
	if err := reg.Register("copy", stubResolver{addr: first.addr}); !errors.Is(err, xerrors.ErrConflict) {
		t.Fatalf("expected CONFLICT for duplicate address, got %v", err)
	}
	if err := reg.Register("", first); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT for empty name, got %v", err)
	}

	if _, err := reg.Get("missing"); xerrors.CodeOf(err) != xerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	got, err := reg.Get("fees")
	if err != nil || got.Address() != second.addr {
		t.Fatalf("get fees: %v %v", got, err)
	}
}

func TestAmounts(t *testing.T) {
	cases := []struct {
		name    string
		amount  *big.Int
		wantErr bool
	}{
		{name: "zero", amount: big.NewInt(0)},
		{name: "positive", amount: big.NewInt(10_0000000)},
		{name: "negative", amount: big.NewInt(-1), wantErr: true},
		{name: "missing", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAmount("amount", tc.amount)
			if tc.wantErr {
				if !errors.Is(err, xerrors.ErrValidationFailed) {
					t.Fatalf("expected VALIDATION_FAILED, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			parsed, err := ParseAmount(AmountArg(tc.amount))
			if err != nil || parsed.Cmp(tc.amount) != 0 {
				t.Fatalf("round trip %s: %v %v", tc.amount, parsed, err)
			}
		})
	}

	if _, err := ParseAmount("12abc"); !errors.Is(err, xerrors.ErrValidationFailed) {
		t.Fatalf("expected VALIDATION_FAILED for malformed amount, got %v", err)
	}
}

func TestLifecycleInvocationsAreDistinct(t *testing.T) {
	contract := common.HexToAddress("0xA1D0")
	att := Attestation{
		UID:       common.HexToHash("0x01"),
		SchemaUID: common.HexToHash("0x02"),
		Attester:  common.HexToAddress("0xA77E"),
		Recipient: common.HexToAddress("0xBEEF"),
	}
	attest, err := AttestInvocation(contract, MethodOnAttest, att).Digest(1)
	if err != nil {
		t.Fatalf("attest digest: %v", err)
	}
	revoke, err := AttestInvocation(contract, MethodOnRevoke, att).Digest(1)
	if err != nil {
		t.Fatalf("revoke digest: %v", err)
	}
	resolve, err := ResolveInvocation(contract, att.UID, att.Attester).Digest(1)
	if err != nil {
		t.Fatalf("resolve digest: %v", err)
	}
	if attest == revoke || attest == resolve || revoke == resolve {
		t.Fatalf("lifecycle digests must differ")
	}
}
