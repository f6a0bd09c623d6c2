package auth

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	xerrors "Attest-Resolver/internal/errors"
)

// Proof is a caller's capability for one invocation: a signature by Signer
// over the invocation digest bound to Nonce.
type Proof struct {
	Signer    common.Address `json:"signer"`
	Nonce     uint64         `json:"nonce"`
	Signature hexutil.Bytes  `json:"signature"`
}

// Proofs is the explicit capability set passed to every resolver entry point.
type Proofs []Proof

// For returns the proof presented by addr, if any.
func (p Proofs) For(addr common.Address) (Proof, bool) {
	for _, proof := range p {
		if proof.Signer == addr {
			return proof, true
		}
	}
	return Proof{}, false
}

// Signers lists the addresses that presented a proof, in order.
func (p Proofs) Signers() []common.Address {
	out := make([]common.Address, 0, len(p))
	for _, proof := range p {
		out = append(out, proof.Signer)
	}
	return out
}

// Mode selects the proof verifier.
type Mode string

const (
	// ModeSignature verifies secp256k1 signatures over the invocation digest.
	ModeSignature Mode = "signature"
	// ModeTrustAll accepts any proof whose signer matches. Development and tests only.
	ModeTrustAll Mode = "trust_all"
)

// NewVerifier builds the verifier for mode.
func NewVerifier(mode Mode) (Verifier, error) {
	switch Mode(strings.ToLower(string(mode))) {
	case "", ModeSignature:
		return SignatureVerifier{}, nil
	case ModeTrustAll:
		return TrustAll{}, nil
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("未知的认证模式: %s", mode))
	}
}

// RequireRole fails with NOT_AUTHORIZED unless caller is the stored
// privileged address.
func RequireRole(caller, stored common.Address) error {
	if caller != stored {
		return xerrors.New(xerrors.CodeNotAuthorized, fmt.Sprintf("调用方 %s 不具备所需角色", caller.Hex()))
	}
	return nil
}
