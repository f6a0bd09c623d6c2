package auth

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	xerrors "Attest-Resolver/internal/errors"
)

// Invocation identifies one call of a contract method with its arguments.
// Args must be RLP encodable; amounts are carried as decimal strings so that
// negative values can still be signed and then rejected by validation.
type Invocation struct {
	Contract common.Address
	Method   string
	Args     []any
}

// NewInvocation builds an Invocation.
func NewInvocation(contract common.Address, method string, args ...any) Invocation {
	return Invocation{Contract: contract, Method: method, Args: args}
}

// Digest returns the EIP-191 text hash of
// keccak256(rlp([contract, method, nonce, args])).
func (inv Invocation) Digest(nonce uint64) (common.Hash, error) {
	args := inv.Args
	if args == nil {
		args = []any{}
	}
	payload, err := rlp.EncodeToBytes([]any{inv.Contract, inv.Method, nonce, args})
	if err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.CodeInvalidArgument, err, fmt.Sprintf("编码调用 %s 失败", inv.Method))
	}
	return common.BytesToHash(accounts.TextHash(crypto.Keccak256(payload))), nil
}

// Sign produces a proof for inv with the given key and nonce.
func Sign(key *ecdsa.PrivateKey, inv Invocation, nonce uint64) (Proof, error) {
	digest, err := inv.Digest(nonce)
	if err != nil {
		return Proof{}, err
	}
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return Proof{}, fmt.Errorf("签名失败: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return Proof{
		Signer:    crypto.PubkeyToAddress(key.PublicKey),
		Nonce:     nonce,
		Signature: sig,
	}, nil
}
