package auth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	xerrors "Attest-Resolver/internal/errors"
)

// Verifier checks that a proof authorises an invocation.
type Verifier interface {
	Verify(inv Invocation, proof Proof) error
}

// SignatureVerifier recovers the signer from a 65 byte secp256k1 signature.
type SignatureVerifier struct{}

// Verify implements Verifier.
func (SignatureVerifier) Verify(inv Invocation, proof Proof) error {
	if len(proof.Signature) != crypto.SignatureLength {
		return xerrors.New(xerrors.CodeNotAuthorized, "签名长度无效")
	}
	digest, err := inv.Digest(proof.Nonce)
	if err != nil {
		return err
	}
	sig := make([]byte, len(proof.Signature))
	copy(sig, proof.Signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeNotAuthorized, err, "无法从签名恢复公钥")
	}
	if recovered := crypto.PubkeyToAddress(*pub); recovered != proof.Signer {
		return xerrors.New(xerrors.CodeNotAuthorized,
			fmt.Sprintf("签名者不匹配: 期望 %s 实际 %s", proof.Signer.Hex(), recovered.Hex()))
	}
	return nil
}

// TrustAll accepts every proof that names a signer.
type TrustAll struct{}

// Verify implements Verifier.
func (TrustAll) Verify(_ Invocation, proof Proof) error {
	if proof.Signer == (common.Address{}) {
		return xerrors.New(xerrors.CodeNotAuthorized, "缺少签名者")
	}
	return nil
}
