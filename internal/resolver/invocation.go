package resolver

import (
	"github.com/ethereum/go-ethereum/common"

	"Attest-Resolver/internal/auth"
)

// Lifecycle method names, shared by every resolver so that a proof signed
// for one hook can never be used for another.
const (
	MethodOnAttest  = "onattest"
	MethodOnRevoke  = "onrevoke"
	MethodOnResolve = "onresolve"
)

// AttestInvocation is the invocation an attester signs for OnAttest or
// OnRevoke of att at contract.
func AttestInvocation(contract common.Address, method string, att Attestation) auth.Invocation {
	return auth.NewInvocation(contract, method, att.UID, att.SchemaUID, att.Attester, att.Recipient)
}

// ResolveInvocation is the invocation signed for OnResolve.
func ResolveInvocation(contract common.Address, uid common.Hash, attester common.Address) auth.Invocation {
	return auth.NewInvocation(contract, MethodOnResolve, uid, attester)
}
