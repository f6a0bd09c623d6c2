package fee

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"Attest-Resolver/internal/auth"
	xerrors "Attest-Resolver/internal/errors"
	"Attest-Resolver/internal/resolver"
)

// InitializeInvocation is what the admin signs for Initialize.
func InitializeInvocation(contract common.Address, p Params) auth.Invocation {
	return auth.NewInvocation(contract, MethodInitialize,
		p.Admin, p.Token, resolver.AmountArg(p.Fee), p.Recipient)
}

// SetAttestationFeeInvocation is what the admin signs for SetAttestationFee.
func SetAttestationFeeInvocation(contract, caller common.Address, fee *big.Int) auth.Invocation {
	return auth.NewInvocation(contract, MethodSetAttestationFee, caller, resolver.AmountArg(fee))
}

// SetFeeRecipientInvocation is what the admin signs for SetFeeRecipient.
func SetFeeRecipientInvocation(contract, caller, recipient common.Address) auth.Invocation {
	return auth.NewInvocation(contract, MethodSetFeeRecipient, caller, recipient)
}

// WithdrawFeesInvocation is what a recipient signs for WithdrawFees.
func WithdrawFeesInvocation(contract, caller common.Address) auth.Invocation {
	return auth.NewInvocation(contract, MethodWithdrawFees, caller)
}

// Operations implements resolver.Operator.
func (r *Resolver) Operations() []string {
	return []string{MethodSetAttestationFee, MethodSetFeeRecipient, MethodWithdrawFees}
}

// Operate implements resolver.Operator.
func (r *Resolver) Operate(ctx context.Context, name string, proofs auth.Proofs, op resolver.Operation) error {
	switch name {
	case MethodSetAttestationFee:
		return r.SetAttestationFee(ctx, proofs, op.Caller, op.Amount)
	case MethodSetFeeRecipient:
		return r.SetFeeRecipient(ctx, proofs, op.Caller, op.Recipient)
	case MethodWithdrawFees:
		return r.WithdrawFees(ctx, proofs, op.Caller)
	default:
		return unsupported(name)
	}
}

// Invocation returns the invocation a signer must sign for the named
// administrative operation.
func Invocation(contract common.Address, name string, op resolver.Operation) (auth.Invocation, error) {
	switch name {
	case MethodSetAttestationFee:
		return SetAttestationFeeInvocation(contract, op.Caller, op.Amount), nil
	case MethodSetFeeRecipient:
		return SetFeeRecipientInvocation(contract, op.Caller, op.Recipient), nil
	case MethodWithdrawFees:
		return WithdrawFeesInvocation(contract, op.Caller), nil
	default:
		return auth.Invocation{}, unsupported(name)
	}
}

func unsupported(name string) error {
	return xerrors.New(xerrors.CodeNotFound, fmt.Sprintf("手续费解析器不支持操作 %s", name))
}
