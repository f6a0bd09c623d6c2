package reward

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
		p.Admin, p.Token, resolver.AmountArg(p.RewardAmount), p.ProtocolCaller)
}

// SetRewardAmountInvocation is what the admin signs for SetRewardAmount.
func SetRewardAmountInvocation(contract, caller common.Address, amount *big.Int) auth.Invocation {
	return auth.NewInvocation(contract, MethodSetRewardAmount, caller, resolver.AmountArg(amount))
}

// FundRewardPoolInvocation is what the admin signs for FundRewardPool.
func FundRewardPoolInvocation(contract, caller common.Address, amount *big.Int) auth.Invocation {
	return auth.NewInvocation(contract, MethodFundRewardPool, caller, resolver.AmountArg(amount))
}

// Operations implements resolver.Operator.
func (r *Resolver) Operations() []string {
	return []string{MethodSetRewardAmount, MethodFundRewardPool}
}

// Operate implements resolver.Operator.
func (r *Resolver) Operate(ctx context.Context, name string, proofs auth.Proofs, op resolver.Operation) error {
	switch name {
	case MethodSetRewardAmount:
		return r.SetRewardAmount(ctx, proofs, op.Caller, op.Amount)
	case MethodFundRewardPool:
		return r.FundRewardPool(ctx, proofs, op.Caller, op.Amount)
	default:
		return xerrors.New(xerrors.CodeNotFound, fmt.Sprintf("奖励解析器不支持操作 %s", name))
	}
}

// Invocation returns the invocation a signer must sign for the named
// administrative operation.
func Invocation(contract common.Address, name string, op resolver.Operation) (auth.Invocation, error) {
	switch name {
	case MethodSetRewardAmount:
		return SetRewardAmountInvocation(contract, op.Caller, op.Amount), nil
	case MethodFundRewardPool:
		return FundRewardPoolInvocation(contract, op.Caller, op.Amount), nil
	default:
		return auth.Invocation{}, xerrors.New(xerrors.CodeNotFound, fmt.Sprintf("奖励解析器不支持操作 %s", name))
	}
}
