// Package fee implements the fee collection resolver. Every created
// attestation pays a fixed token fee that accrues to the configured
// recipient until withdrawn.
package fee

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"Attest-Resolver/internal/auth"
	xerrors "Attest-Resolver/internal/errors"
	"Attest-Resolver/internal/host"
	"Attest-Resolver/internal/resolver"
)

const (
	MethodConstruct         = "construct"
	MethodInitialize        = "initialize"
	MethodSetAttestationFee = "set_attestation_fee"
	MethodSetFeeRecipient   = "set_fee_recipient"
	MethodWithdrawFees      = "withdraw_fees"
)

// Event topics.
const (
	TopicFeeCollected     = "FEE_COLLECTED"
	TopicFeesWithdrawn    = "FEES_WITHDRAWN"
	TopicFeeUpdated       = "FEE_UPDATED"
	TopicRecipientUpdated = "RECIPIENT_UPDATED"
)

// Params configures a fee resolver instance.
type Params struct {
	Admin     common.Address
	Token     common.Address
	Fee       *big.Int
	Recipient common.Address
}

type state struct {
	Admin          common.Address
	Token          common.Address
	Fee            *big.Int
	Recipient      common.Address
	TotalCollected *big.Int
	Initialized    bool
}

// Resolver is the fee collection resolver at one address.
type Resolver struct {
	host    *host.Host
	address common.Address
}

var (
	_ resolver.Resolver  = (*Resolver)(nil)
	_ resolver.Operator  = (*Resolver)(nil)
	_ resolver.Inspector = (*Resolver)(nil)
)

// New binds a fee resolver to addr on h.
func New(h *host.Host, addr common.Address) *Resolver {
	return &Resolver{host: h, address: addr}
}

// Address implements resolver.Resolver.
func (r *Resolver) Address() common.Address { return r.address }

// Metadata implements resolver.Resolver.
func (r *Resolver) Metadata() resolver.Metadata {
	return resolver.Metadata{
		Name:        "Fee Collection Resolver",
		Version:     "1.0.0",
		Description: "Collects token fees for attestations",
		Kind:        resolver.KindFeeCollection,
	}
}

// Construct initializes the instance at deployment time.
func (r *Resolver) Construct(ctx context.Context, p Params) error {
	inv := auth.NewInvocation(r.address, MethodConstruct)
	return r.host.Invoke(ctx, inv, nil, func(c *host.Context) error {
		if err := ensureFresh(c); err != nil {
			return err
		}
		if err := validateParams(c, p); err != nil {
			return err
		}
		return r.store(c, p)
	})
}

// Initialize is the legacy initializer; the admin named in p must sign.
func (r *Resolver) Initialize(ctx context.Context, proofs auth.Proofs, p Params) error {
	return r.host.Invoke(ctx, InitializeInvocation(r.address, p), proofs, func(c *host.Context) error {
		if err := ensureFresh(c); err != nil {
			return err
		}
		if err := validateParams(c, p); err != nil {
			return err
		}
		if err := c.RequireAuth(p.Admin); err != nil {
			return err
		}
		return r.store(c, p)
	})
}

func (r *Resolver) store(c *host.Context, p Params) error {
	st := &state{
		Admin:          p.Admin,
		Token:          p.Token,
		Fee:            new(big.Int).Set(p.Fee),
		Recipient:      p.Recipient,
		TotalCollected: new(big.Int),
		Initialized:    true,
	}
	if err := c.Save(st); err != nil {
		return err
	}
	return c.Put(recipientSlot(p.Recipient), true)
}

// SetAttestationFee changes the fee charged per attestation. Admin only.
func (r *Resolver) SetAttestationFee(ctx context.Context, proofs auth.Proofs, caller common.Address, fee *big.Int) error {
	return r.host.Invoke(ctx, SetAttestationFeeInvocation(r.address, caller, fee), proofs, func(c *host.Context) error {
		st, err := requireAdmin(c, caller)
		if err != nil {
			return err
		}
		if err := resolver.ValidateAmount("fee", fee); err != nil {
			return err
		}
		st.Fee = new(big.Int).Set(fee)
		if err := c.Save(st); err != nil {
			return err
		}
		c.Emit(TopicFeeUpdated, map[string]string{"fee": fee.String()})
		return nil
	})
}

// SetFeeRecipient redirects future fees to recipient. Fees already accrued
// under the previous recipient stay claimable by it.
func (r *Resolver) SetFeeRecipient(ctx context.Context, proofs auth.Proofs, caller, recipient common.Address) error {
	return r.host.Invoke(ctx, SetFeeRecipientInvocation(r.address, caller, recipient), proofs, func(c *host.Context) error {
		st, err := requireAdmin(c, caller)
		if err != nil {
			return err
		}
		previous := st.Recipient
		st.Recipient = recipient
		if err := c.Save(st); err != nil {
			return err
		}
		if err := c.Put(recipientSlot(recipient), true); err != nil {
			return err
		}
		c.Emit(TopicRecipientUpdated, map[string]string{
			"previous":  previous.Hex(),
			"recipient": recipient.Hex(),
		})
		return nil
	})
}

// OnAttest implements resolver.Resolver. With a non-zero fee the attester
// must sign and pay; the fee accrues to the current recipient.
func (r *Resolver) OnAttest(ctx context.Context, proofs auth.Proofs, att resolver.Attestation) (bool, error) {
	inv := resolver.AttestInvocation(r.address, resolver.MethodOnAttest, att)
	err := r.host.Invoke(ctx, inv, proofs, func(c *host.Context) error {
		st, err := requireInitialized(c)
		if err != nil {
			return err
		}
		if st.Fee.Sign() == 0 {
			return nil
		}
		if att.Attester == c.Contract() {
			return xerrors.New(xerrors.CodeValidationFailed, "付费方不能是解析器自身")
		}
		if err := c.RequireAuth(att.Attester); err != nil {
			return err
		}
		if err := c.Token(st.Token).Transfer(c.Ctx(), att.Attester, c.Contract(), st.Fee); err != nil {
			return err
		}
		accrued := new(big.Int)
		if _, err := c.Get(feesSlot(st.Recipient), accrued); err != nil {
			return err
		}
		if err := c.Put(feesSlot(st.Recipient), accrued.Add(accrued, st.Fee)); err != nil {
			return err
		}
		st.TotalCollected = new(big.Int).Add(st.TotalCollected, st.Fee)
		if err := c.Save(st); err != nil {
			return err
		}
		c.Emit(TopicFeeCollected, map[string]string{
			"uid":       att.UID.Hex(),
			"attester":  att.Attester.Hex(),
			"recipient": st.Recipient.Hex(),
			"amount":    st.Fee.String(),
		})
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// OnRevoke implements resolver.Resolver. Revocation is always allowed.
func (r *Resolver) OnRevoke(ctx context.Context, proofs auth.Proofs, att resolver.Attestation) (bool, error) {
	inv := resolver.AttestInvocation(r.address, resolver.MethodOnRevoke, att)
	if err := r.host.Invoke(ctx, inv, proofs, func(c *host.Context) error {
		_, err := requireInitialized(c)
		return err
	}); err != nil {
		return false, err
	}
	return true, nil
}

// OnResolve implements resolver.Resolver. Nothing is paid on settlement.
func (r *Resolver) OnResolve(ctx context.Context, proofs auth.Proofs, uid common.Hash, attester common.Address) error {
	inv := resolver.ResolveInvocation(r.address, uid, attester)
	return r.host.Invoke(ctx, inv, proofs, func(c *host.Context) error {
		_, err := requireInitialized(c)
		return err
	})
}

// WithdrawFees pays everything accrued under caller to caller. The caller
// must be the current recipient or a former one.
func (r *Resolver) WithdrawFees(ctx context.Context, proofs auth.Proofs, caller common.Address) error {
	return r.host.Invoke(ctx, WithdrawFeesInvocation(r.address, caller), proofs, func(c *host.Context) error {
		st, err := requireInitialized(c)
		if err != nil {
			return err
		}
		if err := c.RequireAuth(caller); err != nil {
			return err
		}
		if err := requireRecipient(c, st, caller); err != nil {
			return err
		}
		accrued := new(big.Int)
		if _, err := c.Get(feesSlot(caller), accrued); err != nil {
			return err
		}
		if accrued.Sign() == 0 {
			c.Logger().Debug("没有可提取的手续费", slog.String("recipient", caller.Hex()))
			return nil
		}
		if err := c.Token(st.Token).Transfer(c.Ctx(), c.Contract(), caller, accrued); err != nil {
			return err
		}
		if err := c.Put(feesSlot(caller), new(big.Int)); err != nil {
			return err
		}
		c.Emit(TopicFeesWithdrawn, map[string]string{
			"recipient": caller.Hex(),
			"amount":    accrued.String(),
		})
		return nil
	})
}

func validateParams(c *host.Context, p Params) error {
	if err := resolver.ValidateAmount("fee", p.Fee); err != nil {
		return err
	}
	// 代币必须可用
	if _, err := c.Token(p.Token).Decimals(c.Ctx()); err != nil {
		return xerrors.Wrap(xerrors.CodeValidationFailed, err, fmt.Sprintf("代币 %s 不可用", p.Token.Hex()))
	}
	return nil
}

func requireAdmin(c *host.Context, caller common.Address) (*state, error) {
	st, err := requireInitialized(c)
	if err != nil {
		return nil, err
	}
	if err := c.RequireAuth(caller); err != nil {
		return nil, err
	}
	if err := auth.RequireRole(caller, st.Admin); err != nil {
		return nil, err
	}
	return st, nil
}

func requireRecipient(c *host.Context, st *state, caller common.Address) error {
	if caller == st.Recipient {
		return nil
	}
	var former bool
	if _, err := c.Get(recipientSlot(caller), &former); err != nil {
		return err
	}
	if !former {
		return xerrors.New(xerrors.CodeNotAuthorized, fmt.Sprintf("%s 不是手续费接收方", caller.Hex()),
			xerrors.WithMetadata("caller", caller.Hex()))
	}
	return nil
}

func ensureFresh(c *host.Context) error {
	var st state
	ok, err := c.Load(&st)
	if err != nil {
		return err
	}
	if ok && st.Initialized {
		return xerrors.New(xerrors.CodeAlreadyInitialized, "手续费解析器已初始化")
	}
	return nil
}

func requireInitialized(c *host.Context) (*state, error) {
	var st state
	ok, err := c.Load(&st)
	if err != nil {
		return nil, err
	}
	if !ok || !st.Initialized {
		return nil, xerrors.New(xerrors.CodeUninitialized, "手续费解析器尚未初始化")
	}
	if st.Fee == nil {
		st.Fee = new(big.Int)
	}
	if st.TotalCollected == nil {
		st.TotalCollected = new(big.Int)
	}
	return &st, nil
}

func feesSlot(recipient common.Address) string {
	return "fees/" + strings.ToLower(recipient.Hex())
}

func recipientSlot(addr common.Address) string {
	return "recipients/" + strings.ToLower(addr.Hex())
}
