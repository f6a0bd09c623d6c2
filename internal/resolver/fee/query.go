package fee

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"Attest-Resolver/internal/host"
)

// TotalCollected returns the sum of all fees ever collected.
func (r *Resolver) TotalCollected(ctx context.Context) (*big.Int, error) {
	var total *big.Int
	err := r.view(ctx, func(_ *host.Context, st *state) error {
		total = st.TotalCollected
		return nil
	})
	return total, err
}

// CollectedFees returns the fees accrued and not yet withdrawn by recipient.
func (r *Resolver) CollectedFees(ctx context.Context, recipient common.Address) (*big.Int, error) {
	accrued := new(big.Int)
	err := r.view(ctx, func(c *host.Context, _ *state) error {
		_, err := c.Get(feesSlot(recipient), accrued)
		return err
	})
	return accrued, err
}

// AttestationFee returns the current fee.
func (r *Resolver) AttestationFee(ctx context.Context) (*big.Int, error) {
	var fee *big.Int
	err := r.view(ctx, func(_ *host.Context, st *state) error {
		fee = st.Fee
		return nil
	})
	return fee, err
}

// FeeRecipient returns the address new fees accrue to.
func (r *Resolver) FeeRecipient(ctx context.Context) (common.Address, error) {
	var recipient common.Address
	err := r.view(ctx, func(_ *host.Context, st *state) error {
		recipient = st.Recipient
		return nil
	})
	return recipient, err
}

// Initialized reports whether the instance has been constructed.
func (r *Resolver) Initialized(ctx context.Context) (bool, error) {
	initialized := false
	err := r.host.Query(ctx, r.address, func(c *host.Context) error {
		var st state
		ok, err := c.Load(&st)
		initialized = ok && st.Initialized
		return err
	})
	return initialized, err
}

// StateView is the externally visible configuration and totals.
type StateView struct {
	Admin          common.Address `json:"admin"`
	Token          common.Address `json:"token"`
	Fee            *big.Int       `json:"fee"`
	Recipient      common.Address `json:"recipient"`
	TotalCollected *big.Int       `json:"total_collected"`
	Balance        *big.Int       `json:"balance"`
}

// State returns the resolver's configuration and totals.
func (r *Resolver) State(ctx context.Context) (any, error) {
	var view StateView
	err := r.view(ctx, func(c *host.Context, st *state) error {
		balance, err := c.Token(st.Token).Balance(c.Ctx(), c.Contract())
		if err != nil {
			return err
		}
		view = StateView{
			Admin:          st.Admin,
			Token:          st.Token,
			Fee:            st.Fee,
			Recipient:      st.Recipient,
			TotalCollected: st.TotalCollected,
			Balance:        balance,
		}
		return nil
	})
	return view, err
}

// AccountView is one recipient's accrued fee entry.
type AccountView struct {
	Address       common.Address `json:"address"`
	CollectedFees *big.Int       `json:"collected_fees"`
	Recipient     bool           `json:"recipient"`
}

// Account returns the fees accrued under addr.
func (r *Resolver) Account(ctx context.Context, addr common.Address) (any, error) {
	var view AccountView
	err := r.view(ctx, func(c *host.Context, st *state) error {
		accrued := new(big.Int)
		if _, err := c.Get(feesSlot(addr), accrued); err != nil {
			return err
		}
		var role bool
		if _, err := c.Get(recipientSlot(addr), &role); err != nil {
			return err
		}
		view = AccountView{Address: addr, CollectedFees: accrued, Recipient: role || addr == st.Recipient}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (r *Resolver) view(ctx context.Context, fn func(*host.Context, *state) error) error {
	return r.host.Query(ctx, r.address, func(c *host.Context) error {
		st, err := requireInitialized(c)
		if err != nil {
			return err
		}
		return fn(c, st)
	})
}
