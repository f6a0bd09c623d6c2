package reward

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"Attest-Resolver/internal/host"
)

// UserRewards returns the total reward paid to user.
func (r *Resolver) UserRewards(ctx context.Context, user common.Address) (*big.Int, error) {
	earned := new(big.Int)
	err := r.view(ctx, func(c *host.Context, _ *state) error {
		_, err := c.Get(rewardsSlot(user), earned)
		return err
	})
	return earned, err
}

// TotalRewarded returns the sum of all rewards paid.
func (r *Resolver) TotalRewarded(ctx context.Context) (*big.Int, error) {
	var total *big.Int
	err := r.view(ctx, func(_ *host.Context, st *state) error {
		total = st.TotalRewarded
		return nil
	})
	return total, err
}

// RewardAmount returns the current per-attestation reward.
func (r *Resolver) RewardAmount(ctx context.Context) (*big.Int, error) {
	var amount *big.Int
	err := r.view(ctx, func(_ *host.Context, st *state) error {
		amount = st.RewardAmount
		return nil
	})
	return amount, err
}

// PoolBalance returns the resolver's balance of the reward token.
func (r *Resolver) PoolBalance(ctx context.Context) (*big.Int, error) {
	var balance *big.Int
	err := r.view(ctx, func(c *host.Context, st *state) error {
		var err error
		balance, err = c.Token(st.Token).Balance(c.Ctx(), c.Contract())
		return err
	})
	return balance, err
}

// IsProcessed reports whether uid has been settled.
func (r *Resolver) IsProcessed(ctx context.Context, uid common.Hash) (bool, error) {
	var done bool
	err := r.view(ctx, func(c *host.Context, _ *state) error {
		_, err := c.Get(processedSlot(uid), &done)
		return err
	})
	return done, err
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
	Admin                 common.Address `json:"admin"`
	Token                 common.Address `json:"token"`
	RewardAmount          *big.Int       `json:"reward_amount"`
	ProtocolCaller        common.Address `json:"protocol_caller"`
	EnforceProtocolCaller bool           `json:"enforce_protocol_caller"`
	TotalRewarded         *big.Int       `json:"total_rewarded"`
	PoolBalance           *big.Int       `json:"pool_balance"`
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
			Admin:                 st.Admin,
			Token:                 st.Token,
			RewardAmount:          st.RewardAmount,
			ProtocolCaller:        st.ProtocolCaller,
			EnforceProtocolCaller: r.enforceCaller,
			TotalRewarded:         st.TotalRewarded,
			PoolBalance:           balance,
		}
		return nil
	})
	return view, err
}

// AccountView is the per-user reward ledger entry.
type AccountView struct {
	Address common.Address `json:"address"`
	Rewards *big.Int       `json:"rewards"`
}

// Account returns the rewards paid to addr.
func (r *Resolver) Account(ctx context.Context, addr common.Address) (any, error) {
	earned, err := r.UserRewards(ctx, addr)
	if err != nil {
		return nil, err
	}
	return AccountView{Address: addr, Rewards: earned}, nil
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
