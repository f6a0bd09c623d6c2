// Package reward implements the token reward resolver: an admin funds a
// pool, and every settled attestation pays a fixed reward to its attester
// exactly once.
package reward

import (
	"context"
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
	MethodConstruct       = "construct"
	MethodInitialize      = "initialize"
	MethodSetRewardAmount = "set_reward_amount"
	MethodFundRewardPool  = "fund_reward_pool"
)

// Event topics.
const (
	TopicRewardDistributed = "REWARD_DISTRIBUTED"
	TopicPoolFunded        = "POOL_FUNDED"
	TopicRewardUpdated     = "REWARD_UPDATED"
)

// Params configures a reward resolver instance.
type Params struct {
	Admin          common.Address
	Token          common.Address
	RewardAmount   *big.Int
	ProtocolCaller common.Address
}

type state struct {
	Admin          common.Address
	Token          common.Address
	RewardAmount   *big.Int
	ProtocolCaller common.Address
	TotalRewarded  *big.Int
	Initialized    bool
}

// Resolver is the token reward resolver at one address.
type Resolver struct {
	host          *host.Host
	address       common.Address
	enforceCaller bool
}

var (
	_ resolver.Resolver  = (*Resolver)(nil)
	_ resolver.Operator  = (*Resolver)(nil)
	_ resolver.Inspector = (*Resolver)(nil)
)

// Option 定义可选配置。
type Option func(*Resolver)

// WithProtocolCallerCheck makes OnResolve require a proof from the
// configured protocol caller. Off by default.
func WithProtocolCallerCheck(enabled bool) Option {
	return func(r *Resolver) {
		r.enforceCaller = enabled
	}
}

// New binds a reward resolver to addr on h.
func New(h *host.Host, addr common.Address, opts ...Option) *Resolver {
	r := &Resolver{host: h, address: addr}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Address implements resolver.Resolver.
func (r *Resolver) Address() common.Address { return r.address }

// Metadata implements resolver.Resolver.
func (r *Resolver) Metadata() resolver.Metadata {
	return resolver.Metadata{
		Name:        "Token Reward Resolver",
		Version:     "1.0.0",
		Description: "Distributes token rewards for attestations",
		Kind:        resolver.KindTokenReward,
	}
}

// Construct initializes the instance at deployment time. It needs no proof.
func (r *Resolver) Construct(ctx context.Context, p Params) error {
	inv := auth.NewInvocation(r.address, MethodConstruct)
	return r.host.Invoke(ctx, inv, nil, func(c *host.Context) error {
		if err := ensureFresh(c); err != nil {
			return err
		}
		if err := resolver.ValidateAmount("reward_amount", p.RewardAmount); err != nil {
			return err
		}
		return c.Save(newState(p))
	})
}

// Initialize is the legacy initializer for instances deployed without
// Construct. The admin named in p must sign.
func (r *Resolver) Initialize(ctx context.Context, proofs auth.Proofs, p Params) error {
	return r.host.Invoke(ctx, InitializeInvocation(r.address, p), proofs, func(c *host.Context) error {
		if err := ensureFresh(c); err != nil {
			return err
		}
		if err := resolver.ValidateAmount("reward_amount", p.RewardAmount); err != nil {
			return err
		}
		if err := c.RequireAuth(p.Admin); err != nil {
			return err
		}
		return c.Save(newState(p))
	})
}

// SetRewardAmount changes the per-attestation reward. Admin only.
func (r *Resolver) SetRewardAmount(ctx context.Context, proofs auth.Proofs, caller common.Address, amount *big.Int) error {
	return r.host.Invoke(ctx, SetRewardAmountInvocation(r.address, caller, amount), proofs, func(c *host.Context) error {
		st, err := r.requireAdmin(c, caller)
		if err != nil {
			return err
		}
		if err := resolver.ValidateAmount("reward_amount", amount); err != nil {
			return err
		}
		st.RewardAmount = new(big.Int).Set(amount)
		if err := c.Save(st); err != nil {
			return err
		}
		c.Emit(TopicRewardUpdated, map[string]string{"amount": amount.String()})
		return nil
	})
}

// FundRewardPool moves amount from the admin into the resolver's pool.
func (r *Resolver) FundRewardPool(ctx context.Context, proofs auth.Proofs, caller common.Address, amount *big.Int) error {
	return r.host.Invoke(ctx, FundRewardPoolInvocation(r.address, caller, amount), proofs, func(c *host.Context) error {
		st, err := r.requireAdmin(c, caller)
		if err != nil {
			return err
		}
		if err := resolver.ValidateAmount("amount", amount); err != nil {
			return err
		}
		if err := c.Token(st.Token).Transfer(c.Ctx(), caller, c.Contract(), amount); err != nil {
			return err
		}
		c.Emit(TopicPoolFunded, map[string]string{
			"funder": caller.Hex(),
			"amount": amount.String(),
		})
		return nil
	})
}

// OnAttest implements resolver.Resolver. Attestation creation is always allowed.
func (r *Resolver) OnAttest(ctx context.Context, proofs auth.Proofs, att resolver.Attestation) (bool, error) {
	inv := resolver.AttestInvocation(r.address, resolver.MethodOnAttest, att)
	if err := r.host.Invoke(ctx, inv, proofs, func(c *host.Context) error {
		_, err := requireInitialized(c)
		return err
	}); err != nil {
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

// OnResolve pays the reward for uid to attester. A uid that was already
// processed is a successful no-op. If the pool cannot cover the reward the
// call fails and uid stays unprocessed.
func (r *Resolver) OnResolve(ctx context.Context, proofs auth.Proofs, uid common.Hash, attester common.Address) error {
	inv := resolver.ResolveInvocation(r.address, uid, attester)
	return r.host.Invoke(ctx, inv, proofs, func(c *host.Context) error {
		st, err := requireInitialized(c)
		if err != nil {
			return err
		}
		if r.enforceCaller {
			if err := c.RequireAuth(st.ProtocolCaller); err != nil {
				return err
			}
		}
		var done bool
		if _, err := c.Get(processedSlot(uid), &done); err != nil {
			return err
		}
		if done {
			c.Logger().Debug("uid 已处理，跳过奖励", slog.String("uid", uid.Hex()))
			return nil
		}
		if st.RewardAmount.Sign() == 0 {
			return c.Put(processedSlot(uid), true)
		}
		if attester == c.Contract() {
			return xerrors.New(xerrors.CodeValidationFailed, "奖励接收方不能是解析器自身")
		}

		if err := c.Token(st.Token).Transfer(c.Ctx(), c.Contract(), attester, st.RewardAmount); err != nil {
			if xerrors.CodeOf(err) == xerrors.CodeInsufficientFunds {
				c.Logger().Warn("奖励池余额不足", slog.String("uid", uid.Hex()), slog.String("amount", st.RewardAmount.String()))
				return xerrors.Wrap(xerrors.CodeInsufficientFunds, err, "奖励池余额不足",
					xerrors.WithSeverity(xerrors.SeverityWarning), xerrors.WithAlert(true))
			}
			return err
		}
		if err := c.Put(processedSlot(uid), true); err != nil {
			return err
		}
		earned := new(big.Int)
		if _, err := c.Get(rewardsSlot(attester), earned); err != nil {
			return err
		}
		if err := c.Put(rewardsSlot(attester), earned.Add(earned, st.RewardAmount)); err != nil {
			return err
		}
		st.TotalRewarded = new(big.Int).Add(st.TotalRewarded, st.RewardAmount)
		if err := c.Save(st); err != nil {
			return err
		}
		c.Emit(TopicRewardDistributed, map[string]string{
			"uid":       uid.Hex(),
			"recipient": attester.Hex(),
			"amount":    st.RewardAmount.String(),
		})
		return nil
	})
}

func (r *Resolver) requireAdmin(c *host.Context, caller common.Address) (*state, error) {
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

func newState(p Params) *state {
	return &state{
		Admin:          p.Admin,
		Token:          p.Token,
		RewardAmount:   new(big.Int).Set(p.RewardAmount),
		ProtocolCaller: p.ProtocolCaller,
		TotalRewarded:  new(big.Int),
		Initialized:    true,
	}
}

func ensureFresh(c *host.Context) error {
	var st state
	ok, err := c.Load(&st)
	if err != nil {
		return err
	}
	if ok && st.Initialized {
		return xerrors.New(xerrors.CodeAlreadyInitialized, "奖励解析器已初始化")
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
		return nil, xerrors.New(xerrors.CodeUninitialized, "奖励解析器尚未初始化")
	}
	if st.RewardAmount == nil {
		st.RewardAmount = new(big.Int)
	}
	if st.TotalRewarded == nil {
		st.TotalRewarded = new(big.Int)
	}
	return &st, nil
}

func processedSlot(uid common.Hash) string {
	return "processed/" + uid.Hex()
}

func rewardsSlot(user common.Address) string {
	return "rewards/" + strings.ToLower(user.Hex())
}
