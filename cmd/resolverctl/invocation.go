package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"Attest-Resolver/internal/auth"
	"Attest-Resolver/internal/config"
	"Attest-Resolver/internal/resolver"
	"Attest-Resolver/internal/resolver/fee"
	"Attest-Resolver/internal/resolver/reward"
)

// invocationFlags 收集描述一次调用所需的参数。
type invocationFlags struct {
	kind      string
	contract  string
	method    string
	nonce     uint64
	caller    string
	amount    string
	recipient string
	token     string
	uid       string
	schema    string
	attester  string
}

func (f *invocationFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.kind, "kind", "", "resolver kind for admin methods: reward or fee")
	flags.StringVar(&f.contract, "contract", "", "resolver address")
	flags.StringVar(&f.method, "method", "", "onattest, onrevoke, onresolve, initialize or an admin operation")
	flags.Uint64Var(&f.nonce, "nonce", 0, "proof nonce, unique per signer")
	flags.StringVar(&f.caller, "caller", "", "admin or recipient address for admin methods")
	flags.StringVar(&f.amount, "amount", "", "decimal amount")
	flags.StringVar(&f.recipient, "recipient", "", "fee recipient, protocol caller or attestation recipient")
	flags.StringVar(&f.token, "token", "", "token address for initialize")
	flags.StringVar(&f.uid, "uid", "", "attestation uid")
	flags.StringVar(&f.schema, "schema", "", "attestation schema uid")
	flags.StringVar(&f.attester, "attester", "", "attester address")
	_ = cmd.MarkFlagRequired("contract")
	_ = cmd.MarkFlagRequired("method")
}

func optionalAddress(s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	return config.ParseAddress(s)
}

func optionalAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	return resolver.ParseAmount(s)
}

// build 还原服务端使用的调用描述，保证摘要一致。
func (f *invocationFlags) build() (auth.Invocation, error) {
	contract, err := config.ParseAddress(f.contract)
	if err != nil {
		return auth.Invocation{}, err
	}
	addrs := make(map[string]common.Address, 4)
	for name, raw := range map[string]string{"caller": f.caller, "recipient": f.recipient, "token": f.token, "attester": f.attester} {
		addr, err := optionalAddress(raw)
		if err != nil {
			return auth.Invocation{}, fmt.Errorf("--%s: %w", name, err)
		}
		addrs[name] = addr
	}
	amount, err := optionalAmount(f.amount)
	if err != nil {
		return auth.Invocation{}, err
	}

	switch f.method {
	case resolver.MethodOnAttest, resolver.MethodOnRevoke:
		att := resolver.Attestation{
			UID:       common.HexToHash(f.uid),
			SchemaUID: common.HexToHash(f.schema),
			Attester:  addrs["attester"],
			Recipient: addrs["recipient"],
		}
		return resolver.AttestInvocation(contract, f.method, att), nil
	case resolver.MethodOnResolve:
		return resolver.ResolveInvocation(contract, common.HexToHash(f.uid), addrs["attester"]), nil
	}

	op := resolver.Operation{Caller: addrs["caller"], Amount: amount, Recipient: addrs["recipient"]}
	switch strings.ToLower(f.kind) {
	case config.KindReward:
		if f.method == reward.MethodInitialize {
			return reward.InitializeInvocation(contract, reward.Params{
				Admin: op.Caller, Token: addrs["token"], RewardAmount: amount, ProtocolCaller: op.Recipient,
			}), nil
		}
		return reward.Invocation(contract, f.method, op)
	case config.KindFee:
		if f.method == fee.MethodInitialize {
			return fee.InitializeInvocation(contract, fee.Params{
				Admin: op.Caller, Token: addrs["token"], Fee: amount, Recipient: op.Recipient,
			}), nil
		}
		return fee.Invocation(contract, f.method, op)
	default:
		return auth.Invocation{}, fmt.Errorf("--kind 必须是 %s 或 %s", config.KindReward, config.KindFee)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
