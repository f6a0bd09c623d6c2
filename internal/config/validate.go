package config

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	xerrors "Attest-Resolver/internal/errors"
)

// Validate 检查驱动、代币与解析器配置是否完整。
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "mysql":
		if c.Storage.MySQL.DSN == "" {
			return missing("storage.mysql.dsn")
		}
	case "redis":
		if c.Storage.Redis.Address == "" {
			return missing("storage.redis.address")
		}
	default:
		return invalid(fmt.Sprintf("未知的存储驱动: %s", c.Storage.Driver))
	}

	switch c.Events.Driver {
	case "none", "memory", "redis":
	case "rabbitmq":
		if c.Events.RabbitMQ.URL == "" {
			return missing("events.rabbitmq.url")
		}
	default:
		return invalid(fmt.Sprintf("未知的事件驱动: %s", c.Events.Driver))
	}

	switch c.Auth.Mode {
	case "signature", "trust_all":
	default:
		return invalid(fmt.Sprintf("未知的授权模式: %s", c.Auth.Mode))
	}

	tokens := make(map[common.Address]struct{}, len(c.Tokens))
	for i, tok := range c.Tokens {
		field := fmt.Sprintf("tokens[%d]", i)
		addr, err := address(field+".address", tok.Address)
		if err != nil {
			return err
		}
		tokens[addr] = struct{}{}
		for j, mint := range tok.Mints {
			mf := fmt.Sprintf("%s.mints[%d]", field, j)
			if _, err := address(mf+".to", mint.To); err != nil {
				return err
			}
			if _, err := amount(mf+".amount", mint.Amount); err != nil {
				return err
			}
		}
	}

	names := make(map[string]struct{}, len(c.Resolvers))
	for i, r := range c.Resolvers {
		field := fmt.Sprintf("resolvers[%d]", i)
		if r.Name == "" {
			return missing(field + ".name")
		}
		if _, dup := names[r.Name]; dup {
			return invalid(fmt.Sprintf("解析器名称重复: %s", r.Name))
		}
		names[r.Name] = struct{}{}
		if r.Kind != KindReward && r.Kind != KindFee {
			return invalid(fmt.Sprintf("%s.kind 必须是 %s 或 %s", field, KindReward, KindFee))
		}
		for _, f := range []struct{ name, value string }{
			{"address", r.Address}, {"admin", r.Admin}, {"token", r.Token}, {"beneficiary", r.Beneficiary},
		} {
			if _, err := address(field+"."+f.name, f.value); err != nil {
				return err
			}
		}
		if _, err := amount(field+".amount", r.Amount); err != nil {
			return err
		}
	}
	return nil
}

// ParseAddress 解析十六进制地址。
func ParseAddress(s string) (common.Address, error) {
	return address("address", s)
}

// ParseAmount 解析十进制数量，允许负数，由解析器自行校验。
func ParseAmount(s string) (*big.Int, error) {
	return amount("amount", s)
}

func address(field, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, missing(field)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, invalid(fmt.Sprintf("%s 不是有效地址: %s", field, s))
	}
	return common.HexToAddress(s), nil
}

func amount(field, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, invalid(fmt.Sprintf("%s 不是有效数量: %q", field, s))
	}
	return v, nil
}

func missing(field string) error {
	return xerrors.New(xerrors.CodeConfigMissing, fmt.Sprintf("缺少配置项 %s", field))
}

func invalid(msg string) error {
	return xerrors.New(xerrors.CodeInvalidArgument, msg)
}
