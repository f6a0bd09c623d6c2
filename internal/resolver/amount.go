package resolver

import (
	"fmt"
	"math/big"

	xerrors "Attest-Resolver/internal/errors"
)

// ValidateAmount rejects missing and negative amounts with VALIDATION_FAILED.
func ValidateAmount(field string, amount *big.Int) error {
	if amount == nil {
		return xerrors.New(xerrors.CodeValidationFailed, fmt.Sprintf("%s 不能为空", field))
	}
	if amount.Sign() < 0 {
		return xerrors.New(xerrors.CodeValidationFailed, fmt.Sprintf("%s 不能为负数: %s", field, amount))
	}
	return nil
}

// AmountArg renders an amount for an invocation digest.
func AmountArg(amount *big.Int) string {
	if amount == nil {
		return ""
	}
	return amount.String()
}

// ParseAmount parses a base-10 amount.
func ParseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, xerrors.New(xerrors.CodeValidationFailed, fmt.Sprintf("无效的数量: %q", s))
	}
	return amount, nil
}
