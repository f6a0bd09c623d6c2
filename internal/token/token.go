// Package token is the in-process token collaborator used by resolvers. It
// keeps balances inside the caller's storage transaction, so a transfer
// commits or rolls back together with the resolver state that depends on it.
package token

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	xerrors "Attest-Resolver/internal/errors"
	"Attest-Resolver/internal/storage"
)

// Token is the view of a fungible token a resolver relies on.
type Token interface {
	Address() common.Address
	Decimals(ctx context.Context) (uint8, error)
	Balance(ctx context.Context, owner common.Address) (*big.Int, error)
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
}

// Metadata describes a deployed token.
type Metadata struct {
	Name     string
	Symbol   string
	Decimals uint8
}

// Ledger reads and writes token state through one storage transaction.
type Ledger struct {
	txn storage.Txn
}

// NewLedger binds a ledger to txn.
func NewLedger(txn storage.Txn) *Ledger {
	return &Ledger{txn: txn}
}

func metaKey(tok common.Address) string {
	return "t/" + strings.ToLower(tok.Hex()) + "/meta"
}

func supplyKey(tok common.Address) string {
	return "t/" + strings.ToLower(tok.Hex()) + "/supply"
}

func balanceKey(tok, owner common.Address) string {
	return "t/" + strings.ToLower(tok.Hex()) + "/bal/" + strings.ToLower(owner.Hex())
}

// Deploy registers token metadata. Deploying the same address twice fails.
func (l *Ledger) Deploy(ctx context.Context, tok common.Address, meta Metadata) error {
	_, ok, err := l.txn.Get(ctx, metaKey(tok))
	if err != nil {
		return err
	}
	if ok {
		return xerrors.New(xerrors.CodeConflict, fmt.Sprintf("代币 %s 已部署", tok.Hex()))
	}
	return storage.PutRLP(ctx, l.txn, metaKey(tok), meta)
}

// Metadata returns the metadata of a deployed token.
func (l *Ledger) Metadata(ctx context.Context, tok common.Address) (Metadata, error) {
	var meta Metadata
	ok, err := storage.GetRLP(ctx, l.txn, metaKey(tok), &meta)
	if err != nil {
		return Metadata{}, err
	}
	if !ok {
		return Metadata{}, xerrors.New(xerrors.CodeNotFound, fmt.Sprintf("代币 %s 不存在", tok.Hex()))
	}
	return meta, nil
}

// Balance returns owner's balance; unknown holders have zero.
func (l *Ledger) Balance(ctx context.Context, tok, owner common.Address) (*big.Int, error) {
	return l.readAmount(ctx, balanceKey(tok, owner))
}

// TotalSupply returns the amount minted so far.
func (l *Ledger) TotalSupply(ctx context.Context, tok common.Address) (*big.Int, error) {
	return l.readAmount(ctx, supplyKey(tok))
}

// Mint credits amount to owner and grows the supply.
func (l *Ledger) Mint(ctx context.Context, tok, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return xerrors.New(xerrors.CodeValidationFailed, "铸造数量不能为负")
	}
	if _, err := l.Metadata(ctx, tok); err != nil {
		return err
	}
	balance, err := l.Balance(ctx, tok, to)
	if err != nil {
		return err
	}
	supply, err := l.TotalSupply(ctx, tok)
	if err != nil {
		return err
	}
	if err := storage.PutRLP(ctx, l.txn, balanceKey(tok, to), new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	return storage.PutRLP(ctx, l.txn, supplyKey(tok), new(big.Int).Add(supply, amount))
}

// Transfer moves amount from one holder to another. It fails with
// TRANSFER_FAILED for malformed requests or unknown tokens and with
// INSUFFICIENT_FUNDS when the sender's balance is too low.
func (l *Ledger) Transfer(ctx context.Context, tok, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return xerrors.New(xerrors.CodeTransferFailed, "转账数量不能为负")
	}
	if _, err := l.Metadata(ctx, tok); err != nil {
		return xerrors.Wrap(xerrors.CodeTransferFailed, err, "转账失败")
	}
	fromBalance, err := l.Balance(ctx, tok, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return xerrors.New(xerrors.CodeInsufficientFunds,
			fmt.Sprintf("余额不足: %s 持有 %s, 需要 %s", from.Hex(), fromBalance, amount))
	}
	if from == to || amount.Sign() == 0 {
		return nil
	}
	toBalance, err := l.Balance(ctx, tok, to)
	if err != nil {
		return err
	}
	if err := storage.PutRLP(ctx, l.txn, balanceKey(tok, from), new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return storage.PutRLP(ctx, l.txn, balanceKey(tok, to), new(big.Int).Add(toBalance, amount))
}

// Token returns a handle bound to one token address.
func (l *Ledger) Token(tok common.Address) *Client {
	return &Client{ledger: l, address: tok}
}

func (l *Ledger) readAmount(ctx context.Context, key string) (*big.Int, error) {
	amount := new(big.Int)
	if _, err := storage.GetRLP(ctx, l.txn, key, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// Client is a Token backed by a Ledger.
type Client struct {
	ledger  *Ledger
	address common.Address
}

var _ Token = (*Client)(nil)

// Address implements Token.
func (c *Client) Address() common.Address { return c.address }

// Decimals implements Token. Unknown addresses fail, which is how callers
// check that an address really is a token.
func (c *Client) Decimals(ctx context.Context) (uint8, error) {
	meta, err := c.ledger.Metadata(ctx, c.address)
	if err != nil {
		return 0, err
	}
	return meta.Decimals, nil
}

// Balance implements Token.
func (c *Client) Balance(ctx context.Context, owner common.Address) (*big.Int, error) {
	return c.ledger.Balance(ctx, c.address, owner)
}

// Transfer implements Token.
func (c *Client) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	return c.ledger.Transfer(ctx, c.address, from, to, amount)
}
