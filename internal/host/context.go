package host

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"Attest-Resolver/internal/auth"
	xerrors "Attest-Resolver/internal/errors"
	"Attest-Resolver/internal/events"
	"Attest-Resolver/internal/storage"
	"Attest-Resolver/internal/token"
)

const instanceSlot = "instance"

// Context is the capability surface handed to a resolver during one
// invocation. It is only valid until the invocation returns.
type Context struct {
	ctx        context.Context
	host       *Host
	txn        storage.Txn
	ledger     *token.Ledger
	inv        auth.Invocation
	proofs     auth.Proofs
	readOnly   bool
	authorized map[common.Address]struct{}
	events     []events.Event
}

// Ctx returns the request context.
func (c *Context) Ctx() context.Context { return c.ctx }

// Contract returns the address of the resolver being invoked.
func (c *Context) Contract() common.Address { return c.inv.Contract }

// Logger returns the host logger tagged with the invocation.
func (c *Context) Logger() *slog.Logger {
	return c.host.logger.With(slog.String("contract", c.inv.Contract.Hex()), slog.String("method", c.inv.Method))
}

// RequireAuth fails with NOT_AUTHORIZED unless addr presented a valid,
// unused proof for this invocation. The proof's nonce is consumed when the
// invocation commits.
func (c *Context) RequireAuth(addr common.Address) error {
	if _, ok := c.authorized[addr]; ok {
		return nil
	}
	if c.readOnly {
		return xerrors.New(xerrors.CodeNotAuthorized, "只读查询不接受授权")
	}
	proof, ok := c.proofs.For(addr)
	if !ok {
		return xerrors.New(xerrors.CodeNotAuthorized, fmt.Sprintf("缺少 %s 的授权凭证", addr.Hex()),
			xerrors.WithMetadata("signer", addr.Hex()))
	}
	if err := c.host.verifier.Verify(c.inv, proof); err != nil {
		return err
	}
	key := nonceKey(proof.Signer, proof.Nonce)
	_, used, err := c.txn.Get(c.ctx, key)
	if err != nil {
		return err
	}
	if used {
		return xerrors.New(xerrors.CodeNotAuthorized, fmt.Sprintf("凭证 nonce %d 已被使用", proof.Nonce),
			xerrors.WithMetadata("signer", addr.Hex()))
	}
	if err := c.txn.Put(c.ctx, key, []byte{1}); err != nil {
		return err
	}
	c.authorized[addr] = struct{}{}
	return nil
}

// Token returns the token at addr bound to this invocation's transaction.
func (c *Context) Token(addr common.Address) token.Token {
	return c.ledger.Token(addr)
}

// Load decodes the resolver's instance state into v.
func (c *Context) Load(v any) (bool, error) {
	return c.Get(instanceSlot, v)
}

// Save persists the resolver's instance state.
func (c *Context) Save(v any) error {
	return c.Put(instanceSlot, v)
}

// Get reads a keyed ledger entry of the current resolver.
func (c *Context) Get(slot string, v any) (bool, error) {
	return storage.GetRLP(c.ctx, c.txn, storage.ContractKey(c.inv.Contract, slot), v)
}

// Put writes a keyed ledger entry of the current resolver.
func (c *Context) Put(slot string, v any) error {
	if c.readOnly {
		return xerrors.New(xerrors.CodeInvalidArgument, "只读查询不能写入状态")
	}
	return storage.PutRLP(c.ctx, c.txn, storage.ContractKey(c.inv.Contract, slot), v)
}

// Emit buffers an event; it is published only if the invocation commits.
func (c *Context) Emit(topic string, attrs map[string]string) {
	if c.readOnly {
		return
	}
	c.events = append(c.events, events.New(c.inv.Contract, topic, attrs))
}
