// Package host runs resolver invocations. It serialises calls, opens one
// storage transaction per call, exposes token, authorization and event
// capabilities to the resolver through Context, and commits or discards
// everything the call did as a unit.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"Attest-Resolver/internal/auth"
	xerrors "Attest-Resolver/internal/errors"
	"Attest-Resolver/internal/events"
	"Attest-Resolver/internal/observability/alerting"
	"Attest-Resolver/internal/observability/metrics"
	"Attest-Resolver/internal/storage"
	"Attest-Resolver/internal/token"
	"Attest-Resolver/pkg/logger"
)

// Observer receives the outcome of every invocation.
type Observer func(method, outcome string, duration time.Duration)

// Host owns the state store and executes invocations against it.
type Host struct {
	mu        sync.RWMutex
	store     storage.Store
	verifier  auth.Verifier
	publisher events.Publisher
	alerter   alerting.Dispatcher
	logger    *slog.Logger
	audit     *slog.Logger
	observe   Observer
}

// Option 定义可选配置。
type Option func(*Host)

// WithVerifier 指定凭证校验器，默认使用签名校验。
func WithVerifier(v auth.Verifier) Option {
	return func(h *Host) {
		if v != nil {
			h.verifier = v
		}
	}
}

// WithPublisher 指定事件发布器。
func WithPublisher(p events.Publisher) Option {
	return func(h *Host) {
		if p != nil {
			h.publisher = p
		}
	}
}

// WithAlertDispatcher 配置告警派发器。
func WithAlertDispatcher(d alerting.Dispatcher) Option {
	return func(h *Host) {
		h.alerter = d
	}
}

// WithLogger 指定日志输出。
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithAuditLogger 指定审计日志输出。
func WithAuditLogger(l *slog.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.audit = l
		}
	}
}

// WithObserver 替换默认的 Prometheus 指标记录。
func WithObserver(o Observer) Option {
	return func(h *Host) {
		if o != nil {
			h.observe = o
		}
	}
}

// New 构造 Host。
func New(store storage.Store, opts ...Option) *Host {
	h := &Host{
		store:     store,
		verifier:  auth.SignatureVerifier{},
		publisher: events.Discard{},
		observe:   metrics.ObserveInvocation,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.logger == nil {
		h.logger = logger.Named("host")
	}
	if h.audit == nil {
		h.audit = logger.Audit()
	}
	return h
}

// Invoke runs fn as one atomic invocation of inv. Any error returned by fn,
// or by the commit, discards every write including token movements and
// consumed nonces. Events emitted by fn are published only after commit.
func (h *Host) Invoke(ctx context.Context, inv auth.Invocation, proofs auth.Proofs, fn func(*Context) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.execute(ctx, inv, proofs, false, fn)
}

// Query runs fn against a read-only view of contract's state.
func (h *Host) Query(ctx context.Context, contract common.Address, fn func(*Context) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.execute(ctx, auth.Invocation{Contract: contract, Method: "query"}, nil, true, fn)
}

func (h *Host) execute(ctx context.Context, inv auth.Invocation, proofs auth.Proofs, readOnly bool, fn func(*Context) error) (err error) {
	start := time.Now()
	defer func() {
		h.finish(ctx, inv, proofs, readOnly, err, time.Since(start))
	}()

	txn, err := storage.BeginTxn(ctx, h.store, readOnly)
	if err != nil {
		return err
	}
	c := &Context{
		ctx:        ctx,
		host:       h,
		txn:        txn,
		ledger:     token.NewLedger(txn),
		inv:        inv,
		proofs:     proofs,
		readOnly:   readOnly,
		authorized: make(map[common.Address]struct{}),
	}

	if err = fn(c); err != nil {
		if rbErr := txn.Rollback(); rbErr != nil {
			h.logger.Error("回滚事务失败", slog.String("method", inv.Method), slog.Any("error", rbErr))
		}
		return err
	}
	if readOnly {
		return txn.Rollback()
	}
	if err = txn.Commit(ctx); err != nil {
		return err
	}

	if len(c.events) > 0 {
		// 状态已提交，发布失败只记录日志，不影响调用结果。
		if pubErr := h.publisher.Publish(ctx, c.events...); pubErr != nil {
			h.logger.Error("发布事件失败",
				slog.String("contract", inv.Contract.Hex()),
				slog.String("method", inv.Method),
				slog.Int("events", len(c.events)),
				slog.Any("error", pubErr),
			)
		} else {
			for _, ev := range c.events {
				metrics.ObserveEvent(ev.Topic)
			}
		}
	}
	return nil
}

func (h *Host) finish(ctx context.Context, inv auth.Invocation, proofs auth.Proofs, readOnly bool, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = string(xerrors.CodeOf(err))
	}
	if !readOnly {
		h.observe(inv.Method, outcome, elapsed)
	}

	attrs := []any{
		slog.String("contract", inv.Contract.Hex()),
		slog.String("method", inv.Method),
		slog.String("outcome", outcome),
		slog.Duration("elapsed", elapsed),
	}
	switch {
	case err == nil && !readOnly:
		signers := make([]string, 0, len(proofs))
		for _, s := range proofs.Signers() {
			signers = append(signers, s.Hex())
		}
		h.audit.Info("invocation_committed", append(attrs, slog.Any("signers", signers))...)
	case err != nil:
		h.logger.Debug("invocation_failed", append(attrs, slog.Any("error", err))...)
		if h.alerter != nil && xerrors.ShouldAlert(err) {
			if alertErr := h.alerter.Notify(ctx, alerting.FromError(inv.Contract, inv.Method, proofs.Signers(), err)); alertErr != nil {
				h.logger.Warn("发送告警失败", slog.Any("error", alertErr))
			}
		}
	}
}

// DeployToken registers token metadata at addr.
func (h *Host) DeployToken(ctx context.Context, addr common.Address, meta token.Metadata) error {
	return h.Invoke(ctx, auth.Invocation{Contract: addr, Method: "deploy_token"}, nil, func(c *Context) error {
		return c.ledger.Deploy(ctx, addr, meta)
	})
}

// MintToken credits amount of tok to owner.
func (h *Host) MintToken(ctx context.Context, tok, owner common.Address, amount *big.Int) error {
	return h.Invoke(ctx, auth.Invocation{Contract: tok, Method: "mint"}, nil, func(c *Context) error {
		return c.ledger.Mint(ctx, tok, owner, amount)
	})
}

// TokenBalance reads owner's balance of tok.
func (h *Host) TokenBalance(ctx context.Context, tok, owner common.Address) (*big.Int, error) {
	var balance *big.Int
	err := h.Query(ctx, tok, func(c *Context) error {
		var err error
		balance, err = c.ledger.Balance(ctx, tok, owner)
		return err
	})
	return balance, err
}

// TokenDeployed reports whether tok has metadata.
func (h *Host) TokenDeployed(ctx context.Context, tok common.Address) (bool, error) {
	deployed := false
	err := h.Query(ctx, tok, func(c *Context) error {
		_, err := c.ledger.Metadata(ctx, tok)
		if xerrors.CodeOf(err) == xerrors.CodeNotFound {
			return nil
		}
		deployed = err == nil
		return err
	})
	return deployed, err
}

func nonceKey(signer common.Address, nonce uint64) string {
	return fmt.Sprintf("n/%s/%d", signer.Hex(), nonce)
}
