package fee

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"Attest-Resolver/internal/auth"
	xerrors "Attest-Resolver/internal/errors"
	"Attest-Resolver/internal/events"
	"Attest-Resolver/internal/host"
	"Attest-Resolver/internal/resolver"
	"Attest-Resolver/internal/storage/memory"
	"Attest-Resolver/internal/token"
	"Attest-Resolver/pkg/logger"
)

var (
	fee5 = big.NewInt(5_0000000)

	tokenAddr    = common.HexToAddress("0xFEE7")
	resolverAddr = common.HexToAddress("0xFEE0")
)

type signer struct {
	key   *ecdsa.PrivateKey
	addr  common.Address
	nonce uint64
}

func newSigner(t *testing.T) *signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &signer{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

func (s *signer) prove(t *testing.T, inv auth.Invocation) auth.Proofs {
	t.Helper()
	s.nonce++
	proof, err := auth.Sign(s.key, inv, s.nonce)
	if err != nil {
		t.Fatalf("sign %s: %v", inv.Method, err)
	}
	return auth.Proofs{proof}
}

type fixture struct {
	ctx       context.Context
	host      *host.Host
	events    *events.MemoryPublisher
	resolver  *Resolver
	admin     *signer
	recipient *signer
}

func newHost(t *testing.T) (*host.Host, *events.MemoryPublisher) {
	t.Helper()
	pub := events.NewMemoryPublisher(0)
	h := host.New(memory.New(),
		host.WithPublisher(pub),
		host.WithLogger(logger.Discard()),
		host.WithAuditLogger(logger.Discard()),
		host.WithObserver(func(string, string, time.Duration) {}),
	)
	if err := h.DeployToken(context.Background(), tokenAddr, token.Metadata{Name: "Fee", Symbol: "FEE", Decimals: 7}); err != nil {
		t.Fatalf("deploy token: %v", err)
	}
	return h, pub
}

func newFixture(t *testing.T, fee *big.Int) *fixture {
	t.Helper()
	h, pub := newHost(t)
	f := &fixture{
		ctx:       context.Background(),
		host:      h,
		events:    pub,
		resolver:  New(h, resolverAddr),
		admin:     newSigner(t),
		recipient: newSigner(t),
	}
	err := f.resolver.Construct(f.ctx, Params{Admin: f.admin.addr, Token: tokenAddr, Fee: fee, Recipient: f.recipient.addr})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	return f
}

func (f *fixture) attest(t *testing.T, attester *signer, uid byte) error {
	t.Helper()
	att := resolver.Attestation{
		UID:       common.BytesToHash([]byte{uid}),
		SchemaUID: common.HexToHash("0x5C"),
		Attester:  attester.addr,
		Recipient: common.HexToAddress("0x51"),
	}
	proofs := attester.prove(t, resolver.AttestInvocation(resolverAddr, resolver.MethodOnAttest, att))
	ok, err := f.resolver.OnAttest(f.ctx, proofs, att)
	if err == nil && !ok {
		t.Fatalf("onattest returned false without error")
	}
	return err
}

func (f *fixture) withdraw(t *testing.T, caller *signer) error {
	t.Helper()
	return f.resolver.WithdrawFees(f.ctx, caller.prove(t, WithdrawFeesInvocation(resolverAddr, caller.addr)), caller.addr)
}

func (f *fixture) balance(t *testing.T, owner common.Address) *big.Int {
	t.Helper()
	b, err := f.host.TokenBalance(f.ctx, tokenAddr, owner)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b
}

func (f *fixture) collected(t *testing.T, recipient common.Address) *big.Int {
	t.Helper()
	b, err := f.resolver.CollectedFees(f.ctx, recipient)
	if err != nil {
		t.Fatalf("collected fees: %v", err)
	}
	return b
}

func (f *fixture) mint(t *testing.T, owner common.Address, amount *big.Int) {
	t.Helper()
	if err := f.host.MintToken(f.ctx, tokenAddr, owner, amount); err != nil {
		t.Fatalf("mint: %v", err)
	}
}

func TestScenarioCollectAndWithdraw(t *testing.T) {
	f := newFixture(t, fee5)
	attester := newSigner(t)
	f.mint(t, attester.addr, fee5)

	if err := f.attest(t, attester, 1); err != nil {
		t.Fatalf("onattest: %v", err)
	}
	if got := f.balance(t, attester.addr); got.Sign() != 0 {
		t.Fatalf("attester balance = %s", got)
	}
	if got := f.balance(t, resolverAddr); got.Cmp(fee5) != 0 {
		t.Fatalf("resolver balance = %s", got)
	}
	if got := f.collected(t, f.recipient.addr); got.Cmp(fee5) != 0 {
		t.Fatalf("collected fees = %s", got)
	}

	if err := f.withdraw(t, f.recipient); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := f.balance(t, f.recipient.addr); got.Cmp(fee5) != 0 {
		t.Fatalf("recipient balance = %s", got)
	}
	if got := f.collected(t, f.recipient.addr); got.Sign() != 0 {
		t.Fatalf("collected after withdraw = %s", got)
	}
	total, err := f.resolver.TotalCollected(f.ctx)
	if err != nil || total.Cmp(fee5) != 0 {
		t.Fatalf("total collected = %v (%v)", total, err)
	}
	if len(f.events.Events(TopicFeeCollected)) != 1 || len(f.events.Events(TopicFeesWithdrawn)) != 1 {
		t.Fatalf("unexpected events: %+v", f.events.Events(""))
	}
}

func TestScenarioAttesterWithoutFunds(t *testing.T) {
	f := newFixture(t, fee5)
	attester := newSigner(t)

	err := f.attest(t, attester, 1)
	if !errors.Is(err, xerrors.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if got := f.collected(t, f.recipient.addr); got.Sign() != 0 {
		t.Fatalf("collected fees changed: %s", got)
	}
	if total, _ := f.resolver.TotalCollected(f.ctx); total.Sign() != 0 {
		t.Fatalf("total collected changed: %s", total)
	}

	// The failed call did not consume the attester's nonce.
	f.mint(t, attester.addr, fee5)
	attester.nonce--
	if err := f.attest(t, attester, 1); err != nil {
		t.Fatalf("retry with same nonce: %v", err)
	}
}

func TestScenarioRecipientChange(t *testing.T) {
	f := newFixture(t, fee5)
	attester := newSigner(t)
	f.mint(t, attester.addr, big.NewInt(20_0000000))

	if err := f.attest(t, attester, 1); err != nil {
		t.Fatalf("first onattest: %v", err)
	}
	next := newSigner(t)
	proofs := f.admin.prove(t, SetFeeRecipientInvocation(resolverAddr, f.admin.addr, next.addr))
	if err := f.resolver.SetFeeRecipient(f.ctx, proofs, f.admin.addr, next.addr); err != nil {
		t.Fatalf("set recipient: %v", err)
	}
	second := big.NewInt(7_0000000)
	proofs = f.admin.prove(t, SetAttestationFeeInvocation(resolverAddr, f.admin.addr, second))
	if err := f.resolver.SetAttestationFee(f.ctx, proofs, f.admin.addr, second); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	if err := f.attest(t, attester, 2); err != nil {
		t.Fatalf("second onattest: %v", err)
	}

	if got := f.collected(t, f.recipient.addr); got.Cmp(fee5) != 0 {
		t.Fatalf("old recipient fees = %s", got)
	}
	if got := f.collected(t, next.addr); got.Cmp(second) != 0 {
		t.Fatalf("new recipient fees = %s", got)
	}
	total, _ := f.resolver.TotalCollected(f.ctx)
	if total.Cmp(new(big.Int).Add(fee5, second)) != 0 {
		t.Fatalf("total collected = %s", total)
	}
	if current, _ := f.resolver.FeeRecipient(f.ctx); current != next.addr {
		t.Fatalf("fee recipient = %s", current.Hex())
	}

	// Both the former and the current recipient can withdraw their share.
	if err := f.withdraw(t, f.recipient); err != nil {
		t.Fatalf("former recipient withdraw: %v", err)
	}
	if err := f.withdraw(t, next); err != nil {
		t.Fatalf("current recipient withdraw: %v", err)
	}
	if got := f.balance(t, resolverAddr); got.Sign() != 0 {
		t.Fatalf("resolver should be drained, has %s", got)
	}
}

func TestZeroFeeNeedsNoProof(t *testing.T) {
	f := newFixture(t, big.NewInt(0))
	att := resolver.Attestation{UID: common.HexToHash("0x1"), Attester: common.HexToAddress("0xAA")}

	ok, err := f.resolver.OnAttest(f.ctx, nil, att)
	if err != nil || !ok {
		t.Fatalf("zero fee onattest: %v %v", ok, err)
	}
	if total, _ := f.resolver.TotalCollected(f.ctx); total.Sign() != 0 {
		t.Fatalf("zero fee changed total: %s", total)
	}
	if n := len(f.events.Events(TopicFeeCollected)); n != 0 {
		t.Fatalf("zero fee emitted %d events", n)
	}
}

func TestOnAttestRequiresAttesterProof(t *testing.T) {
	f := newFixture(t, fee5)
	attester := newSigner(t)
	f.mint(t, attester.addr, fee5)
	att := resolver.Attestation{UID: common.HexToHash("0x1"), Attester: attester.addr}

	if _, err := f.resolver.OnAttest(f.ctx, nil, att); !errors.Is(err, xerrors.ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
	thief := newSigner(t)
	proofs := thief.prove(t, resolver.AttestInvocation(resolverAddr, resolver.MethodOnAttest, att))
	if _, err := f.resolver.OnAttest(f.ctx, proofs, att); !errors.Is(err, xerrors.ErrNotAuthorized) {
		t.Fatalf("expected foreign proof to be rejected, got %v", err)
	}
	if got := f.balance(t, attester.addr); got.Cmp(fee5) != 0 {
		t.Fatalf("attester charged without consent: %s", got)
	}
}

func TestWithdrawFeesAuthorization(t *testing.T) {
	f := newFixture(t, fee5)
	attester := newSigner(t)
	f.mint(t, attester.addr, fee5)
	if err := f.attest(t, attester, 1); err != nil {
		t.Fatalf("onattest: %v", err)
	}

	stranger := newSigner(t)
	if err := f.withdraw(t, stranger); !errors.Is(err, xerrors.ErrNotAuthorized) {
		t.Fatalf("stranger withdraw: expected not authorized, got %v", err)
	}
	if err := f.resolver.WithdrawFees(f.ctx, nil, f.recipient.addr); !errors.Is(err, xerrors.ErrNotAuthorized) {
		t.Fatalf("unsigned withdraw: expected not authorized, got %v", err)
	}
	if got := f.collected(t, f.recipient.addr); got.Cmp(fee5) != 0 {
		t.Fatalf("fees moved by rejected withdraw: %s", got)
	}

	if err := f.withdraw(t, f.recipient); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	// Nothing left: a second withdrawal succeeds without moving tokens.
	if err := f.withdraw(t, f.recipient); err != nil {
		t.Fatalf("empty withdraw: %v", err)
	}
	if n := len(f.events.Events(TopicFeesWithdrawn)); n != 1 {
		t.Fatalf("expected one withdrawal event, got %d", n)
	}
}

func TestAdminOperations(t *testing.T) {
	f := newFixture(t, fee5)
	mallory := newSigner(t)

	cases := []struct {
		name string
		call func() error
		want error
	}{
		{
			name: "non-admin fee",
			call: func() error {
				return f.resolver.SetAttestationFee(f.ctx, mallory.prove(t, SetAttestationFeeInvocation(resolverAddr, mallory.addr, big.NewInt(1))), mallory.addr, big.NewInt(1))
			},
			want: xerrors.ErrNotAuthorized,
		},
		{
			name: "non-admin recipient",
			call: func() error {
				return f.resolver.SetFeeRecipient(f.ctx, mallory.prove(t, SetFeeRecipientInvocation(resolverAddr, mallory.addr, mallory.addr)), mallory.addr, mallory.addr)
			},
			want: xerrors.ErrNotAuthorized,
		},
		{
			name: "negative fee",
			call: func() error {
				return f.resolver.SetAttestationFee(f.ctx, f.admin.prove(t, SetAttestationFeeInvocation(resolverAddr, f.admin.addr, big.NewInt(-1))), f.admin.addr, big.NewInt(-1))
			},
			want: xerrors.ErrValidationFailed,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if fee, _ := f.resolver.AttestationFee(f.ctx); fee.Cmp(fee5) != 0 {
		t.Fatalf("fee changed by rejected call: %s", fee)
	}
	if recipient, _ := f.resolver.FeeRecipient(f.ctx); recipient != f.recipient.addr {
		t.Fatalf("recipient changed by rejected call: %s", recipient.Hex())
	}
}

func TestInitialization(t *testing.T) {
	h, _ := newHost(t)
	ctx := context.Background()
	admin := newSigner(t)
	recipient := common.HexToAddress("0xBEEF")

	t.Run("negative fee", func(t *testing.T) {
		r := New(h, common.HexToAddress("0x101"))
		err := r.Construct(ctx, Params{Admin: admin.addr, Token: tokenAddr, Fee: big.NewInt(-5), Recipient: recipient})
		if !errors.Is(err, xerrors.ErrValidationFailed) {
			t.Fatalf("expected validation failure, got %v", err)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		r := New(h, common.HexToAddress("0x102"))
		err := r.Construct(ctx, Params{Admin: admin.addr, Token: common.HexToAddress("0xDEAD"), Fee: fee5, Recipient: recipient})
		if !errors.Is(err, xerrors.ErrValidationFailed) {
			t.Fatalf("expected validation failure, got %v", err)
		}
		if ok, _ := r.Initialized(ctx); ok {
			t.Fatalf("failed construct persisted state")
		}
	})

	t.Run("legacy initialize", func(t *testing.T) {
		addr := common.HexToAddress("0x103")
		r := New(h, addr)
		p := Params{Admin: admin.addr, Token: tokenAddr, Fee: fee5, Recipient: recipient}
		if err := r.Initialize(ctx, nil, p); !errors.Is(err, xerrors.ErrNotAuthorized) {
			t.Fatalf("expected admin proof to be required, got %v", err)
		}
		if err := r.Initialize(ctx, admin.prove(t, InitializeInvocation(addr, p)), p); err != nil {
			t.Fatalf("initialize: %v", err)
		}
		if err := r.Initialize(ctx, admin.prove(t, InitializeInvocation(addr, p)), p); !errors.Is(err, xerrors.ErrAlreadyInitialized) {
			t.Fatalf("expected already initialized, got %v", err)
		}
		if err := r.Construct(ctx, p); !errors.Is(err, xerrors.ErrAlreadyInitialized) {
			t.Fatalf("expected already initialized on construct, got %v", err)
		}
	})

	t.Run("uninitialized", func(t *testing.T) {
		r := New(h, common.HexToAddress("0x104"))
		if _, err := r.TotalCollected(ctx); !errors.Is(err, xerrors.ErrUninitialized) {
			t.Fatalf("expected uninitialized, got %v", err)
		}
		if err := r.OnResolve(ctx, nil, common.Hash{}, common.Address{}); !errors.Is(err, xerrors.ErrUninitialized) {
			t.Fatalf("expected uninitialized, got %v", err)
		}
		if _, err := r.OnRevoke(ctx, nil, resolver.Attestation{}); !errors.Is(err, xerrors.ErrUninitialized) {
			t.Fatalf("expected uninitialized, got %v", err)
		}
	})
}

func TestOperatorDispatch(t *testing.T) {
	f := newFixture(t, fee5)
	next := common.HexToAddress("0x7E")
	op := resolver.Operation{Caller: f.admin.addr, Recipient: next}

	inv, err := Invocation(resolverAddr, MethodSetFeeRecipient, op)
	if err != nil {
		t.Fatalf("invocation: %v", err)
	}
	if err := f.resolver.Operate(f.ctx, MethodSetFeeRecipient, f.admin.prove(t, inv), op); err != nil {
		t.Fatalf("operate: %v", err)
	}
	if recipient, _ := f.resolver.FeeRecipient(f.ctx); recipient != next {
		t.Fatalf("recipient = %s", recipient.Hex())
	}
	if _, err := Invocation(resolverAddr, "fund_reward_pool", op); xerrors.CodeOf(err) != xerrors.CodeNotFound {
		t.Fatalf("expected unknown operation, got %v", err)
	}
	view, err := f.resolver.Account(f.ctx, f.recipient.addr)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if !view.(AccountView).Recipient {
		t.Fatalf("former recipient should keep the role")
	}
}

func TestResolverCannotPayItsOwnFee(t *testing.T) {
	ctx := context.Background()
	h := host.New(memory.New(),
		host.WithVerifier(auth.TrustAll{}),
		host.WithLogger(logger.Discard()),
		host.WithAuditLogger(logger.Discard()),
		host.WithObserver(func(string, string, time.Duration) {}),
	)
	if err := h.DeployToken(ctx, tokenAddr, token.Metadata{Name: "Fee", Symbol: "FEE", Decimals: 7}); err != nil {
		t.Fatalf("deploy token: %v", err)
	}
	admin := common.HexToAddress("0xAD")
	recipient := common.HexToAddress("0x7EC")
	attester := common.HexToAddress("0xA77E")
	r := New(h, resolverAddr)
	if err := r.Construct(ctx, Params{Admin: admin, Token: tokenAddr, Fee: fee5, Recipient: recipient}); err != nil {
		t.Fatalf("construct: %v", err)
	}
	if err := h.MintToken(ctx, tokenAddr, attester, fee5); err != nil {
		t.Fatalf("mint: %v", err)
	}

	paid := resolver.Attestation{UID: common.HexToHash("0x01"), Attester: attester}
	if _, err := r.OnAttest(ctx, auth.Proofs{{Signer: attester, Nonce: 1}}, paid); err != nil {
		t.Fatalf("onattest: %v", err)
	}

	self := resolver.Attestation{UID: common.HexToHash("0x02"), Attester: resolverAddr}
	_, err := r.OnAttest(ctx, auth.Proofs{{Signer: resolverAddr, Nonce: 1}}, self)
	if !errors.Is(err, xerrors.ErrValidationFailed) {
		t.Fatalf("expected VALIDATION_FAILED, got %v", err)
	}

	collected, err := r.CollectedFees(ctx, recipient)
	if err != nil || collected.Cmp(fee5) != 0 {
		t.Fatalf("unexpected accrued fees %v (%v)", collected, err)
	}
	total, err := r.TotalCollected(ctx)
	if err != nil || total.Cmp(fee5) != 0 {
		t.Fatalf("unexpected total collected %v (%v)", total, err)
	}
	held, err := h.TokenBalance(ctx, tokenAddr, resolverAddr)
	if err != nil || held.Cmp(total) != 0 {
		t.Fatalf("resolver holds %v but recorded %s", held, total)
	}
}
