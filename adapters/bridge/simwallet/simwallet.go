// Package simwallet is an in-process wallet that speaks the bridge port.
// It signs proofs, data and transactions with a local Ed25519 key and is
// meant for demos and end-to-end tests.
package simwallet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/layer-3/tonauth/core"
	"github.com/layer-3/tonauth/internal/ton"
	"github.com/layer-3/tonauth/ports"
)

const defaultWalletID = 698983191

// Wallet is a simulated wallet. Connect results are returned directly and
// are not echoed through OnStatusChange; restores and wallet-side drops are.
type Wallet struct {
	key       ed25519.PrivateKey
	stateInit string
	addr      *address.Address
	domain    string
	network   string
	info      core.WalletInfo
	now       func() time.Time

	mu         sync.Mutex
	connected  bool
	session    bool // remembered connection for RestoreConnection
	rejectNext bool
	listeners  map[int]func(*core.Wallet)
	nextID     int
}

var _ ports.Bridge = (*Wallet)(nil)

// Option configures a Wallet
type Option func(*Wallet)

// WithKey uses a fixed private key instead of a random one
func WithKey(key ed25519.PrivateKey) Option {
	return func(w *Wallet) { w.key = key }
}

// WithClock overrides the time source used for timestamps
func WithClock(now func() time.Time) Option {
	return func(w *Wallet) { w.now = now }
}

// WithNetwork sets the chain the wallet reports
func WithNetwork(network string) Option {
	return func(w *Wallet) { w.network = network }
}

// WithInfo sets the wallet metadata delivered on connect
func WithInfo(info core.WalletInfo) Option {
	return func(w *Wallet) { w.info = info }
}

// New creates a wallet that signs for the given app domain
func New(domain string, opts ...Option) (*Wallet, error) {
	w := &Wallet{
		domain:    domain,
		network:   core.NetworkMainnet,
		info:      core.WalletInfo{Name: "Simulated Wallet", AppName: "simwallet"},
		now:       time.Now,
		listeners: make(map[int]func(*core.Wallet)),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.key == nil {
		_, key, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate wallet key: %w", err)
		}
		w.key = key
	}

	si, addr := ton.NewWalletStateInit(w.key.Public().(ed25519.PublicKey), defaultWalletID)
	w.stateInit = base64.StdEncoding.EncodeToString(si.ToBOC())
	w.addr = addr
	return w, nil
}

// Account returns the account the wallet reports to the dApp
func (w *Wallet) Account() core.Account {
	return core.Account{
		Address:         ton.RawAddress(w.addr),
		Chain:           w.network,
		PublicKey:       fmt.Sprintf("%x", []byte(w.key.Public().(ed25519.PublicKey))),
		WalletStateInit: w.stateInit,
	}
}

// SignProof produces a TonProof over payload for the wallet's domain
func (w *Wallet) SignProof(payload string) core.Proof {
	ts := w.now().Unix()
	digest := ton.ProofDigest(w.addr, w.domain, ts, payload)
	return core.Proof{
		Timestamp: ts,
		Domain:    core.Domain{LengthBytes: uint32(len(w.domain)), Value: w.domain},
		Payload:   payload,
		Signature: base64.StdEncoding.EncodeToString(ed25519.Sign(w.key, digest)),
		StateInit: w.stateInit,
	}
}

// RejectNext makes the next request fail as if the user declined it
func (w *Wallet) RejectNext() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rejectNext = true
}

func (w *Wallet) takeRejection() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	r := w.rejectNext
	w.rejectNext = false
	return r
}

func (w *Wallet) wallet(proof *core.Proof) *core.Wallet {
	info := w.info
	return &core.Wallet{
		Account: w.Account(),
		Device:  core.Device{AppName: w.info.AppName, AppVersion: "1.0.0", Platform: "linux"},
		Info:    &info,
		Proof:   proof,
	}
}

// Connect approves the connection, signing a proof when one is requested
func (w *Wallet) Connect(ctx context.Context, req core.ConnectRequest) (*core.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrBridge, err)
	}
	if w.takeRejection() {
		return nil, core.ErrUserRejected
	}

	var proof *core.Proof
	if req.ProofPayload != "" {
		p := w.SignProof(req.ProofPayload)
		proof = &p
	}

	w.mu.Lock()
	w.connected = true
	w.session = true
	w.mu.Unlock()
	return w.wallet(proof), nil
}

// RestoreConnection re-announces a remembered connection to listeners
func (w *Wallet) RestoreConnection(ctx context.Context) error {
	w.mu.Lock()
	restore := w.session
	w.connected = restore
	w.mu.Unlock()

	if restore {
		w.notify(w.wallet(nil))
	}
	return nil
}

// Disconnect forgets the connection
func (w *Wallet) Disconnect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = false
	w.session = false
	return nil
}

// Drop simulates the user disconnecting from inside the wallet app
func (w *Wallet) Drop() {
	w.mu.Lock()
	w.connected = false
	w.session = false
	w.mu.Unlock()
	w.notify(nil)
}

// SendTransaction signs the transaction into a BOC
func (w *Wallet) SendTransaction(ctx context.Context, tx core.Transaction) (core.TransactionResult, error) {
	if err := w.ready(ctx); err != nil {
		return core.TransactionResult{}, err
	}
	if tx.ValidUntil != 0 && tx.ValidUntil < w.now().Unix() {
		return core.TransactionResult{}, fmt.Errorf("%w: transaction expired", core.ErrBridge)
	}

	b := cell.BeginCell().
		MustStoreUInt(uint64(tx.ValidUntil), 64).
		MustStoreUInt(uint64(len(tx.Messages)), 8)
	body := b.EndCell()
	signed := cell.BeginCell().
		MustStoreSlice(ed25519.Sign(w.key, body.Hash()), 512).
		MustStoreRef(body).
		EndCell()

	return core.TransactionResult{BOC: base64.StdEncoding.EncodeToString(signed.ToBOC())}, nil
}

// SignData signs the payload for the wallet's domain
func (w *Wallet) SignData(ctx context.Context, payload core.SignDataPayload) (core.SignDataResult, error) {
	if err := w.ready(ctx); err != nil {
		return core.SignDataResult{}, err
	}

	ts := w.now().Unix()
	digest, err := ton.SignDataDigest(w.addr, w.domain, ts, payload)
	if err != nil {
		return core.SignDataResult{}, fmt.Errorf("%w: %v", core.ErrBridge, err)
	}
	return core.SignDataResult{
		Signature: base64.StdEncoding.EncodeToString(ed25519.Sign(w.key, digest)),
		Address:   ton.RawAddress(w.addr),
		Timestamp: ts,
		Domain:    w.domain,
		Payload:   payload,
	}, nil
}

func (w *Wallet) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrBridge, err)
	}
	if w.takeRejection() {
		return core.ErrUserRejected
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.connected {
		return fmt.Errorf("%w: wallet not connected", core.ErrBridge)
	}
	return nil
}

// OnStatusChange registers a listener; onError is never called by the simulation
func (w *Wallet) OnStatusChange(onWallet func(*core.Wallet), onError func(error)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = onWallet
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.listeners, id)
	}
}

func (w *Wallet) notify(wallet *core.Wallet) {
	w.mu.Lock()
	listeners := make([]func(*core.Wallet), 0, len(w.listeners))
	for _, l := range w.listeners {
		listeners = append(listeners, l)
	}
	w.mu.Unlock()

	for _, l := range listeners {
		l(wallet)
	}
}
