// Package session owns the wallet connection lifecycle: connect, optional
// proof-of-ownership verification, restoration and disconnect.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/layer-3/tonauth/core"
	"github.com/layer-3/tonauth/internal/ton"
	"github.com/layer-3/tonauth/ports"
)

// StorageKey is the key the last connected wallet's metadata is persisted under
const StorageKey = "ton-connect-ui_wallet-info"

// Manager is the single source of truth for a wallet session. All state
// changes go through one reducer; bridge and network calls are made
// without holding the state lock, and their results are dropped if a
// disconnect or newer connect happened in the meantime.
type Manager struct {
	bridge     ports.Bridge
	challenges ports.ChallengeSource
	checker    ports.ProofChecker
	kv         ports.KeyValue
	publisher  ports.EventPublisher
	logger     *slog.Logger
	now        func() time.Time
	log        *EventLog

	opMu sync.Mutex // serialises Restore and Disconnect
	kvMu sync.Mutex // one writer of the persisted wallet info at a time

	mu          sync.Mutex
	state       core.Snapshot
	generation  uint64
	genCtx      context.Context
	genCancel   context.CancelFunc
	restoring   bool
	subscribers map[int]func(core.Snapshot)
	nextSub     int

	unsubscribe func()
}

// Option configures a Manager
type Option func(*Manager)

// WithEventLogSize bounds the connection event log
func WithEventLogSize(size int) Option {
	return func(m *Manager) { m.log = NewEventLog(size) }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithEventPublisher forwards every connection event to publisher
func WithEventPublisher(publisher ports.EventPublisher) Option {
	return func(m *Manager) { m.publisher = publisher }
}

// WithClock overrides the time source for event timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a session manager and subscribes it to bridge status changes
func NewManager(
	bridge ports.Bridge,
	challenges ports.ChallengeSource,
	checker ports.ProofChecker,
	kv ports.KeyValue,
	opts ...Option,
) *Manager {
	m := &Manager{
		bridge:      bridge,
		challenges:  challenges,
		checker:     checker,
		kv:          kv,
		logger:      slog.Default(),
		now:         time.Now,
		log:         NewEventLog(DefaultEventLogSize),
		subscribers: make(map[int]func(core.Snapshot)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.genCtx, m.genCancel = context.WithCancel(context.Background())
	m.unsubscribe = bridge.OnStatusChange(m.OnWalletChange, m.onBridgeError)
	return m
}

// Close detaches the manager from the bridge and cancels in-flight work
func (m *Manager) Close() {
	m.unsubscribe()
	m.mu.Lock()
	m.genCancel()
	m.mu.Unlock()
}

// Snapshot returns the current session state
func (m *Manager) Snapshot() core.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Events returns the connection event log, oldest first
func (m *Manager) Events() []core.ConnectionEvent {
	return m.log.Events()
}

// Subscribe registers fn to receive a snapshot after every state change
func (m *Manager) Subscribe(fn func(core.Snapshot)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subscribers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

// Connect opens a plain wallet connection
func (m *Manager) Connect(ctx context.Context) error {
	return m.connect(ctx, false)
}

// ConnectWithProof opens a connection and asks the wallet for a TonProof
// over the current challenge, issuing one first if none is held
func (m *Manager) ConnectWithProof(ctx context.Context) error {
	return m.connect(ctx, true)
}

func (m *Manager) connect(ctx context.Context, withProof bool) error {
	m.mu.Lock()
	if m.state.Connected() {
		m.mu.Unlock()
		return core.ErrAlreadyConnected
	}
	gen := m.bumpLocked()
	genCtx := m.genCtx
	m.state.Status = core.StatusConnecting
	challenge := m.state.Challenge
	m.mu.Unlock()
	m.notify()

	opCtx, cancel := withGeneration(ctx, genCtx)
	defer cancel()

	var req core.ConnectRequest
	if withProof {
		if challenge == nil {
			issued, err := m.GenerateChallenge(opCtx)
			if err != nil {
				m.abortConnect(gen)
				return err
			}
			challenge = &issued
		}
		req.ProofPayload = challenge.Hash
	}

	wallet, err := m.bridge.Connect(opCtx, req)

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		m.logger.Debug("discarding superseded connect result")
		return core.ErrSuperseded
	}
	if err != nil || wallet == nil {
		m.state.Status = core.StatusDisconnected
		m.mu.Unlock()
		m.notify()
		if err != nil {
			return m.bridgeError("connect", err)
		}
		m.logger.Info("connect cancelled by user")
		return nil
	}
	event := m.applyLocked(wallet)
	gen = m.generation
	m.mu.Unlock()

	m.afterApply(gen, wallet, event)
	return nil
}

func (m *Manager) abortConnect(gen uint64) {
	m.mu.Lock()
	if gen == m.generation && m.state.Status == core.StatusConnecting {
		m.state.Status = core.StatusDisconnected
	}
	m.mu.Unlock()
	m.notify()
}

// OnWalletChange is the bridge status callback. A nil wallet means the
// connection was lost.
func (m *Manager) OnWalletChange(wallet *core.Wallet) {
	m.mu.Lock()
	var event *core.ConnectionEvent
	if wallet == nil {
		if m.state.Status == core.StatusDisconnected {
			m.mu.Unlock()
			return
		}
		m.bumpLocked()
		event = m.resetLocked()
	} else {
		event = m.applyLocked(wallet)
	}
	gen := m.generation
	m.mu.Unlock()

	if wallet == nil {
		m.clearInfo(context.Background())
		m.record(event)
		m.notify()
		return
	}
	m.afterApply(gen, wallet, event)
}

func (m *Manager) onBridgeError(err error) {
	m.logger.Warn("bridge reported an error", "err", err)
	m.OnWalletChange(nil)
}

// applyLocked folds a connected wallet into the state and returns the
// event to record, if any. Bridge-provided metadata wins over persisted.
// Switching account or proof starts a new generation.
func (m *Manager) applyLocked(wallet *core.Wallet) *core.ConnectionEvent {
	prev := m.state
	same := false
	if prev.Connected() && prev.Wallet != nil {
		a, errA := ton.ParseAddress(prev.Wallet.Account.Address)
		b, errB := ton.ParseAddress(wallet.Account.Address)
		same = errA == nil && errB == nil && ton.SameAddress(a, b)
	}

	next := *wallet
	if next.Proof == nil && same {
		next.Proof = prev.Wallet.Proof
	}
	if wallet.Info != nil && !wallet.Info.IsZero() {
		m.state.Info = *wallet.Info
	}
	m.state.Wallet = &next

	// a fresh proof or another account needs a fresh verification, and
	// checks still running against the old one must not land
	if !same || wallet.Proof != nil {
		m.bumpLocked()
		m.state.Status = core.StatusConnected
		m.state.AuthToken = ""
		m.state.Verification = nil
	}

	if same {
		return nil
	}
	typ := core.EventConnected
	if m.restoring {
		typ = core.EventReconnected
	}
	return m.eventLocked(typ)
}

// resetLocked clears the session and returns a disconnected event if a
// wallet was attached
func (m *Manager) resetLocked() *core.ConnectionEvent {
	var event *core.ConnectionEvent
	if m.state.Connected() {
		event = m.eventLocked(core.EventDisconnected)
	}
	m.state = core.Snapshot{Status: core.StatusDisconnected, Challenge: m.state.Challenge}
	return event
}

func (m *Manager) eventLocked(typ core.EventType) *core.ConnectionEvent {
	event := &core.ConnectionEvent{Type: typ, Timestamp: m.now().UTC()}
	if m.state.Wallet != nil {
		event.Address = m.state.Wallet.Account.Address
		event.WalletName = m.state.Wallet.Device.AppName
	}
	if m.state.Info.Name != "" {
		event.WalletName = m.state.Info.Name
	}
	return event
}

func (m *Manager) afterApply(gen uint64, wallet *core.Wallet, event *core.ConnectionEvent) {
	if wallet.Info != nil && !wallet.Info.IsZero() {
		m.persistInfo(context.Background(), gen, *wallet.Info)
	}
	m.record(event)
	m.notify()
}

// bumpLocked starts a new generation, cancelling work tied to the old one
func (m *Manager) bumpLocked() uint64 {
	m.generation++
	m.genCancel()
	m.genCtx, m.genCancel = context.WithCancel(context.Background())
	return m.generation
}

// withGeneration derives a context that is also cancelled when gen ends
func withGeneration(ctx, gen context.Context) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(gen, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

// GenerateChallenge fetches a new challenge, replacing the current one and
// any verification made against it
func (m *Manager) GenerateChallenge(ctx context.Context) (core.IssuedChallenge, error) {
	issued, err := m.challenges.CreateChallenge(ctx)
	if err != nil {
		return core.IssuedChallenge{}, fmt.Errorf("failed to generate challenge: %w", err)
	}

	m.mu.Lock()
	m.state.Challenge = &issued
	m.state.Verification = nil
	m.mu.Unlock()
	m.notify()
	return issued, nil
}

// VerifyProof checks the captured proof against the current challenge.
// Every call is a fresh check; a failure downgrades an authenticated
// session back to connected.
func (m *Manager) VerifyProof(ctx context.Context) (core.VerificationResult, error) {
	m.mu.Lock()
	switch {
	case !m.state.Connected() || m.state.Wallet == nil:
		m.mu.Unlock()
		return core.VerificationResult{}, core.ErrNotConnected
	case m.state.Wallet.Proof == nil:
		m.mu.Unlock()
		return core.VerificationResult{}, core.ErrNoProof
	case m.state.Challenge == nil:
		m.mu.Unlock()
		return core.VerificationResult{}, core.ErrNoChallenge
	}
	gen := m.generation
	genCtx := m.genCtx
	req := core.ProofCheckRequest{
		Account:      m.state.Wallet.Account,
		Proof:        *m.state.Wallet.Proof,
		PayloadToken: m.state.Challenge.Token,
	}
	m.mu.Unlock()

	opCtx, cancel := withGeneration(ctx, genCtx)
	defer cancel()

	check, err := m.checker.CheckProof(opCtx, req)
	if err != nil && !errors.Is(err, core.ErrMalformedProof) {
		return core.VerificationResult{}, fmt.Errorf("failed to check proof: %w", err)
	}

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return core.VerificationResult{}, core.ErrSuperseded
	}
	result := check.Result
	m.state.Verification = &result
	if err == nil && result.Valid() && check.Token != "" {
		m.state.Status = core.StatusAuthenticated
		m.state.AuthToken = check.Token
	} else {
		m.state.Status = core.StatusConnected
		m.state.AuthToken = ""
	}
	address := req.Account.Address
	m.mu.Unlock()
	m.notify()

	if err != nil {
		m.logger.Warn("malformed proof", "address", address, "err", err)
		return result, err
	}
	if result.Valid() {
		m.logger.Info("wallet authenticated", "address", address)
	} else {
		m.logger.Info("proof rejected", "address", address, "failed", result.Failed())
	}
	return result, nil
}

// Disconnect tears the session down. Local state is always cleared; a
// bridge failure is logged and ignored. Disconnecting an already
// disconnected session does nothing.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.state.Status == core.StatusDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.bumpLocked()
	event := m.resetLocked()
	m.mu.Unlock()

	m.clearInfo(ctx)
	if err := m.bridge.Disconnect(ctx); err != nil {
		m.logger.Warn("bridge disconnect failed", "err", err)
	}
	m.record(event)
	m.notify()
	return nil
}

// Restore reattaches the last connected wallet, if its metadata was persisted.
// When the bridge cannot restore the connection the metadata is removed.
func (m *Manager) Restore(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	raw, ok, err := m.kv.Get(ctx, StorageKey)
	if err != nil {
		return fmt.Errorf("failed to read wallet info: %w", err)
	}
	if !ok {
		return nil
	}

	var info core.WalletInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		m.logger.Warn("discarding unreadable wallet info", "err", err)
		m.clearInfo(ctx)
		return nil
	}

	m.mu.Lock()
	if m.state.Connected() {
		m.mu.Unlock()
		return nil
	}
	m.state.Info = info
	m.restoring = true
	m.mu.Unlock()

	restoreErr := m.bridge.RestoreConnection(ctx)

	m.mu.Lock()
	m.restoring = false
	connected := m.state.Connected()
	if !connected {
		m.state.Info = core.WalletInfo{}
	}
	m.mu.Unlock()

	if !connected {
		m.clearInfo(ctx)
		m.notify()
	}
	if restoreErr != nil {
		return m.bridgeError("restore", restoreErr)
	}
	return nil
}

func (m *Manager) persistInfo(ctx context.Context, gen uint64, info core.WalletInfo) {
	raw, err := json.Marshal(info)
	if err != nil {
		m.logger.Warn("failed to encode wallet info", "err", err)
		return
	}

	m.kvMu.Lock()
	defer m.kvMu.Unlock()

	m.mu.Lock()
	current := gen == m.generation && m.state.Connected()
	m.mu.Unlock()
	if !current {
		return
	}
	if err := m.kv.Set(ctx, StorageKey, string(raw)); err != nil {
		m.logger.Warn("failed to persist wallet info", "err", err)
	}
}

func (m *Manager) clearInfo(ctx context.Context) {
	m.kvMu.Lock()
	defer m.kvMu.Unlock()
	if err := m.kv.Delete(ctx, StorageKey); err != nil {
		m.logger.Warn("failed to remove wallet info", "err", err)
	}
}

func (m *Manager) record(event *core.ConnectionEvent) {
	if event == nil {
		return
	}
	m.log.Append(*event)
	m.logger.Info("wallet "+string(event.Type), "address", event.Address, "wallet", event.WalletName)

	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishConnection(context.Background(), *event); err != nil {
		m.logger.Warn("failed to publish connection event", "err", err)
	}
}

func (m *Manager) notify() {
	m.mu.Lock()
	snapshot := m.state
	subscribers := make([]func(core.Snapshot), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subscribers = append(subscribers, fn)
	}
	m.mu.Unlock()

	for _, fn := range subscribers {
		fn(snapshot)
	}
}

func (m *Manager) bridgeError(op string, err error) error {
	if errors.Is(err, core.ErrUserRejected) {
		m.logger.Info("user rejected "+op)
		return err
	}
	m.logger.Warn(op+" failed", "err", err)
	if errors.Is(err, core.ErrBridge) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", core.ErrBridge, op, err)
}
