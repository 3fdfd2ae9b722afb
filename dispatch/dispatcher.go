// Package dispatch sends sign-data and send-transaction requests to the
// connected wallet and tracks each through pending, success and error.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/layer-3/tonauth/core"
	"github.com/layer-3/tonauth/ports"
)

// Options selects which phases show a notification or open a modal
type Options struct {
	Modals        []core.Phase
	Notifications []core.Phase
}

// DefaultOptions opens a modal before the request and notifies on every phase
func DefaultOptions() Options {
	return Options{
		Modals:        []core.Phase{core.PhaseBefore},
		Notifications: []core.Phase{core.PhaseBefore, core.PhaseSuccess, core.PhaseError},
	}
}

// Session exposes the connection state the dispatcher needs
type Session interface {
	Snapshot() core.Snapshot
}

var actionNames = map[core.OperationKind]map[core.Phase]string{
	core.KindSendTransaction: {
		core.PhaseBefore:  "confirm-transaction",
		core.PhaseSuccess: "transaction-sent",
		core.PhaseError:   "transaction-canceled",
	},
	core.KindSignData: {
		core.PhaseBefore:  "confirm-sign-data",
		core.PhaseSuccess: "data-signed",
		core.PhaseError:   "sign-data-canceled",
	},
}

// Dispatcher wraps wallet requests in a uniform operation envelope.
// One operation per kind is tracked; starting another supersedes it.
type Dispatcher struct {
	bridge  ports.Bridge
	session Session
	sink    ports.ActionSink
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	nextID uint64
	ops    map[core.OperationKind]core.Operation
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithClock overrides the time source used for validUntil checks
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// New creates a dispatcher. A nil sink discards actions.
func New(bridge ports.Bridge, session Session, sink ports.ActionSink, opts ...Option) *Dispatcher {
	if sink == nil {
		sink = nopSink{}
	}
	d := &Dispatcher{
		bridge:  bridge,
		session: session,
		sink:    sink,
		logger:  slog.Default(),
		now:     time.Now,
		ops:     make(map[core.OperationKind]core.Operation),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Operation returns the tracked operation of a kind; Status is idle if none ran
func (d *Dispatcher) Operation(kind core.OperationKind) core.Operation {
	d.mu.Lock()
	defer d.mu.Unlock()
	op, ok := d.ops[kind]
	if !ok {
		return core.Operation{Kind: kind, Status: core.OperationIdle}
	}
	return op
}

// SendTransaction dispatches a send-transaction request
func (d *Dispatcher) SendTransaction(ctx context.Context, tx core.Transaction, opts *Options) (core.TransactionResult, error) {
	resp, err := d.Dispatch(ctx, core.KindSendTransaction, tx, opts)
	if err != nil {
		return core.TransactionResult{}, err
	}
	return resp.(core.TransactionResult), nil
}

// SignData dispatches a sign-data request
func (d *Dispatcher) SignData(ctx context.Context, payload core.SignDataPayload, opts *Options) (core.SignDataResult, error) {
	resp, err := d.Dispatch(ctx, core.KindSignData, payload, opts)
	if err != nil {
		return core.SignDataResult{}, err
	}
	return resp.(core.SignDataResult), nil
}

// Dispatch validates payload, sends it to the wallet and records the outcome.
// Validation failures return before any operation is tracked. nil opts means
// DefaultOptions.
func (d *Dispatcher) Dispatch(ctx context.Context, kind core.OperationKind, payload any, opts *Options) (any, error) {
	snap := d.session.Snapshot()
	if !snap.Connected() || snap.Wallet == nil {
		return nil, core.ErrNotConnected
	}

	call, err := d.prepare(kind, payload, snap.Wallet.Account.Chain)
	if err != nil {
		d.logger.Info("request rejected locally", "kind", kind, "err", err)
		return nil, err
	}

	effects := DefaultOptions()
	if opts != nil {
		effects = *opts
	}

	id := d.start(kind, payload)
	logger := d.logger.With("kind", kind, "op_id", id)
	defer d.sink.ClearAction()

	d.sink.SetAction(action(kind, core.PhaseBefore, effects))
	resp, err := call(ctx)
	if err != nil {
		err = classify(err)
		d.finish(kind, id, nil, err)
		d.sink.SetAction(action(kind, core.PhaseError, effects))
		if errors.Is(err, core.ErrUserRejected) {
			logger.Info("request rejected in wallet")
		} else {
			logger.Warn("request failed", "err", err)
		}
		return nil, err
	}

	d.finish(kind, id, resp, nil)
	d.sink.SetAction(action(kind, core.PhaseSuccess, effects))
	logger.Info("request completed")
	return resp, nil
}

// prepare validates payload and binds the bridge call for kind
func (d *Dispatcher) prepare(kind core.OperationKind, payload any, chain string) (func(context.Context) (any, error), error) {
	switch kind {
	case core.KindSendTransaction:
		tx, ok := payload.(core.Transaction)
		if !ok {
			return nil, core.Invalid("payload", "want a transaction, got %T", payload)
		}
		if err := ValidateTransaction(tx, chain, d.now()); err != nil {
			return nil, err
		}
		return func(ctx context.Context) (any, error) { return d.bridge.SendTransaction(ctx, tx) }, nil

	case core.KindSignData:
		p, ok := payload.(core.SignDataPayload)
		if !ok {
			return nil, core.Invalid("payload", "want a sign-data payload, got %T", payload)
		}
		if err := ValidateSignData(p); err != nil {
			return nil, err
		}
		return func(ctx context.Context) (any, error) { return d.bridge.SignData(ctx, p) }, nil

	default:
		return nil, core.Invalid("kind", "unknown operation kind %q", kind)
	}
}

func (d *Dispatcher) start(kind core.OperationKind, payload any) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.ops[kind] = core.Operation{ID: d.nextID, Kind: kind, Request: payload, Status: core.OperationPending}
	return d.nextID
}

// finish records the outcome unless a newer operation of the same kind started
func (d *Dispatcher) finish(kind core.OperationKind, id uint64, resp any, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	op := d.ops[kind]
	if op.ID != id {
		return
	}
	if err != nil {
		op.Status = core.OperationError
		op.Err = err
	} else {
		op.Status = core.OperationSuccess
		op.Response = resp
	}
	d.ops[kind] = op
}

func action(kind core.OperationKind, phase core.Phase, opts Options) core.Action {
	return core.Action{
		Name:             actionNames[kind][phase],
		Kind:             kind,
		Phase:            phase,
		ShowNotification: slices.Contains(opts.Notifications, phase),
		OpenModal:        slices.Contains(opts.Modals, phase),
	}
}

func classify(err error) error {
	if errors.Is(err, core.ErrUserRejected) || errors.Is(err, core.ErrBridge) {
		return err
	}
	return fmt.Errorf("%w: %v", core.ErrBridge, err)
}
