package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"steadrent/core/events"
	"steadrent/core/genesis"
	"steadrent/core/state"
	"steadrent/core/types"
	"steadrent/crypto"
	"steadrent/native/exhibition"
	"steadrent/observability"
	telemetry "steadrent/observability/otel"
	"steadrent/storage"
)

// ErrGenesisApplied is returned when a genesis file is loaded into a ledger
// that already has one.
var ErrGenesisApplied = errors.New("core: genesis already applied")

// InstructionError reports an aborted instruction together with the tag shown
// to the caller. Nothing the instruction did was persisted.
type InstructionError struct {
	Instruction string
	Tag         string
	Err         error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("%s rejected (%s): %v", e.Instruction, e.Tag, e.Err)
}

func (e *InstructionError) Unwrap() error { return e.Err }

// Node serialises instructions against the ledger database. Every instruction
// runs on a fresh staged state and is committed in full or not at all.
type Node struct {
	db      storage.Database
	stateMu sync.Mutex

	depositPerByte  uint64
	reclaimOnCancel bool

	eventLog    *events.Log
	feed        *events.Feed
	subscribers events.Emitter
	logger      *slog.Logger
	tracer      trace.Tracer
	executed    metric.Int64Counter
	metrics     *observability.InstructionMetrics
}

// Option customises a Node.
type Option func(*Node)

// WithDepositRate sets the storage deposit charged per stored byte.
func WithDepositRate(perByte uint64) Option {
	return func(n *Node) { n.depositPerByte = perByte }
}

// WithReclaimOnCancel controls whether cancelling an exhibition returns the
// rented property immediately.
func WithReclaimOnCancel(enabled bool) Option {
	return func(n *Node) { n.reclaimOnCancel = enabled }
}

// WithLogger overrides the node logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithEmitter adds a subscriber receiving every committed event.
func WithEmitter(emitter events.Emitter) Option {
	return func(n *Node) { n.subscribers = emitter }
}

// WithEventLogCapacity bounds the in-memory event log served to queries.
func WithEventLogCapacity(capacity int) Option {
	return func(n *Node) { n.eventLog = events.NewLog(capacity) }
}

// NewNode creates a node over db.
func NewNode(db storage.Database, opts ...Option) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database must not be nil")
	}
	n := &Node{
		db:              db,
		reclaimOnCancel: true,
		eventLog:        events.NewLog(0),
		feed:            events.NewFeed(),
		logger:          slog.Default(),
		tracer:          telemetry.Tracer(),
		metrics:         observability.Instructions(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	counter, err := telemetry.Meter().Int64Counter("stead.instructions",
		metric.WithDescription("Instructions executed by the node."))
	if err != nil {
		return nil, fmt.Errorf("core: instruction counter: %w", err)
	}
	n.executed = counter
	n.logger = n.logger.With(slog.String("component", "node"))
	return n, nil
}

func (n *Node) newManager() *state.Manager {
	return state.NewManager(n.db, state.WithDepositRate(n.depositPerByte))
}

func (n *Node) newExhibitionEngine(manager *state.Manager, emitter events.Emitter) *exhibition.Engine {
	engine := exhibition.NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(emitter)
	engine.SetReclaimOnCancel(n.reclaimOnCancel)
	return engine
}

// execute runs fn as one instruction. Events emitted by fn are released to
// subscribers only after the commit succeeds.
func (n *Node) execute(ctx context.Context, name string, fn func(*exhibition.Engine) error) error {
	start := time.Now()
	_, span := n.tracer.Start(ctx, "instruction."+name, trace.WithAttributes(attribute.String("instruction", name)))
	defer span.End()

	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := n.newManager()
	buffer := &events.Buffer{}
	err := fn(n.newExhibitionEngine(manager, buffer))
	if err == nil {
		err = manager.Commit()
	}
	if err != nil {
		manager.Discard()
		tag := exhibition.ErrorTag(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, tag)
		n.metrics.Observe(name, tag, time.Since(start))
		n.executed.Add(ctx, 1, metric.WithAttributes(attribute.String("instruction", name), attribute.String("outcome", "aborted")))
		n.logger.Warn("instruction aborted",
			slog.String("instruction", name),
			slog.String("error_tag", tag),
			slog.Any("error", err))
		return &InstructionError{Instruction: name, Tag: tag, Err: err}
	}

	pending := buffer.Events()
	buffer.FlushTo(events.Multi{n.eventLog, metricsEmitter{}, n.feed, n.subscribers})
	n.metrics.Observe(name, "", time.Since(start))
	n.executed.Add(ctx, 1, metric.WithAttributes(attribute.String("instruction", name), attribute.String("outcome", "committed")))
	span.SetAttributes(attribute.Int("events", len(pending)))
	n.logger.Info("instruction committed",
		slog.String("instruction", name),
		slog.Int("events", len(pending)))
	return nil
}

// InitConfig creates the platform config singleton.
func (n *Node) InitConfig(ctx context.Context, payer, feeRecipient crypto.Identity, feeRateBps uint16) (*exhibition.GlobalConfig, error) {
	var cfg *exhibition.GlobalConfig
	err := n.execute(ctx, "InitConfig", func(engine *exhibition.Engine) error {
		if payer.IsZero() {
			return exhibition.ErrZeroIdentity
		}
		var err error
		cfg, err = engine.InitConfig(payer, feeRecipient, feeRateBps)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetConfig replaces the platform fee recipient and rate.
func (n *Node) SetConfig(ctx context.Context, caller, feeRecipient crypto.Identity, feeRateBps uint16) (*exhibition.GlobalConfig, error) {
	var cfg *exhibition.GlobalConfig
	err := n.execute(ctx, "SetConfig", func(engine *exhibition.Engine) error {
		var err error
		cfg, err = engine.SetConfig(caller, feeRecipient, feeRateBps)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenExhibition opens the exhibition bound to property.
func (n *Node) OpenExhibition(ctx context.Context, renter, payer, exhibitor, property crypto.Identity, renterFeeBps uint16) (crypto.Identity, *exhibition.Exhibition, error) {
	var (
		id crypto.Identity
		ex *exhibition.Exhibition
	)
	err := n.execute(ctx, "OpenExhibition", func(engine *exhibition.Engine) error {
		var err error
		id, ex, err = engine.OpenExhibition(renter, payer, exhibitor, property, renterFeeBps)
		return err
	})
	if err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	return id, ex, nil
}

// CancelExhibition cancels an active exhibition.
func (n *Node) CancelExhibition(ctx context.Context, id, caller crypto.Identity) (*exhibition.Exhibition, error) {
	var ex *exhibition.Exhibition
	err := n.execute(ctx, "CancelExhibition", func(engine *exhibition.Engine) error {
		var err error
		ex, err = engine.CancelExhibition(id, caller)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ex, nil
}

// CloseExhibition destroys an empty exhibition.
func (n *Node) CloseExhibition(ctx context.Context, id, caller crypto.Identity) error {
	return n.execute(ctx, "CloseExhibition", func(engine *exhibition.Engine) error {
		return engine.CloseExhibition(id, caller)
	})
}

// DepositItem consigns asset into the exhibition.
func (n *Node) DepositItem(ctx context.Context, id, caller, asset crypto.Identity, price uint64) (crypto.Identity, *exhibition.ExhibitionItem, error) {
	var (
		itemID crypto.Identity
		item   *exhibition.ExhibitionItem
	)
	err := n.execute(ctx, "DepositItem", func(engine *exhibition.Engine) error {
		var err error
		itemID, item, err = engine.DepositItem(id, caller, asset, price)
		return err
	})
	if err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	return itemID, item, nil
}

// WithdrawItem returns a consigned item to the exhibitor.
func (n *Node) WithdrawItem(ctx context.Context, id, caller, itemID crypto.Identity) error {
	return n.execute(ctx, "WithdrawItem", func(engine *exhibition.Engine) error {
		return engine.WithdrawItem(id, caller, itemID)
	})
}

// PurchaseItem buys an item. A zero destination delivers to the buyer.
func (n *Node) PurchaseItem(ctx context.Context, id, buyer, itemID, destination crypto.Identity) (*exhibition.Receipt, error) {
	var receipt *exhibition.Receipt
	err := n.execute(ctx, "PurchaseItem", func(engine *exhibition.Engine) error {
		var err error
		receipt, err = engine.PurchaseItem(id, buyer, itemID, destination)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.metrics.RecordPurchase(receipt.Price, receipt.Split.Renter, receipt.Split.Platform, receipt.Split.Exhibitor)
	return receipt, nil
}

// ApplyGenesis seeds an empty ledger.
func (n *Node) ApplyGenesis(ctx context.Context, spec *genesis.Spec) error {
	if spec == nil {
		return fmt.Errorf("core: genesis spec must not be nil")
	}
	_, span := n.tracer.Start(ctx, "genesis.apply")
	defer span.End()

	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := n.newManager()
	applied, err := manager.GenesisApplied()
	if err != nil {
		return err
	}
	if applied {
		return ErrGenesisApplied
	}
	if err := spec.Apply(manager); err != nil {
		manager.Discard()
		return fmt.Errorf("core: apply genesis: %w", err)
	}
	if err := manager.Commit(); err != nil {
		return err
	}
	n.logger.Info("genesis applied",
		slog.Int("balances", len(spec.Balances)),
		slog.Int("assets", len(spec.Assets)))
	return nil
}

type metricsEmitter struct{}

func (metricsEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	recorder := observability.Events()
	recorder.RecordEvent(evt.EventType())
	switch evt.(type) {
	case events.Transfer:
		recorder.RecordTransfer("native")
	case events.AssetTransfer:
		recorder.RecordTransfer("asset")
	}
}

// Events returns recently committed events, newest last.
func (n *Node) Events(prefix string, limit int) []events.LogEntry {
	return n.eventLog.Recent(prefix, limit)
}

// SubscribeEvents streams events committed after the call. The cancel func
// must be called to release the subscription.
func (n *Node) SubscribeEvents(buffer int) (<-chan *types.Event, func()) {
	return n.feed.Subscribe(buffer)
}

// EventSubscribers reports the number of live event subscriptions.
func (n *Node) EventSubscribers() int {
	return n.feed.Subscribers()
}
