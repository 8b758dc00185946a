package exhibition

import (
	"errors"
	"fmt"

	"steadrent/core/events"
	"steadrent/core/types"
	"steadrent/crypto"
)

var errNilState = errors.New("exhibition engine: state not configured")

type engineState interface {
	ExhibitionConfigGet(addr crypto.Identity) (*GlobalConfig, bool, error)
	ExhibitionConfigCreate(addr, payer crypto.Identity, cfg *GlobalConfig) error
	ExhibitionConfigPut(addr crypto.Identity, cfg *GlobalConfig) error
	ExhibitionGet(addr crypto.Identity) (*Exhibition, bool, error)
	ExhibitionCreate(addr, payer crypto.Identity, ex *Exhibition) error
	ExhibitionPut(addr crypto.Identity, ex *Exhibition) error
	ExhibitionClose(addr, recipient crypto.Identity) error
	ExhibitionItemGet(addr crypto.Identity) (*ExhibitionItem, bool, error)
	ExhibitionItemCreate(addr, payer crypto.Identity, item *ExhibitionItem) error
	ExhibitionItemClose(addr, recipient crypto.Identity) error

	Transfer(from, to crypto.Identity, amount uint64) error
	WalletHoldingAddress(owner, asset crypto.Identity) (crypto.Identity, error)
	HoldingAccount(addr crypto.Identity) (*types.HoldingAccount, bool, error)
	OpenHoldingAccount(addr, payer, asset, authority crypto.Identity) error
	EnsureWalletHolding(owner, asset, payer crypto.Identity) (crypto.Identity, error)
	TransferAsset(signer types.Signer, from, to crypto.Identity, amount uint64) error
	CloseHoldingAccount(signer types.Signer, addr, recipient crypto.Identity) error
}

type exhibitionEvent struct {
	evt *types.Event
}

func (e exhibitionEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e exhibitionEvent) Event() *types.Event { return e.evt }

// Engine executes the consignment instructions against a ledger state. Each
// call is expected to run inside its own staged state; the engine itself
// never commits.
type Engine struct {
	state           engineState
	emitter         events.Emitter
	reclaimOnCancel bool
}

// NewEngine creates an exhibition engine with a no-op emitter. Cancelling an
// exhibition returns the rented property to the renter unless disabled with
// SetReclaimOnCancel.
func NewEngine() *Engine {
	return &Engine{
		emitter:         events.NoopEmitter{},
		reclaimOnCancel: true,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetReclaimOnCancel controls whether CancelExhibition returns the rented
// property immediately. When disabled the property is returned by
// CloseExhibition.
func (e *Engine) SetReclaimOnCancel(enabled bool) { e.reclaimOnCancel = enabled }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(exhibitionEvent{evt: event})
}

func (e *Engine) emitRaw(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

// requireParties rejects the zero identity for every acting party and payer.
// Only genesis funds records from the zero payer.
func requireParties(ids ...crypto.Identity) error {
	for _, id := range ids {
		if id.IsZero() {
			return ErrZeroIdentity
		}
	}
	return nil
}

func (e *Engine) loadConfig() (crypto.Identity, *GlobalConfig, error) {
	addr, _, err := ConfigAddress()
	if err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	cfg, ok, err := e.state.ExhibitionConfigGet(addr)
	if err != nil {
		return crypto.ZeroIdentity, nil, notFoundOnType(err, ErrConfigNotFound, addr)
	}
	if !ok {
		return crypto.ZeroIdentity, nil, ErrConfigNotFound
	}
	return addr, cfg, nil
}

// notFoundOnType reports a record of the wrong kind as the missing record the
// caller asked for.
func notFoundOnType(err, notFound error, addr crypto.Identity) error {
	if errors.Is(err, ErrRecordType) {
		return fmt.Errorf("%w: %s holds another record type", notFound, addr)
	}
	return err
}

func (e *Engine) loadExhibition(id crypto.Identity) (*Exhibition, error) {
	ex, ok, err := e.state.ExhibitionGet(id)
	if err != nil {
		return nil, notFoundOnType(err, ErrExhibitionNotFound, id)
	}
	if !ok {
		return nil, ErrExhibitionNotFound
	}
	return ex, nil
}

func (e *Engine) loadItem(exhibitionID, itemID crypto.Identity) (*ExhibitionItem, error) {
	item, ok, err := e.state.ExhibitionItemGet(itemID)
	if err != nil {
		return nil, notFoundOnType(err, ErrItemNotFound, itemID)
	}
	if !ok {
		return nil, ErrItemNotFound
	}
	if item.ExhibitionRef != exhibitionID {
		return nil, ErrItemMismatch
	}
	return item, nil
}

// InitConfig creates the GlobalConfig singleton. It can succeed only once.
// A zero payer skips the storage deposit and is reserved for genesis.
func (e *Engine) InitConfig(payer, feeRecipient crypto.Identity, feeRateBps uint16) (*GlobalConfig, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if feeRateBps > MaxBps {
		return nil, fmt.Errorf("%w: fee rate %d bps", ErrFeeOutOfRange, feeRateBps)
	}
	addr, bump, err := ConfigAddress()
	if err != nil {
		return nil, err
	}
	if _, exists, err := e.state.ExhibitionConfigGet(addr); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrAlreadyInitialized
	}
	cfg := &GlobalConfig{Bump: bump, FeeRecipient: feeRecipient, FeeRateBps: feeRateBps}
	if err := e.state.ExhibitionConfigCreate(addr, payer, cfg); err != nil {
		return nil, err
	}
	e.emit(NewConfigEvent(EventTypeConfigInitialized, cfg))
	return cfg.Clone(), nil
}

// SetConfig replaces the fee recipient and fee rate. Only the current fee
// recipient may call it.
func (e *Engine) SetConfig(caller, feeRecipient crypto.Identity, feeRateBps uint16) (*GlobalConfig, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := requireParties(caller); err != nil {
		return nil, err
	}
	addr, cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if caller != cfg.FeeRecipient {
		return nil, ErrUnauthorized
	}
	if feeRateBps > MaxBps {
		return nil, fmt.Errorf("%w: fee rate %d bps", ErrFeeOutOfRange, feeRateBps)
	}
	cfg.FeeRecipient = feeRecipient
	cfg.FeeRateBps = feeRateBps
	if err := e.state.ExhibitionConfigPut(addr, cfg); err != nil {
		return nil, err
	}
	e.emit(NewConfigEvent(EventTypeConfigUpdated, cfg))
	return cfg.Clone(), nil
}

// OpenExhibition creates the exhibition bound to property and moves one unit
// of the property from the renter's holding into escrow custody. The payer
// funds the storage deposits.
func (e *Engine) OpenExhibition(renter, payer, exhibitor, property crypto.Identity, renterFeeBps uint16) (crypto.Identity, *Exhibition, error) {
	if err := e.ready(); err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	if err := requireParties(renter, payer); err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	_, cfg, err := e.loadConfig()
	if err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	if renterFeeBps > MaxBps-cfg.FeeRateBps {
		return crypto.ZeroIdentity, nil, fmt.Errorf("%w: renter fee %d bps leaves no room for platform fee %d bps", ErrFeeOutOfRange, renterFeeBps, cfg.FeeRateBps)
	}
	addrs, err := DeriveAddresses(property)
	if err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	ex := &Exhibition{
		Renter:         renter,
		RentedProperty: property,
		RenterFeeBps:   renterFeeBps,
		Exhibitor:      exhibitor,
		Status:         ExhibitionActive,
		Bumps:          addrs.Bumps,
	}
	if err := e.state.ExhibitionCreate(addrs.Exhibition, payer, ex); err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	source, err := e.state.WalletHoldingAddress(renter, property)
	if err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	if err := e.state.OpenHoldingAccount(addrs.PropertyCustody, payer, property, addrs.EscrowAuthority); err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	if err := e.state.TransferAsset(types.WalletSigner(renter), source, addrs.PropertyCustody, 1); err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	e.emitRaw(events.AssetTransfer{Asset: property, From: source, To: addrs.PropertyCustody, Amount: 1})
	e.emit(NewExhibitionEvent(EventTypeOpened, addrs.Exhibition, ex))
	return addrs.Exhibition, ex.Clone(), nil
}

// CancelExhibition moves an active exhibition to Cancelled. Deposits are
// rejected afterwards; withdrawals and purchases still drain custody.
func (e *Engine) CancelExhibition(id, caller crypto.Identity) (*Exhibition, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := requireParties(caller); err != nil {
		return nil, err
	}
	ex, err := e.loadExhibition(id)
	if err != nil {
		return nil, err
	}
	if caller != ex.Renter {
		return nil, ErrUnauthorized
	}
	if ex.Status == ExhibitionCancelled {
		return nil, ErrAlreadyCancelled
	}
	ex.Status = ExhibitionCancelled
	if e.reclaimOnCancel {
		if err := e.reclaimProperty(id, ex); err != nil {
			return nil, err
		}
	}
	if err := e.state.ExhibitionPut(id, ex); err != nil {
		return nil, err
	}
	e.emit(NewExhibitionEvent(EventTypeCancelled, id, ex))
	return ex.Clone(), nil
}

// CloseExhibition destroys an empty exhibition and refunds its deposit to the
// renter. A property still in escrow is returned first.
func (e *Engine) CloseExhibition(id, caller crypto.Identity) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := requireParties(caller); err != nil {
		return err
	}
	ex, err := e.loadExhibition(id)
	if err != nil {
		return err
	}
	if caller != ex.Renter {
		return ErrUnauthorized
	}
	if ex.ItemCount != 0 {
		return fmt.Errorf("%w: %d items remain", ErrExhibitionNotEmpty, ex.ItemCount)
	}
	if err := e.reclaimProperty(id, ex); err != nil {
		return err
	}
	if err := e.state.ExhibitionClose(id, ex.Renter); err != nil {
		return err
	}
	e.emit(NewExhibitionEvent(EventTypeClosed, id, ex))
	return nil
}

// reclaimProperty returns the rented property to the renter and closes its
// custody account. It is a no-op once the property has left escrow.
func (e *Engine) reclaimProperty(id crypto.Identity, ex *Exhibition) error {
	custody, _, err := CustodyAddress(ex.RentedProperty)
	if err != nil {
		return err
	}
	holding, ok, err := e.state.HoldingAccount(custody)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	escrow, err := ex.EscrowProof().Address()
	if err != nil {
		return fmt.Errorf("exhibition: escrow authority: %w", err)
	}
	if holding.Authority != escrow {
		// The custody slot now belongs to a later consignment of the same asset.
		return nil
	}
	signer := types.ProgramSigner(ex.EscrowProof())
	dest, err := e.state.EnsureWalletHolding(ex.Renter, ex.RentedProperty, ex.Renter)
	if err != nil {
		return err
	}
	if holding.Amount > 0 {
		if err := e.state.TransferAsset(signer, custody, dest, holding.Amount); err != nil {
			return err
		}
		e.emitRaw(events.AssetTransfer{Asset: ex.RentedProperty, From: custody, To: dest, Amount: holding.Amount})
	}
	if err := e.state.CloseHoldingAccount(signer, custody, ex.Renter); err != nil {
		return err
	}
	e.emit(NewExhibitionEvent(EventTypePropertyReclaimed, id, ex))
	return nil
}

// DepositItem consigns asset into the exhibition at price. The exhibitor must
// hold exactly one unit of the asset.
func (e *Engine) DepositItem(id, caller, asset crypto.Identity, price uint64) (crypto.Identity, *ExhibitionItem, error) {
	if err := e.ready(); err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	if err := requireParties(caller); err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	ex, err := e.loadExhibition(id)
	if err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	if caller != ex.Exhibitor {
		return crypto.ZeroIdentity, nil, ErrUnauthorized
	}
	if ex.Status != ExhibitionActive {
		return crypto.ZeroIdentity, nil, ErrExhibitionNotActive
	}
	source, err := e.state.WalletHoldingAddress(caller, asset)
	if err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	holding, ok, err := e.state.HoldingAccount(source)
	if err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	if !ok || holding.Asset != asset || holding.Amount != 1 {
		return crypto.ZeroIdentity, nil, ErrHoldingAmount
	}
	count, err := checkedAdd(ex.ItemCount, 1, "item count")
	if err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	itemID, bump, err := ItemAddress(id, asset)
	if err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	custody, _, err := CustodyAddress(asset)
	if err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	escrow, err := ex.EscrowProof().Address()
	if err != nil {
		return crypto.ZeroIdentity, nil, fmt.Errorf("exhibition: escrow authority: %w", err)
	}
	item := &ExhibitionItem{ExhibitionRef: id, AssetID: asset, Price: price, Bump: bump}
	if err := e.state.ExhibitionItemCreate(itemID, caller, item); err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	if err := e.state.OpenHoldingAccount(custody, caller, asset, escrow); err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	if err := e.state.TransferAsset(types.WalletSigner(caller), source, custody, 1); err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	ex.ItemCount = count
	if err := e.state.ExhibitionPut(id, ex); err != nil {
		return crypto.ZeroIdentity, nil, err
	}
	e.emitRaw(events.AssetTransfer{Asset: asset, From: source, To: custody, Amount: 1})
	e.emit(NewItemEvent(EventTypeItemDeposited, itemID, item))
	return itemID, item.Clone(), nil
}

// WithdrawItem returns a consigned asset to the exhibitor and destroys the
// item together with its custody account.
func (e *Engine) WithdrawItem(id, caller, itemID crypto.Identity) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := requireParties(caller); err != nil {
		return err
	}
	ex, err := e.loadExhibition(id)
	if err != nil {
		return err
	}
	if caller != ex.Exhibitor {
		return ErrUnauthorized
	}
	item, err := e.loadItem(id, itemID)
	if err != nil {
		return err
	}
	count, err := checkedSub(ex.ItemCount, 1, "item count")
	if err != nil {
		return err
	}
	dest, err := e.state.EnsureWalletHolding(ex.Exhibitor, item.AssetID, caller)
	if err != nil {
		return err
	}
	if err := e.releaseCustody(ex, item, dest); err != nil {
		return err
	}
	if err := e.state.ExhibitionItemClose(itemID, ex.Exhibitor); err != nil {
		return err
	}
	ex.ItemCount = count
	if err := e.state.ExhibitionPut(id, ex); err != nil {
		return err
	}
	e.emit(NewItemEvent(EventTypeItemWithdrawn, itemID, item))
	return nil
}

// PurchaseItem pays for an item and delivers it to destination, defaulting
// to the buyer. The price is split between renter, platform and exhibitor;
// every leg belongs to the same instruction.
func (e *Engine) PurchaseItem(id, buyer, itemID, destination crypto.Identity) (*Receipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := requireParties(buyer); err != nil {
		return nil, err
	}
	ex, err := e.loadExhibition(id)
	if err != nil {
		return nil, err
	}
	item, err := e.loadItem(id, itemID)
	if err != nil {
		return nil, err
	}
	_, cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	split, err := SplitPrice(item.Price, ex.RenterFeeBps, cfg.FeeRateBps)
	if err != nil {
		return nil, err
	}
	count, err := checkedSub(ex.ItemCount, 1, "item count")
	if err != nil {
		return nil, err
	}
	volume, err := checkedAdd(ex.TotalVolume, item.Price, "total volume")
	if err != nil {
		return nil, err
	}

	legs := []struct {
		to     crypto.Identity
		amount uint64
		memo   string
	}{
		{ex.Exhibitor, split.Exhibitor, "exhibitor"},
		{ex.Renter, split.Renter, "renter"},
		{cfg.FeeRecipient, split.Platform, "platform"},
	}
	for _, leg := range legs {
		if err := e.state.Transfer(buyer, leg.to, leg.amount); err != nil {
			return nil, fmt.Errorf("exhibition: %s payment: %w", leg.memo, err)
		}
		e.emitRaw(events.Transfer{From: buyer, To: leg.to, Amount: leg.amount, Memo: leg.memo})
	}

	if destination.IsZero() {
		destination = buyer
	}
	dest, err := e.state.EnsureWalletHolding(destination, item.AssetID, buyer)
	if err != nil {
		return nil, err
	}
	if err := e.releaseCustody(ex, item, dest); err != nil {
		return nil, err
	}
	if err := e.state.ExhibitionItemClose(itemID, ex.Exhibitor); err != nil {
		return nil, err
	}
	ex.ItemCount = count
	ex.TotalVolume = volume
	if err := e.state.ExhibitionPut(id, ex); err != nil {
		return nil, err
	}
	receipt := &Receipt{
		Exhibition:  id,
		Item:        itemID,
		Asset:       item.AssetID,
		Buyer:       buyer,
		Destination: destination,
		Price:       item.Price,
		Split:       split,
	}
	e.emit(NewPurchasedEvent(receipt))
	return receipt, nil
}

// releaseCustody moves the item's asset out of escrow to dest, signing with
// the exhibition's escrow proof, and closes the custody account. The custody
// deposit goes back to the exhibitor.
func (e *Engine) releaseCustody(ex *Exhibition, item *ExhibitionItem, dest crypto.Identity) error {
	custody, _, err := CustodyAddress(item.AssetID)
	if err != nil {
		return err
	}
	signer := types.ProgramSigner(ex.EscrowProof())
	if err := e.state.TransferAsset(signer, custody, dest, 1); err != nil {
		return err
	}
	if err := e.state.CloseHoldingAccount(signer, custody, ex.Exhibitor); err != nil {
		return err
	}
	e.emitRaw(events.AssetTransfer{Asset: item.AssetID, From: custody, To: dest, Amount: 1})
	return nil
}
