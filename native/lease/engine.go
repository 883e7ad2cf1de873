package lease

import (
	"fmt"
	"math/big"
	"time"

	"curioledger/core/events"
	nativecommon "curioledger/native/common"
	"curioledger/native/feesplit"
	"curioledger/native/registry"
	"curioledger/native/roles"
	"curioledger/native/token"
)

const moduleName = "lease"

type engineState interface {
	LeaseGet(itemID uint64) (*Lease, bool, error)
	LeasePut(l *Lease) error
	LeaseIndexAdd(holder [20]byte, itemID uint64) error
	LeaseIndexRemove(holder [20]byte, itemID uint64) error
	LeaseIndexList(holder [20]byte) ([]uint64, error)
}

// Engine runs the lease state machine: Available -> Leased on creation,
// Leased -> Available on explicit end or lazily the first time any operation
// observes now >= End. Holder capability is derived from the active
// (item, holder) index, never stored as a standalone flag.
type Engine struct {
	st       engineState
	registry *registry.Registry
	tables   *feesplit.Store
	token    token.Token
	gate     *roles.Gate
	policy   RoutingPolicy
	vault    [20]byte
	emitter  events.Emitter
	pauses   nativecommon.PauseView
	nowFn    func() int64
}

// NewEngine wires a lease engine with the configured payment routing policy.
func NewEngine(st engineState, reg *registry.Registry, tables *feesplit.Store, tok token.Token, gate *roles.Gate, policy RoutingPolicy, vault [20]byte) (*Engine, error) {
	if !policy.Valid() {
		return nil, fmt.Errorf("lease: invalid routing policy %d", policy)
	}
	return &Engine{
		st:       st,
		registry: reg,
		tables:   tables,
		token:    tok,
		gate:     gate,
		policy:   policy,
		vault:    vault,
		emitter:  events.NoopEmitter{},
		nowFn:    func() int64 { return time.Now().Unix() },
	}, nil
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 { return e.nowFn() }

// Policy returns the configured payment routing policy.
func (e *Engine) Policy() RoutingPolicy { return e.policy }

// expired uses the strict now >= end comparison everywhere; block time may
// jump arbitrarily far between two calls.
func expired(l *Lease, now int64) bool { return now >= l.End }

// reconcile clears an active lease whose end has passed: the stored flag goes
// false, the holder leaves the index, and an expiry event records the lazy
// transition. No-op for inactive or still-running leases.
func (e *Engine) reconcile(l *Lease, now int64) (*Lease, error) {
	if l == nil || !l.Active || !expired(l, now) {
		return l, nil
	}
	l.Active = false
	if err := e.st.LeasePut(l); err != nil {
		return nil, err
	}
	if err := e.st.LeaseIndexRemove(l.Holder, l.ItemID); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.LeaseExpired{ItemID: l.ItemID, Holder: l.Holder, End: l.End})
	return l, nil
}

// settlePayment moves the lease price from the holder according to the
// routing policy: straight to the owner, or through the vault with the
// platform commission cut first.
func (e *Engine) settlePayment(holder, owner [20]byte, price *big.Int) error {
	if price.Sign() == 0 {
		return nil
	}
	switch e.policy {
	case RouteDirect:
		return e.token.TransferFrom(e.vault, holder, owner, price)
	case RouteCustody:
		cfg, err := e.tables.Pricing()
		if err != nil {
			return err
		}
		cut := new(big.Int).Mul(price, big.NewInt(int64(cfg.CommissionBps)))
		cut.Div(cut, big.NewInt(feesplit.BpsDenominator))
		// Resolve the commission target before the holder is charged so a
		// missing platform never strands funds in the vault.
		var platform [20]byte
		if cut.Sign() > 0 {
			p, ok := e.gate.Platform()
			if !ok {
				return feesplit.ErrNoPlatform
			}
			platform = p
		}
		if err := e.token.TransferFrom(e.vault, holder, e.vault, price); err != nil {
			return err
		}
		if cut.Sign() > 0 {
			if err := e.token.Transfer(e.vault, platform, cut); err != nil {
				return err
			}
		}
		return e.token.Transfer(e.vault, owner, new(big.Int).Sub(price, cut))
	default:
		return fmt.Errorf("lease: invalid routing policy %d", e.policy)
	}
}

// Create opens a lease over the item for the holder. The item must exist and
// be Available, the holder must not be its owner, and duration and price
// must be positive.
func (e *Engine) Create(holder [20]byte, itemID uint64, duration int64, price *big.Int) (*Lease, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if duration <= 0 {
		return nil, ErrZeroDuration
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	owner, err := e.registry.OwnerOf(itemID)
	if err != nil {
		return nil, err
	}
	if holder == owner {
		return nil, ErrHolderIsOwner
	}
	now := e.now()
	existing, ok, err := e.st.LeaseGet(itemID)
	if err != nil {
		return nil, err
	}
	if ok && existing.Active {
		if !expired(existing, now) {
			return nil, fmt.Errorf("%w: item %d until %d", ErrItemLeased, itemID, existing.End)
		}
		if _, err := e.reconcile(existing, now); err != nil {
			return nil, err
		}
	}
	amount := new(big.Int).Set(price)
	if err := e.settlePayment(holder, owner, amount); err != nil {
		return nil, err
	}
	l := &Lease{
		ItemID: itemID,
		Holder: holder,
		Start:  now,
		End:    now + duration,
		Price:  amount,
		Active: true,
	}
	if err := e.st.LeasePut(l); err != nil {
		return nil, err
	}
	if err := e.st.LeaseIndexAdd(holder, itemID); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.LeaseCreated{ItemID: itemID, Holder: holder, Start: l.Start, End: l.End, Price: new(big.Int).Set(amount)})
	return l.Clone(), nil
}

// Extend pushes the lease end forward while it is still running. Only the
// holder may extend; the accumulated price is an audit trail of all payments,
// not a re-priced total.
func (e *Engine) Extend(caller [20]byte, itemID uint64, extraDuration int64, extraPrice *big.Int) (*Lease, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if extraDuration <= 0 {
		return nil, ErrZeroDuration
	}
	extra := big.NewInt(0)
	if extraPrice != nil {
		if extraPrice.Sign() < 0 {
			return nil, ErrZeroAmount
		}
		extra = new(big.Int).Set(extraPrice)
	}
	now := e.now()
	l, ok, err := e.st.LeaseGet(itemID)
	if err != nil {
		return nil, err
	}
	if !ok || !l.Active {
		return nil, fmt.Errorf("%w: item %d", ErrLeaseNotActive, itemID)
	}
	if expired(l, now) {
		if _, err := e.reconcile(l, now); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: item %d expired", ErrLeaseNotActive, itemID)
	}
	if caller != l.Holder {
		return nil, fmt.Errorf("%w: %s required", roles.ErrUnauthorized, roles.RoleHolder)
	}
	owner, err := e.registry.OwnerOf(itemID)
	if err != nil {
		return nil, err
	}
	if err := e.settlePayment(l.Holder, owner, extra); err != nil {
		return nil, err
	}
	l.End += extraDuration
	l.Price = new(big.Int).Add(l.Price, extra)
	if err := e.st.LeasePut(l); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.LeaseExtended{ItemID: itemID, Holder: l.Holder, End: l.End, Price: new(big.Int).Set(l.Price), ExtraPrice: extra})
	return l.Clone(), nil
}

// End terminates a running lease. Either the holder or the item's current
// owner may end it. Ending one lease never strips a capability still
// justified by another item: the holder role is derived from the index.
func (e *Engine) End(caller [20]byte, itemID uint64) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	now := e.now()
	l, ok, err := e.st.LeaseGet(itemID)
	if err != nil {
		return err
	}
	if !ok || !l.Active {
		return fmt.Errorf("%w: item %d", ErrLeaseNotActive, itemID)
	}
	if expired(l, now) {
		if _, err := e.reconcile(l, now); err != nil {
			return err
		}
		return fmt.Errorf("%w: item %d expired", ErrLeaseNotActive, itemID)
	}
	owner, err := e.registry.OwnerOf(itemID)
	if err != nil {
		return err
	}
	if caller != l.Holder && caller != owner {
		return fmt.Errorf("%w: holder or owner required", roles.ErrUnauthorized)
	}
	l.Active = false
	if err := e.st.LeasePut(l); err != nil {
		return err
	}
	if err := e.st.LeaseIndexRemove(l.Holder, itemID); err != nil {
		return err
	}
	e.emitter.Emit(events.LeaseEnded{ItemID: itemID, Holder: l.Holder, Caller: caller})
	return nil
}

// EnsureSaleable vetoes a transfer of an actively leased item and lazily
// clears an expired one so the transfer can proceed.
func (e *Engine) EnsureSaleable(itemID uint64) error {
	now := e.now()
	l, ok, err := e.st.LeaseGet(itemID)
	if err != nil {
		return err
	}
	if !ok || !l.Active {
		return nil
	}
	if !expired(l, now) {
		return fmt.Errorf("%w: item %d until %d", ErrItemLeased, itemID, l.End)
	}
	_, err = e.reconcile(l, now)
	return err
}

// BeforeTransfer implements the registry transfer guard; burns arrive with a
// zero recipient.
func (e *Engine) BeforeTransfer(itemID uint64, _, _ [20]byte) error {
	return e.EnsureSaleable(itemID)
}

// Get returns the stored lease record for the item, if any.
func (e *Engine) Get(itemID uint64) (*Lease, bool, error) {
	l, ok, err := e.st.LeaseGet(itemID)
	if err != nil || !ok {
		return nil, false, err
	}
	return l.Clone(), true, nil
}

// CurrentHolder returns the lease holder while the lease is running and the
// registry owner otherwise. The expiry flip needs no trigger: the comparison
// happens per query.
func (e *Engine) CurrentHolder(itemID uint64) ([20]byte, error) {
	l, ok, err := e.st.LeaseGet(itemID)
	if err != nil {
		return [20]byte{}, err
	}
	if ok && l.Active && !expired(l, e.now()) {
		return l.Holder, nil
	}
	return e.registry.OwnerOf(itemID)
}

// IsHolder reports whether the account is the current holder of the item.
func (e *Engine) IsHolder(itemID uint64, account [20]byte) (bool, error) {
	holder, err := e.CurrentHolder(itemID)
	if err != nil {
		return false, err
	}
	return holder == account, nil
}

// HasActiveLease reports whether the account holds any active, unexpired
// lease. It backs the derived holder capability check; entries whose end has
// passed do not count even before they are lazily reconciled.
func (e *Engine) HasActiveLease(holder [20]byte) (bool, error) {
	itemIDs, err := e.st.LeaseIndexList(holder)
	if err != nil {
		return false, err
	}
	now := e.now()
	for _, itemID := range itemIDs {
		l, ok, err := e.st.LeaseGet(itemID)
		if err != nil {
			return false, err
		}
		if ok && l.Active && l.Holder == holder && !expired(l, now) {
			return true, nil
		}
	}
	return false, nil
}
