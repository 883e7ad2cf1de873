package registry

import (
	"errors"
	"fmt"
	"strconv"

	"curioledger/core/events"
	nativecommon "curioledger/native/common"
	"curioledger/native/roles"
)

const moduleName = "registry"

var (
	ErrItemNotFound = errors.New("registry: item not found")
	ErrItemExists   = errors.New("registry: item already exists")
	ErrNotItemOwner = errors.New("registry: not item owner")
	ErrZeroAddress  = errors.New("registry: zero address")
	ErrZeroItemID   = errors.New("registry: zero item id")
)

// TransferGuard is consulted before every transfer and burn. Returning an
// error vetoes the operation; the lease ledger uses this hook to block moves
// of actively leased items and to lazily reconcile expired leases.
type TransferGuard interface {
	BeforeTransfer(itemID uint64, from, to [20]byte) error
}

type registryState interface {
	ItemOwner(itemID uint64) ([20]byte, bool, error)
	ItemPut(itemID uint64, owner [20]byte) error
	ItemDelete(itemID uint64) error
	ItemIndexAdd(owner [20]byte, itemID uint64) error
	ItemIndexRemove(owner [20]byte, itemID uint64) error
	ItemIndexList(owner [20]byte) ([]uint64, error)
	ItemTotal() (uint64, error)
	ItemSetTotal(total uint64) error
	BaseURIGet() (string, error)
	BaseURISet(uri string) error
	RoleHas(role string, addr [20]byte) bool
}

// Registry tracks item existence and ownership. Engines consume it read-only
// except through the mint, burn and transfer entry points.
type Registry struct {
	st      registryState
	guard   TransferGuard
	emitter events.Emitter
	pauses  nativecommon.PauseView
}

// NewRegistry creates a registry backed by the provided state manager.
func NewRegistry(st registryState) *Registry {
	return &Registry{st: st, emitter: events.NoopEmitter{}}
}

// SetGuard installs the pre-transfer guard hook. Passing nil removes it.
func (r *Registry) SetGuard(guard TransferGuard) { r.guard = guard }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

func (r *Registry) SetPauses(p nativecommon.PauseView) { r.pauses = p }

// EnsureActive rejects with ErrModulePaused while the registry is paused.
// The distributor consults it before moving any funds so a paused registry
// stops a settlement up front rather than after the payment legs.
func (r *Registry) EnsureActive() error {
	return nativecommon.Guard(r.pauses, moduleName)
}

// OwnerOf returns the recorded owner of the item.
func (r *Registry) OwnerOf(itemID uint64) ([20]byte, error) {
	owner, ok, err := r.st.ItemOwner(itemID)
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, fmt.Errorf("%w: %d", ErrItemNotFound, itemID)
	}
	return owner, nil
}

// Exists reports whether the item has been minted and not burned.
func (r *Registry) Exists(itemID uint64) bool {
	_, ok, err := r.st.ItemOwner(itemID)
	return err == nil && ok
}

// Mint records a new item owned by the recipient. Identifiers are chosen by
// the caller so fee-table overrides can be configured before an item exists.
func (r *Registry) Mint(to [20]byte, itemID uint64) error {
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	if to == ([20]byte{}) {
		return ErrZeroAddress
	}
	if itemID == 0 {
		return ErrZeroItemID
	}
	if r.Exists(itemID) {
		return fmt.Errorf("%w: %d", ErrItemExists, itemID)
	}
	if err := r.st.ItemPut(itemID, to); err != nil {
		return err
	}
	if err := r.st.ItemIndexAdd(to, itemID); err != nil {
		return err
	}
	total, err := r.st.ItemTotal()
	if err != nil {
		return err
	}
	if err := r.st.ItemSetTotal(total + 1); err != nil {
		return err
	}
	r.emitter.Emit(events.ItemMinted{ItemID: itemID, Owner: to})
	return nil
}

// Transfer moves the item from its current owner to the recipient. The guard
// hook runs first and may veto the move.
func (r *Registry) Transfer(caller, from, to [20]byte, itemID uint64) error {
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	if to == ([20]byte{}) {
		return ErrZeroAddress
	}
	owner, err := r.OwnerOf(itemID)
	if err != nil {
		return err
	}
	if owner != from || caller != from {
		return fmt.Errorf("%w: item %d", ErrNotItemOwner, itemID)
	}
	if r.guard != nil {
		if err := r.guard.BeforeTransfer(itemID, from, to); err != nil {
			return err
		}
	}
	return r.move(itemID, from, to)
}

// CompleteSale finalises an ownership change on behalf of the distributor
// after a sale has settled. The distributor performs its own owner, lease and
// pause validation before any funds move, so the transfer guard is not
// consulted again here; the pause check still runs as a backstop.
func (r *Registry) CompleteSale(from, to [20]byte, itemID uint64) error {
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	owner, err := r.OwnerOf(itemID)
	if err != nil {
		return err
	}
	if owner != from {
		return fmt.Errorf("%w: item %d", ErrNotItemOwner, itemID)
	}
	return r.move(itemID, from, to)
}

func (r *Registry) move(itemID uint64, from, to [20]byte) error {
	if err := r.st.ItemIndexRemove(from, itemID); err != nil {
		return err
	}
	if err := r.st.ItemIndexAdd(to, itemID); err != nil {
		return err
	}
	if err := r.st.ItemPut(itemID, to); err != nil {
		return err
	}
	r.emitter.Emit(events.ItemTransferred{ItemID: itemID, From: from, To: to})
	return nil
}

// Burn destroys the item. Only its owner may burn it; the guard hook runs
// first with a zero recipient.
func (r *Registry) Burn(caller [20]byte, itemID uint64) error {
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	owner, err := r.OwnerOf(itemID)
	if err != nil {
		return err
	}
	if caller != owner {
		return fmt.Errorf("%w: item %d", ErrNotItemOwner, itemID)
	}
	if r.guard != nil {
		if err := r.guard.BeforeTransfer(itemID, owner, [20]byte{}); err != nil {
			return err
		}
	}
	if err := r.st.ItemIndexRemove(owner, itemID); err != nil {
		return err
	}
	if err := r.st.ItemDelete(itemID); err != nil {
		return err
	}
	total, err := r.st.ItemTotal()
	if err != nil {
		return err
	}
	if total > 0 {
		if err := r.st.ItemSetTotal(total - 1); err != nil {
			return err
		}
	}
	r.emitter.Emit(events.ItemBurned{ItemID: itemID, Owner: owner})
	return nil
}

// TotalSupply returns the number of live items.
func (r *Registry) TotalSupply() (uint64, error) {
	return r.st.ItemTotal()
}

// ItemsOf returns the identifiers currently owned by the account.
func (r *Registry) ItemsOf(owner [20]byte) ([]uint64, error) {
	return r.st.ItemIndexList(owner)
}

// SetBaseURI updates the metadata base path. Owner-only.
func (r *Registry) SetBaseURI(caller [20]byte, uri string) error {
	if !r.st.RoleHas(roles.RoleOwner, caller) {
		return fmt.Errorf("%w: %s required", roles.ErrUnauthorized, roles.RoleOwner)
	}
	return r.st.BaseURISet(uri)
}

// TokenURI returns the metadata path for the item.
func (r *Registry) TokenURI(itemID uint64) (string, error) {
	if !r.Exists(itemID) {
		return "", fmt.Errorf("%w: %d", ErrItemNotFound, itemID)
	}
	base, err := r.st.BaseURIGet()
	if err != nil {
		return "", err
	}
	return base + strconv.FormatUint(itemID, 10), nil
}
