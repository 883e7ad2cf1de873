package feesplit

import (
	"fmt"
	"math/big"

	"curioledger/core/events"
	nativecommon "curioledger/native/common"
	"curioledger/native/roles"
)

const moduleName = "feesplit"

type tableState interface {
	DefaultTableGet(kind TableKind) (*FeeTable, bool, error)
	DefaultTablePut(table *FeeTable) error
	OverrideTableGet(itemID uint64, kind TableKind) (*FeeTable, bool, error)
	OverrideTablePut(itemID uint64, table *FeeTable) error
	OverrideTableDelete(itemID uint64, kind TableKind) error
	PricingGet() (*PricingConfig, bool, error)
	PricingPut(cfg *PricingConfig) error
	RoleHas(role string, addr [20]byte) bool
}

// Store manages the default and per-item fee tables and the pricing
// configuration. All mutations are owner-only and validated in full before
// anything is written.
type Store struct {
	st      tableState
	emitter events.Emitter
	pauses  nativecommon.PauseView
}

// NewStore creates a table store backed by the provided state manager.
func NewStore(st tableState) *Store {
	return &Store{st: st, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (s *Store) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		s.emitter = events.NoopEmitter{}
		return
	}
	s.emitter = emitter
}

func (s *Store) SetPauses(p nativecommon.PauseView) { s.pauses = p }

func (s *Store) requireOwner(caller [20]byte) error {
	if s.st.RoleHas(roles.RoleOwner, caller) {
		return nil
	}
	return fmt.Errorf("%w: %s required", roles.ErrUnauthorized, roles.RoleOwner)
}

// Pricing returns the current pricing configuration. An unset configuration
// reads as version zero with all knobs at zero.
func (s *Store) Pricing() (*PricingConfig, error) {
	cfg, ok, err := s.st.PricingGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return (&PricingConfig{}).Clone(), nil
	}
	return cfg.Clone(), nil
}

func (s *Store) mutatePricing(caller [20]byte, mutate func(*PricingConfig)) (*PricingConfig, error) {
	if err := nativecommon.Guard(s.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := s.requireOwner(caller); err != nil {
		return nil, err
	}
	cfg, err := s.Pricing()
	if err != nil {
		return nil, err
	}
	mutate(cfg)
	cfg.Version++
	sanitized, err := sanitizePricing(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.st.PricingPut(sanitized); err != nil {
		return nil, err
	}
	s.emitter.Emit(events.PricingUpdated{
		Version:       sanitized.Version,
		UnitPrice:     new(big.Int).Set(sanitized.UnitPrice),
		CommissionBps: sanitized.CommissionBps,
		RoyaltyBps:    sanitized.RoyaltyBps,
	})
	return sanitized.Clone(), nil
}

// SetUnitPrice updates the acquisition unit price. Owner-only.
func (s *Store) SetUnitPrice(caller [20]byte, price *big.Int) (*PricingConfig, error) {
	if price == nil || price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: unit price must be positive", ErrInvalidPricing)
	}
	return s.mutatePricing(caller, func(cfg *PricingConfig) {
		cfg.UnitPrice = new(big.Int).Set(price)
	})
}

// SetCommissionBps updates the platform commission. Owner-only, bounded at
// MaxCommissionBps on every mutation. Tables validated under an earlier
// version keep their recorded version and are not re-checked.
func (s *Store) SetCommissionBps(caller [20]byte, bps uint32) (*PricingConfig, error) {
	return s.mutatePricing(caller, func(cfg *PricingConfig) {
		cfg.CommissionBps = bps
	})
}

// SetRoyaltyBps updates the resale royalty fraction. Owner-only, bounded at
// MaxRoyaltyBps on every mutation.
func (s *Store) SetRoyaltyBps(caller [20]byte, bps uint32) (*PricingConfig, error) {
	return s.mutatePricing(caller, func(cfg *PricingConfig) {
		cfg.RoyaltyBps = bps
	})
}

// SetDefault replaces the global default table for the kind. The candidate is
// validated against the current commission before anything is written; a
// failed validation leaves the stored table untouched.
func (s *Store) SetDefault(caller [20]byte, kind TableKind, entries []FeeEntry) error {
	if err := nativecommon.Guard(s.pauses, moduleName); err != nil {
		return err
	}
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	cfg, err := s.Pricing()
	if err != nil {
		return err
	}
	if err := ValidateEntries(kind, entries, cfg.CommissionBps); err != nil {
		return err
	}
	table := &FeeTable{Kind: kind, Entries: append([]FeeEntry(nil), entries...), PricingVersion: cfg.Version}
	if err := s.st.DefaultTablePut(table); err != nil {
		return err
	}
	s.emitter.Emit(events.FeeTableUpdated{Kind: kind.String(), Entries: len(entries), PricingVersion: cfg.Version})
	return nil
}

// SetOverride replaces the per-item override table for the kind. Items can be
// configured before they are minted, so no existence check applies here.
func (s *Store) SetOverride(caller [20]byte, itemID uint64, kind TableKind, entries []FeeEntry) error {
	if err := nativecommon.Guard(s.pauses, moduleName); err != nil {
		return err
	}
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	cfg, err := s.Pricing()
	if err != nil {
		return err
	}
	if err := ValidateEntries(kind, entries, cfg.CommissionBps); err != nil {
		return err
	}
	table := &FeeTable{Kind: kind, Entries: append([]FeeEntry(nil), entries...), PricingVersion: cfg.Version}
	if err := s.st.OverrideTablePut(itemID, table); err != nil {
		return err
	}
	s.emitter.Emit(events.FeeTableUpdated{Kind: kind.String(), ItemID: itemID, Override: true, Entries: len(entries), PricingVersion: cfg.Version})
	return nil
}

// ClearOverride removes the per-item override so the default applies again.
func (s *Store) ClearOverride(caller [20]byte, itemID uint64, kind TableKind) error {
	if err := nativecommon.Guard(s.pauses, moduleName); err != nil {
		return err
	}
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: invalid kind", ErrInvalidFeeTable)
	}
	if err := s.st.OverrideTableDelete(itemID, kind); err != nil {
		return err
	}
	s.emitter.Emit(events.FeeTableUpdated{Kind: kind.String(), ItemID: itemID, Override: true, Cleared: true})
	return nil
}

// Resolve returns the entries that apply to the item: the override when set
// and non-empty, the default otherwise. A missing default reads as an empty
// table.
func (s *Store) Resolve(itemID uint64, kind TableKind) ([]FeeEntry, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: invalid kind", ErrInvalidFeeTable)
	}
	override, ok, err := s.st.OverrideTableGet(itemID, kind)
	if err != nil {
		return nil, err
	}
	if ok && len(override.Entries) > 0 {
		return append([]FeeEntry(nil), override.Entries...), nil
	}
	def, ok, err := s.st.DefaultTableGet(kind)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return append([]FeeEntry(nil), def.Entries...), nil
}

// AcquisitionReceivers returns the resolved acquisition table for the item.
func (s *Store) AcquisitionReceivers(itemID uint64) ([]FeeEntry, error) {
	return s.Resolve(itemID, KindAcquisition)
}

// ResaleReceivers returns the resolved resale table for the item.
func (s *Store) ResaleReceivers(itemID uint64) ([]FeeEntry, error) {
	return s.Resolve(itemID, KindResale)
}

// RoyaltyInfo is the single-receiver interoperability view: it reports only
// the first resale entry and its proportional share of the royalty amount.
// The full multi-recipient table is available through ResaleReceivers.
func (s *Store) RoyaltyInfo(itemID uint64, salePrice *big.Int) ([20]byte, *big.Int, error) {
	entries, err := s.Resolve(itemID, KindResale)
	if err != nil {
		return [20]byte{}, nil, err
	}
	if len(entries) == 0 || salePrice == nil || salePrice.Sign() <= 0 {
		return [20]byte{}, big.NewInt(0), nil
	}
	cfg, err := s.Pricing()
	if err != nil {
		return [20]byte{}, nil, err
	}
	royalty := new(big.Int).Mul(salePrice, big.NewInt(int64(cfg.RoyaltyBps)))
	royalty.Div(royalty, big.NewInt(BpsDenominator))
	share := new(big.Int).Mul(royalty, big.NewInt(int64(entries[0].WeightBps)))
	share.Div(share, big.NewInt(BpsDenominator))
	return entries[0].Recipient, share, nil
}
