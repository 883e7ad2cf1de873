package feesplit

import (
	"fmt"
	"math/big"
	"strings"
)

const (
	// BpsDenominator is the basis-point denominator all weights and fee
	// bounds are expressed against.
	BpsDenominator = 10_000
	// MaxCommissionBps caps the platform commission at 20%.
	MaxCommissionBps = 2_000
	// MaxRoyaltyBps caps the resale royalty at 30%.
	MaxRoyaltyBps = 3_000
)

// TableKind distinguishes the two independent fee tables an item can carry.
type TableKind uint8

const (
	// KindAcquisition applies at mint: entries partition what remains of the
	// unit price after the platform commission.
	KindAcquisition TableKind = iota + 1
	// KindResale applies at secondary sale: entries partition the royalty
	// amount itself, so their weights must total exactly 10000.
	KindResale
)

// Valid reports whether the kind is within the supported range.
func (k TableKind) Valid() bool {
	return k == KindAcquisition || k == KindResale
}

func (k TableKind) String() string {
	switch k {
	case KindAcquisition:
		return "acquisition"
	case KindResale:
		return "resale"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseTableKind canonicalises a kind identifier supplied over the wire.
func ParseTableKind(raw string) (TableKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "acquisition":
		return KindAcquisition, nil
	case "resale":
		return KindResale, nil
	default:
		return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidFeeTable, raw)
	}
}

// FeeEntry pairs a royalty recipient with its basis-point weight.
type FeeEntry struct {
	Recipient [20]byte
	WeightBps uint32
}

// FeeTable is an ordered list of fee entries together with the pricing
// version it was validated against. Order matters: the first entry receives
// the acquisition dust and fronts the royalty interoperability view.
type FeeTable struct {
	Kind           TableKind
	Entries        []FeeEntry
	PricingVersion uint64
}

// Clone returns a deep copy of the table.
func (t *FeeTable) Clone() *FeeTable {
	if t == nil {
		return nil
	}
	clone := &FeeTable{Kind: t.Kind, PricingVersion: t.PricingVersion}
	if len(t.Entries) > 0 {
		clone.Entries = append([]FeeEntry(nil), t.Entries...)
	}
	return clone
}

// TotalWeight sums the entry weights.
func (t *FeeTable) TotalWeight() uint64 {
	if t == nil {
		return 0
	}
	var total uint64
	for _, entry := range t.Entries {
		total += uint64(entry.WeightBps)
	}
	return total
}

// PricingConfig carries the owner-mutable pricing knobs. Version increments
// on every mutation so the validity of tables set under an earlier
// configuration is never retroactively affected.
type PricingConfig struct {
	Version       uint64
	UnitPrice     *big.Int
	CommissionBps uint32
	RoyaltyBps    uint32
}

// Clone returns a deep copy of the configuration with a non-nil unit price.
func (p *PricingConfig) Clone() *PricingConfig {
	if p == nil {
		return &PricingConfig{UnitPrice: big.NewInt(0)}
	}
	clone := &PricingConfig{Version: p.Version, CommissionBps: p.CommissionBps, RoyaltyBps: p.RoyaltyBps}
	if p.UnitPrice != nil {
		clone.UnitPrice = new(big.Int).Set(p.UnitPrice)
	} else {
		clone.UnitPrice = big.NewInt(0)
	}
	return clone
}

func sanitizePricing(p *PricingConfig) (*PricingConfig, error) {
	clone := p.Clone()
	if clone.UnitPrice.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative unit price", ErrInvalidPricing)
	}
	if clone.CommissionBps > MaxCommissionBps {
		return nil, fmt.Errorf("%w: commission %d exceeds %d bps", ErrInvalidPricing, clone.CommissionBps, MaxCommissionBps)
	}
	if clone.RoyaltyBps > MaxRoyaltyBps {
		return nil, fmt.Errorf("%w: royalty %d exceeds %d bps", ErrInvalidPricing, clone.RoyaltyBps, MaxRoyaltyBps)
	}
	return clone, nil
}

// ValidateEntries checks a candidate table against the kind-specific weight
// rules. Acquisition weights plus the platform commission stay within the
// denominator; resale weights must hit it exactly because they partition the
// royalty amount itself. An empty resale table is the legitimate "no royalty"
// state and skips the sum check.
func ValidateEntries(kind TableKind, entries []FeeEntry, commissionBps uint32) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: invalid kind", ErrInvalidFeeTable)
	}
	var total uint64
	for i, entry := range entries {
		if entry.Recipient == ([20]byte{}) {
			return fmt.Errorf("%w: zero recipient at entry %d", ErrInvalidFeeTable, i)
		}
		total += uint64(entry.WeightBps)
	}
	switch kind {
	case KindAcquisition:
		if total+uint64(commissionBps) > BpsDenominator {
			return fmt.Errorf("%w: weights %d + commission %d exceed %d bps", ErrInvalidFeeTable, total, commissionBps, BpsDenominator)
		}
	case KindResale:
		if len(entries) > 0 && total != BpsDenominator {
			return fmt.Errorf("%w: resale weights total %d, want exactly %d", ErrInvalidFeeTable, total, BpsDenominator)
		}
	}
	return nil
}
