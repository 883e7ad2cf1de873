package feesplit

import (
	"fmt"
	"math/big"

	"curioledger/core/events"
	nativecommon "curioledger/native/common"
	"curioledger/native/registry"
	"curioledger/native/roles"
	"curioledger/native/token"
)

// SaleGate is consulted before a sale settles. The lease ledger implements it
// to veto sales of actively leased items and to lazily clear expired leases.
type SaleGate interface {
	EnsureSaleable(itemID uint64) error
}

// Distributor settles primary and secondary sales: it pulls the payment into
// the module vault, splits it between the platform commission and the
// resolved fee table, and completes the ownership change last.
type Distributor struct {
	tables   *Store
	token    token.Token
	registry *registry.Registry
	gate     *roles.Gate
	leases   SaleGate
	vault    [20]byte
	emitter  events.Emitter
	pauses   nativecommon.PauseView
}

// NewDistributor wires a distributor over the table store, stablecoin, item
// registry and access gate.
func NewDistributor(tables *Store, tok token.Token, reg *registry.Registry, gate *roles.Gate, vault [20]byte) *Distributor {
	return &Distributor{
		tables:   tables,
		token:    tok,
		registry: reg,
		gate:     gate,
		vault:    vault,
		emitter:  events.NoopEmitter{},
	}
}

// SetLeaseGate installs the pre-sale lease check.
func (d *Distributor) SetLeaseGate(gate SaleGate) { d.leases = gate }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (d *Distributor) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		d.emitter = events.NoopEmitter{}
		return
	}
	d.emitter = emitter
}

func (d *Distributor) SetPauses(p nativecommon.PauseView) { d.pauses = p }

// Vault returns the module custody address payments flow through.
func (d *Distributor) Vault() [20]byte { return d.vault }

func (d *Distributor) platform() ([20]byte, error) {
	platform, ok := d.gate.Platform()
	if !ok {
		return [20]byte{}, ErrNoPlatform
	}
	return platform, nil
}

// ensureCovered verifies balance and allowance before any value moves so a
// failed payment never leaves a partial distribution behind.
func (d *Distributor) ensureCovered(payer [20]byte, amount *big.Int) error {
	balance, err := d.token.BalanceOf(payer)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", token.ErrInsufficientFunds, balance, amount)
	}
	if payer == d.vault {
		return nil
	}
	allowance, err := d.token.Allowance(payer, d.vault)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", token.ErrInsufficientAllowance, allowance, amount)
	}
	return nil
}

func bpsShare(amount *big.Int, bps uint32) *big.Int {
	share := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	return share.Div(share, big.NewInt(BpsDenominator))
}

// AcquisitionReceipt is the exact accounting of a settled primary sale.
// PlatformCut + Distributed + Dust always equals Total.
type AcquisitionReceipt struct {
	ItemID      uint64
	Payer       [20]byte
	Total       *big.Int
	PlatformCut *big.Int
	Distributed *big.Int
	Dust        *big.Int
	Shares      []*big.Int
}

// DistributeAcquisition settles a primary sale: it pulls the unit price from
// the payer, pays the platform commission, splits the remainder over the
// resolved acquisition table with the truncation dust routed to the first
// entry (or the platform when the table is empty), and mints the item to the
// payer only after all value has moved.
func (d *Distributor) DistributeAcquisition(payer [20]byte, itemID uint64) (*AcquisitionReceipt, error) {
	if err := nativecommon.Guard(d.pauses, moduleName); err != nil {
		return nil, err
	}
	// The mint is the final step, so its pause precondition is validated
	// before the payer is charged.
	if err := d.registry.EnsureActive(); err != nil {
		return nil, err
	}
	if d.registry.Exists(itemID) {
		return nil, fmt.Errorf("%w: %d", registry.ErrItemExists, itemID)
	}
	if itemID == 0 {
		return nil, registry.ErrZeroItemID
	}
	cfg, err := d.tables.Pricing()
	if err != nil {
		return nil, err
	}
	total := new(big.Int).Set(cfg.UnitPrice)
	if total.Sign() <= 0 {
		return nil, fmt.Errorf("%w: unit price not configured", ErrZeroAmount)
	}
	platform, err := d.platform()
	if err != nil {
		return nil, err
	}
	entries, err := d.tables.Resolve(itemID, KindAcquisition)
	if err != nil {
		return nil, err
	}
	if err := d.ensureCovered(payer, total); err != nil {
		return nil, err
	}

	if err := d.token.TransferFrom(d.vault, payer, d.vault, total); err != nil {
		return nil, err
	}
	platformCut := bpsShare(total, cfg.CommissionBps)
	if err := d.token.Transfer(d.vault, platform, platformCut); err != nil {
		return nil, err
	}
	remaining := new(big.Int).Sub(total, platformCut)
	distributed := big.NewInt(0)
	shares := make([]*big.Int, len(entries))
	for i, entry := range entries {
		share := bpsShare(remaining, entry.WeightBps)
		if err := d.token.Transfer(d.vault, entry.Recipient, share); err != nil {
			return nil, err
		}
		distributed.Add(distributed, share)
		shares[i] = share
	}
	dust := new(big.Int).Sub(remaining, distributed)
	if dust.Sign() > 0 {
		dustRecipient := platform
		if len(entries) > 0 {
			dustRecipient = entries[0].Recipient
		}
		if err := d.token.Transfer(d.vault, dustRecipient, dust); err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			shares[0] = new(big.Int).Add(shares[0], dust)
		}
	}
	if err := d.registry.Mint(payer, itemID); err != nil {
		return nil, err
	}
	d.emitter.Emit(events.AcquisitionSettled{
		Payer:       payer,
		ItemID:      itemID,
		Total:       new(big.Int).Set(total),
		PlatformCut: new(big.Int).Set(platformCut),
		Distributed: new(big.Int).Add(distributed, dust),
		Dust:        new(big.Int).Set(dust),
		Recipients:  len(entries),
	})
	return &AcquisitionReceipt{
		ItemID:      itemID,
		Payer:       payer,
		Total:       total,
		PlatformCut: platformCut,
		Distributed: distributed,
		Dust:        dust,
		Shares:      shares,
	}, nil
}

// SaleReceipt is the accounting of a settled secondary sale. RoyaltyResidue
// is the truncation remainder of the resale split: it stays in the vault on
// purpose, mirroring the asymmetry with the acquisition dust rule.
type SaleReceipt struct {
	ItemID         uint64
	Seller         [20]byte
	Buyer          [20]byte
	SalePrice      *big.Int
	RoyaltyAmount  *big.Int
	RoyaltyPaid    *big.Int
	RoyaltyResidue *big.Int
	PlatformCut    *big.Int
	SellerProceeds *big.Int
}

// DistributeSale settles a secondary sale: royalty shares per the resolved
// resale table (residue left un-swept), platform commission, seller
// proceeds, then the ownership change as the final step. The caller must be
// the seller of record and an active, unexpired lease blocks the sale.
func (d *Distributor) DistributeSale(caller, seller, buyer [20]byte, salePrice *big.Int, itemID uint64) (*SaleReceipt, error) {
	if err := nativecommon.Guard(d.pauses, moduleName); err != nil {
		return nil, err
	}
	// The ownership change is the final step, so the registry pause is
	// validated before the buyer is charged.
	if err := d.registry.EnsureActive(); err != nil {
		return nil, err
	}
	if salePrice == nil || salePrice.Sign() <= 0 {
		return nil, fmt.Errorf("%w: sale price must be positive", ErrZeroAmount)
	}
	if buyer == ([20]byte{}) {
		return nil, registry.ErrZeroAddress
	}
	owner, err := d.registry.OwnerOf(itemID)
	if err != nil {
		return nil, err
	}
	if owner != seller || caller != seller {
		return nil, fmt.Errorf("%w: item %d", registry.ErrNotItemOwner, itemID)
	}
	if d.leases != nil {
		if err := d.leases.EnsureSaleable(itemID); err != nil {
			return nil, err
		}
	}
	cfg, err := d.tables.Pricing()
	if err != nil {
		return nil, err
	}
	platform, err := d.platform()
	if err != nil {
		return nil, err
	}
	entries, err := d.tables.Resolve(itemID, KindResale)
	if err != nil {
		return nil, err
	}
	price := new(big.Int).Set(salePrice)
	if err := d.ensureCovered(buyer, price); err != nil {
		return nil, err
	}

	if err := d.token.TransferFrom(d.vault, buyer, d.vault, price); err != nil {
		return nil, err
	}
	royaltyAmount := bpsShare(price, cfg.RoyaltyBps)
	royaltyPaid := big.NewInt(0)
	for _, entry := range entries {
		share := bpsShare(royaltyAmount, entry.WeightBps)
		if err := d.token.Transfer(d.vault, entry.Recipient, share); err != nil {
			return nil, err
		}
		royaltyPaid.Add(royaltyPaid, share)
	}
	residue := new(big.Int).Sub(royaltyAmount, royaltyPaid)
	platformCut := bpsShare(price, cfg.CommissionBps)
	if err := d.token.Transfer(d.vault, platform, platformCut); err != nil {
		return nil, err
	}
	proceeds := new(big.Int).Sub(price, royaltyAmount)
	proceeds.Sub(proceeds, platformCut)
	if err := d.token.Transfer(d.vault, seller, proceeds); err != nil {
		return nil, err
	}
	if err := d.registry.CompleteSale(seller, buyer, itemID); err != nil {
		return nil, err
	}
	d.emitter.Emit(events.SaleSettled{
		Seller:         seller,
		Buyer:          buyer,
		ItemID:         itemID,
		SalePrice:      new(big.Int).Set(price),
		RoyaltyAmount:  new(big.Int).Set(royaltyAmount),
		RoyaltyResidue: new(big.Int).Set(residue),
		PlatformCut:    new(big.Int).Set(platformCut),
		SellerProceeds: new(big.Int).Set(proceeds),
	})
	return &SaleReceipt{
		ItemID:         itemID,
		Seller:         seller,
		Buyer:          buyer,
		SalePrice:      price,
		RoyaltyAmount:  royaltyAmount,
		RoyaltyPaid:    royaltyPaid,
		RoyaltyResidue: residue,
		PlatformCut:    platformCut,
		SellerProceeds: proceeds,
	}, nil
}
