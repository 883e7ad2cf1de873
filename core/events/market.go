package events

import "math/big"

const (
	// TypeAcquisitionSettled marks a primary-sale payment that has been split
	// and settled and its item minted.
	TypeAcquisitionSettled = "market.acquisition.settled"
	// TypeSaleSettled marks a secondary-sale payment that has been split and
	// settled and its item transferred.
	TypeSaleSettled = "market.sale.settled"
	// TypeFeeTableUpdated marks a default or per-item fee table change.
	TypeFeeTableUpdated = "market.feetable.updated"
	// TypePricingUpdated marks a pricing configuration change.
	TypePricingUpdated = "market.pricing.updated"
	// TypePlatformRotated marks an atomic platform identity swap.
	TypePlatformRotated = "market.platform.rotated"

	TypeLeaseCreated  = "lease.created"
	TypeLeaseExtended = "lease.extended"
	TypeLeaseEnded    = "lease.ended"
	TypeLeaseExpired  = "lease.expired"

	TypeItemMinted      = "registry.item.minted"
	TypeItemTransferred = "registry.item.transferred"
	TypeItemBurned      = "registry.item.burned"
)

// AcquisitionSettled records the full accounting of a primary sale: the
// platform cut, the summed recipient shares and the dust routed to the first
// recipient always reassemble the gross amount exactly.
type AcquisitionSettled struct {
	Payer       [20]byte
	ItemID      uint64
	Total       *big.Int
	PlatformCut *big.Int
	Distributed *big.Int
	Dust        *big.Int
	Recipients  int
}

func (AcquisitionSettled) EventType() string { return TypeAcquisitionSettled }

// SaleSettled records the accounting of a secondary sale. RoyaltyResidue is
// the truncation remainder left undistributed in the vault by the resale
// split.
type SaleSettled struct {
	Seller         [20]byte
	Buyer          [20]byte
	ItemID         uint64
	SalePrice      *big.Int
	RoyaltyAmount  *big.Int
	RoyaltyResidue *big.Int
	PlatformCut    *big.Int
	SellerProceeds *big.Int
}

func (SaleSettled) EventType() string { return TypeSaleSettled }

// FeeTableUpdated records a default (ItemID zero, Override false) or
// per-item override table change.
type FeeTableUpdated struct {
	Kind           string
	ItemID         uint64
	Override       bool
	Cleared        bool
	Entries        int
	PricingVersion uint64
}

func (FeeTableUpdated) EventType() string { return TypeFeeTableUpdated }

// PricingUpdated records a pricing configuration mutation.
type PricingUpdated struct {
	Version       uint64
	UnitPrice     *big.Int
	CommissionBps uint32
	RoyaltyBps    uint32
}

func (PricingUpdated) EventType() string { return TypePricingUpdated }

// PlatformRotated records the atomic reassignment of the platform identity.
type PlatformRotated struct {
	Previous [20]byte
	Current  [20]byte
}

func (PlatformRotated) EventType() string { return TypePlatformRotated }

// LeaseCreated records a new active lease over an item.
type LeaseCreated struct {
	ItemID uint64
	Holder [20]byte
	Start  int64
	End    int64
	Price  *big.Int
}

func (LeaseCreated) EventType() string { return TypeLeaseCreated }

// LeaseExtended records a lease extension. Price is the accumulated total
// after the extension payment.
type LeaseExtended struct {
	ItemID     uint64
	Holder     [20]byte
	End        int64
	Price      *big.Int
	ExtraPrice *big.Int
}

func (LeaseExtended) EventType() string { return TypeLeaseExtended }

// LeaseEnded records an explicit lease termination by the holder or owner.
type LeaseEnded struct {
	ItemID uint64
	Holder [20]byte
	Caller [20]byte
}

func (LeaseEnded) EventType() string { return TypeLeaseEnded }

// LeaseExpired records a lease lazily reconciled after its end time passed.
type LeaseExpired struct {
	ItemID uint64
	Holder [20]byte
	End    int64
}

func (LeaseExpired) EventType() string { return TypeLeaseExpired }

// ItemMinted records a newly minted item.
type ItemMinted struct {
	ItemID uint64
	Owner  [20]byte
}

func (ItemMinted) EventType() string { return TypeItemMinted }

// ItemTransferred records an ownership change.
type ItemTransferred struct {
	ItemID uint64
	From   [20]byte
	To     [20]byte
}

func (ItemTransferred) EventType() string { return TypeItemTransferred }

// ItemBurned records a destroyed item.
type ItemBurned struct {
	ItemID uint64
	Owner  [20]byte
}

func (ItemBurned) EventType() string { return TypeItemBurned }
