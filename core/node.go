package core

import (
	"math/big"

	"curioledger/core/events"
	"curioledger/native/feesplit"
	"curioledger/native/lease"
	"curioledger/native/registry"
	"curioledger/native/roles"
	"curioledger/native/token"
	"curioledger/state"
	"curioledger/storage"
)

// VaultAddress is the module custody account payments route through. It is a
// reserved address no key controls.
var VaultAddress = [20]byte{0xc1, 0x0d, 0x0e, 0x0a, 0x1e, 0x0d, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01}

// Node owns the persistent state and the ledger engines and runs every
// operation as one serialized unit of work, so engines never observe each
// other mid-mutation.
type Node struct {
	st          *state.Manager
	gate        *roles.Gate
	tokens      *token.Ledger
	items       *registry.Registry
	tables      *feesplit.Store
	distributor *feesplit.Distributor
	leases      *lease.Engine
}

// Options configures node construction.
type Options struct {
	Routing lease.RoutingPolicy
	Emitter events.Emitter
}

// NewNode wires the engines over a shared state manager. The lease engine is
// installed as the registry transfer guard and the distributor sale gate.
func NewNode(db storage.Database, opts Options) (*Node, error) {
	st := state.NewManager(db)
	gate := roles.NewGate(st)
	tokens := token.NewLedger(st)
	items := registry.NewRegistry(st)
	tables := feesplit.NewStore(st)
	distributor := feesplit.NewDistributor(tables, tokens, items, gate, VaultAddress)
	leases, err := lease.NewEngine(st, items, tables, tokens, gate, opts.Routing, VaultAddress)
	if err != nil {
		return nil, err
	}
	items.SetGuard(leases)
	distributor.SetLeaseGate(leases)
	items.SetPauses(st)
	distributor.SetPauses(st)
	tables.SetPauses(st)
	leases.SetPauses(st)
	if opts.Emitter != nil {
		gate.SetEmitter(opts.Emitter)
		items.SetEmitter(opts.Emitter)
		tables.SetEmitter(opts.Emitter)
		distributor.SetEmitter(opts.Emitter)
		leases.SetEmitter(opts.Emitter)
	}
	return &Node{
		st:          st,
		gate:        gate,
		tokens:      tokens,
		items:       items,
		tables:      tables,
		distributor: distributor,
		leases:      leases,
	}, nil
}

// State exposes the underlying manager for provisioning and tests.
func (n *Node) State() *state.Manager { return n.st }

// Genesis seeds the role and pricing state on an empty database. Zero
// addresses and nil values are skipped, so re-running on a provisioned
// database only fills gaps.
type Genesis struct {
	Owner         [20]byte
	Platform      [20]byte
	UnitPrice     *big.Int
	CommissionBps uint32
	RoyaltyBps    uint32
	BaseURI       string
}

// ApplyGenesis provisions initial owner and platform roles and the starting
// pricing configuration.
func (n *Node) ApplyGenesis(g Genesis) error {
	return n.st.WithLock(func() error {
		if g.Owner != ([20]byte{}) {
			if err := n.st.RoleGrant(roles.RoleOwner, g.Owner); err != nil {
				return err
			}
		}
		if g.Platform != ([20]byte{}) {
			if err := n.st.RoleGrant(roles.RolePlatform, g.Platform); err != nil {
				return err
			}
		}
		owner := g.Owner
		if owner == ([20]byte{}) {
			return nil
		}
		current, err := n.tables.Pricing()
		if err != nil {
			return err
		}
		if current.Version > 0 {
			return nil
		}
		if g.UnitPrice != nil && g.UnitPrice.Sign() > 0 {
			if _, err := n.tables.SetUnitPrice(owner, g.UnitPrice); err != nil {
				return err
			}
		}
		if g.CommissionBps > 0 {
			if _, err := n.tables.SetCommissionBps(owner, g.CommissionBps); err != nil {
				return err
			}
		}
		if g.RoyaltyBps > 0 {
			if _, err := n.tables.SetRoyaltyBps(owner, g.RoyaltyBps); err != nil {
				return err
			}
		}
		if g.BaseURI != "" {
			if err := n.items.SetBaseURI(owner, g.BaseURI); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- settlement ---

// Purchase settles a primary sale for the payer at the configured unit price.
func (n *Node) Purchase(payer [20]byte, itemID uint64) (*feesplit.AcquisitionReceipt, error) {
	var receipt *feesplit.AcquisitionReceipt
	err := n.st.WithLock(func() error {
		var err error
		receipt, err = n.distributor.DistributeAcquisition(payer, itemID)
		return err
	})
	return receipt, err
}

// Sell settles a secondary sale between seller and buyer.
func (n *Node) Sell(caller, seller, buyer [20]byte, salePrice *big.Int, itemID uint64) (*feesplit.SaleReceipt, error) {
	var receipt *feesplit.SaleReceipt
	err := n.st.WithLock(func() error {
		var err error
		receipt, err = n.distributor.DistributeSale(caller, seller, buyer, salePrice, itemID)
		return err
	})
	return receipt, err
}

// --- leases ---

func (n *Node) CreateLease(holder [20]byte, itemID uint64, duration int64, price *big.Int) (*lease.Lease, error) {
	var l *lease.Lease
	err := n.st.WithLock(func() error {
		var err error
		l, err = n.leases.Create(holder, itemID, duration, price)
		return err
	})
	return l, err
}

func (n *Node) ExtendLease(caller [20]byte, itemID uint64, extraDuration int64, extraPrice *big.Int) (*lease.Lease, error) {
	var l *lease.Lease
	err := n.st.WithLock(func() error {
		var err error
		l, err = n.leases.Extend(caller, itemID, extraDuration, extraPrice)
		return err
	})
	return l, err
}

func (n *Node) EndLease(caller [20]byte, itemID uint64) error {
	return n.st.WithLock(func() error {
		return n.leases.End(caller, itemID)
	})
}

func (n *Node) Lease(itemID uint64) (*lease.Lease, bool, error) {
	var (
		l  *lease.Lease
		ok bool
	)
	err := n.st.WithLock(func() error {
		var err error
		l, ok, err = n.leases.Get(itemID)
		return err
	})
	return l, ok, err
}

func (n *Node) CurrentHolder(itemID uint64) ([20]byte, error) {
	var holder [20]byte
	err := n.st.WithLock(func() error {
		var err error
		holder, err = n.leases.CurrentHolder(itemID)
		return err
	})
	return holder, err
}

func (n *Node) HasActiveLease(holder [20]byte) (bool, error) {
	var active bool
	err := n.st.WithLock(func() error {
		var err error
		active, err = n.leases.HasActiveLease(holder)
		return err
	})
	return active, err
}

// --- items ---

func (n *Node) OwnerOf(itemID uint64) ([20]byte, error) {
	var owner [20]byte
	err := n.st.WithLock(func() error {
		var err error
		owner, err = n.items.OwnerOf(itemID)
		return err
	})
	return owner, err
}

func (n *Node) TransferItem(caller, from, to [20]byte, itemID uint64) error {
	return n.st.WithLock(func() error {
		return n.items.Transfer(caller, from, to, itemID)
	})
}

func (n *Node) BurnItem(caller [20]byte, itemID uint64) error {
	return n.st.WithLock(func() error {
		return n.items.Burn(caller, itemID)
	})
}

func (n *Node) ItemsOf(owner [20]byte) ([]uint64, error) {
	var ids []uint64
	err := n.st.WithLock(func() error {
		var err error
		ids, err = n.items.ItemsOf(owner)
		return err
	})
	return ids, err
}

func (n *Node) TotalSupply() (uint64, error) {
	var total uint64
	err := n.st.WithLock(func() error {
		var err error
		total, err = n.items.TotalSupply()
		return err
	})
	return total, err
}

func (n *Node) SetBaseURI(caller [20]byte, uri string) error {
	return n.st.WithLock(func() error {
		return n.items.SetBaseURI(caller, uri)
	})
}

func (n *Node) TokenURI(itemID uint64) (string, error) {
	var uri string
	err := n.st.WithLock(func() error {
		var err error
		uri, err = n.items.TokenURI(itemID)
		return err
	})
	return uri, err
}

// --- fee tables and pricing ---

func (n *Node) Pricing() (*feesplit.PricingConfig, error) {
	var cfg *feesplit.PricingConfig
	err := n.st.WithLock(func() error {
		var err error
		cfg, err = n.tables.Pricing()
		return err
	})
	return cfg, err
}

func (n *Node) SetUnitPrice(caller [20]byte, price *big.Int) (*feesplit.PricingConfig, error) {
	var cfg *feesplit.PricingConfig
	err := n.st.WithLock(func() error {
		var err error
		cfg, err = n.tables.SetUnitPrice(caller, price)
		return err
	})
	return cfg, err
}

func (n *Node) SetCommissionBps(caller [20]byte, bps uint32) (*feesplit.PricingConfig, error) {
	var cfg *feesplit.PricingConfig
	err := n.st.WithLock(func() error {
		var err error
		cfg, err = n.tables.SetCommissionBps(caller, bps)
		return err
	})
	return cfg, err
}

func (n *Node) SetRoyaltyBps(caller [20]byte, bps uint32) (*feesplit.PricingConfig, error) {
	var cfg *feesplit.PricingConfig
	err := n.st.WithLock(func() error {
		var err error
		cfg, err = n.tables.SetRoyaltyBps(caller, bps)
		return err
	})
	return cfg, err
}

func (n *Node) SetDefaultTable(caller [20]byte, kind feesplit.TableKind, entries []feesplit.FeeEntry) error {
	return n.st.WithLock(func() error {
		return n.tables.SetDefault(caller, kind, entries)
	})
}

func (n *Node) SetOverrideTable(caller [20]byte, itemID uint64, kind feesplit.TableKind, entries []feesplit.FeeEntry) error {
	return n.st.WithLock(func() error {
		return n.tables.SetOverride(caller, itemID, kind, entries)
	})
}

func (n *Node) ClearOverrideTable(caller [20]byte, itemID uint64, kind feesplit.TableKind) error {
	return n.st.WithLock(func() error {
		return n.tables.ClearOverride(caller, itemID, kind)
	})
}

func (n *Node) Receivers(itemID uint64, kind feesplit.TableKind) ([]feesplit.FeeEntry, error) {
	var entries []feesplit.FeeEntry
	err := n.st.WithLock(func() error {
		var err error
		entries, err = n.tables.Resolve(itemID, kind)
		return err
	})
	return entries, err
}

func (n *Node) RoyaltyInfo(itemID uint64, salePrice *big.Int) ([20]byte, *big.Int, error) {
	var (
		receiver [20]byte
		amount   *big.Int
	)
	err := n.st.WithLock(func() error {
		var err error
		receiver, amount, err = n.tables.RoyaltyInfo(itemID, salePrice)
		return err
	})
	return receiver, amount, err
}

// --- roles ---

func (n *Node) HasRole(role string, addr [20]byte) bool {
	var has bool
	_ = n.st.WithLock(func() error {
		has = n.gate.Has(role, addr)
		return nil
	})
	return has
}

func (n *Node) GrantOwner(caller, addr [20]byte) error {
	return n.st.WithLock(func() error {
		return n.gate.GrantOwner(caller, addr)
	})
}

func (n *Node) RevokeOwner(caller, addr [20]byte) error {
	return n.st.WithLock(func() error {
		return n.gate.RevokeOwner(caller, addr)
	})
}

func (n *Node) SetPlatform(caller, addr [20]byte) error {
	return n.st.WithLock(func() error {
		return n.gate.SetPlatform(caller, addr)
	})
}

func (n *Node) Platform() ([20]byte, bool) {
	var (
		platform [20]byte
		ok       bool
	)
	_ = n.st.WithLock(func() error {
		platform, ok = n.gate.Platform()
		return nil
	})
	return platform, ok
}

// --- stablecoin ---

func (n *Node) BalanceOf(addr [20]byte) (*big.Int, error) {
	var bal *big.Int
	err := n.st.WithLock(func() error {
		var err error
		bal, err = n.tokens.BalanceOf(addr)
		return err
	})
	return bal, err
}

func (n *Node) Approve(owner [20]byte, amount *big.Int) error {
	return n.st.WithLock(func() error {
		return n.tokens.Approve(owner, VaultAddress, amount)
	})
}

func (n *Node) MintFunds(caller, to [20]byte, amount *big.Int) error {
	return n.st.WithLock(func() error {
		return n.tokens.Mint(caller, to, amount)
	})
}

// SetPaused toggles the pause flag for a ledger module. Owner-only.
func (n *Node) SetPaused(caller [20]byte, module string, paused bool) error {
	return n.st.WithLock(func() error {
		if err := n.gate.Require(roles.RoleOwner, caller); err != nil {
			return err
		}
		return n.st.SetPaused(module, paused)
	})
}
