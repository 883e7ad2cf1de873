package lease

import (
	"fmt"
	"math/big"
	"strings"
)

// Lease is the single rental record an item can carry. Active is the stored
// flag; the effective state also depends on the clock: a lease with
// now >= End is expired even while Active is still set, and is cleared
// lazily the first time an operation observes it.
type Lease struct {
	ItemID uint64
	Holder [20]byte
	Start  int64
	End    int64
	Price  *big.Int
	Active bool
}

// Clone returns a deep copy of the lease with a non-nil price.
func (l *Lease) Clone() *Lease {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Price != nil {
		clone.Price = new(big.Int).Set(l.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}

// RoutingPolicy names how lease payments move. The two flows existed side by
// side in earlier contract variants; here the policy is an explicit engine
// parameter so they are never conflated.
type RoutingPolicy uint8

const (
	// RouteDirect pays the full lease price straight to the item owner.
	RouteDirect RoutingPolicy = iota + 1
	// RouteCustody pulls the price into the module vault, cuts the platform
	// commission, and forwards the remainder to the item owner.
	RouteCustody
)

// Valid reports whether the policy is within the supported range.
func (p RoutingPolicy) Valid() bool {
	return p == RouteDirect || p == RouteCustody
}

func (p RoutingPolicy) String() string {
	switch p {
	case RouteDirect:
		return "direct"
	case RouteCustody:
		return "custody"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// ParseRoutingPolicy canonicalises a policy name from configuration.
func ParseRoutingPolicy(raw string) (RoutingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "direct":
		return RouteDirect, nil
	case "custody":
		return RouteCustody, nil
	default:
		return 0, fmt.Errorf("lease: unknown routing policy %q", raw)
	}
}
