package roles

import (
	"errors"
	"fmt"

	"curioledger/core/events"
)

const (
	// RoleOwner marks configuration authority over pricing, fee tables and
	// the administrative surface. One or more accounts may hold it.
	RoleOwner = "ROLE_OWNER"
	// RolePlatform marks the single account receiving the platform
	// commission.
	RolePlatform = "ROLE_PLATFORM"
	// RoleHolder is the time-boxed usage capability. It is never stored as a
	// standalone flag: membership is derived from the active lease index so
	// ending one lease cannot revoke a capability still justified by another.
	RoleHolder = "ROLE_HOLDER"
)

var (
	ErrUnauthorized = errors.New("roles: unauthorized")
	ErrZeroAddress  = errors.New("roles: zero address")
	ErrLastOwner    = errors.New("roles: cannot revoke last owner")
)

type gateState interface {
	RoleGrant(role string, addr [20]byte) error
	RoleRevoke(role string, addr [20]byte) error
	RoleHas(role string, addr [20]byte) bool
	RoleMembers(role string) ([][20]byte, error)
	ActiveLeaseCount(holder [20]byte) (int, error)
}

// Gate answers role checks for the ledger engines and owns the mutations of
// the stored owner and platform memberships.
type Gate struct {
	st      gateState
	emitter events.Emitter
}

// NewGate creates a gate backed by the provided state manager.
func NewGate(st gateState) *Gate {
	return &Gate{st: st, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (g *Gate) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		g.emitter = events.NoopEmitter{}
		return
	}
	g.emitter = emitter
}

// Has reports whether the account currently holds the role. The holder role
// is derived from active lease membership rather than stored state.
func (g *Gate) Has(role string, addr [20]byte) bool {
	if g == nil || g.st == nil {
		return false
	}
	if role == RoleHolder {
		n, err := g.st.ActiveLeaseCount(addr)
		return err == nil && n > 0
	}
	return g.st.RoleHas(role, addr)
}

// Require returns ErrUnauthorized naming the missing role when the account
// does not hold it.
func (g *Gate) Require(role string, addr [20]byte) error {
	if g.Has(role, addr) {
		return nil
	}
	return fmt.Errorf("%w: %s required", ErrUnauthorized, role)
}

// GrantOwner adds a configuration authority account. Owner-only.
func (g *Gate) GrantOwner(caller, addr [20]byte) error {
	if err := g.Require(RoleOwner, caller); err != nil {
		return err
	}
	if addr == ([20]byte{}) {
		return ErrZeroAddress
	}
	return g.st.RoleGrant(RoleOwner, addr)
}

// RevokeOwner removes an owner account. The last owner cannot be removed so
// the administrative surface never becomes unreachable.
func (g *Gate) RevokeOwner(caller, addr [20]byte) error {
	if err := g.Require(RoleOwner, caller); err != nil {
		return err
	}
	members, err := g.st.RoleMembers(RoleOwner)
	if err != nil {
		return err
	}
	if len(members) <= 1 {
		return ErrLastOwner
	}
	return g.st.RoleRevoke(RoleOwner, addr)
}

// Platform returns the current platform identity, if configured.
func (g *Gate) Platform() ([20]byte, bool) {
	if g == nil || g.st == nil {
		return [20]byte{}, false
	}
	members, err := g.st.RoleMembers(RolePlatform)
	if err != nil || len(members) == 0 {
		return [20]byte{}, false
	}
	return members[0], true
}

// SetPlatform reassigns the platform identity, revoking the role from the
// previous account and granting it to the new one in one step so at most one
// platform identity is ever privileged.
func (g *Gate) SetPlatform(caller, addr [20]byte) error {
	if err := g.Require(RoleOwner, caller); err != nil {
		return err
	}
	if addr == ([20]byte{}) {
		return ErrZeroAddress
	}
	previous, had := g.Platform()
	if had {
		if previous == addr {
			return nil
		}
		if err := g.st.RoleRevoke(RolePlatform, previous); err != nil {
			return err
		}
	}
	if err := g.st.RoleGrant(RolePlatform, addr); err != nil {
		return err
	}
	g.emitter.Emit(events.PlatformRotated{Previous: previous, Current: addr})
	return nil
}
