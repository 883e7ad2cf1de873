package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"curioledger/native/feesplit"
	"curioledger/native/lease"
	"curioledger/storage"
)

const (
	prefixRole          = "roles/"
	prefixBalance       = "token/balance/"
	prefixAllowance     = "token/allowance/"
	prefixItemOwner     = "item/owner/"
	prefixItemIndex     = "item/index/"
	keyItemTotal        = "item/total"
	keyBaseURI          = "item/baseuri"
	prefixTableDefault  = "fees/default/"
	prefixTableOverride = "fees/override/"
	keyPricing          = "fees/pricing"
	prefixLease         = "lease/record/"
	prefixLeaseIndex    = "lease/index/"
	prefixPause         = "pause/"
)

// Manager persists the whole ledger state in a key-value store with a JSON
// codec and serializes every public operation behind one mutex, so no two
// operations ever interleave mid-execution.
type Manager struct {
	mu    sync.Mutex
	db    storage.Database
	nowFn func() int64
}

// NewManager creates a state manager over the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, nowFn: func() int64 { return time.Now().Unix() }}
}

// SetNowFunc overrides the clock used for derived lease-capability counts.
// Primarily intended for tests.
func (m *Manager) SetNowFunc(now func() int64) {
	if now == nil {
		m.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	m.nowFn = now
}

// WithLock runs fn as one serialized unit of work.
func (m *Manager) WithLock(fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn()
}

func (m *Manager) get(key string, out interface{}) (bool, error) {
	raw, err := m.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %s: %w", key, err)
	}
	return true, nil
}

func (m *Manager) put(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	return m.db.Put([]byte(key), raw)
}

func addrKey(addr [20]byte) string {
	return common.Bytes2Hex(addr[:])
}

// --- roles ---

func (m *Manager) roleList(role string) ([]string, error) {
	var members []string
	if _, err := m.get(prefixRole+role, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (m *Manager) RoleHas(role string, addr [20]byte) bool {
	members, err := m.roleList(role)
	if err != nil {
		return false
	}
	hexAddr := addrKey(addr)
	for _, member := range members {
		if member == hexAddr {
			return true
		}
	}
	return false
}

func (m *Manager) RoleGrant(role string, addr [20]byte) error {
	members, err := m.roleList(role)
	if err != nil {
		return err
	}
	hexAddr := addrKey(addr)
	for _, member := range members {
		if member == hexAddr {
			return nil
		}
	}
	members = append(members, hexAddr)
	sort.Strings(members)
	return m.put(prefixRole+role, members)
}

func (m *Manager) RoleRevoke(role string, addr [20]byte) error {
	members, err := m.roleList(role)
	if err != nil {
		return err
	}
	hexAddr := addrKey(addr)
	kept := members[:0]
	for _, member := range members {
		if member != hexAddr {
			kept = append(kept, member)
		}
	}
	return m.put(prefixRole+role, kept)
}

func (m *Manager) RoleMembers(role string) ([][20]byte, error) {
	members, err := m.roleList(role)
	if err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(members))
	for _, member := range members {
		var addr [20]byte
		copy(addr[:], common.FromHex(member))
		out = append(out, addr)
	}
	return out, nil
}

// --- stablecoin balances and allowances ---

func (m *Manager) TokenBalance(addr [20]byte) (*big.Int, error) {
	var raw string
	ok, err := m.get(prefixBalance+addrKey(addr), &raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	value, valid := new(big.Int).SetString(raw, 10)
	if !valid {
		return nil, fmt.Errorf("state: corrupt balance for %s", addrKey(addr))
	}
	return value, nil
}

func (m *Manager) TokenSetBalance(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: invalid balance")
	}
	return m.put(prefixBalance+addrKey(addr), amount.String())
}

func allowanceKey(owner, spender [20]byte) string {
	return prefixAllowance + addrKey(owner) + "/" + addrKey(spender)
}

func (m *Manager) TokenAllowance(owner, spender [20]byte) (*big.Int, error) {
	var raw string
	ok, err := m.get(allowanceKey(owner, spender), &raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	value, valid := new(big.Int).SetString(raw, 10)
	if !valid {
		return nil, fmt.Errorf("state: corrupt allowance")
	}
	return value, nil
}

func (m *Manager) TokenSetAllowance(owner, spender [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: invalid allowance")
	}
	return m.put(allowanceKey(owner, spender), amount.String())
}

// --- item registry ---

func itemKey(itemID uint64) string {
	return prefixItemOwner + strconv.FormatUint(itemID, 10)
}

func (m *Manager) ItemOwner(itemID uint64) ([20]byte, bool, error) {
	var raw string
	ok, err := m.get(itemKey(itemID), &raw)
	if err != nil || !ok {
		return [20]byte{}, false, err
	}
	var addr [20]byte
	copy(addr[:], common.FromHex(raw))
	return addr, true, nil
}

func (m *Manager) ItemPut(itemID uint64, owner [20]byte) error {
	return m.put(itemKey(itemID), addrKey(owner))
}

func (m *Manager) ItemDelete(itemID uint64) error {
	return m.db.Delete([]byte(itemKey(itemID)))
}

func (m *Manager) itemIndex(owner [20]byte) ([]uint64, error) {
	var ids []uint64
	if _, err := m.get(prefixItemIndex+addrKey(owner), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (m *Manager) ItemIndexAdd(owner [20]byte, itemID uint64) error {
	ids, err := m.itemIndex(owner)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == itemID {
			return nil
		}
	}
	ids = append(ids, itemID)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return m.put(prefixItemIndex+addrKey(owner), ids)
}

func (m *Manager) ItemIndexRemove(owner [20]byte, itemID uint64) error {
	ids, err := m.itemIndex(owner)
	if err != nil {
		return err
	}
	kept := ids[:0]
	for _, id := range ids {
		if id != itemID {
			kept = append(kept, id)
		}
	}
	return m.put(prefixItemIndex+addrKey(owner), kept)
}

func (m *Manager) ItemIndexList(owner [20]byte) ([]uint64, error) {
	return m.itemIndex(owner)
}

func (m *Manager) ItemTotal() (uint64, error) {
	var total uint64
	if _, err := m.get(keyItemTotal, &total); err != nil {
		return 0, err
	}
	return total, nil
}

func (m *Manager) ItemSetTotal(total uint64) error {
	return m.put(keyItemTotal, total)
}

func (m *Manager) BaseURIGet() (string, error) {
	var uri string
	if _, err := m.get(keyBaseURI, &uri); err != nil {
		return "", err
	}
	return uri, nil
}

func (m *Manager) BaseURISet(uri string) error {
	return m.put(keyBaseURI, uri)
}

// --- fee tables and pricing ---

func defaultTableKey(kind feesplit.TableKind) string {
	return prefixTableDefault + kind.String()
}

func overrideTableKey(itemID uint64, kind feesplit.TableKind) string {
	return prefixTableOverride + kind.String() + "/" + strconv.FormatUint(itemID, 10)
}

func (m *Manager) DefaultTableGet(kind feesplit.TableKind) (*feesplit.FeeTable, bool, error) {
	table := new(feesplit.FeeTable)
	ok, err := m.get(defaultTableKey(kind), table)
	if err != nil || !ok {
		return nil, false, err
	}
	return table, true, nil
}

func (m *Manager) DefaultTablePut(table *feesplit.FeeTable) error {
	if table == nil {
		return fmt.Errorf("state: nil fee table")
	}
	return m.put(defaultTableKey(table.Kind), table)
}

func (m *Manager) OverrideTableGet(itemID uint64, kind feesplit.TableKind) (*feesplit.FeeTable, bool, error) {
	table := new(feesplit.FeeTable)
	ok, err := m.get(overrideTableKey(itemID, kind), table)
	if err != nil || !ok {
		return nil, false, err
	}
	return table, true, nil
}

func (m *Manager) OverrideTablePut(itemID uint64, table *feesplit.FeeTable) error {
	if table == nil {
		return fmt.Errorf("state: nil fee table")
	}
	return m.put(overrideTableKey(itemID, table.Kind), table)
}

func (m *Manager) OverrideTableDelete(itemID uint64, kind feesplit.TableKind) error {
	return m.db.Delete([]byte(overrideTableKey(itemID, kind)))
}

func (m *Manager) PricingGet() (*feesplit.PricingConfig, bool, error) {
	cfg := new(feesplit.PricingConfig)
	ok, err := m.get(keyPricing, cfg)
	if err != nil || !ok {
		return nil, false, err
	}
	return cfg, true, nil
}

func (m *Manager) PricingPut(cfg *feesplit.PricingConfig) error {
	if cfg == nil {
		return fmt.Errorf("state: nil pricing config")
	}
	return m.put(keyPricing, cfg)
}

// --- leases ---

func leaseKey(itemID uint64) string {
	return prefixLease + strconv.FormatUint(itemID, 10)
}

func (m *Manager) LeaseGet(itemID uint64) (*lease.Lease, bool, error) {
	l := new(lease.Lease)
	ok, err := m.get(leaseKey(itemID), l)
	if err != nil || !ok {
		return nil, false, err
	}
	return l, true, nil
}

func (m *Manager) LeasePut(l *lease.Lease) error {
	if l == nil {
		return fmt.Errorf("state: nil lease")
	}
	return m.put(leaseKey(l.ItemID), l)
}

func (m *Manager) leaseIndex(holder [20]byte) ([]uint64, error) {
	var ids []uint64
	if _, err := m.get(prefixLeaseIndex+addrKey(holder), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (m *Manager) LeaseIndexAdd(holder [20]byte, itemID uint64) error {
	ids, err := m.leaseIndex(holder)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == itemID {
			return nil
		}
	}
	ids = append(ids, itemID)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return m.put(prefixLeaseIndex+addrKey(holder), ids)
}

func (m *Manager) LeaseIndexRemove(holder [20]byte, itemID uint64) error {
	ids, err := m.leaseIndex(holder)
	if err != nil {
		return err
	}
	kept := ids[:0]
	for _, id := range ids {
		if id != itemID {
			kept = append(kept, id)
		}
	}
	return m.put(prefixLeaseIndex+addrKey(holder), kept)
}

func (m *Manager) LeaseIndexList(holder [20]byte) ([]uint64, error) {
	return m.leaseIndex(holder)
}

// ActiveLeaseCount counts the holder's leases that are both active and not
// yet past their end. Expired entries awaiting lazy reconciliation do not
// count toward the derived holder capability.
func (m *Manager) ActiveLeaseCount(holder [20]byte) (int, error) {
	ids, err := m.leaseIndex(holder)
	if err != nil {
		return 0, err
	}
	now := m.nowFn()
	count := 0
	for _, id := range ids {
		l, ok, err := m.LeaseGet(id)
		if err != nil {
			return 0, err
		}
		if ok && l.Active && l.Holder == holder && now < l.End {
			count++
		}
	}
	return count, nil
}

// --- module pauses ---

func (m *Manager) IsPaused(module string) bool {
	var paused bool
	ok, err := m.get(prefixPause+module, &paused)
	return err == nil && ok && paused
}

func (m *Manager) SetPaused(module string, paused bool) error {
	return m.put(prefixPause+module, paused)
}
