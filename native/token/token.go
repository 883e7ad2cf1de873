package token

import (
	"errors"
	"fmt"
	"math/big"

	"curioledger/native/roles"
)

var (
	ErrInsufficientFunds     = errors.New("token: insufficient funds")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrNegativeAmount        = errors.New("token: negative amount")
	ErrZeroAddress           = errors.New("token: zero address")
)

// Token is the fungible stablecoin surface the ledger engines settle
// payments through. Engines only ever pull amounts they have already
// validated as owed and always check the returned error.
type Token interface {
	Transfer(from, to [20]byte, amount *big.Int) error
	TransferFrom(spender, from, to [20]byte, amount *big.Int) error
	BalanceOf(addr [20]byte) (*big.Int, error)
	Allowance(owner, spender [20]byte) (*big.Int, error)
	Approve(owner, spender [20]byte, amount *big.Int) error
}

type ledgerState interface {
	TokenBalance(addr [20]byte) (*big.Int, error)
	TokenSetBalance(addr [20]byte, amount *big.Int) error
	TokenAllowance(owner, spender [20]byte) (*big.Int, error)
	TokenSetAllowance(owner, spender [20]byte, amount *big.Int) error
	RoleHas(role string, addr [20]byte) bool
}

// Ledger is the state-backed stablecoin implementation.
type Ledger struct {
	st ledgerState
}

// NewLedger creates a stablecoin ledger backed by the provided state.
func NewLedger(st ledgerState) *Ledger {
	return &Ledger{st: st}
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// BalanceOf returns the spendable balance of the account.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	bal, err := l.st.TokenBalance(addr)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(bal), nil
}

// Allowance returns the amount the spender may pull from the owner.
func (l *Ledger) Allowance(owner, spender [20]byte) (*big.Int, error) {
	allowance, err := l.st.TokenAllowance(owner, spender)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(allowance), nil
}

// Approve sets the spender allowance for the owner account.
func (l *Ledger) Approve(owner, spender [20]byte, amount *big.Int) error {
	amt := cloneBigInt(amount)
	if amt.Sign() < 0 {
		return ErrNegativeAmount
	}
	if owner == ([20]byte{}) || spender == ([20]byte{}) {
		return ErrZeroAddress
	}
	return l.st.TokenSetAllowance(owner, spender, amt)
}

// Transfer moves amount from one account to another. A zero amount is a
// no-op.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	amt := cloneBigInt(amount)
	if amt.Sign() < 0 {
		return ErrNegativeAmount
	}
	if amt.Sign() == 0 {
		return nil
	}
	if to == ([20]byte{}) {
		return ErrZeroAddress
	}
	fromBal, err := l.st.TokenBalance(from)
	if err != nil {
		return err
	}
	fromBal = cloneBigInt(fromBal)
	if fromBal.Cmp(amt) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, fromBal, amt)
	}
	toBal, err := l.st.TokenBalance(to)
	if err != nil {
		return err
	}
	toBal = cloneBigInt(toBal)
	if err := l.st.TokenSetBalance(from, new(big.Int).Sub(fromBal, amt)); err != nil {
		return err
	}
	return l.st.TokenSetBalance(to, new(big.Int).Add(toBal, amt))
}

// TransferFrom moves amount from the owner to the recipient on behalf of the
// spender, consuming allowance. The spender spending its own balance needs no
// allowance.
func (l *Ledger) TransferFrom(spender, from, to [20]byte, amount *big.Int) error {
	amt := cloneBigInt(amount)
	if amt.Sign() < 0 {
		return ErrNegativeAmount
	}
	if amt.Sign() == 0 {
		return nil
	}
	if spender != from {
		allowance, err := l.st.TokenAllowance(from, spender)
		if err != nil {
			return err
		}
		allowance = cloneBigInt(allowance)
		if allowance.Cmp(amt) < 0 {
			return fmt.Errorf("%w: have %s, need %s", ErrInsufficientAllowance, allowance, amt)
		}
		if err := l.st.TokenSetAllowance(from, spender, new(big.Int).Sub(allowance, amt)); err != nil {
			return err
		}
	}
	return l.Transfer(from, to, amt)
}

// Mint credits newly issued stablecoin to an account. Owner-only; exists for
// provisioning and test environments.
func (l *Ledger) Mint(caller, to [20]byte, amount *big.Int) error {
	if !l.st.RoleHas(roles.RoleOwner, caller) {
		return fmt.Errorf("%w: %s required", roles.ErrUnauthorized, roles.RoleOwner)
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrNegativeAmount
	}
	if to == ([20]byte{}) {
		return ErrZeroAddress
	}
	bal, err := l.st.TokenBalance(to)
	if err != nil {
		return err
	}
	return l.st.TokenSetBalance(to, new(big.Int).Add(cloneBigInt(bal), amt))
}
