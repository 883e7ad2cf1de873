package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	nativecommon "curioledger/native/common"
	"curioledger/native/feesplit"
	"curioledger/native/lease"
	"curioledger/native/registry"
	"curioledger/native/roles"
	"curioledger/native/token"
)

const requestBodyLimit = 1 << 20 // 1 MiB

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

// statusFor maps engine sentinel errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrItemNotFound), errors.Is(err, lease.ErrLeaseNotActive):
		return http.StatusNotFound
	case errors.Is(err, roles.ErrUnauthorized), errors.Is(err, registry.ErrNotItemOwner):
		return http.StatusForbidden
	case errors.Is(err, lease.ErrItemLeased), errors.Is(err, registry.ErrItemExists):
		return http.StatusConflict
	case errors.Is(err, token.ErrInsufficientFunds), errors.Is(err, token.ErrInsufficientAllowance):
		return http.StatusPaymentRequired
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, feesplit.ErrInvalidFeeTable),
		errors.Is(err, feesplit.ErrInvalidPricing),
		errors.Is(err, feesplit.ErrZeroAmount),
		errors.Is(err, feesplit.ErrNoPlatform),
		errors.Is(err, lease.ErrZeroDuration),
		errors.Is(err, lease.ErrZeroAmount),
		errors.Is(err, lease.ErrHolderIsOwner),
		errors.Is(err, registry.ErrZeroAddress),
		errors.Is(err, registry.ErrZeroItemID),
		errors.Is(err, token.ErrNegativeAmount),
		errors.Is(err, token.ErrZeroAddress),
		errors.Is(err, roles.ErrZeroAddress),
		errors.Is(err, roles.ErrLastOwner):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func decodeBody(r *http.Request, out interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, requestBodyLimit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func parseAddress(field, raw string) ([20]byte, error) {
	var out [20]byte
	if !common.IsHexAddress(raw) {
		return out, fmt.Errorf("%s is not a valid address: %q", field, raw)
	}
	copy(out[:], common.HexToAddress(raw).Bytes())
	return out, nil
}

func formatAddress(addr [20]byte) string {
	return common.BytesToAddress(addr[:]).Hex()
}

func parseAmount(field, raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("%s is not a valid amount: %q", field, raw)
	}
	return amount, nil
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func itemIDParam(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "itemID")
	itemID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid item id: %q", raw)
	}
	return itemID, nil
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}
