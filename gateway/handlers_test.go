package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"curioledger/core"
	"curioledger/gateway/middleware"
	"curioledger/native/feesplit"
	"curioledger/native/lease"
	"curioledger/storage"
)

const (
	ownerHex    = "0x1111111111111111111111111111111111111111"
	platformHex = "0x2222222222222222222222222222222222222222"
	payerHex    = "0x3333333333333333333333333333333333333333"
	holderHex   = "0x4444444444444444444444444444444444444444"
)

func hexToAddr(t *testing.T, raw string) [20]byte {
	t.Helper()
	addr, err := parseAddress("test", raw)
	require.NoError(t, err)
	return addr
}

func newTestHandler(t *testing.T) (*core.Node, http.Handler) {
	t.Helper()
	node, err := core.NewNode(storage.NewMemDB(), core.Options{Routing: lease.RouteDirect})
	require.NoError(t, err)
	require.NoError(t, node.ApplyGenesis(core.Genesis{
		Owner:         hexToAddr(t, ownerHex),
		Platform:      hexToAddr(t, platformHex),
		UnitPrice:     big.NewInt(100),
		CommissionBps: 500,
		RoyaltyBps:    1000,
	}))
	handler := NewRouter(NewServer(node), RouterConfig{})
	return node, handler
}

func doJSON(t *testing.T, handler http.Handler, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func fund(t *testing.T, node *core.Node, addrHex string, amount int64) {
	t.Helper()
	owner := hexToAddr(t, ownerHex)
	addr := hexToAddr(t, addrHex)
	require.NoError(t, node.MintFunds(owner, addr, big.NewInt(amount)))
	require.NoError(t, node.Approve(addr, big.NewInt(amount)))
}

func TestPurchaseEndpoint(t *testing.T) {
	node, handler := newTestHandler(t)
	fund(t, node, payerHex, 100)

	rec := doJSON(t, handler, http.MethodPost, "/v1/market/purchase", purchaseRequest{Payer: payerHex, ItemID: 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var receipt acquisitionReceiptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	require.Equal(t, uint64(1), receipt.ItemID)
	require.Equal(t, "100", receipt.Total)
	require.Equal(t, "5", receipt.PlatformCut)

	// Empty acquisition table: the whole remainder is dust for the platform.
	require.Equal(t, "95", receipt.Dust)

	rec = doJSON(t, handler, http.MethodGet, "/v1/items/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var item itemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	require.Equal(t, payerHex, item.Owner)
}

func TestPurchaseErrorMapping(t *testing.T) {
	node, handler := newTestHandler(t)

	// Unfunded payer.
	rec := doJSON(t, handler, http.MethodPost, "/v1/market/purchase", purchaseRequest{Payer: payerHex, ItemID: 1})
	require.Equal(t, http.StatusPaymentRequired, rec.Code, rec.Body.String())

	// Existing item conflicts.
	fund(t, node, payerHex, 200)
	rec = doJSON(t, handler, http.MethodPost, "/v1/market/purchase", purchaseRequest{Payer: payerHex, ItemID: 1})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, handler, http.MethodPost, "/v1/market/purchase", purchaseRequest{Payer: payerHex, ItemID: 1})
	require.Equal(t, http.StatusConflict, rec.Code)

	// Malformed address.
	rec = doJSON(t, handler, http.MethodPost, "/v1/market/purchase", purchaseRequest{Payer: "nope", ItemID: 2})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSellEndpoint(t *testing.T) {
	node, handler := newTestHandler(t)
	owner := hexToAddr(t, ownerHex)
	require.NoError(t, node.SetDefaultTable(owner, feesplit.KindResale, []feesplit.FeeEntry{
		{Recipient: hexToAddr(t, "0x5555555555555555555555555555555555555555"), WeightBps: 7000},
		{Recipient: hexToAddr(t, "0x6666666666666666666666666666666666666666"), WeightBps: 3000},
	}))
	fund(t, node, payerHex, 100)
	rec := doJSON(t, handler, http.MethodPost, "/v1/market/purchase", purchaseRequest{Payer: payerHex, ItemID: 1})
	require.Equal(t, http.StatusOK, rec.Code)

	buyerHex := "0x7777777777777777777777777777777777777777"
	fund(t, node, buyerHex, 500)
	rec = doJSON(t, handler, http.MethodPost, "/v1/market/sell", sellRequest{
		Caller: payerHex, Seller: payerHex, Buyer: buyerHex, SalePrice: "500", ItemID: 1,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var receipt saleReceiptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	require.Equal(t, "50", receipt.RoyaltyAmount)
	require.Equal(t, "25", receipt.PlatformCut)
	require.Equal(t, "425", receipt.SellerProceeds)

	// Non-owner seller is forbidden.
	rec = doJSON(t, handler, http.MethodPost, "/v1/market/sell", sellRequest{
		Caller: payerHex, Seller: payerHex, Buyer: buyerHex, SalePrice: "500", ItemID: 1,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLeaseLifecycleEndpoints(t *testing.T) {
	node, handler := newTestHandler(t)
	fund(t, node, payerHex, 100)
	rec := doJSON(t, handler, http.MethodPost, "/v1/market/purchase", purchaseRequest{Payer: payerHex, ItemID: 1})
	require.Equal(t, http.StatusOK, rec.Code)

	fund(t, node, holderHex, 100)
	rec = doJSON(t, handler, http.MethodPost, "/v1/leases", leaseCreateRequest{
		Holder: holderHex, ItemID: 1, Duration: 3600, Price: "40",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var l leaseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &l))
	require.True(t, l.Active)
	require.Equal(t, holderHex, l.Holder)

	rec = doJSON(t, handler, http.MethodGet, "/v1/leases/1/holder", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var holder map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &holder))
	require.Equal(t, holderHex, holder["holder"])

	// Selling a leased item conflicts.
	buyerHex := "0x7777777777777777777777777777777777777777"
	fund(t, node, buyerHex, 500)
	rec = doJSON(t, handler, http.MethodPost, "/v1/market/sell", sellRequest{
		Caller: payerHex, Seller: payerHex, Buyer: buyerHex, SalePrice: "500", ItemID: 1,
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/v1/leases/extend", leaseExtendRequest{
		Caller: holderHex, ItemID: 1, ExtraDuration: 3600, ExtraPrice: "10",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, handler, http.MethodPost, "/v1/leases/end", leaseEndRequest{Caller: holderHex, ItemID: 1})
	require.Equal(t, http.StatusOK, rec.Code)

	// Ended lease reads as not active; ending again is 404.
	rec = doJSON(t, handler, http.MethodPost, "/v1/leases/end", leaseEndRequest{Caller: holderHex, ItemID: 1})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminAndQueryEndpoints(t *testing.T) {
	node, handler := newTestHandler(t)
	_ = node

	rec := doJSON(t, handler, http.MethodPost, "/v1/admin/pricing/unit-price", pricingUpdateRequest{Caller: ownerHex, Value: "250"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Non-owner mutation is forbidden.
	rec = doJSON(t, handler, http.MethodPost, "/v1/admin/pricing/unit-price", pricingUpdateRequest{Caller: payerHex, Value: "250"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Invalid table rejected.
	rec = doJSON(t, handler, http.MethodPost, "/v1/admin/tables/default", tableUpdateRequest{
		Caller: ownerHex, Kind: "resale",
		Entries: []feeEntryRequest{{Recipient: payerHex, WeightBps: 9999}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/v1/admin/tables/default", tableUpdateRequest{
		Caller: ownerHex, Kind: "resale",
		Entries: []feeEntryRequest{{Recipient: payerHex, WeightBps: 10000}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, handler, http.MethodGet, "/v1/items/9/receivers?kind=resale", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/v1/items/9/royalty?salePrice=500", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var royalty map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &royalty))
	require.Equal(t, "50", royalty["amount"])

	rec = doJSON(t, handler, http.MethodGet, "/v1/pricing", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pricing map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pricing))
	require.Equal(t, "250", pricing["unitPrice"])
}

func TestHealthz(t *testing.T) {
	_, handler := newTestHandler(t)
	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestAuthMiddlewareGuardsAdmin(t *testing.T) {
	node, err := core.NewNode(storage.NewMemDB(), core.Options{Routing: lease.RouteDirect})
	require.NoError(t, err)
	require.NoError(t, node.ApplyGenesis(core.Genesis{Owner: hexToAddr(t, ownerHex)}))

	secret := []byte("test-secret")
	auth := middleware.NewAuthenticator(middleware.AuthConfig{Enabled: true, Secret: secret}, nil)
	handler := NewRouter(NewServer(node), RouterConfig{Authenticator: auth})

	payload := pricingUpdateRequest{Caller: ownerHex, Value: "100"}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	// No token.
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/pricing/unit-price", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	signToken := func(scope string) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"scope": scope,
			"exp":   time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString(secret)
		require.NoError(t, err)
		return signed
	}

	// Token without the admin scope.
	req = httptest.NewRequest(http.MethodPost, "/v1/admin/pricing/unit-price", bytes.NewReader(body))
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", signToken("market")))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Admin scope passes through to the handler.
	req = httptest.NewRequest(http.MethodPost, "/v1/admin/pricing/unit-price", bytes.NewReader(body))
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", signToken("admin")))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Read routes carry no authenticator and stay open.
	req = httptest.NewRequest(http.MethodGet, "/v1/pricing", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
