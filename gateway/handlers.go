package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"curioledger/core"
	"curioledger/native/feesplit"
	"curioledger/native/lease"
	"curioledger/observability"
)

// Server exposes the ledger node over HTTP.
type Server struct {
	node *core.Node
}

func NewServer(node *core.Node) *Server {
	return &Server{node: node}
}

// --- settlement ---

type purchaseRequest struct {
	Payer  string `json:"payer"`
	ItemID uint64 `json:"itemId"`
}

type acquisitionReceiptResponse struct {
	ItemID      uint64   `json:"itemId"`
	Payer       string   `json:"payer"`
	Total       string   `json:"total"`
	PlatformCut string   `json:"platformCut"`
	Distributed string   `json:"distributed"`
	Dust        string   `json:"dust"`
	Shares      []string `json:"shares"`
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	payer, err := parseAddress("payer", req.Payer)
	if err != nil {
		badRequest(w, err)
		return
	}
	receipt, err := s.node.Purchase(payer, req.ItemID)
	if err != nil {
		writeError(w, err)
		return
	}
	observability.Ledger().RecordSettlement("acquisition")
	shares := make([]string, len(receipt.Shares))
	for i, share := range receipt.Shares {
		shares[i] = formatAmount(share)
	}
	writeJSON(w, http.StatusOK, acquisitionReceiptResponse{
		ItemID:      receipt.ItemID,
		Payer:       formatAddress(receipt.Payer),
		Total:       formatAmount(receipt.Total),
		PlatformCut: formatAmount(receipt.PlatformCut),
		Distributed: formatAmount(receipt.Distributed),
		Dust:        formatAmount(receipt.Dust),
		Shares:      shares,
	})
}

type sellRequest struct {
	Caller    string `json:"caller"`
	Seller    string `json:"seller"`
	Buyer     string `json:"buyer"`
	SalePrice string `json:"salePrice"`
	ItemID    uint64 `json:"itemId"`
}

type saleReceiptResponse struct {
	ItemID         uint64 `json:"itemId"`
	Seller         string `json:"seller"`
	Buyer          string `json:"buyer"`
	SalePrice      string `json:"salePrice"`
	RoyaltyAmount  string `json:"royaltyAmount"`
	RoyaltyPaid    string `json:"royaltyPaid"`
	RoyaltyResidue string `json:"royaltyResidue"`
	PlatformCut    string `json:"platformCut"`
	SellerProceeds string `json:"sellerProceeds"`
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	seller, err := parseAddress("seller", req.Seller)
	if err != nil {
		badRequest(w, err)
		return
	}
	buyer, err := parseAddress("buyer", req.Buyer)
	if err != nil {
		badRequest(w, err)
		return
	}
	price, err := parseAmount("salePrice", req.SalePrice)
	if err != nil {
		badRequest(w, err)
		return
	}
	receipt, err := s.node.Sell(caller, seller, buyer, price, req.ItemID)
	if err != nil {
		writeError(w, err)
		return
	}
	observability.Ledger().RecordSettlement("sale")
	writeJSON(w, http.StatusOK, saleReceiptResponse{
		ItemID:         receipt.ItemID,
		Seller:         formatAddress(receipt.Seller),
		Buyer:          formatAddress(receipt.Buyer),
		SalePrice:      formatAmount(receipt.SalePrice),
		RoyaltyAmount:  formatAmount(receipt.RoyaltyAmount),
		RoyaltyPaid:    formatAmount(receipt.RoyaltyPaid),
		RoyaltyResidue: formatAmount(receipt.RoyaltyResidue),
		PlatformCut:    formatAmount(receipt.PlatformCut),
		SellerProceeds: formatAmount(receipt.SellerProceeds),
	})
}

// --- leases ---

type leaseCreateRequest struct {
	Holder   string `json:"holder"`
	ItemID   uint64 `json:"itemId"`
	Duration int64  `json:"duration"`
	Price    string `json:"price"`
}

type leaseResponse struct {
	ItemID uint64 `json:"itemId"`
	Holder string `json:"holder"`
	Start  int64  `json:"start"`
	End    int64  `json:"end"`
	Price  string `json:"price"`
	Active bool   `json:"active"`
}

func leaseToResponse(l *lease.Lease) leaseResponse {
	return leaseResponse{
		ItemID: l.ItemID,
		Holder: formatAddress(l.Holder),
		Start:  l.Start,
		End:    l.End,
		Price:  formatAmount(l.Price),
		Active: l.Active,
	}
}

func (s *Server) handleLeaseCreate(w http.ResponseWriter, r *http.Request) {
	var req leaseCreateRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	holder, err := parseAddress("holder", req.Holder)
	if err != nil {
		badRequest(w, err)
		return
	}
	price, err := parseAmount("price", req.Price)
	if err != nil {
		badRequest(w, err)
		return
	}
	l, err := s.node.CreateLease(holder, req.ItemID, req.Duration, price)
	if err != nil {
		writeError(w, err)
		return
	}
	observability.Ledger().RecordLeaseTransition("created")
	writeJSON(w, http.StatusCreated, leaseToResponse(l))
}

type leaseExtendRequest struct {
	Caller        string `json:"caller"`
	ItemID        uint64 `json:"itemId"`
	ExtraDuration int64  `json:"extraDuration"`
	ExtraPrice    string `json:"extraPrice"`
}

func (s *Server) handleLeaseExtend(w http.ResponseWriter, r *http.Request) {
	var req leaseExtendRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	extra := req.ExtraPrice
	if extra == "" {
		extra = "0"
	}
	price, err := parseAmount("extraPrice", extra)
	if err != nil {
		badRequest(w, err)
		return
	}
	l, err := s.node.ExtendLease(caller, req.ItemID, req.ExtraDuration, price)
	if err != nil {
		writeError(w, err)
		return
	}
	observability.Ledger().RecordLeaseTransition("extended")
	writeJSON(w, http.StatusOK, leaseToResponse(l))
}

type leaseEndRequest struct {
	Caller string `json:"caller"`
	ItemID uint64 `json:"itemId"`
}

func (s *Server) handleLeaseEnd(w http.ResponseWriter, r *http.Request) {
	var req leaseEndRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := s.node.EndLease(caller, req.ItemID); err != nil {
		writeError(w, err)
		return
	}
	observability.Ledger().RecordLeaseTransition("ended")
	writeJSON(w, http.StatusOK, map[string]bool{"ended": true})
}

func (s *Server) handleLeaseGet(w http.ResponseWriter, r *http.Request) {
	itemID, err := itemIDParam(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	l, ok, err := s.node.Lease(itemID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no lease recorded"})
		return
	}
	writeJSON(w, http.StatusOK, leaseToResponse(l))
}

func (s *Server) handleCurrentHolder(w http.ResponseWriter, r *http.Request) {
	itemID, err := itemIDParam(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	holder, err := s.node.CurrentHolder(itemID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"holder": formatAddress(holder)})
}

// --- items ---

type itemResponse struct {
	ItemID uint64 `json:"itemId"`
	Owner  string `json:"owner"`
	URI    string `json:"uri,omitempty"`
}

func (s *Server) handleItemGet(w http.ResponseWriter, r *http.Request) {
	itemID, err := itemIDParam(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	owner, err := s.node.OwnerOf(itemID)
	if err != nil {
		writeError(w, err)
		return
	}
	uri, err := s.node.TokenURI(itemID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{ItemID: itemID, Owner: formatAddress(owner), URI: uri})
}

type transferRequest struct {
	Caller string `json:"caller"`
	From   string `json:"from"`
	To     string `json:"to"`
	ItemID uint64 `json:"itemId"`
}

func (s *Server) handleItemTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		badRequest(w, err)
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := s.node.TransferItem(caller, from, to, req.ItemID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"transferred": true})
}

type burnRequest struct {
	Caller string `json:"caller"`
	ItemID uint64 `json:"itemId"`
}

func (s *Server) handleItemBurn(w http.ResponseWriter, r *http.Request) {
	var req burnRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := s.node.BurnItem(caller, req.ItemID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"burned": true})
}

type feeEntryResponse struct {
	Recipient string `json:"recipient"`
	WeightBps uint32 `json:"weightBps"`
}

func (s *Server) handleReceivers(w http.ResponseWriter, r *http.Request) {
	itemID, err := itemIDParam(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	kind, err := feesplit.ParseTableKind(r.URL.Query().Get("kind"))
	if err != nil {
		badRequest(w, err)
		return
	}
	entries, err := s.node.Receivers(itemID, kind)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]feeEntryResponse, len(entries))
	for i, entry := range entries {
		out[i] = feeEntryResponse{Recipient: formatAddress(entry.Recipient), WeightBps: entry.WeightBps}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"itemId": itemID, "kind": kind.String(), "entries": out})
}

func (s *Server) handleRoyaltyInfo(w http.ResponseWriter, r *http.Request) {
	itemID, err := itemIDParam(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	price, err := parseAmount("salePrice", r.URL.Query().Get("salePrice"))
	if err != nil {
		badRequest(w, err)
		return
	}
	receiver, amount, err := s.node.RoyaltyInfo(itemID, price)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"receiver": formatAddress(receiver),
		"amount":   formatAmount(amount),
	})
}

// --- accounts ---

func (s *Server) handleAccountItems(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		badRequest(w, err)
		return
	}
	ids, err := s.node.ItemsOf(addr)
	if err != nil {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []uint64{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": ids})
}

func (s *Server) handleAccountBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		badRequest(w, err)
		return
	}
	bal, err := s.node.BalanceOf(addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": formatAmount(bal)})
}

type approveRequest struct {
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		badRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := s.node.Approve(owner, amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"approved": true})
}

// --- read-only ledger info ---

func (s *Server) handlePricing(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.node.Pricing()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":       cfg.Version,
		"unitPrice":     formatAmount(cfg.UnitPrice),
		"commissionBps": cfg.CommissionBps,
		"royaltyBps":    cfg.RoyaltyBps,
	})
}

func (s *Server) handleSupply(w http.ResponseWriter, r *http.Request) {
	total, err := s.node.TotalSupply()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"totalSupply": total})
}
