package gateway

import (
	"net/http"

	"curioledger/native/feesplit"
)

type pricingUpdateRequest struct {
	Caller string `json:"caller"`
	Value  string `json:"value"`
}

func pricingResponse(cfg *feesplit.PricingConfig) map[string]interface{} {
	return map[string]interface{}{
		"version":       cfg.Version,
		"unitPrice":     formatAmount(cfg.UnitPrice),
		"commissionBps": cfg.CommissionBps,
		"royaltyBps":    cfg.RoyaltyBps,
	}
}

func (s *Server) handleSetUnitPrice(w http.ResponseWriter, r *http.Request) {
	var req pricingUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	price, err := parseAmount("value", req.Value)
	if err != nil {
		badRequest(w, err)
		return
	}
	cfg, err := s.node.SetUnitPrice(caller, price)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pricingResponse(cfg))
}

type bpsUpdateRequest struct {
	Caller string `json:"caller"`
	Bps    uint32 `json:"bps"`
}

func (s *Server) handleSetCommission(w http.ResponseWriter, r *http.Request) {
	var req bpsUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	cfg, err := s.node.SetCommissionBps(caller, req.Bps)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pricingResponse(cfg))
}

func (s *Server) handleSetRoyalty(w http.ResponseWriter, r *http.Request) {
	var req bpsUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	cfg, err := s.node.SetRoyaltyBps(caller, req.Bps)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pricingResponse(cfg))
}

type feeEntryRequest struct {
	Recipient string `json:"recipient"`
	WeightBps uint32 `json:"weightBps"`
}

type tableUpdateRequest struct {
	Caller  string            `json:"caller"`
	Kind    string            `json:"kind"`
	ItemID  uint64            `json:"itemId,omitempty"`
	Entries []feeEntryRequest `json:"entries"`
}

func parseEntries(raw []feeEntryRequest) ([]feesplit.FeeEntry, error) {
	entries := make([]feesplit.FeeEntry, 0, len(raw))
	for _, entry := range raw {
		recipient, err := parseAddress("recipient", entry.Recipient)
		if err != nil {
			return nil, err
		}
		entries = append(entries, feesplit.FeeEntry{Recipient: recipient, WeightBps: entry.WeightBps})
	}
	return entries, nil
}

func (s *Server) handleSetDefaultTable(w http.ResponseWriter, r *http.Request) {
	var req tableUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	kind, err := feesplit.ParseTableKind(req.Kind)
	if err != nil {
		badRequest(w, err)
		return
	}
	entries, err := parseEntries(req.Entries)
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := s.node.SetDefaultTable(caller, kind, entries); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (s *Server) handleSetOverrideTable(w http.ResponseWriter, r *http.Request) {
	var req tableUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	kind, err := feesplit.ParseTableKind(req.Kind)
	if err != nil {
		badRequest(w, err)
		return
	}
	entries, err := parseEntries(req.Entries)
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := s.node.SetOverrideTable(caller, req.ItemID, kind, entries); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (s *Server) handleClearOverrideTable(w http.ResponseWriter, r *http.Request) {
	var req tableUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	kind, err := feesplit.ParseTableKind(req.Kind)
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := s.node.ClearOverrideTable(caller, req.ItemID, kind); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

type roleUpdateRequest struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
}

func (s *Server) handleGrantOwner(w http.ResponseWriter, r *http.Request) {
	s.roleUpdate(w, r, s.node.GrantOwner)
}

func (s *Server) handleRevokeOwner(w http.ResponseWriter, r *http.Request) {
	s.roleUpdate(w, r, s.node.RevokeOwner)
}

func (s *Server) handleSetPlatform(w http.ResponseWriter, r *http.Request) {
	s.roleUpdate(w, r, s.node.SetPlatform)
}

func (s *Server) roleUpdate(w http.ResponseWriter, r *http.Request, apply func(caller, addr [20]byte) error) {
	var req roleUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	addr, err := parseAddress("address", req.Address)
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := apply(caller, addr); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

type mintFundsRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleMintFunds(w http.ResponseWriter, r *http.Request) {
	var req mintFundsRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		badRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := s.node.MintFunds(caller, to, amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"minted": true})
}

type pauseRequest struct {
	Caller string `json:"caller"`
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

func (s *Server) handleSetPaused(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := s.node.SetPaused(caller, req.Module, req.Paused); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

type baseURIRequest struct {
	Caller  string `json:"caller"`
	BaseURI string `json:"baseUri"`
}

func (s *Server) handleSetBaseURI(w http.ResponseWriter, r *http.Request) {
	var req baseURIRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := s.node.SetBaseURI(caller, req.BaseURI); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}
