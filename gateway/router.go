package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"curioledger/gateway/middleware"
)

// RouterConfig bundles the middleware stack for the HTTP surface.
type RouterConfig struct {
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
}

// NewRouter mounts the ledger API. Mutating market and lease routes sit
// behind the authenticator; the admin group additionally requires the admin
// scope. Reads are open.
func NewRouter(s *Server, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	use := func(sr chi.Router, route string, scopes ...string) {
		if cfg.RateLimiter != nil {
			sr.Use(cfg.RateLimiter.Middleware(route))
		}
		if cfg.Observability != nil {
			sr.Use(cfg.Observability.Middleware(route))
		}
		if cfg.Authenticator != nil {
			sr.Use(cfg.Authenticator.Middleware(scopes...))
		}
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(sr chi.Router) {
			use(sr, "market")
			sr.Post("/market/purchase", s.handlePurchase)
			sr.Post("/market/sell", s.handleSell)
			sr.Post("/token/approve", s.handleApprove)
			sr.Post("/items/transfer", s.handleItemTransfer)
			sr.Post("/items/burn", s.handleItemBurn)
		})

		v1.Group(func(sr chi.Router) {
			use(sr, "leases")
			sr.Post("/leases", s.handleLeaseCreate)
			sr.Post("/leases/extend", s.handleLeaseExtend)
			sr.Post("/leases/end", s.handleLeaseEnd)
		})

		v1.Group(func(sr chi.Router) {
			if cfg.RateLimiter != nil {
				sr.Use(cfg.RateLimiter.Middleware("read"))
			}
			if cfg.Observability != nil {
				sr.Use(cfg.Observability.Middleware("read"))
			}
			sr.Get("/leases/{itemID}", s.handleLeaseGet)
			sr.Get("/leases/{itemID}/holder", s.handleCurrentHolder)
			sr.Get("/items/{itemID}", s.handleItemGet)
			sr.Get("/items/{itemID}/receivers", s.handleReceivers)
			sr.Get("/items/{itemID}/royalty", s.handleRoyaltyInfo)
			sr.Get("/accounts/{address}/items", s.handleAccountItems)
			sr.Get("/accounts/{address}/balance", s.handleAccountBalance)
			sr.Get("/pricing", s.handlePricing)
			sr.Get("/supply", s.handleSupply)
		})

		v1.Route("/admin", func(sr chi.Router) {
			use(sr, "admin", "admin")
			sr.Post("/pricing/unit-price", s.handleSetUnitPrice)
			sr.Post("/pricing/commission", s.handleSetCommission)
			sr.Post("/pricing/royalty", s.handleSetRoyalty)
			sr.Post("/tables/default", s.handleSetDefaultTable)
			sr.Post("/tables/override", s.handleSetOverrideTable)
			sr.Post("/tables/override/clear", s.handleClearOverrideTable)
			sr.Post("/roles/owner/grant", s.handleGrantOwner)
			sr.Post("/roles/owner/revoke", s.handleRevokeOwner)
			sr.Post("/roles/platform", s.handleSetPlatform)
			sr.Post("/items/base-uri", s.handleSetBaseURI)
			sr.Post("/token/mint", s.handleMintFunds)
			sr.Post("/pause", s.handleSetPaused)
		})
	})

	return r
}
