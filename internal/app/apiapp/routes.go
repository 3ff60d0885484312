package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/pricing"
	activationsvc "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/services/activation"
	authsvc "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/services/auth"
	purchasesvc "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/services/purchases"
	quotasvc "github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/services/quotas"
	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/transport/http/handlers"
)

type Dependencies struct {
	PurchaseService   *purchasesvc.Service
	ActivationService *activationsvc.Service
	QuotaService      *quotasvc.Service
	Catalog           *pricing.Catalog
	JWTManager        *authsvc.JWTManager
	Logger            *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	pricingHandler := handlers.NewPricingHandler(deps.Catalog)
	purchaseHandler := handlers.NewPurchaseHandler(deps.PurchaseService)
	quotaHandler := handlers.NewQuotaHandler(deps.QuotaService)
	spotlightHandler := handlers.NewSpotlightHandler(deps.ActivationService)
	authMW := AuthMiddleware(deps.JWTManager, deps.Logger)

	r.Get("/healthz", healthHandler.Get)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/pricing", pricingHandler.Get)

		r.With(authMW).Post("/purchase/initialize", purchaseHandler.Initialize)
		r.With(authMW).Post("/purchase/verify", purchaseHandler.Verify)
		r.Post("/purchase/webhook", purchaseHandler.Webhook)
		r.With(authMW).Get("/purchases", purchaseHandler.List)

		r.With(authMW).Get("/quota", quotaHandler.Get)
		r.With(authMW).Post("/quota/chat/check", quotaHandler.CheckChat)
		r.With(authMW).Post("/quota/post/check", quotaHandler.CheckPost)
		r.With(authMW).Post("/quota/offer/check", quotaHandler.CheckOffer)

		r.With(authMW).Post("/spotlight/use", spotlightHandler.Use)
	})
}
