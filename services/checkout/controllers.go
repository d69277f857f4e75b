package checkout

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/cors"

	"github.com/pulseras/pulseras-go/libs/handlers"
	"github.com/pulseras/pulseras-go/libs/middleware"
	"github.com/pulseras/pulseras-go/libs/requestutils"
)

func corsMiddleware(origins []string, allowedMethods []string) func(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestutils.IdempotencyKeyHeaderKey},
		ExposedHeaders:   []string{""},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	})
}

// PaymentsRouter serves the public quoting endpoint.
func PaymentsRouter(h *Handler, origins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(corsMiddleware(origins, []string{http.MethodPost}))

	r.Method(http.MethodPost, "/calculate", middleware.InstrumentHandler("CalculatePayment", handlers.AppHandler(h.Calculate)))

	return r
}

// TransactionsRouter serves the settlement endpoints.
//
// Actors are resolved from HS256 bearer tokens signed with secret.
func TransactionsRouter(h *Handler, secret []byte, origins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(
		corsMiddleware(origins, []string{http.MethodGet, http.MethodPost, http.MethodPut}),
		middleware.ActorFromToken(secret),
	)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireActor)

		r.Method(http.MethodPost, "/", middleware.InstrumentHandler("CreateTransaction", handlers.AppHandler(h.CreateTransaction)))
		r.Method(http.MethodGet, "/my-transactions", middleware.InstrumentHandler("ListMyTransactions", handlers.AppHandler(h.ListMine)))
		r.Method(http.MethodPost, "/{id}/screenshot", middleware.InstrumentHandler("AttachScreenshot", handlers.AppHandler(h.AttachProof)))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin)

		r.Method(http.MethodGet, "/", middleware.InstrumentHandler("ListTransactions", handlers.AppHandler(h.ListAll)))
		r.Method(http.MethodPut, "/{id}/status", middleware.InstrumentHandler("SetTransactionStatus", handlers.AppHandler(h.SetStatus)))
	})

	return r
}
