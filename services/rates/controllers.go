package rates

import (
	"net/http"

	"github.com/go-chi/chi"

	"github.com/pulseras/pulseras-go/libs/handlers"
	"github.com/pulseras/pulseras-go/libs/middleware"
)

// Router for the rates endpoints
func Router(service *Service) chi.Router {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/", middleware.InstrumentHandler("GetRates", GetRatesHandler(service)))
	return r
}

// GetRatesHandler - handler to get the current rate snapshot
func GetRatesHandler(service *Service) handlers.AppHandler {
	return handlers.AppHandler(func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		ctx := r.Context()
		return handlers.RenderContent(ctx, service.Latest(ctx), w, http.StatusOK)
	})
}
