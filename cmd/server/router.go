package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/popeskul/evolution-gateway/internal/api"
	"github.com/popeskul/evolution-gateway/internal/handler"
	"github.com/popeskul/evolution-gateway/internal/middleware"
)

const openAPIPath = "api/openapi.yaml"

func setupRouter(server api.ServerInterface, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, req *http.Request) {
		http.ServeFile(w, req, openAPIPath)
	})

	return api.HandlerWithOptions(server, api.ChiServerOptions{
		BaseRouter: r,
		ErrorHandlerFunc: func(w http.ResponseWriter, req *http.Request, err error) {
			logger.Debug("Rejected request parameters",
				zap.String("request_id", middleware.GetRequestID(req.Context())),
				zap.Error(err))
			handler.WriteBadRequest(w, req, err.Error())
		},
	})
}
