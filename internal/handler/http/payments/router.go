package payments_http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type RouterConfig struct {
	AllowedOrigins   []string
	PayRatePerMinute int
	PayRateBurst     int
	RequestTimeout   time.Duration
}

func NewRouter(cfg RouterConfig, h *PaymentHandler, l *zap.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	limiter := NewRateLimiter(cfg.PayRatePerMinute, cfg.PayRateBurst, l.With(zap.String("component", "RateLimiter")))
	RegisterRoutes(r, h, limiter)
	return r
}

func RegisterRoutes(r chi.Router, h *PaymentHandler, limiter *RateLimiter) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, nil)
	})

	r.Route("/api", func(r chi.Router) {
		r.With(limiter.Middleware).Post("/pay", h.InitiatePaymentHandler)
		r.Post("/callback", h.CallbackHandler)
		r.Get("/status/{merchantReference}", h.GetStatusHandler)
	})
}
