package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
)

// NewServer creates an HTTP server with all routes configured.
func NewServer(port string, handler *Handler, adminAPIKey string) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      NewRouter(handler, adminAPIKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewRouter registers the API routes. Price refresh requires the admin key when one is set.
func NewRouter(handler *Handler, adminAPIKey string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/reports", handler.GenerateReport)
	mux.HandleFunc("GET /api/v1/prices", handler.ListPairs)
	mux.HandleFunc("GET /api/v1/prices/{pair}", handler.ListPrices)
	mux.HandleFunc("GET /api/v1/prices/{pair}/{date}", handler.GetPrice)

	refreshHandler := http.HandlerFunc(handler.RefreshPrices)
	if adminAPIKey != "" {
		mux.Handle("POST /api/v1/prices/refresh", requireAuth(adminAPIKey, refreshHandler))
	} else {
		mux.Handle("POST /api/v1/prices/refresh", refreshHandler)
	}

	return mux
}

func requireAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
