package api

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/cityshare/cityshare/internal/blob"
	"github.com/cityshare/cityshare/internal/catalog"
	"github.com/cityshare/cityshare/internal/identity"
	"github.com/cityshare/cityshare/internal/metrics"
)

// Deps are the collaborators the API is built from.
type Deps struct {
	DB        *sql.DB
	JWTSecret string
	Catalog   *catalog.Service
	Resolver  *identity.Resolver
	Blobs     blob.Store

	// UploadDir, if set, is served at /uploads/ for the disk blob store.
	UploadDir string
	// Metrics, if set, is served at /metrics.
	Metrics *metrics.Metrics
	// Limiter, if set, guards the auth and upload endpoints.
	Limiter *RateLimiter
}

// NewRouter creates the API router with all endpoints registered. Every
// route is served both at its own path and under /api.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	handle := func(pattern string, h http.Handler) {
		method, path, _ := strings.Cut(pattern, " ")
		mux.Handle(pattern, h)
		mux.Handle(method+" /api"+path, h)
	}

	listingsHandler := &ListingsHandler{Catalog: d.Catalog}
	profileHandler := &ProfileHandler{DB: d.DB}
	authHandler := &AuthHandler{DB: d.DB, JWTSecret: d.JWTSecret, Resolver: d.Resolver}
	uploadHandler := &UploadHandler{Blobs: d.Blobs, Metrics: d.Metrics}

	authMW := AuthMiddleware(d.JWTSecret, d.DB, d.Resolver)
	limit := func(h http.Handler) http.Handler { return h }
	if d.Limiter != nil {
		limit = d.Limiter.Middleware
	}

	// Public: browsing.
	handle("GET /listings", http.HandlerFunc(listingsHandler.List))
	handle("GET /listings/{id}", http.HandlerFunc(listingsHandler.Get))
	handle("GET /categories", http.HandlerFunc(listingsHandler.Categories))

	// Listing maintenance (owner checks happen in the catalog).
	handle("POST /listings", authMW(http.HandlerFunc(listingsHandler.Create)))
	handle("PATCH /listings/{id}", authMW(http.HandlerFunc(listingsHandler.Update)))
	handle("DELETE /listings/{id}", authMW(http.HandlerFunc(listingsHandler.Delete)))
	handle("POST /listings/{id}/images", authMW(http.HandlerFunc(listingsHandler.AddImages)))
	handle("DELETE /listings/{id}/images/{imageID}", authMW(http.HandlerFunc(listingsHandler.DeleteImage)))

	// Profile.
	handle("GET /profile/me", authMW(http.HandlerFunc(profileHandler.Me)))
	handle("POST /profile", authMW(http.HandlerFunc(profileHandler.Update)))
	handle("GET /profile/listings", authMW(http.HandlerFunc(listingsHandler.Owned)))

	// Uploads.
	handle("POST /upload", limit(authMW(http.HandlerFunc(uploadHandler.Upload))))
	if d.UploadDir != "" {
		files := http.StripPrefix("/uploads/", http.FileServer(http.Dir(d.UploadDir)))
		mux.Handle("GET /uploads/", files)
		mux.Handle("GET /api/uploads/", http.StripPrefix("/api", files))
	}

	// Built-in identity provider.
	handle("POST /auth/register", limit(http.HandlerFunc(authHandler.Register)))
	handle("POST /auth/login", limit(http.HandlerFunc(authHandler.Login)))
	handle("POST /auth/password", limit(authMW(http.HandlerFunc(authHandler.ChangePassword))))
	handle("POST /auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	handle("GET /healthz", healthHandler(d.DB))
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	return mux
}

// healthHandler reports whether the database answers.
func healthHandler(db *sql.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			jsonError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
