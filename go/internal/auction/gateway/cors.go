package gateway

import (
	"net/http"

	"github.com/rs/cors"
)

// NewCORS builds the CORS middleware for the gateway's HTTP surface. Origins
// are wide open for development; production deployments tighten this via
// config.
func NewCORS(allowedOrigins []string) *cors.Cors {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Requested-With", captainHeader},
		MaxAge:         86400,
	})
}
