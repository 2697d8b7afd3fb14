package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS returns a CORS middleware handler for the desktop and web frontends
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			RequestIDHeader,
		},
		ExposedHeaders: []string{
			"Content-Disposition",
			RequestIDHeader,
		},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	})
}
