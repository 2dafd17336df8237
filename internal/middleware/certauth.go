// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"net/http"

	"github.com/vkotelnikov/credvault/internal/identity"
	"github.com/vkotelnikov/credvault/internal/models"
)

// CertAuth is a middleware that enforces mutual TLS authentication.
//
// It checks whether the incoming HTTP request carries a valid client
// certificate and builds the caller identity from it: the Common Name is
// the stable subject id, the first certificate email address is the
// primary contact, and NotBefore is the account-creation time. The
// identity is stored in the request context for downstream handlers.
func CertAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
			http.Error(w, "no client certificate provided", http.StatusUnauthorized)
			return
		}
		cert := r.TLS.PeerCertificates[0]
		ident := &models.Identity{
			ID:        cert.Subject.CommonName,
			CreatedAt: cert.NotBefore,
		}
		if len(cert.EmailAddresses) > 0 {
			ident.Contact = cert.EmailAddresses[0]
		}
		ctx := identity.WithIdentity(r.Context(), ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
