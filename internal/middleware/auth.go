package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/arquery/arquery/internal/models"
	"github.com/arquery/arquery/internal/security"
)

const TokenHeader = "x-token"

var publicPaths = map[string]bool{
	"/":        true,
	"/health":  true,
	"/metrics": true,
}

// Auth requires headerName to exactly match one of tokens. Every failure,
// missing or wrong, is a 401 so callers cannot tell which tokens exist.
func Auth(tokens []string, headerName string, audit *security.AuditLogger) func(http.Handler) http.Handler {
	keys := make([][]byte, 0, len(tokens))
	for _, k := range tokens {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	if headerName == "" {
		headerName = TokenHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			presented := r.Header.Get(headerName)
			if presented == "" || !matchToken(keys, []byte(presented)) {
				audit.LogAuthFailure(r.URL.Path, r.RemoteAddr, presented)
				models.WriteError(w, http.StatusUnauthorized, "Unauthorized access")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// matchToken compares against every key so timing does not reveal which one matched.
func matchToken(keys [][]byte, presented []byte) bool {
	ok := 0
	for _, k := range keys {
		ok |= subtle.ConstantTimeCompare(k, presented)
	}
	return ok == 1
}
