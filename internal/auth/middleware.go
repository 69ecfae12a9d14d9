package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/httpx"
)

type Authenticator struct {
	tokens *TokenIssuer
	logger *slog.Logger
}

func NewAuthenticator(tokens *TokenIssuer, logger *slog.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, logger: logger}
}

// Optional resolves the bearer token when one is sent. Requests without a
// token pass through anonymously; a bad token is rejected.
func (a *Authenticator) Optional(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next(w, r)
			return
		}

		actor, err := a.tokens.ParseAccess(token)
		if err != nil {
			httpx.WriteError(w, a.logger, err)
			return
		}
		next(w, r.WithContext(WithActor(r.Context(), actor)))
	}
}

func (a *Authenticator) Required(next http.HandlerFunc) http.HandlerFunc {
	return a.Optional(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ActorFrom(r.Context()); !ok {
			httpx.WriteError(w, a.logger, domain.ErrUnauthenticated)
			return
		}
		next(w, r)
	})
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter for WebSocket clients that cannot set headers.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
