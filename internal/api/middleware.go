package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"remote-finder/internal/session"
)

type contextKey string

const sessionContextKey = contextKey("session")

const (
	tokenHeader = "x-session-token"
	tokenParam  = "token"
)

const msgInvalidSession = "Invalid or expired session"

// SessionMiddleware resolves the session token, bumps the session's last-used
// time and stores the session in the request context. Every failure is the
// same 401 so that callers cannot probe which tokens exist.
func (s *Server) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Touch(s.tokenFromRequest(r))
		if err != nil {
			writeError(w, http.StatusUnauthorized, msgInvalidSession)
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetSessionFromContext(ctx context.Context) *session.Session {
	if sess, ok := ctx.Value(sessionContextKey).(*session.Session); ok {
		return sess
	}
	return nil
}

// tokenFromRequest looks at the header, then the query string, then a token
// field in a JSON or form body.
func (s *Server) tokenFromRequest(r *http.Request) string {
	if token := r.Header.Get(tokenHeader); token != "" {
		return token
	}
	if token := r.URL.Query().Get(tokenParam); token != "" {
		return token
	}
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}

	switch {
	case isJSON(r):
		return s.tokenFromJSONBody(r)
	case isForm(r):
		if err := r.ParseForm(); err != nil {
			return ""
		}
		return r.PostForm.Get(tokenParam)
	}
	return ""
}

// tokenFromJSONBody peeks at the body and puts it back for the handler.
func (s *Server) tokenFromJSONBody(r *http.Request) string {
	limit := s.config.Limits.MaxJSONBytes
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return ""
	}
	if int64(len(body)) > limit {
		r.Body = readCloser{io.MultiReader(bytes.NewReader(body), r.Body), r.Body}
		return ""
	}
	r.Body = readCloser{bytes.NewReader(body), r.Body}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Token
}

type readCloser struct {
	io.Reader
	io.Closer
}
