package api

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

const authRealm = `Basic realm="uvcctl"`

// basicAuth checks HTTP basic credentials. The zero value lets everything
// through.
type basicAuth struct {
	user, pass string
}

func (a basicAuth) enabled() bool {
	return a.user != "" && a.pass != ""
}

// check validates an Authorization header, falling back to a base64 "auth"
// query parameter for EventSource and <img> clients that cannot set
// headers. It returns the reason for rejection, or "" on success.
func (a basicAuth) check(header, query string) string {
	encoded := query
	if header != "" {
		var ok bool
		if encoded, ok = strings.CutPrefix(header, "Basic "); !ok {
			return "Invalid authentication type"
		}
	}
	if encoded == "" {
		return "Authentication required"
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "Invalid credentials format"
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok || !equal(user, a.user) || !equal(pass, a.pass) {
		return "Invalid credentials"
	}
	return ""
}

func equal(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// middleware enforces auth on huma operations that declare a security
// requirement.
func (a basicAuth) middleware(api huma.API) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if op := ctx.Operation(); op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}
		if problem := a.check(ctx.Header("Authorization"), ctx.Query("auth")); problem != "" {
			ctx.SetHeader("WWW-Authenticate", authRealm)
			huma.WriteErr(api, ctx, http.StatusUnauthorized, problem)
			return
		}
		next(ctx)
	}
}

// wrap applies the same check to a plain mux handler.
func (a basicAuth) wrap(next http.Handler) http.Handler {
	if !a.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.check(r.Header.Get("Authorization"), r.URL.Query().Get("auth")) != "" {
			w.Header().Set("WWW-Authenticate", authRealm)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withAuth is the security requirement for basic auth.
func withAuth() []map[string][]string {
	return []map[string][]string{{"basicAuth": {}}}
}
