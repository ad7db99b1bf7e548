package middleware

import (
	"net/http"
	"strings"
)

// AuthCookie is set by the login handler once the password was accepted.
const AuthCookie = "authenticated"

// AuthMiddleware lets requests through only with a valid auth cookie. The
// login page, static assets and camera push endpoints are public.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" ||
			r.URL.Path == "/auth/login" ||
			strings.HasPrefix(r.URL.Path, "/static/css/") ||
			strings.HasPrefix(r.URL.Path, "/static/js/") ||
			strings.HasPrefix(r.URL.Path, "/camera") {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(AuthCookie)
		if err != nil || cookie.Value != "true" {
			// API and AJAX callers get a status, browsers go to the login page.
			if strings.HasPrefix(r.URL.Path, "/api/") ||
				r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
				r.Header.Get("Content-Type") == "application/json" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
