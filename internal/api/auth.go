package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/AaronLay10/astarviz/internal/config"
)

// Role represents an authorization role.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

// Auth holds basic-auth credentials. It is disabled unless admin credentials are set.
type Auth struct {
	adminUser    string
	adminPass    string
	operatorUser string
	operatorPass string
}

// NewAuth builds an Auth from resolved credentials.
func NewAuth(c config.Credentials) *Auth {
	return &Auth{
		adminUser:    c.AdminUser,
		adminPass:    c.AdminPass,
		operatorUser: c.OperatorUser,
		operatorPass: c.OperatorPass,
	}
}

// Enabled reports whether credentials are enforced.
func (a *Auth) Enabled() bool {
	return a != nil && a.adminUser != "" && a.adminPass != ""
}

// authenticate returns the caller's role, or "" for bad credentials.
func (a *Auth) authenticate(r *http.Request) Role {
	if !a.Enabled() {
		return RoleAdmin
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}

	if secureCompare(user, a.adminUser) && secureCompare(pass, a.adminPass) {
		return RoleAdmin
	}
	if a.operatorUser != "" && a.operatorPass != "" {
		if secureCompare(user, a.operatorUser) && secureCompare(pass, a.operatorPass) {
			return RoleOperator
		}
	}
	return ""
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requireAuth(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="astarviz"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// RequireRole wraps a handler and requires one of the given roles.
func (a *Auth) RequireRole(handler http.HandlerFunc, allowed ...Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := a.authenticate(r)
		if role == "" {
			requireAuth(w)
			return
		}
		for _, want := range allowed {
			if role == want {
				handler(w, r)
				return
			}
		}
		http.Error(w, "Forbidden", http.StatusForbidden)
	}
}

// RequireAnyRole requires admin or operator.
func (a *Auth) RequireAnyRole(handler http.HandlerFunc) http.HandlerFunc {
	return a.RequireRole(handler, RoleAdmin, RoleOperator)
}

// RequireAdmin requires admin.
func (a *Auth) RequireAdmin(handler http.HandlerFunc) http.HandlerFunc {
	return a.RequireRole(handler, RoleAdmin)
}
