package www

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"

	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/config"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/store"
)

const (
	sessionName          = "supplygate-session"
	defaultSessionSecret = "supplygate-default-secret-change-me"
)

// defaultSecretInUse reports whether secret is empty or one of the shipped
// defaults, in which case anyone can forge operator session cookies.
func defaultSecretInUse(secret string) bool {
	switch strings.TrimSpace(secret) {
	case "", defaultSessionSecret, config.DefaultSessionSecret:
		return true
	}
	return false
}

func newSessionStore(secret string) *sessions.CookieStore {
	if defaultSecretInUse(secret) {
		log.Printf("auth: WARNING: web.session_secret is unset or the default; operator sessions can be forged")
	}
	if secret == "" {
		secret = defaultSessionSecret
	}
	s := sessions.NewCookieStore([]byte(secret))
	s.Options.HttpOnly = true
	s.Options.Secure = false
	s.Options.MaxAge = 8 * 60 * 60
	s.Options.SameSite = http.SameSiteLaxMode
	return s
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (h *Handlers) isAuthenticated(r *http.Request) bool {
	session, err := h.sessions.Get(r, sessionName)
	if err != nil {
		return false
	}
	auth, ok := session.Values["authenticated"].(bool)
	return ok && auth
}

func (h *Handlers) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.isAuthenticated(r) {
			jsonError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) getUsername(r *http.Request) string {
	session, err := h.sessions.Get(r, sessionName)
	if err != nil {
		return ""
	}
	username, _ := session.Values["username"].(string)
	return username
}

// ensureDefaultAdmin creates admin/admin when no operator account exists.
func (h *Handlers) ensureDefaultAdmin(db *store.DB) {
	n, err := db.CountAdminUsers()
	if err != nil || n > 0 {
		return
	}
	hash, err := hashPassword("admin")
	if err != nil {
		return
	}
	if _, err := db.CreateAdminUser("admin", hash); err != nil {
		log.Printf("auth: create default admin: %v", err)
		return
	}
	log.Printf("auth: WARNING: created default admin account admin/admin; replace it before exposing the operator console")
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin accepts a JSON body or form values.
func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&c); err != nil {
			jsonError(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		c.Username = r.FormValue("username")
		c.Password = r.FormValue("password")
	}

	user, err := h.engine.DB().GetAdminUser(c.Username)
	if err != nil || !checkPassword(user.PasswordHash, c.Password) {
		jsonError(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	session, _ := h.sessions.Get(r, sessionName)
	session.Values["authenticated"] = true
	session.Values["username"] = c.Username
	if err := session.Save(r, w); err != nil {
		log.Printf("auth: session save error: %v", err)
	}
	if err := h.engine.DB().RecordAdminLogin(c.Username); err != nil {
		log.Printf("auth: record login %s: %v", c.Username, err)
	}
	h.engine.DB().AppendAudit("admin_user", c.Username, "login", "", "", c.Username)

	jsonOK(w, map[string]string{"status": "success", "username": c.Username})
}

func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	username := h.getUsername(r)
	session, _ := h.sessions.Get(r, sessionName)
	session.Values["authenticated"] = false
	session.Values["username"] = ""
	session.Save(r, w)
	if username != "" {
		h.engine.DB().AppendAudit("admin_user", username, "logout", "", "", username)
	}
	jsonOK(w, map[string]string{"status": "success"})
}

func (h *Handlers) apiCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.engine.DB().GetAdminUser(h.getUsername(r))
	if err != nil {
		jsonError(w, "unknown user", http.StatusUnauthorized)
		return
	}
	jsonOK(w, user)
}
