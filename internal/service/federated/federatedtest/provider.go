// Package federatedtest runs an in-process OpenID Connect provider for tests.
package federatedtest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rakutentech/jwk-go/jwk"
)

const (
	ClientID     = "test-client"
	ClientSecret = "test-secret"
	KeyID        = "test-key"
)

// Account is the identity the provider vouches for once a code is redeemed.
type Account struct {
	Subject string
	Email   string
	// IDTokenEmail overrides the email placed in the id token.
	IDTokenEmail string
}

type Provider struct {
	Server *httptest.Server

	// UserInfoStatus, when set, is returned by the userinfo endpoint instead of the account.
	UserInfoStatus int
	// OmitIDToken leaves the id_token out of token responses.
	OmitIDToken bool

	key   *rsa.PrivateKey
	mu    sync.Mutex
	codes map[string]Account
	seq   int
}

func New(t testing.TB) *Provider {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating provider key: %v", err)
	}

	p := &Provider{key: key, codes: map[string]Account{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", p.discovery)
	mux.HandleFunc("/token", p.token)
	mux.HandleFunc("/userinfo", p.userinfo)
	mux.HandleFunc("/jwks", p.jwks)
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)

	return p
}

func (p *Provider) DiscoveryURL() string {
	return p.Server.URL + "/.well-known/openid-configuration"
}

// Code returns an authorization code the provider will redeem for account.
func (p *Provider) Code(account Account) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	code := fmt.Sprintf("code-%d", p.seq)
	p.codes[code] = account
	return code
}

func (p *Provider) account(code string) (Account, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	account, ok := p.codes[code]
	return account, ok
}

func (p *Provider) discovery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"issuer":                 p.Server.URL,
		"authorization_endpoint": p.Server.URL + "/authorize",
		"token_endpoint":         p.Server.URL + "/token",
		"userinfo_endpoint":      p.Server.URL + "/userinfo",
		"jwks_uri":               p.Server.URL + "/jwks",
	})
}

func (p *Provider) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	code := r.PostForm.Get("code")
	account, ok := p.account(code)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}

	resp := map[string]interface{}{
		"access_token": "access-" + code,
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	if !p.OmitIDToken {
		email := account.Email
		if account.IDTokenEmail != "" {
			email = account.IDTokenEmail
		}
		now := time.Now()
		idToken := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
			"iss":   p.Server.URL,
			"sub":   account.Subject,
			"aud":   ClientID,
			"email": email,
			"iat":   now.Unix(),
			"exp":   now.Add(time.Hour).Unix(),
		})
		idToken.Header["kid"] = KeyID
		signed, err := idToken.SignedString(p.key)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		resp["id_token"] = signed
	}
	writeJSON(w, http.StatusOK, resp)
}

func (p *Provider) userinfo(w http.ResponseWriter, r *http.Request) {
	if p.UserInfoStatus != 0 {
		w.WriteHeader(p.UserInfoStatus)
		return
	}

	code, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer access-")
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	account, ok := p.account(code)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	info := map[string]interface{}{"sub": account.Subject, "email_verified": true}
	if account.Email != "" {
		info["email"] = account.Email
	}
	writeJSON(w, http.StatusOK, info)
}

func (p *Provider) jwks(w http.ResponseWriter, r *http.Request) {
	rawJWK, err := jwk.NewSpec(&p.key.PublicKey).ToJWK()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	rawJWK.Use = "sig"
	rawJWK.Alg = "RS256"
	rawJWK.Kid = KeyID

	keyData, err := rawJWK.MarshalJSON()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"keys": []json.RawMessage{keyData}})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
