// Package federated signs users in through an OpenID Connect provider using
// the authorization code flow.
package federated

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"uk.co.dudmesh.bloggr/internal/model"
)

var Scopes = []string{"openid", "email", "profile"}

type Config struct {
	ClientID     string
	ClientSecret string
	DiscoveryURL string
	RedirectURL  string
	HTTPClient   *http.Client
}

type metadata struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserInfoEndpoint      string `json:"userinfo_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

type userInfo struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

type idTokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Provider struct {
	config Config
	client *http.Client
	keys   *keyCache

	mu   sync.Mutex
	meta *metadata
}

func New(config Config) *Provider {
	client := config.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	p := &Provider{config: config, client: client}
	p.keys = newKeyCache(p.fetchKeys)
	return p
}

// AuthCodeURL returns the provider URL the browser is sent to.
func (p *Provider) AuthCodeURL(ctx context.Context, state string) (string, error) {
	if p.config.ClientID == "" {
		return "", fmt.Errorf("%w: client id not configured", model.ErrorUpstreamProvider)
	}
	cfg, _, err := p.oauth2Config(ctx)
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL(state), nil
}

// Identify completes the callback leg: it exchanges code for a token and
// resolves the identity behind it.
func (p *Provider) Identify(ctx context.Context, code string) (*model.Identity, error) {
	token, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	return p.UserInfo(ctx, token)
}

func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, model.ErrorAuthorizationCancelled
	}
	cfg, _, err := p.oauth2Config(ctx)
	if err != nil {
		return nil, err
	}

	token, err := cfg.Exchange(p.clientContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: exchanging code: %v", model.ErrorUpstreamProvider, err)
	}
	if !token.Valid() {
		return nil, model.ErrorAuthorizationCancelled
	}
	return token, nil
}

// UserInfo fetches the provider's claims for token. An id_token in the token
// response, when present, must verify and agree on the email address.
func (p *Provider) UserInfo(ctx context.Context, token *oauth2.Token) (*model.Identity, error) {
	cfg, meta, err := p.oauth2Config(ctx)
	if err != nil {
		return nil, err
	}

	ctx = p.clientContext(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.UserInfoEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building userinfo request: %v", model.ErrorUpstreamProvider, err)
	}
	resp, err := cfg.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching userinfo: %v", model.ErrorUpstreamProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: userinfo status %d", model.ErrorUpstreamProvider, resp.StatusCode)
	}

	info := &userInfo{}
	if err := json.NewDecoder(resp.Body).Decode(info); err != nil {
		return nil, fmt.Errorf("%w: decoding userinfo: %v", model.ErrorUpstreamProvider, err)
	}
	if info.Email == "" {
		return nil, model.ErrorInvalidEmail
	}

	if raw, ok := token.Extra("id_token").(string); ok && raw != "" {
		claims, err := p.verifyIDToken(ctx, meta, raw)
		if err != nil {
			return nil, err
		}
		if claims.Email != "" && !strings.EqualFold(claims.Email, info.Email) {
			return nil, fmt.Errorf("%w: id token email does not match userinfo", model.ErrorUpstreamProvider)
		}
	}

	return &model.Identity{
		Subject:       info.Subject,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          info.Name,
	}, nil
}

func (p *Provider) verifyIDToken(ctx context.Context, meta *metadata, raw string) (*idTokenClaims, error) {
	claims := &idTokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		return p.keys.Get(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(p.config.ClientID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: verifying id token: %v", model.ErrorUpstreamProvider, err)
	}

	// Google issues tokens with and without the scheme.
	if meta.Issuer != "" && claims.Issuer != meta.Issuer && "https://"+claims.Issuer != meta.Issuer {
		return nil, fmt.Errorf("%w: unexpected id token issuer %q", model.ErrorUpstreamProvider, claims.Issuer)
	}

	return claims, nil
}

func (p *Provider) oauth2Config(ctx context.Context) (*oauth2.Config, *metadata, error) {
	meta, err := p.discover(ctx)
	if err != nil {
		return nil, nil, err
	}
	return &oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: p.config.ClientSecret,
		RedirectURL:  p.config.RedirectURL,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  meta.AuthorizationEndpoint,
			TokenURL: meta.TokenEndpoint,
		},
	}, meta, nil
}

// discover fetches the provider metadata once; failures are retried on the next call.
func (p *Provider) discover(ctx context.Context) (*metadata, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.meta != nil {
		return p.meta, nil
	}

	meta := &metadata{}
	if err := p.getJSON(ctx, p.config.DiscoveryURL, meta); err != nil {
		return nil, fmt.Errorf("fetching discovery document: %w", err)
	}
	if meta.AuthorizationEndpoint == "" || meta.TokenEndpoint == "" || meta.UserInfoEndpoint == "" {
		return nil, fmt.Errorf("%w: incomplete discovery document", model.ErrorUpstreamProvider)
	}

	p.meta = meta
	return meta, nil
}

func (p *Provider) fetchKeys(ctx context.Context) (map[string]interface{}, error) {
	meta, err := p.discover(ctx)
	if err != nil {
		return nil, err
	}
	if meta.JWKSURI == "" {
		return nil, fmt.Errorf("%w: provider publishes no keys", model.ErrorUpstreamProvider)
	}

	set := &keySet{}
	if err := p.getJSON(ctx, meta.JWKSURI, set); err != nil {
		return nil, fmt.Errorf("fetching provider keys: %w", err)
	}
	return set.parse()
}

func (p *Provider) getJSON(ctx context.Context, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrorUpstreamProvider, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrorUpstreamProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", model.ErrorUpstreamProvider, url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", model.ErrorUpstreamProvider, url, err)
	}
	return nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.client)
}

// IsCancelled reports whether err means the user abandoned the flow rather
// than the provider failing.
func IsCancelled(err error) bool {
	return errors.Is(err, model.ErrorAuthorizationCancelled)
}
