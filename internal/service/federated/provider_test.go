package federated

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"uk.co.dudmesh.bloggr/internal/model"
	"uk.co.dudmesh.bloggr/internal/service/federated/federatedtest"
)

func newTestProvider(t *testing.T) (*Provider, *federatedtest.Provider) {
	fake := federatedtest.New(t)
	return New(Config{
		ClientID:     federatedtest.ClientID,
		ClientSecret: federatedtest.ClientSecret,
		DiscoveryURL: fake.DiscoveryURL(),
		RedirectURL:  "http://localhost:8080/auth/authorize/google",
	}), fake
}

func TestAuthCodeURL(t *testing.T) {
	assert := assert.New(t)
	provider, fake := newTestProvider(t)

	authURL, err := provider.AuthCodeURL(context.Background(), "state-123")
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(fake.Server.URL+"/authorize", u.Scheme+"://"+u.Host+u.Path)
	assert.Equal("state-123", u.Query().Get("state"))
	assert.Equal(federatedtest.ClientID, u.Query().Get("client_id"))
	assert.Equal("http://localhost:8080/auth/authorize/google", u.Query().Get("redirect_uri"))
	assert.Equal("openid email profile", u.Query().Get("scope"))
	assert.Equal("code", u.Query().Get("response_type"))
}

func TestAuthCodeURLMisconfigured(t *testing.T) {
	t.Run("No client id", func(t *testing.T) {
		provider := New(Config{DiscoveryURL: "http://127.0.0.1:1/unused"})
		_, err := provider.AuthCodeURL(context.Background(), "s")
		assert.ErrorIs(t, err, model.ErrorUpstreamProvider)
	})

	t.Run("Unreachable discovery", func(t *testing.T) {
		provider := New(Config{ClientID: "c", DiscoveryURL: "http://127.0.0.1:1/unused"})
		_, err := provider.AuthCodeURL(context.Background(), "s")
		assert.ErrorIs(t, err, model.ErrorUpstreamProvider)
	})
}

func TestIdentify(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	provider, fake := newTestProvider(t)

	t.Run("Success", func(t *testing.T) {
		code := fake.Code(federatedtest.Account{Subject: "1", Email: "erin@example.com"})
		identity, err := provider.Identify(ctx, code)
		require.NoError(t, err)
		assert.Equal("erin@example.com", identity.Email)
		assert.Equal("1", identity.Subject)
		assert.True(identity.EmailVerified)
	})

	t.Run("Without id token", func(t *testing.T) {
		fake.OmitIDToken = true
		defer func() { fake.OmitIDToken = false }()

		code := fake.Code(federatedtest.Account{Subject: "2", Email: "frank@example.com"})
		identity, err := provider.Identify(ctx, code)
		require.NoError(t, err)
		assert.Equal("frank@example.com", identity.Email)
	})

	t.Run("Cancelled", func(t *testing.T) {
		_, err := provider.Identify(ctx, "")
		assert.True(IsCancelled(err))
	})

	t.Run("Bad code", func(t *testing.T) {
		_, err := provider.Identify(ctx, "never-issued")
		assert.ErrorIs(err, model.ErrorUpstreamProvider)
	})

	t.Run("Missing email", func(t *testing.T) {
		code := fake.Code(federatedtest.Account{Subject: "3"})
		_, err := provider.Identify(ctx, code)
		assert.ErrorIs(err, model.ErrorInvalidEmail)
	})

	t.Run("Userinfo failure", func(t *testing.T) {
		fake.UserInfoStatus = http.StatusInternalServerError
		defer func() { fake.UserInfoStatus = 0 }()

		code := fake.Code(federatedtest.Account{Subject: "4", Email: "gina@example.com"})
		_, err := provider.Identify(ctx, code)
		assert.ErrorIs(err, model.ErrorUpstreamProvider)
	})

	t.Run("Id token disagrees with userinfo", func(t *testing.T) {
		code := fake.Code(federatedtest.Account{Subject: "5", Email: "hal@example.com", IDTokenEmail: "mallory@example.com"})
		_, err := provider.Identify(ctx, code)
		assert.ErrorIs(err, model.ErrorUpstreamProvider)
	})
}

func TestUserInfoRejectsForgedIDToken(t *testing.T) {
	ctx := context.Background()
	provider, fake := newTestProvider(t)
	other := federatedtest.New(t)

	// A token signed by a different provider under the same key id.
	code := other.Code(federatedtest.Account{Subject: "6", Email: "ivy@example.com"})
	otherProvider := New(Config{ClientID: federatedtest.ClientID, DiscoveryURL: other.DiscoveryURL()})
	token, err := otherProvider.Exchange(ctx, code)
	require.NoError(t, err)

	fakeCode := fake.Code(federatedtest.Account{Subject: "6", Email: "ivy@example.com"})
	forged := (&oauth2.Token{AccessToken: "access-" + fakeCode, TokenType: "Bearer"}).WithExtra(map[string]interface{}{
		"id_token": token.Extra("id_token"),
	})

	_, err = provider.UserInfo(ctx, forged)
	assert.ErrorIs(t, err, model.ErrorUpstreamProvider)
}

func TestKeyCacheRefetchesUnknownKeys(t *testing.T) {
	assert := assert.New(t)
	fetches := 0
	cache := newKeyCache(func(ctx context.Context) (map[string]interface{}, error) {
		fetches++
		return map[string]interface{}{"a": "key-a"}, nil
	})

	key, err := cache.Get(context.Background(), "a")
	assert.Nil(err)
	assert.Equal("key-a", key)
	_, err = cache.Get(context.Background(), "a")
	assert.Nil(err)
	assert.Equal(1, fetches)

	_, err = cache.Get(context.Background(), "b")
	assert.ErrorIs(err, model.ErrorUnknownKey)
	assert.ErrorIs(err, model.ErrorUpstreamProvider)
	assert.Equal(2, fetches)
}
