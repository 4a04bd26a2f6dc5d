package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/nemanja-m/ccrender/internal/render/core"
	"github.com/nemanja-m/ccrender/internal/shared/config"
)

// OAuth2Provider mints bearer tokens with the client-credentials grant. The current
// token is cached and shared; an expired one is refreshed with the caller's context,
// so a canceled run aborts its own token request. No lock is held during the fetch.
type OAuth2Provider struct {
	cfg        *clientcredentials.Config
	httpClient *http.Client

	mu    sync.RWMutex
	token *oauth2.Token
}

// NewOAuth2Provider builds a provider from config. ctx is only consulted for an
// oauth2.HTTPClient to use on token requests.
func NewOAuth2Provider(ctx context.Context, cfg config.AuthConfig) (*OAuth2Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("auth.client_id and auth.client_secret are required")
	}
	if cfg.TokenURL == "" {
		return nil, errors.New("auth.token_url is required")
	}

	httpClient, _ := ctx.Value(oauth2.HTTPClient).(*http.Client)
	return &OAuth2Provider{
		cfg: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
	}, nil
}

func (p *OAuth2Provider) Credential(ctx context.Context) (core.Credential, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.RLock()
	tok := p.token
	p.mu.RUnlock()
	if tok.Valid() {
		return core.Credential(tok.AccessToken), nil
	}

	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}
	tok, err := p.cfg.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("obtain access token: %w", err)
	}

	p.mu.Lock()
	p.token = tok
	p.mu.Unlock()
	return core.Credential(tok.AccessToken), nil
}

// StaticProvider always returns the same credential.
type StaticProvider struct {
	token core.Credential
}

func NewStaticProvider(token string) *StaticProvider {
	return &StaticProvider{token: core.Credential(token)}
}

func (p *StaticProvider) Credential(ctx context.Context) (core.Credential, error) {
	return p.token, nil
}

// NewAuthProvider picks the static provider when a fixed token is configured.
func NewAuthProvider(ctx context.Context, cfg config.AuthConfig) (core.AuthProvider, error) {
	if cfg.StaticToken != "" {
		return NewStaticProvider(cfg.StaticToken), nil
	}
	return NewOAuth2Provider(ctx, cfg)
}
