// Package oauth implements the authorization-code connect flow and the
// disconnect/revocation flow against registered providers.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/finhub-dev/finhub/internal/db/models"
	"github.com/finhub-dev/finhub/internal/finerrors"
	"github.com/finhub-dev/finhub/internal/registry"
	"github.com/finhub-dev/finhub/internal/tokens"
)

// Scopes requested from every provider.
var Scopes = []string{"balances", "products", "accounts"}

// Flow builds authorization redirects and exchanges callback codes for
// token records.
type Flow struct {
	registry     *registry.Registry
	tokens       *tokens.Store
	states       *StateStore
	client       *http.Client
	callbackBase string
	log          zerolog.Logger
}

func NewFlow(reg *registry.Registry, store *tokens.Store, states *StateStore, client *http.Client, callbackBase string, log zerolog.Logger) *Flow {
	return &Flow{
		registry:     reg,
		tokens:       store,
		states:       states,
		client:       client,
		callbackBase: strings.TrimRight(callbackBase, "/"),
		log:          log.With().Str("component", "oauth").Logger(),
	}
}

// Config returns the oauth2 client configuration for a provider. Client
// credentials are sent in the POST body, which is where the providers
// this system talks to expect them.
func (f *Flow) Config(p models.Provider) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  fmt.Sprintf("%s/success/%d", f.callbackBase, p.ID),
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.AuthorizeURL,
			TokenURL:  p.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// BuildAuthorizationRedirect returns the provider's authorization URL
// with a fresh single-use state recorded for the pending flow.
func (f *Flow) BuildAuthorizationRedirect(ctx context.Context, providerID uint) (string, error) {
	provider, err := f.registry.Get(ctx, providerID)
	if err != nil {
		return "", err
	}

	state := f.states.Issue(provider.ID)
	url := f.Config(provider).AuthCodeURL(state)
	f.log.Debug().Uint("provider", provider.ID).Msg("issued authorization redirect")
	return url, nil
}

// ExchangeCodeForToken verifies the callback state, exchanges the
// authorization code at the provider's token endpoint, and upserts the
// resulting token record. The exchange is never retried: resubmitting a
// code risks the provider invalidating the grant.
func (f *Flow) ExchangeCodeForToken(ctx context.Context, providerID uint, code, state, userID string) (models.TokenRecord, error) {
	provider, err := f.registry.Get(ctx, providerID)
	if err != nil {
		return models.TokenRecord{}, err
	}

	if !f.states.Consume(state, provider.ID) {
		return models.TokenRecord{}, finerrors.ErrInvalidState
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.client)
	tok, err := f.Config(provider).Exchange(ctx, code,
		oauth2.SetAuthURLParam("scope", strings.Join(Scopes, " ")))
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return models.TokenRecord{}, &finerrors.ExchangeError{
				Status: rerr.Response.StatusCode,
				Body:   string(rerr.Body),
				Err:    err,
			}
		}
		return models.TokenRecord{}, &finerrors.ExchangeError{Err: err}
	}
	if tok.RefreshToken == "" {
		return models.TokenRecord{}, &finerrors.ExchangeError{
			Err: errors.New("token response missing refresh_token"),
		}
	}

	rec := models.TokenRecord{
		UserID:       userID,
		ProviderID:   provider.ID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if err := f.tokens.Upsert(ctx, &rec); err != nil {
		return models.TokenRecord{}, fmt.Errorf("store token: %w", err)
	}

	f.log.Info().Uint("provider", provider.ID).Str("user", userID).Msg("connected provider")
	return rec, nil
}
