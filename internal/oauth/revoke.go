package oauth

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/finhub-dev/finhub/internal/finerrors"
	"github.com/finhub-dev/finhub/internal/registry"
	"github.com/finhub-dev/finhub/internal/tokens"
)

// Revoker disconnects a user from a provider by revoking the stored
// token at the provider and deleting the local record.
type Revoker struct {
	registry *registry.Registry
	tokens   *tokens.Store
	client   *http.Client
	log      zerolog.Logger
}

func NewRevoker(reg *registry.Registry, store *tokens.Store, client *http.Client, log zerolog.Logger) *Revoker {
	return &Revoker{
		registry: reg,
		tokens:   store,
		client:   client,
		log:      log.With().Str("component", "revoke").Logger(),
	}
}

// Revoke posts the stored token to the provider's revoke endpoint. The
// local record is deleted only when the provider answers 200; on any
// other outcome the record is retained and ErrRevocationFailed returned,
// since the provider-side token state is unknown.
func (r *Revoker) Revoke(ctx context.Context, userID string, providerID uint) error {
	provider, err := r.registry.Get(ctx, providerID)
	if err != nil {
		return err
	}
	rec, err := r.tokens.Get(ctx, userID, providerID)
	if err != nil {
		return err
	}

	form := url.Values{
		"token":         {rec.AccessToken},
		"client_id":     {provider.ClientID},
		"client_secret": {provider.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.RevokeURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return finerrors.Wrapf(err, "build revoke request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		return finerrors.Wrapf(finerrors.ErrRevocationFailed, "%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.log.Warn().Uint("provider", provider.ID).Int("status", resp.StatusCode).
			Msg("revoke endpoint refused, token retained")
		return finerrors.Wrapf(finerrors.ErrRevocationFailed, "provider returned %d", resp.StatusCode)
	}

	if err := r.tokens.Delete(ctx, userID, providerID); err != nil {
		return err
	}
	r.log.Info().Uint("provider", provider.ID).Str("user", userID).Msg("disconnected provider")
	return nil
}
