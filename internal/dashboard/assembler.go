// Package dashboard assembles the per-user view: aggregated account
// data for every connected provider plus the list of providers still
// available to connect.
package dashboard

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/finhub-dev/finhub/internal/aggregate"
	"github.com/finhub-dev/finhub/internal/db/models"
	"github.com/finhub-dev/finhub/internal/registry"
	"github.com/finhub-dev/finhub/internal/tokens"
)

// AccountInfo is the aggregation result for one connected provider.
// Err is set when the provider's account fetch failed; the rest of the
// dashboard still renders.
type AccountInfo struct {
	ProviderID   uint
	ProviderName string
	Accounts     []aggregate.Account
	Balances     []aggregate.BalanceReport
	Products     []aggregate.ProductReport
	Err          error
}

// View is one user's dashboard.
type View struct {
	Connected   []AccountInfo
	Connectable []models.Provider
}

// Failed reports whether any connected provider's aggregation failed.
func (v View) Failed() bool {
	for _, info := range v.Connected {
		if info.Err != nil {
			return true
		}
	}
	return false
}

type Assembler struct {
	registry    *registry.Registry
	tokens      *tokens.Store
	client      *http.Client
	fanOutLimit int
	retries     int
	log         zerolog.Logger
}

func NewAssembler(reg *registry.Registry, store *tokens.Store, client *http.Client, fanOutLimit, retries int, log zerolog.Logger) *Assembler {
	return &Assembler{
		registry:    reg,
		tokens:      store,
		client:      client,
		fanOutLimit: fanOutLimit,
		retries:     retries,
		log:         log.With().Str("component", "dashboard").Logger(),
	}
}

// Build partitions providers by token presence and aggregates account
// data for the connected ones. Providers without a token are never
// called. An error is returned only for store failures; per-provider
// aggregation failures are captured in the view.
func (a *Assembler) Build(ctx context.Context, userID string) (View, error) {
	providers, err := a.registry.List(ctx)
	if err != nil {
		return View{}, err
	}
	recs, err := a.tokens.ListForUser(ctx, userID)
	if err != nil {
		return View{}, err
	}

	tokenByProvider := make(map[uint]models.TokenRecord, len(recs))
	for _, rec := range recs {
		tokenByProvider[rec.ProviderID] = rec
	}

	var view View
	for _, provider := range providers {
		rec, connected := tokenByProvider[provider.ID]
		if !connected {
			view.Connectable = append(view.Connectable, provider)
			continue
		}
		view.Connected = append(view.Connected, a.aggregateProvider(ctx, provider, rec))
	}
	return view, nil
}

func (a *Assembler) aggregateProvider(ctx context.Context, provider models.Provider, rec models.TokenRecord) AccountInfo {
	info := AccountInfo{ProviderID: provider.ID, ProviderName: provider.Name}

	agg := aggregate.New(aggregate.Config{
		Client:      a.client,
		BaseURL:     provider.BaseAPIURL,
		BearerToken: rec.AccessToken,
		FanOutLimit: a.fanOutLimit,
		Retries:     a.retries,
		Log:         a.log,
	})

	accounts, err := agg.FetchAccounts(ctx)
	if err != nil {
		a.log.Warn().Str("provider", provider.Name).Err(err).Msg("aggregation failed")
		info.Err = err
		return info
	}
	info.Accounts = accounts

	// Both reuse the cached account list; errors surface per account.
	info.Balances, _ = agg.FetchBalances(ctx)
	info.Products, _ = agg.FetchProducts(ctx)
	return info
}
