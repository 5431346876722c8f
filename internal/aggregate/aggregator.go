// Package aggregate fetches a provider's account data with a bearer
// token and joins per-account balance and product lookups into one
// report. An Aggregator is built per request and discarded after use.
package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/finhub-dev/finhub/internal/finerrors"
)

const (
	// DefaultFanOutLimit bounds concurrent per-account fetches so one
	// dashboard render cannot flood a provider.
	DefaultFanOutLimit = 4

	// DefaultRetries is the number of extra attempts for idempotent GETs
	// after a transport error or 5xx.
	DefaultRetries = 2

	retryBaseDelay = 100 * time.Millisecond

	// logBodyMax caps upstream bodies captured into errors.
	logBodyMax = 1024
)

// Account is one provider-reported account. Raw keeps the full object
// for display; AccountID drives the per-account fan-out.
type Account struct {
	AccountID string
	Raw       json.RawMessage
}

// BalanceReport is the balance lookup result for one account. Exactly
// one of Balance and Err is set.
type BalanceReport struct {
	AccountID string
	Balance   json.RawMessage
	Err       error
}

// ProductReport is the product lookup result for one account.
type ProductReport struct {
	AccountID string
	Product   json.RawMessage
	Err       error
}

// Config carries the per-request inputs for an Aggregator. A nil Client
// and a zero FanOutLimit fall back to defaults; Retries of zero means
// no retries, negative values fall back to DefaultRetries.
type Config struct {
	Client      *http.Client
	BaseURL     string
	BearerToken string
	FanOutLimit int
	Retries     int
	Log         zerolog.Logger
}

type Aggregator struct {
	client  *http.Client
	baseURL string
	token   string
	limit   int
	retries int
	log     zerolog.Logger

	accountsOnce sync.Once
	accounts     []Account
	accountsErr  error
}

func New(cfg Config) *Aggregator {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	limit := cfg.FanOutLimit
	if limit <= 0 {
		limit = DefaultFanOutLimit
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = DefaultRetries
	}
	return &Aggregator{
		client:  client,
		baseURL: cfg.BaseURL,
		token:   cfg.BearerToken,
		limit:   limit,
		retries: retries,
		log:     cfg.Log.With().Str("component", "aggregate").Logger(),
	}
}

// FetchAccounts returns the provider's account list. The upstream call
// happens exactly once per Aggregator; subsequent calls, including the
// ones FetchBalances and FetchProducts make internally, reuse the
// cached result.
func (a *Aggregator) FetchAccounts(ctx context.Context) ([]Account, error) {
	a.accountsOnce.Do(func() {
		a.accounts, a.accountsErr = a.fetchAccounts(ctx)
	})
	return a.accounts, a.accountsErr
}

func (a *Aggregator) fetchAccounts(ctx context.Context) ([]Account, error) {
	body, err := a.get(ctx, a.baseURL+"accounts/")
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data struct {
			Account []json.RawMessage `json:"Account"`
		} `json:"Data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &finerrors.UpstreamError{Status: http.StatusOK, Body: truncate(body), Err: err}
	}
	if envelope.Data.Account == nil {
		return nil, &finerrors.UpstreamError{
			Status: http.StatusOK,
			Body:   truncate(body),
			Err:    fmt.Errorf("envelope missing Data.Account"),
		}
	}

	accounts := make([]Account, 0, len(envelope.Data.Account))
	for _, raw := range envelope.Data.Account {
		var id struct {
			AccountID string `json:"AccountId"`
		}
		if err := json.Unmarshal(raw, &id); err != nil || id.AccountID == "" {
			return nil, &finerrors.UpstreamError{
				Status: http.StatusOK,
				Body:   truncate(raw),
				Err:    fmt.Errorf("account entry missing AccountId"),
			}
		}
		accounts = append(accounts, Account{AccountID: id.AccountID, Raw: raw})
	}
	return accounts, nil
}

// FetchBalances fans out one balance lookup per account, bounded by the
// concurrency limit. A failing account is reported in its slot and
// never aborts the others.
func (a *Aggregator) FetchBalances(ctx context.Context) ([]BalanceReport, error) {
	accounts, err := a.FetchAccounts(ctx)
	if err != nil {
		return nil, err
	}

	results := a.fanOut(ctx, accounts, "balances/", "Balance")
	reports := make([]BalanceReport, len(results))
	for i, res := range results {
		reports[i] = BalanceReport{AccountID: res.accountID, Balance: res.data, Err: res.err}
	}
	return reports, nil
}

// FetchProducts is the product-side twin of FetchBalances.
func (a *Aggregator) FetchProducts(ctx context.Context) ([]ProductReport, error) {
	accounts, err := a.FetchAccounts(ctx)
	if err != nil {
		return nil, err
	}

	results := a.fanOut(ctx, accounts, "product/", "Product")
	reports := make([]ProductReport, len(results))
	for i, res := range results {
		reports[i] = ProductReport{AccountID: res.accountID, Product: res.data, Err: res.err}
	}
	return reports, nil
}

type fanOutResult struct {
	accountID string
	data      json.RawMessage
	err       error
}

func (a *Aggregator) fanOut(ctx context.Context, accounts []Account, suffix, field string) []fanOutResult {
	sem := make(chan struct{}, a.limit)
	results := make([]fanOutResult, len(accounts))
	var wg sync.WaitGroup

	for i, acc := range accounts {
		wg.Add(1)
		go func(i int, acc Account) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = a.fetchOne(ctx, acc, suffix, field)
		}(i, acc)
	}
	wg.Wait()
	return results
}

func (a *Aggregator) fetchOne(ctx context.Context, acc Account, suffix, field string) fanOutResult {
	url := fmt.Sprintf("%saccounts/%s/%s", a.baseURL, acc.AccountID, suffix)
	body, err := a.get(ctx, url)
	if err != nil {
		a.log.Warn().Str("account", acc.AccountID).Err(err).Msg("per-account fetch failed")
		return fanOutResult{accountID: acc.AccountID, err: err}
	}

	var envelope struct {
		Data map[string]json.RawMessage `json:"Data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fanOutResult{accountID: acc.AccountID, err: &finerrors.UpstreamError{
			Status: http.StatusOK, Body: truncate(body), Err: err,
		}}
	}
	data, ok := envelope.Data[field]
	if !ok {
		return fanOutResult{accountID: acc.AccountID, err: &finerrors.UpstreamError{
			Status: http.StatusOK,
			Body:   truncate(body),
			Err:    fmt.Errorf("envelope missing Data.%s", field),
		}}
	}
	return fanOutResult{accountID: acc.AccountID, data: data}
}

// get performs a bearer-authenticated GET. Transport errors and 5xx
// responses are retried with a short backoff; any other non-2xx status
// fails immediately.
func (a *Aggregator) get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= a.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBaseDelay << (attempt - 1)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+a.token)
		req.Header.Set("Accept", "application/json")

		resp, err := a.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = &finerrors.UpstreamError{Status: resp.StatusCode, Body: truncate(body)}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &finerrors.UpstreamError{Status: resp.StatusCode, Body: truncate(body)}
		}
		return body, nil
	}

	var ue *finerrors.UpstreamError
	if errors.As(lastErr, &ue) {
		return nil, lastErr
	}
	return nil, &finerrors.UpstreamError{Err: lastErr}
}

func truncate(b []byte) string {
	if len(b) <= logBodyMax {
		return string(b)
	}
	return string(b[:logBodyMax]) + fmt.Sprintf("... [truncated, %d bytes total]", len(b))
}
