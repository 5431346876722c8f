package web

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/finhub-dev/finhub/internal/dashboard"
	"github.com/finhub-dev/finhub/internal/db"
	"github.com/finhub-dev/finhub/internal/db/models"
	"github.com/finhub-dev/finhub/internal/oauth"
	"github.com/finhub-dev/finhub/internal/registry"
	"github.com/finhub-dev/finhub/internal/tokens"
)

// providerStub fakes a provider's token, revoke, and REST endpoints.
type providerStub struct {
	server       *httptest.Server
	revokeStatus int
}

func newProviderStub(t *testing.T) *providerStub {
	t.Helper()
	p := &providerStub{revokeStatus: http.StatusOK}
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/token":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"AT1","refresh_token":"RT1","token_type":"Bearer"}`)
		case r.URL.Path == "/revoke":
			w.WriteHeader(p.revokeStatus)
		case strings.HasSuffix(r.URL.Path, "/balances/"):
			fmt.Fprint(w, `{"Data":{"Balance":{"Amount":"25.00"}}}`)
		case strings.HasSuffix(r.URL.Path, "/product/"):
			fmt.Fprint(w, `{"Data":{"Product":{"ProductType":"Current"}}}`)
		case strings.HasSuffix(r.URL.Path, "accounts/"):
			fmt.Fprint(w, `{"Data":{"Account":[{"AccountId":"1"}]}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(p.server.Close)
	return p
}

type appFixture struct {
	router   chi.Router
	db       *gorm.DB
	tokens   *tokens.Store
	provider models.Provider
	stub     *providerStub
	sessions *SessionManager
	userID   string
}

func newAppFixture(t *testing.T) *appFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(&models.Provider{}, &models.TokenRecord{}, &models.User{}))
	require.NoError(t, db.EnsureUser(database, "user@example.com", "pass123"))

	var user models.User
	require.NoError(t, database.Where("email = ?", "user@example.com").First(&user).Error)

	stub := newProviderStub(t)
	provider := models.Provider{
		Name:         "Example Bank",
		ClientID:     "abc",
		ClientSecret: "shh",
		AuthorizeURL: "https://bank.example/auth",
		TokenURL:     stub.server.URL + "/token",
		RefreshURL:   stub.server.URL + "/refresh",
		RevokeURL:    stub.server.URL + "/revoke",
		BaseAPIURL:   stub.server.URL + "/api/",
	}
	require.NoError(t, database.Create(&provider).Error)

	logger := zerolog.Nop()
	reg := registry.New(database)
	store := tokens.New(database)
	states := oauth.NewStateStore(time.Minute)
	flow := oauth.NewFlow(reg, store, states, http.DefaultClient, "https://app.example", logger)
	revoker := oauth.NewRevoker(reg, store, http.DefaultClient, logger)
	assembler := dashboard.NewAssembler(reg, store, http.DefaultClient, 2, 0, logger)
	sessions := NewSessionManager("test-secret", time.Hour)

	r := chi.NewRouter()
	r.Get("/login", LoginPageHandler())
	r.Post("/login", LoginSubmitHandler(database, sessions, logger))
	r.Group(func(r chi.Router) {
		r.Use(RequireSession(sessions))
		r.Get("/", DashboardHandler(assembler, logger))
		r.Get("/connect/{providerID}", ConnectHandler(flow))
		r.Get("/success/{providerID}", CallbackHandler(flow, logger))
		r.Get("/disconnect/{providerID}", DisconnectHandler(revoker, logger))
		r.Post("/logout", LogoutHandler(sessions))
	})

	return &appFixture{
		router:   r,
		db:       database,
		tokens:   store,
		provider: provider,
		stub:     stub,
		sessions: sessions,
		userID:   user.ID,
	}
}

func (f *appFixture) sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()
	token, err := f.sessions.Issue(f.userID)
	require.NoError(t, err)
	return &http.Cookie{Name: SessionCookie, Value: token}
}

func (f *appFixture) get(t *testing.T, path string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authed {
		req.AddCookie(f.sessionCookie(t))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestLoginRejectsBadPassword(t *testing.T) {
	f := newAppFixture(t)

	form := url.Values{"email": {"user@example.com"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginEstablishesSession(t *testing.T) {
	f := newAppFixture(t)

	form := url.Values{"email": {"user@example.com"}, "password": {"pass123"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))

	var sessionValue string
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			sessionValue = c.Value
		}
	}
	require.NotEmpty(t, sessionValue)

	userID, err := f.sessions.Verify(sessionValue)
	require.NoError(t, err)
	require.Equal(t, f.userID, userID)
}

func TestDashboardRequiresSession(t *testing.T) {
	f := newAppFixture(t)

	rec := f.get(t, "/", false)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestConnectRedirectsToProvider(t *testing.T) {
	f := newAppFixture(t)

	rec := f.get(t, fmt.Sprintf("/connect/%d", f.provider.ID), true)
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "bank.example", location.Host)
	require.Equal(t, "code", location.Query().Get("response_type"))
	require.NotEmpty(t, location.Query().Get("state"))
}

func TestConnectUnknownProvider(t *testing.T) {
	f := newAppFixture(t)
	rec := f.get(t, "/connect/999", true)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

// connect walks the redirect to capture the issued state, then completes
// the callback as the provider would.
func (f *appFixture) connect(t *testing.T) {
	t.Helper()

	rec := f.get(t, fmt.Sprintf("/connect/%d", f.provider.ID), true)
	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")

	callback := fmt.Sprintf("/success/%d?code=auth-code&state=%s", f.provider.ID, url.QueryEscape(state))
	rec = f.get(t, callback, true)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))
}

func TestCallbackStoresTokenAndDashboardShowsConnection(t *testing.T) {
	f := newAppFixture(t)
	f.connect(t)

	rec, err := f.tokens.Get(t.Context(), f.userID, f.provider.ID)
	require.NoError(t, err)
	require.Equal(t, "AT1", rec.AccessToken)
	require.Equal(t, "RT1", rec.RefreshToken)

	page := f.get(t, "/", true)
	require.Equal(t, http.StatusOK, page.Code)
	body, _ := io.ReadAll(page.Body)
	require.Contains(t, string(body), "Example Bank")
	require.Contains(t, string(body), fmt.Sprintf("/disconnect/%d", f.provider.ID))
	require.Contains(t, string(body), "25.00")
}

func TestCallbackRejectsForgedState(t *testing.T) {
	f := newAppFixture(t)

	rec := f.get(t, fmt.Sprintf("/success/%d?code=auth-code&state=forged", f.provider.ID), true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDisconnectRemovesConnection(t *testing.T) {
	f := newAppFixture(t)
	f.connect(t)

	rec := f.get(t, fmt.Sprintf("/disconnect/%d", f.provider.ID), true)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))

	page := f.get(t, "/", true)
	body, _ := io.ReadAll(page.Body)
	require.Contains(t, string(body), fmt.Sprintf("/connect/%d", f.provider.ID))
}

func TestDisconnectFailureKeepsConnection(t *testing.T) {
	f := newAppFixture(t)
	f.connect(t)
	f.stub.revokeStatus = http.StatusForbidden

	rec := f.get(t, fmt.Sprintf("/disconnect/%d", f.provider.ID), true)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/?error=revoke_failed", rec.Header().Get("Location"))

	// Still connected: the dashboard keeps showing the provider.
	page := f.get(t, "/?error=revoke_failed", true)
	body, _ := io.ReadAll(page.Body)
	require.Contains(t, string(body), fmt.Sprintf("/disconnect/%d", f.provider.ID))
	require.Contains(t, string(body), "Disconnect failed")
}

func TestDisconnectWithoutConnection(t *testing.T) {
	f := newAppFixture(t)

	rec := f.get(t, fmt.Sprintf("/disconnect/%d", f.provider.ID), true)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
