// Package web exposes the HTTP surface: login, the dashboard, and the
// connect/callback/disconnect endpoints of the authorization flow.
package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/finhub-dev/finhub/internal/dashboard"
	"github.com/finhub-dev/finhub/internal/db/models"
	"github.com/finhub-dev/finhub/internal/finerrors"
	"github.com/finhub-dev/finhub/internal/oauth"
)

type accountRow struct {
	AccountID  string
	Balance    string
	BalanceErr string
	Product    string
	ProductErr string
}

type providerBlock struct {
	ID   uint
	Name string
	Err  string
	Rows []accountRow
}

type dashboardData struct {
	Flash       string
	Blocks      []providerBlock
	Connectable []models.Provider
}

// DashboardHandler renders the aggregated view for the logged-in user.
func DashboardHandler(asm *dashboard.Assembler, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := asm.Build(r.Context(), UserID(r.Context()))
		if err != nil {
			log.Error().Err(err).Msg("dashboard build failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		data := dashboardData{Connectable: view.Connectable}
		if r.URL.Query().Get("error") == "revoke_failed" {
			data.Flash = "Disconnect failed: the provider did not confirm revocation. Please try again."
		}
		for _, info := range view.Connected {
			data.Blocks = append(data.Blocks, buildBlock(info))
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := dashboardTmpl.Execute(w, data); err != nil {
			log.Error().Err(err).Msg("dashboard render failed")
		}
	}
}

func buildBlock(info dashboard.AccountInfo) providerBlock {
	block := providerBlock{ID: info.ProviderID, Name: info.ProviderName}
	if info.Err != nil {
		block.Err = info.Err.Error()
		return block
	}

	block.Rows = make([]accountRow, len(info.Accounts))
	rowIndex := make(map[string]int, len(info.Accounts))
	for i, acc := range info.Accounts {
		block.Rows[i] = accountRow{AccountID: acc.AccountID}
		rowIndex[acc.AccountID] = i
	}
	for _, b := range info.Balances {
		i, ok := rowIndex[b.AccountID]
		if !ok {
			continue
		}
		if b.Err != nil {
			block.Rows[i].BalanceErr = b.Err.Error()
		} else {
			block.Rows[i].Balance = string(b.Balance)
		}
	}
	for _, p := range info.Products {
		i, ok := rowIndex[p.AccountID]
		if !ok {
			continue
		}
		if p.Err != nil {
			block.Rows[i].ProductErr = p.Err.Error()
		} else {
			block.Rows[i].Product = string(p.Product)
		}
	}
	return block
}

// ConnectHandler starts the authorization flow by redirecting the
// user-agent to the provider's consent page.
func ConnectHandler(flow *oauth.Flow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := parseProviderID(w, r)
		if !ok {
			return
		}
		redirect, err := flow.BuildAuthorizationRedirect(r.Context(), providerID)
		if errors.Is(err, finerrors.ErrProviderNotFound) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, redirect, http.StatusFound)
	}
}

// CallbackHandler completes the flow: the provider redirects here with
// the authorization code, which is exchanged and stored.
func CallbackHandler(flow *oauth.Flow, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := parseProviderID(w, r)
		if !ok {
			return
		}
		code := r.URL.Query().Get("code")
		state := r.URL.Query().Get("state")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		_, err := flow.ExchangeCodeForToken(r.Context(), providerID, code, state, UserID(r.Context()))
		switch {
		case errors.Is(err, finerrors.ErrProviderNotFound):
			http.NotFound(w, r)
		case errors.Is(err, finerrors.ErrInvalidState):
			http.Error(w, "invalid state", http.StatusBadRequest)
		case err != nil:
			log.Error().Err(err).Uint("provider", providerID).Msg("code exchange failed")
			http.Error(w, "token exchange failed", http.StatusBadGateway)
		default:
			http.Redirect(w, r, "/", http.StatusSeeOther)
		}
	}
}

// DisconnectHandler revokes the stored token at the provider. A refused
// revocation keeps the token and surfaces the failure on the dashboard
// instead of pretending the disconnect succeeded.
func DisconnectHandler(revoker *oauth.Revoker, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := parseProviderID(w, r)
		if !ok {
			return
		}
		err := revoker.Revoke(r.Context(), UserID(r.Context()), providerID)
		switch {
		case errors.Is(err, finerrors.ErrProviderNotFound), errors.Is(err, finerrors.ErrNotConnected):
			http.NotFound(w, r)
		case errors.Is(err, finerrors.ErrRevocationFailed):
			http.Redirect(w, r, "/?error=revoke_failed", http.StatusSeeOther)
		case err != nil:
			log.Error().Err(err).Uint("provider", providerID).Msg("disconnect failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
		default:
			http.Redirect(w, r, "/", http.StatusSeeOther)
		}
	}
}

func parseProviderID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "providerID"), 10, 32)
	if err != nil {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return 0, false
	}
	return uint(id), true
}

// LoginPageHandler renders the login form.
func LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = loginTmpl.Execute(w, struct{ Error string }{})
	}
}

// LoginSubmitHandler verifies credentials and establishes a session.
func LoginSubmitHandler(db *gorm.DB, sessions *SessionManager, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		email := r.PostFormValue("email")
		password := r.PostFormValue("password")

		var user models.User
		err := db.WithContext(r.Context()).Where("email = ?", email).First(&user).Error
		if err == nil {
			err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
		}
		if err != nil {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_ = loginTmpl.Execute(w, struct{ Error string }{Error: "Invalid email or password."})
			return
		}

		token, err := sessions.Issue(user.ID)
		if err != nil {
			log.Error().Err(err).Msg("session issue failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		sessions.SetCookie(w, token)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// LogoutHandler clears the session cookie.
func LogoutHandler(sessions *SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions.ClearCookie(w)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}
