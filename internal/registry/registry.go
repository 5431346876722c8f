// Package registry manages the set of providers a user can connect to.
// Providers are administrator-managed: seeded from a YAML file at startup
// and read-only for every flow in the system.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/finhub-dev/finhub/internal/db/models"
	"github.com/finhub-dev/finhub/internal/finerrors"
)

type Registry struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// Get returns the provider with the given id.
func (r *Registry) Get(ctx context.Context, id uint) (models.Provider, error) {
	var provider models.Provider
	err := r.db.WithContext(ctx).First(&provider, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Provider{}, finerrors.ErrProviderNotFound
	}
	if err != nil {
		return models.Provider{}, err
	}
	return provider, nil
}

// List returns all registered providers ordered by name.
func (r *Registry) List(ctx context.Context) ([]models.Provider, error) {
	var providers []models.Provider
	if err := r.db.WithContext(ctx).Order("name").Find(&providers).Error; err != nil {
		return nil, err
	}
	return providers, nil
}

// Delete removes a provider. It refuses while any stored token still
// references the provider.
func (r *Registry) Delete(ctx context.Context, id uint) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.TokenRecord{}).
		Where("provider_id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return finerrors.ErrProviderInUse
	}

	result := r.db.WithContext(ctx).Delete(&models.Provider{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return finerrors.ErrProviderNotFound
	}
	return nil
}

type seedFile struct {
	Providers []seedProvider `yaml:"providers"`
}

type seedProvider struct {
	Name         string `yaml:"name"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	AuthorizeURL string `yaml:"authorize_url"`
	TokenURL     string `yaml:"token_url"`
	RefreshURL   string `yaml:"refresh_url"`
	RevokeURL    string `yaml:"revoke_url"`
	BaseAPIURL   string `yaml:"base_api_url"`
}

// SeedFromFile loads providers from a YAML file and upserts them by name.
// A missing file is not an error; an invalid entry fails the whole seed.
func (r *Registry) SeedFromFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for _, entry := range file.Providers {
		if err := validateSeed(entry); err != nil {
			return fmt.Errorf("provider %q: %w", entry.Name, err)
		}
	}

	for _, entry := range file.Providers {
		provider := models.Provider{
			Name:         entry.Name,
			ClientID:     entry.ClientID,
			ClientSecret: entry.ClientSecret,
			AuthorizeURL: entry.AuthorizeURL,
			TokenURL:     entry.TokenURL,
			RefreshURL:   entry.RefreshURL,
			RevokeURL:    entry.RevokeURL,
			BaseAPIURL:   entry.BaseAPIURL,
		}
		err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"client_id", "client_secret", "authorize_url", "token_url",
				"refresh_url", "revoke_url", "base_api_url", "updated_at",
			}),
		}).Create(&provider).Error
		if err != nil {
			return fmt.Errorf("seed provider %q: %w", entry.Name, err)
		}
	}
	return nil
}

func validateSeed(p seedProvider) error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.ClientID == "" || p.ClientSecret == "" {
		return errors.New("client credentials are required")
	}
	urls := map[string]string{
		"authorize_url": p.AuthorizeURL,
		"token_url":     p.TokenURL,
		"refresh_url":   p.RefreshURL,
		"revoke_url":    p.RevokeURL,
		"base_api_url":  p.BaseAPIURL,
	}
	for field, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", field, raw)
		}
	}
	return nil
}
