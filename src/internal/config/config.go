package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DevicePlaneConfig holds configuration for the per-device tracker daemon
type DevicePlaneConfig struct {
	CachePath     string     `json:"cache_path" yaml:"cache_path"`
	Port          string     `json:"port" yaml:"port"`
	ControlURL    string     `json:"control_url" yaml:"control_url"`
	DatabaseURL   string     `json:"database_url" yaml:"database_url"` // direct DB mode, dev only
	ReferenceZone string     `json:"reference_zone" yaml:"reference_zone"`
	SyncDelayMin  int        `json:"sync_delay_minutes" yaml:"sync_delay_minutes"`
	SyncEveryMin  int        `json:"sync_interval_minutes" yaml:"sync_interval_minutes"`
	OIDC          OIDCConfig `json:"oidc" yaml:"oidc"`
}

// ControlPlaneConfig holds configuration for the server-side plane
type ControlPlaneConfig struct {
	DatabaseURL      string `json:"database_url" yaml:"database_url"`
	Port             string `json:"port" yaml:"port"`
	ReferenceZone    string `json:"reference_zone" yaml:"reference_zone"`
	SchedulerToken   string `json:"scheduler_token" yaml:"scheduler_token"`
	WebhookSecret    string `json:"webhook_secret" yaml:"webhook_secret"`
	ReconcileWorkers int    `json:"reconcile_workers" yaml:"reconcile_workers"`
}

type OIDCConfig struct {
	ProviderURL  string `json:"provider_url" yaml:"provider_url"`
	ClientID     string `json:"client_id" yaml:"client_id"`
	ClientSecret string `json:"client_secret" yaml:"client_secret"`
	RedirectURL  string `json:"redirect_url" yaml:"redirect_url"`
}

// Load loads the configuration from a file (YAML or JSON)
func Load(path string, cfg interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(cfg); err != nil {
			return fmt.Errorf("failed to decode YAML config file %s: %w", path, err)
		}
	} else {
		// Default to JSON for compatibility or other extensions
		decoder := json.NewDecoder(file)
		if err := decoder.Decode(cfg); err != nil {
			return fmt.Errorf("failed to decode JSON config file %s: %w", path, err)
		}
	}

	return nil
}
