// Package config carries process-wide environment settings and the
// per-number configuration records merged over gateway defaults.
package config

import (
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Env is the process-level configuration, decoded from the environment.
type Env struct {
	ListenAddr    string `env:"LISTEN_ADDR,default=:8000"`
	DashboardAddr string `env:"DASHBOARD_ADDR,default=:8080"`

	GithubToken string `env:"GITHUB_TOKEN"`
	GithubOwner string `env:"GITHUB_REPO_OWNER"`
	GithubRepo  string `env:"GITHUB_REPO_NAME"`

	SessionDir    string `env:"SESSION_DIR,default=./session"`
	AdminListPath string `env:"ADMIN_LIST_PATH,default=./admin.json"`
	ImagePath     string `env:"IMAGE_PATH,default=./connected.jpg"`

	Prefix        string `env:"PREFIX,default=."`
	MaxConcurrent int    `env:"MAX_CONCURRENT_CONNECTIONS,default=5"`

	CacheTTL time.Duration `env:"SESSION_CACHE_TTL,default=5m"`
}

// Load reads .env if present, then decodes the environment.
func Load() (Env, error) {
	_ = godotenv.Load()

	var env Env
	if err := envdecode.Decode(&env); err != nil {
		return Env{}, err
	}
	return env, nil
}

// RemoteStoreConfigured reports whether a remote credential store target is
// fully specified. Without it the gateway runs local-only.
func (e Env) RemoteStoreConfigured() bool {
	return e.GithubToken != "" && e.GithubOwner != "" && e.GithubRepo != ""
}
