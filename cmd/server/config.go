package main

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// serverEnv holds the environment overrides. Flags default to these values.
type serverEnv struct {
	Addr         string `env:"EE_ADDR"          envDefault:":8080"`
	ConfigDir    string `env:"EE_CONFIG_DIR"    envDefault:"./configs"`
	DataDir      string `env:"EE_DATA_DIR"      envDefault:"./data"`
	IndexBackend string `env:"EE_INDEX_BACKEND" envDefault:"sqlite"`
	BridgeToken  string `env:"EE_BRIDGE_TOKEN"`

	// Unset means on everywhere except staging and production.
	EnableAdminHTTP *bool  `env:"EE_ENABLE_ADMIN_HTTP"`
	EnablePprofHTTP bool   `env:"EE_ENABLE_PPROF_HTTP" envDefault:"false"`
	DeployEnv       string `env:"DEPLOY_ENV"`
}

func loadEnv() (serverEnv, error) {
	var cfg serverEnv
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c serverEnv) adminEnabled() bool {
	if c.EnableAdminHTTP != nil {
		return *c.EnableAdminHTTP
	}
	switch strings.ToLower(strings.TrimSpace(c.DeployEnv)) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
