package main

import (
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/haukened/rr-certoverride/internal/certs/common/clock"
	"github.com/haukened/rr-certoverride/internal/certs/common/log"
	"github.com/haukened/rr-certoverride/internal/certs/config"
	"github.com/haukened/rr-certoverride/internal/certs/gateways/dispatch"
	"github.com/haukened/rr-certoverride/internal/certs/gateways/probe"
	"github.com/haukened/rr-certoverride/internal/certs/gateways/verifier"
	"github.com/haukened/rr-certoverride/internal/certs/repos/overrides"
	"github.com/haukened/rr-certoverride/internal/certs/repos/overrides/bloom"
	"github.com/haukened/rr-certoverride/internal/certs/repos/overrides/bolt"
	"github.com/haukened/rr-certoverride/internal/certs/repos/overrides/lru"
	"github.com/haukened/rr-certoverride/internal/certs/repos/patterncache"
	"github.com/haukened/rr-certoverride/internal/certs/services/override"
)

const (
	version = "0.1.0-dev"
	appName = "rr-certoverride"

	// compiled host patterns kept by the matcher
	defaultPatternCacheSize = 128
)

// Application holds every component needed to answer override queries.
type Application struct {
	config     *config.AppConfig
	verifier   *verifier.Verifier
	prober     *probe.Prober
	service    override.OverrideService
	evaluator  *override.Evaluator
	dispatcher *dispatch.Dispatcher
	repo       overrides.Repository
}

func main() {
	if err := newRootCmd(loadApplication).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadApplication reads configuration from the environment, configures
// global logging and builds the application.
func loadApplication() (*Application, error) {
	cfg, prefs, err := config.LoadWithPrefs()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("logging configuration error: %w", err)
	}

	log.Debug(map[string]any{
		"version":                 version,
		"env":                     cfg.Env,
		"log_level":               cfg.LogLevel,
		"accept_untrusted_certs":  cfg.AcceptUntrustedCerts,
		"assume_untrusted_issuer": cfg.AssumeUntrustedIssuer,
		"store":                   cfg.Store.Path,
		"roots":                   cfg.Roots,
	}, "Starting "+appName)

	return buildApplication(cfg, prefs, &clock.RealClock{})
}

// buildApplication constructs all components and wires them together.
func buildApplication(cfg *config.AppConfig, prefs override.Preferences, clk clock.Clock) (*Application, error) {
	logger := log.GetLogger()

	repos, err := buildRepositories(cfg, clk, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build repositories: %w", err)
	}

	gateways, err := buildGateways(cfg, clk)
	if err != nil {
		_ = repos.overrides.Close()
		return nil, fmt.Errorf("failed to build gateways: %w", err)
	}

	evaluator, err := override.NewEvaluator(override.EvaluatorOptions{
		Prefs:   prefs,
		Matcher: repos.matcher,
		Logger:  log.Component(logger, "evaluator"),
	})
	if err != nil {
		_ = repos.overrides.Close()
		return nil, fmt.Errorf("failed to build evaluator: %w", err)
	}

	shell := override.NewShell(evaluator, repos.overrides)
	d := dispatch.New(log.Component(logger, "dispatch"))

	return &Application{
		config:     cfg,
		verifier:   gateways.verifier,
		prober:     gateways.prober,
		service:    dispatch.NewProxy(shell, d),
		evaluator:  evaluator,
		dispatcher: d,
		repo:       repos.overrides,
	}, nil
}

// repositories holds all repository implementations
type repositories struct {
	overrides overrides.Repository
	matcher   override.HostMatcher
}

// gateways holds all gateway implementations
type gateways struct {
	verifier *verifier.Verifier
	prober   *probe.Prober
}

// buildRepositories opens the override store and the caches in front of it.
func buildRepositories(cfg *config.AppConfig, clk clock.Clock, logger log.Logger) (*repositories, error) {
	store, err := bolt.New(cfg.Store.Path, clk)
	if err != nil {
		return nil, fmt.Errorf("failed to open override store %s: %w", cfg.Store.Path, err)
	}

	cache, err := lru.New(cfg.Store.CacheSize)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create lookup cache: %w", err)
	}

	repo, err := overrides.NewRepository(overrides.Options{
		Store:   store,
		Cache:   cache,
		Filters: bloom.NewFactory(),
		FPRate:  cfg.Store.BloomFPRate,
		Clock:   clk,
		Logger:  log.Component(logger, "overrides"),
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create override repository: %w", err)
	}

	matcher, err := patterncache.New(defaultPatternCacheSize)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to create pattern cache: %w", err)
	}

	log.Debug(map[string]any{
		"path":          cfg.Store.Path,
		"cache_size":    cfg.Store.CacheSize,
		"bloom_fp_rate": cfg.Store.BloomFPRate,
		"overrides":     repo.RepoStats().Store.Overrides,
	}, "Override store opened")

	return &repositories{overrides: repo, matcher: matcher}, nil
}

// buildGateways loads the trust pool and prepares the verifier and prober.
func buildGateways(cfg *config.AppConfig, clk clock.Clock) (*gateways, error) {
	roots, err := loadRoots(cfg.Roots)
	if err != nil {
		return nil, err
	}
	return &gateways{
		verifier: verifier.New(roots, clk),
		prober:   probe.New(probe.Options{}),
	}, nil
}

// loadRoots returns nil (the system pool) when no bundles are configured.
func loadRoots(paths []string) (*x509.CertPool, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	bundles := make([][]byte, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read root bundle: %w", err)
		}
		bundles = append(bundles, b)
	}
	pool, err := verifier.LoadPool(bundles...)
	if err != nil {
		return nil, fmt.Errorf("failed to load root bundle: %w", err)
	}
	return pool, nil
}

// Close stops the dispatcher and then closes the store.
func (app *Application) Close() error {
	return errors.Join(app.dispatcher.Close(), app.repo.Close())
}
