package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whatsapp-gateway/api"
	"whatsapp-gateway/cache"
	"whatsapp-gateway/config"
	"whatsapp-gateway/dashboard"
	"whatsapp-gateway/store"
	"whatsapp-gateway/utils"
	"whatsapp-gateway/whatsapp"

	"github.com/rs/zerolog"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	env, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	credStore := buildStore(env, log)

	creds := cache.New("creds", 128, env.CacheTTL)
	defer creds.Stop()
	configs := cache.New("config", 128, env.CacheTTL)
	defer configs.Stop()

	cfgManager := config.NewManager(credStore, configs, log)
	factory := whatsapp.NewMeowFactory(env.SessionDir, cfgManager, log)

	sup := whatsapp.NewSupervisor(whatsapp.Options{
		Store:     credStore,
		Creds:     creds,
		Config:    cfgManager,
		Registry:  whatsapp.NewRegistry(),
		Admission: whatsapp.NewAdmission(env.MaxConcurrent),
		Factory:   factory,
		Numbers:   whatsapp.NewNumberList(credStore, log),
		Hooks:     whatsapp.NewConnectActions(whatsapp.DefaultBranding(), log),
		Log:       log,
	})

	apiServer := &http.Server{
		Addr:    env.ListenAddr,
		Handler: api.NewServer(sup, log).Router(),
	}
	dashServer := &http.Server{
		Addr:    env.DashboardAddr,
		Handler: dashboard.NewServer(sup, log).Handler(),
	}

	go func() {
		log.Info().Str("addr", env.ListenAddr).Msg("api server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("api server failed")
		}
	}()
	go func() {
		log.Info().Str("addr", env.DashboardAddr).Msg("dashboard listening")
		if err := dashServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("dashboard server failed")
		}
	}()

	// Bring stored sessions back up in the background.
	go func() {
		statuses, err := sup.ReconnectAll(context.Background())
		if err != nil {
			log.Warn().Err(err).Msg("startup reconnect failed")
			return
		}
		log.Info().Int("sessions", len(statuses)).Msg("startup reconnect finished")
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("api server shutdown failed")
	}
	if err := dashServer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("dashboard shutdown failed")
	}
	if err := sup.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("session shutdown incomplete")
	}
	log.Info().Msg("shutdown complete")
}

// buildStore selects the credential store backend. Without a fully
// configured GitHub target the gateway runs local-only and sessions do not
// survive the host.
func buildStore(env config.Env, log zerolog.Logger) store.Store {
	if !env.RemoteStoreConfigured() {
		log.Warn().Msg("remote store not configured, credentials stay local")
		return store.NewNoop()
	}

	gh := store.NewGitHub(env.GithubToken, env.GithubOwner, env.GithubRepo, log)
	err := utils.WithRetry(func() error {
		_, err := gh.List(context.Background(), store.SessionDir+"/")
		return err
	}, utils.DefaultRetryConfig())
	if err != nil {
		log.Warn().Err(err).Msg("remote store unreachable, continuing anyway")
	}
	return gh
}
