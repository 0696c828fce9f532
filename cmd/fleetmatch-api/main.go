// README: Entry point; loads config, wires services, starts HTTP server and background loops.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"fleetmatch/internal/config"
	httptransport "fleetmatch/internal/http"
	"fleetmatch/internal/infra"
	"fleetmatch/internal/maps"
	"fleetmatch/internal/modules/cache"
	"fleetmatch/internal/modules/cargo"
	"fleetmatch/internal/modules/dispatch"
	"fleetmatch/internal/modules/feeds"
	"fleetmatch/internal/modules/fleet"
	"fleetmatch/internal/modules/matching"
	"fleetmatch/internal/modules/pricing"
	"fleetmatch/internal/modules/scoring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}

	log, logCloser, err := infra.NewLogger(cfg.Log)
	if err != nil {
		logrus.Fatal(err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB)
	if err != nil {
		log.WithError(err).Fatal("db init")
	}
	defer dbPool.Close()

	redisClient, err := infra.NewRedis(ctx, cfg.Redis)
	if err != nil {
		log.WithError(err).Fatal("redis init")
	}
	defer redisClient.Close()

	pricingSvc := pricing.NewService(pricing.NewStore(dbPool), initialRates(cfg.Scoring), log)
	if err := pricingSvc.Refresh(ctx); err != nil {
		log.WithError(err).Warn("pricing: using configured rates")
	}

	cargoStore := cargo.NewStore(dbPool)
	cargoSvc := cargo.NewService(cargoStore)

	fleetStore := fleet.NewStore(dbPool)
	positions := fleet.NewPositionStore(redisClient)
	fleetSvc := fleet.NewService(fleetStore, positions, log).
		WithHistory(fleet.NewHistoryStore(dbPool), cfg.Fleet.SnapshotInterval)

	deps := feeds.Deps{
		Cache:     cache.NewStore(cache.Options{Logger: log}),
		Jobs:      cargoStore,
		Vehicles:  fleetStore,
		Positions: positions,
		Rates:     pricingSvc,
		Policy:    cachePolicy(cfg.Cache),
		Config:    feedsConfig(cfg.Cache, cfg.Scoring, cfg.Matching),
		Logger:    log,
	}
	if cfg.Maps.APIKey != "" {
		routes, err := maps.NewRouteService(cfg.Maps.APIKey, cfg.Maps.Region)
		if err != nil {
			log.WithError(err).Fatal("maps init")
		}
		deps.Routes = routes
		geocoder, err := maps.NewGeocodeService(cfg.Maps.APIKey)
		if err != nil {
			log.WithError(err).Fatal("maps init")
		}
		cargoSvc.WithGeocoder(geocoder)
	} else {
		log.Info("maps: no api key, using straight-line route estimates")
	}
	facade := feeds.NewService(deps)

	scoringSvc := scoring.NewService(pricingSvc, scoringConfig(cfg.Scoring), nil)
	matchingSvc := matching.NewService(facade, scoringSvc, cfg.Matching, log)
	facade.Attach(matchingSvc)
	dispatchSvc := dispatch.NewService(cargoSvc, fleetSvc, scoringSvc, facade, log)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Matching:     matchingSvc,
		Dispatch:     dispatchSvc,
		Jobs:         cargoSvc,
		Fleet:        fleetSvc,
		Cache:        facade,
		DefaultLimit: cfg.Matching.DefaultLimit,
		TrackWindow:  cfg.Fleet.TrackWindow,
		Logger:       log,
	})
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	_ = facade.Preload(ctx)
	if err := facade.Warm(ctx); err != nil {
		log.WithError(err).Warn("initial warm failed")
	}
	go facade.RunMaintenance(ctx)
	go pricingSvc.RunRefresher(ctx, cfg.Pricing.RefreshInterval)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("http shutdown")
		}
	}()

	log.WithField("addr", cfg.HTTP.Addr).Info("fleetmatch api listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("http server")
	}
}
