package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keithlinneman/dsa-learning-api/internal/catalog"
	"github.com/keithlinneman/dsa-learning-api/internal/cataloghttp"
	"github.com/keithlinneman/dsa-learning-api/internal/cfg"
	"github.com/keithlinneman/dsa-learning-api/internal/health"
	"github.com/keithlinneman/dsa-learning-api/internal/httpmw"
	"github.com/keithlinneman/dsa-learning-api/internal/httpserver"
	"github.com/keithlinneman/dsa-learning-api/internal/log"
	"github.com/keithlinneman/dsa-learning-api/internal/metrics"
	"github.com/keithlinneman/dsa-learning-api/internal/mongostore"
	"github.com/keithlinneman/dsa-learning-api/internal/opshttp"
	"github.com/keithlinneman/dsa-learning-api/internal/otelx"
	"github.com/keithlinneman/dsa-learning-api/internal/prof"
	"github.com/keithlinneman/dsa-learning-api/internal/ratelimit"
	v "github.com/keithlinneman/dsa-learning-api/internal/version"
	"github.com/keithlinneman/dsa-learning-api/internal/xerrors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(vi.String())
		os.Exit(0)
	}

	// DSA_* env vars fill anything not passed on the cli
	cfg.FillFromEnv(flag.CommandLine, cfg.EnvPrefix, func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})
	// PORT and MONGO_URI keep working, but a bad PORT is fatal
	if err := cfg.FillFromLegacyEnv(flag.CommandLine, cfg.LegacyEnv); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	// PORT may pick the ops default; the ops listener gives way unless
	// -admin-port was set too
	opsYielded := cfg.YieldAdminPort(flag.CommandLine, &conf)
	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	// Setup logging
	lvl, _ := log.ParseLevel(conf.LogLevel)
	stackLvl, _ := log.ParseLevel(conf.StacktraceLevel)
	lg, err := log.New(log.Options{
		App:               v.AppName,
		Version:           vi.Version,
		Commit:            vi.Commit,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JSON:              conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildID,
		"go_version", vi.GoVersion,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"otlp_endpoint", conf.OTLPEndpoint,
		"trace_sample", conf.TraceSample,
		"rate_limit_rps", conf.RateLimitRPS,
		"rate_limit_burst", conf.RateLimitBurst,
		"trusted_proxy_hops", conf.TrustedProxyHops,
		"mongo_configured", conf.MongoURI != "",
		"mongo_database", conf.MongoDatabase,
		"mongo_collection", conf.MongoCollection,
	)

	if opsYielded {
		L.Warn(ctx, "http port equals the default admin port, ops listener disabled",
			"http_port", conf.HTTPPort,
		)
	}

	m := metrics.New()
	m.SetBuildInfoFromVersion("server", vi)

	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       v.AppName,
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
		},
	})
	m.SetProfilingActive(conf.EnablePyroscope && err == nil)
	defer stopProf()

	// Insecure: the collector runs on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Service:   v.AppName,
		Component: "server",
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed, tracing disabled")
		shutdownOTEL = func(context.Context) error { return nil }
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	store, err := catalog.Load()
	if err != nil {
		L.Error(ctx, err, "catalog failed to load")
		os.Exit(1)
	}
	m.SetCatalog(store.Version(), store.Hash(), store.Len(), store.LoadedAt())
	L.Info(ctx, "catalog loaded",
		"catalog_version", store.Version(),
		"catalog_hash", store.Hash(),
		"modules", store.Len(),
	)

	// a bad mongo uri disables the client, it is never on the request path
	mongo, err := mongostore.Open(ctx, mongostore.Options{
		URI:         conf.MongoURI,
		Database:    conf.MongoDatabase,
		Collection:  conf.MongoCollection,
		Logger:      L,
		OnPoolEvent: m.IncStorePoolEvent,
	})
	if err != nil {
		L.Error(ctx, err, "mongo client disabled")
		mongo, _ = mongostore.Open(ctx, mongostore.Options{Logger: L})
	}
	defer func() { _ = mongo.Disconnect(context.Background()) }()

	api := cataloghttp.NewAPI(store, L, cataloghttp.WithLookupObserver(m.ObserveLookup))

	var gate health.ShutdownGate
	probes := []health.Probe{
		gate.Probe(),
		health.Named("catalog", health.CheckFunc(func(context.Context) error {
			if store.Len() == 0 {
				return xerrors.New("catalog empty")
			}
			return nil
		})),
	}
	if conf.MongoReadiness {
		probes = append(probes, health.Named("mongo", health.CheckFunc(mongo.Ping)))
	}
	readiness := health.All(probes...)

	var rateLimitMW func(next http.Handler) http.Handler
	if conf.RateLimitRPS > 0 {
		limiter := ratelimit.New(ctx,
			ratelimit.WithRate(conf.RateLimitRPS, conf.RateLimitBurst),
			ratelimit.WithOnDenied(func(ip string) {
				m.IncRateLimitDenied()
			}),
			// logged once per ip until it is evicted
			ratelimit.WithOnFirstDenied(func(ip string) {
				L.Warn(ctx, "rate limit triggered", "ip", ip)
			}),
			ratelimit.WithOnCapacity(func() {
				m.IncRateLimitCapacity()
				L.Warn(ctx, "rate limit capacity reached, rejecting new visitors until some are evicted")
			}),
		)
		rateLimitMW = limiter.Middleware
	}

	apiHTTPStop, err := httpserver.Start(ctx, httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		APIRoutes:    api.RegisterRoutes,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		RateLimitMW:  rateLimitMW,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedProxyHops},
		CatalogInfo:  store,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start api http listener")
		os.Exit(1)
	}
	defer func() { _ = apiHTTPStop(context.Background()) }()

	// the ops listener refuses public peers and proxied requests in case a
	// load balancer or security group is ever pointed at it by mistake
	opsHTTPStop := func(context.Context) error { return nil }
	if conf.AdminPort != 0 {
		opsHTTPStop, err = opshttp.Start(ctx, L, opshttp.Options{
			Port:         conf.AdminPort,
			Metrics:      m.Handler(),
			EnablePprof:  conf.EnablePprof,
			Health:       health.Fixed(true, ""),
			Readiness:    readiness,
			Catalog:      httpmw.Scope("catalog_summary")(http.HandlerFunc(api.HandleSummary)),
			UseRecoverMW: true,
			OnPanic:      m.IncHttpPanic,
		})
		if err != nil {
			L.Error(ctx, err, "failed to start ops http listener")
			os.Exit(1)
		}
	}
	defer func() { _ = opsHTTPStop(context.Background()) }()

	if err := notifySystemd(); err != nil {
		// not fatal, systemd kills us after its start timeout if it was waiting
		L.Debug(ctx, "systemd notify skipped", "reason", err.Error())
	}

	<-ctx.Done()
	stop()

	L.Info(context.Background(), "shutdown signal received")
	gate.Set("draining")

	if conf.DrainDelay > 0 {
		L.Info(context.Background(), "draining before closing listeners", "drain_delay", conf.DrainDelay.String())
		forceCh := make(chan os.Signal, 1)
		signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
		select {
		case <-time.After(conf.DrainDelay):
			L.Info(context.Background(), "drain period complete")
		case <-forceCh:
			L.Warn(context.Background(), "second signal received, skipping drain")
		}
		signal.Stop(forceCh)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "api http server shutdown")
	}
	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "ops http server shutdown")
	}
	if err := mongo.Disconnect(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "mongo disconnect")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "otel shutdown")
	}
	stopProf()

	L.Info(context.Background(), "shutdown complete")
}

// notifySystemd sends READY=1 when started under systemd with Type=notify.
func notifySystemd() error {
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify: dial: %w", err)
	}
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		conn.Close()
		return fmt.Errorf("systemd notify: write: %w", err)
	}
	return conn.Close()
}
