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

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/keithlinneman/nadi-go/internal/cfg"
	"github.com/keithlinneman/nadi-go/internal/csrf"
	"github.com/keithlinneman/nadi-go/internal/health"
	"github.com/keithlinneman/nadi-go/internal/httpmw"
	"github.com/keithlinneman/nadi-go/internal/httpserver"
	"github.com/keithlinneman/nadi-go/internal/log"
	"github.com/keithlinneman/nadi-go/internal/manifest"
	"github.com/keithlinneman/nadi-go/internal/metrics"
	"github.com/keithlinneman/nadi-go/internal/nadihttp"
	"github.com/keithlinneman/nadi-go/internal/opshttp"
	"github.com/keithlinneman/nadi-go/internal/otelx"
	"github.com/keithlinneman/nadi-go/internal/pages"
	"github.com/keithlinneman/nadi-go/internal/prof"
	"github.com/keithlinneman/nadi-go/internal/ratelimit"
	"github.com/keithlinneman/nadi-go/internal/render"
	"github.com/keithlinneman/nadi-go/internal/ssr"
	v "github.com/keithlinneman/nadi-go/internal/version"
	"github.com/keithlinneman/nadi-go/internal/webassets"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	// Parse config from flags, env and file
	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf(
			"%s %s (commit=%s, commit_date=%s, build_date=%s, go=%s, dirty=%v, nadi_protocol=%s)\n",
			vi.AppName, vi.Version, vi.Commit, vi.CommitDate, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty, vi.Protocol,
		)
		os.Exit(0)
	}

	cfg.FillFromEnv(flag.CommandLine, cfg.EnvPrefix, func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})
	// the file fills only what cli and env left unset
	if err := cfg.LoadFile(flag.CommandLine, conf.ConfigFile); err != nil {
		fmt.Fprintln(os.Stderr, "config file error:", err)
		os.Exit(1)
	}

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	// Setup logging
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v\n", conf.LogLevel, err)
		os.Exit(1)
	}
	lg, err := log.New(log.Options{
		App:               v.AppName,
		Version:           v.Version,
		Commit:            v.Commit,
		Level:             lvl,
		JsonFormat:        conf.LogJSON,
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
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"nadi_protocol", vi.Protocol,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"otlp_endpoint", conf.OTLPEndpoint,
		"trace_sample", conf.TraceSample,
		"static_dir", conf.StaticDir,
		"manifest", conf.ManifestPath(),
		"ssr_enabled", conf.SSREnabled,
		"ssr_url", conf.SSRURL,
		"ssr_timeout", conf.SSRTimeout,
		"templates_dir", conf.TemplatesDir,
		"pages", conf.PagesFile,
		"rate_limit_rps", conf.RateLimitRPS,
		"trusted_hops", conf.TrustedHops,
	)

	stopProf, profErr := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":     v.AppName,
			"version": vi.Version,
			"commit":  vi.Commit,
		},
	})
	if profErr != nil {
		L.Error(ctx, profErr, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	defer func() { stopProf() }()

	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:  conf.EnableTracing,
		Endpoint: conf.OTLPEndpoint,
		Insecure: conf.OTLPInsecure,
		Sample:   conf.TraceSample,
		Service:  v.AppName,
		Version:  vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	m := metrics.New()
	m.SetBuildInfo(vi)
	m.SetProfilingActive(conf.EnablePyroscope && profErr == nil)

	// AWS is only touched for an s3:// manifest or an SSM-held csrf key
	var awsCfg aws.Config
	if conf.NeedsAWS() {
		awsCfg, err = config.LoadDefaultConfig(ctx)
		if err != nil {
			L.Error(ctx, err, "failed to load AWS config")
			os.Exit(1)
		}
	}

	// asset manifest
	var src manifest.Source = manifest.FileSource{Path: conf.ManifestPath()}
	if bucket, key, ok := conf.ManifestS3(); ok {
		src = manifest.S3Source{Client: s3.NewFromConfig(awsCfg), Bucket: bucket, Key: key}
	}
	if _, err := manifest.Read(ctx, src); err != nil {
		// pages still render, just without asset tags
		L.Warn(ctx, "asset manifest unavailable", "source", src.String(), "error", err)
	}

	// only hand the dispatcher a renderer when SSR is on
	var renderer render.SSRRenderer
	if conf.SSREnabled {
		renderer = ssr.New(ssr.Options{BaseURL: conf.SSRURL, Timeout: conf.SSRTimeout})
	}
	dispatcher := render.New(ctx, render.Config{SSREnabled: conf.SSREnabled, Manifest: src}, renderer,
		render.WithOnRender(func(kind, _ string) {
			m.IncRender(kind)
		}),
		render.WithOnSSR(func(ctx context.Context, component, result string, d time.Duration, err error) {
			m.ObserveSSR(result, d)
			if err != nil {
				log.FromContext(ctx).Warn(ctx, "ssr failed, falling back to client rendering",
					"component", component,
					"duration", d,
					"error", err,
				)
			}
		}),
	)
	m.SetManifest(dispatcher.Manifest().Len(), dispatcher.Version(ctx))

	// templates: built-in layout, optionally overridden from disk
	override, err := nadihttp.DirFS(conf.TemplatesDir)
	if err != nil {
		L.Error(ctx, err, "invalid templates dir", "templates_dir", conf.TemplatesDir)
		os.Exit(1)
	}
	tmpls, err := nadihttp.LoadTemplates(webassets.TemplatesFS(), override)
	if err != nil {
		L.Error(ctx, err, "failed to load page templates")
		os.Exit(1)
	}
	nadi := nadihttp.NewHandler(dispatcher, nadihttp.NewResponder(tmpls))

	pageTable, err := pages.Load(conf.PagesFile)
	if err != nil {
		L.Error(ctx, err, "failed to load page table", "pages", conf.PagesFile)
		os.Exit(1)
	}
	L.Info(ctx, "nadi ready",
		"manifest_entries", dispatcher.Manifest().Len(),
		"templates", tmpls.Names(),
		"pages", len(pageTable),
	)

	// csrf signing key: configured, from SSM, or random per process
	key := []byte(conf.CSRFKey)
	if conf.CSRFKeySSMParam != "" {
		key, err = csrf.KeyFromSSM(ctx, ssm.NewFromConfig(awsCfg), conf.CSRFKeySSMParam)
		if err != nil {
			L.Error(ctx, err, "failed to load csrf key", "param", conf.CSRFKeySSMParam)
			os.Exit(1)
		}
	}
	if len(key) == 0 {
		L.Warn(ctx, "no csrf key configured, tokens will not survive a restart")
	}
	csrfProvider, err := csrf.New(csrf.Options{
		Key:    key,
		Secure: conf.CSRFCookieSecure,
		OnReject: func(*http.Request) {
			m.IncCSRFRejected()
		},
	})
	if err != nil {
		L.Error(ctx, err, "failed to create csrf provider")
		os.Exit(1)
	}

	var gate health.ShutdownGate
	readiness := health.All(gate.Probe())

	var rateLimitMW func(http.Handler) http.Handler
	if conf.RateLimitRPS > 0 {
		limiter := ratelimit.New(ctx,
			ratelimit.WithRate(conf.RateLimitRPS, conf.RateLimitBurst),
			ratelimit.WithOnDenied(func(ip string) {
				m.IncRateLimitDenied()
			}),
			// only log the first time an ip is denied each time it is cleaned from the bucket
			ratelimit.WithOnFirstDenied(func(ip string) {
				L.Warn(ctx, "rate limit triggered", "ip", ip)
			}),
		)
		rateLimitMW = limiter.Middleware
	}

	siteHTTPStop, err := httpserver.Start(ctx, &httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		RateLimitMW:  rateLimitMW,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedHops},
		Security:     httpmw.SecurityOptions{HSTS: conf.HSTS},
		Health:       health.Fixed(true, ""),
		Readiness:    readiness,
		CSRF:         csrfProvider,
		Static:       os.DirFS(conf.StaticDir),
		Nadi:         nadi,
		Pages:        pageTable,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start site http listener")
		os.Exit(1)
	}
	defer func() { _ = siteHTTPStop(context.Background()) }()

	// admin listener: metrics, health, version, pprof
	opsHTTPStop, err := opshttp.Start(ctx, L, opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   readiness,
		OnPanic:     m.IncHttpPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsHTTPStop(context.Background()) }()

	if err := notifySystemd(); err != nil {
		L.Debug(ctx, "systemd notify skipped", "reason", err.Error())
	}

	<-ctx.Done()
	stop()

	bg := context.Background()
	L.Info(bg, "shutdown signal received")

	// fail readiness so the load balancer stops sending traffic
	gate.Set("draining")
	L.Info(bg, "shutdown gate closed, draining", "drain_delay", conf.DrainDelay)

	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(conf.DrainDelay):
		L.Info(bg, "drain period complete")
	case <-forceCh:
		L.Warn(bg, "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	shutdownCtx, cancel := context.WithTimeout(bg, 10*time.Second)
	defer cancel()

	if err := siteHTTPStop(shutdownCtx); err != nil {
		L.Error(bg, err, "site http server shutdown")
	}
	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(bg, err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(bg, err, "otel shutdown")
	}
	stopProf()

	L.Info(bg, "shutdown complete")
}

// notifySystemd sends READY=1 when started as a Type=notify unit.
func notifySystemd() error {
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify: %w", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		return fmt.Errorf("systemd notify: %w", err)
	}
	return nil
}
