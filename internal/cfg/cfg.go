package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/keithlinneman/nadi-go/internal/log"
	"github.com/keithlinneman/nadi-go/internal/xerrors"
)

const EnvPrefix = "NADI_"

type App struct {
	ConfigFile        string
	LogJSON           bool
	LogLevel          string
	HTTPPort          int
	AdminPort         int
	EnablePprof       bool
	EnablePyroscope   bool
	EnableTracing     bool
	PyroServer        string
	PyroTenantID      string
	OTLPEndpoint      string
	OTLPInsecure      bool
	TraceSample       float64
	IncludeErrorLinks bool
	MaxErrorLinks     int

	StaticDir    string
	Manifest     string
	SSRURL       string
	SSREnabled   bool
	SSRTimeout   time.Duration
	TemplatesDir string
	PagesFile    string

	CSRFKey          string
	CSRFKeySSMParam  string
	CSRFCookieSecure bool

	RateLimitRPS   float64
	RateLimitBurst int
	TrustedHops    int
	HSTS           bool

	DrainDelay time.Duration
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.StringVar(&c.ConfigFile, "config", "", "optional YAML config file (keys are flag names)")
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.IntVar(&c.HTTPPort, "http-port", 8080, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "admin listen TCP port (1..65535)")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.BoolVar(&c.OTLPInsecure, "otlp-insecure", false, "plaintext gRPC to the OTLP endpoint")

	fs.StringVar(&c.StaticDir, "static-dir", "static", "directory served under /static/ (build output in build/)")
	fs.StringVar(&c.Manifest, "manifest", "", "manifest path or s3://bucket/key (default {static-dir}/build/manifest.json)")
	fs.StringVar(&c.SSRURL, "ssr-url", "http://localhost:13714", "base url of the SSR service")
	fs.BoolVar(&c.SSREnabled, "ssr-enabled", false, "render full pages through the SSR service")
	fs.DurationVar(&c.SSRTimeout, "ssr-timeout", 2*time.Second, "SSR request timeout")
	fs.StringVar(&c.TemplatesDir, "templates-dir", "", "directory of page templates overriding the built-in ones")
	fs.StringVar(&c.PagesFile, "pages", "", "YAML page table to mount")

	fs.StringVar(&c.CSRFKey, "csrf-key", "", "CSRF signing key (>= 16 bytes); random per process when unset")
	fs.StringVar(&c.CSRFKeySSMParam, "csrf-key-ssm-param", "", "SSM SecureString parameter holding the CSRF signing key")
	fs.BoolVar(&c.CSRFCookieSecure, "csrf-cookie-secure", true, "mark the csrftoken cookie Secure")

	fs.Float64Var(&c.RateLimitRPS, "rate-limit-rps", 20, "per-ip requests per second (0 disables)")
	fs.IntVar(&c.RateLimitBurst, "rate-limit-burst", 60, "per-ip burst")
	fs.IntVar(&c.TrustedHops, "trusted-hops", 0, "reverse proxies in front of the server (X-Forwarded-For depth)")
	fs.BoolVar(&c.HSTS, "hsts", false, "send Strict-Transport-Security")

	fs.DurationVar(&c.DrainDelay, "drain-delay", 60*time.Second, "time readiness fails before listeners stop on shutdown")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := prefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

// LoadFile applies a flat YAML mapping of flag name to value for every flag
// not already set on the CLI or from the environment, so it must run after
// FillFromEnv. Unknown keys are an error.
func LoadFile(fs *flag.FlagSet, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return xerrors.Wrapf(err, "read config file %s", path)
	}
	var values map[string]yaml.Node
	if err := yaml.Unmarshal(data, &values); err != nil {
		return xerrors.Wrapf(err, "parse config file %s", path)
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		if k == "config" {
			continue
		}
		if fs.Lookup(k) == nil {
			errs = append(errs, fmt.Errorf("%s: unknown key %q", path, k))
			continue
		}
		if set[k] {
			continue
		}
		node := values[k]
		if node.Kind != yaml.ScalarNode {
			errs = append(errs, fmt.Errorf("%s: key %q must be a scalar", path, k))
			continue
		}
		if err := fs.Set(k, node.Value); err != nil {
			errs = append(errs, fmt.Errorf("%s: key %q: %w", path, k, err))
		}
	}
	return errors.Join(errs...)
}

// ManifestPath is the configured manifest location, defaulting to the
// build output inside the static directory.
func (c App) ManifestPath() string {
	if c.Manifest != "" {
		return c.Manifest
	}
	return filepath.Join(c.StaticDir, "build", "manifest.json")
}

// ManifestS3 splits an s3://bucket/key manifest location.
func (c App) ManifestS3() (bucket, key string, ok bool) {
	u, err := url.Parse(c.ManifestPath())
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return "", "", false
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", false
	}
	return u.Host, key, true
}

// NeedsAWS reports whether any configured source lives in AWS.
func (c App) NeedsAWS() bool {
	_, _, s3 := c.ManifestS3()
	return s3 || c.CSRFKeySSMParam != ""
}

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	// Ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort))
	}
	if c.AdminPort == c.HTTPPort {
		errs = append(errs, fmt.Errorf("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}

	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}

	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
		if c.PyroTenantID == "" {
			errs = append(errs, fmt.Errorf("PYRO_TENANT required when ENABLE_PYROSCOPE=true"))
		}
	}

	// grpc exporter wants host:port, no scheme
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	if c.IncludeErrorLinks {
		if c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64 {
			errs = append(errs, fmt.Errorf("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks))
		}
	}

	// SSR
	if u, err := url.Parse(c.SSRURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("SSR_URL must be an http(s) URL (got %q)", c.SSRURL))
	}
	if c.SSRTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SSR_TIMEOUT must be positive (got %s)", c.SSRTimeout))
	}

	if strings.TrimSpace(c.StaticDir) == "" {
		errs = append(errs, fmt.Errorf("STATIC_DIR is required"))
	}
	if strings.HasPrefix(c.Manifest, "s3:") {
		if _, _, ok := c.ManifestS3(); !ok {
			errs = append(errs, fmt.Errorf("MANIFEST must be s3://bucket/key (got %q)", c.Manifest))
		}
	}

	if c.CSRFKey != "" && len(c.CSRFKey) < 16 {
		errs = append(errs, fmt.Errorf("CSRF_KEY must be at least 16 bytes"))
	}
	if c.CSRFKey != "" && c.CSRFKeySSMParam != "" {
		errs = append(errs, fmt.Errorf("set only one of CSRF_KEY and CSRF_KEY_SSM_PARAM"))
	}

	if c.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS must be >= 0 (got %v)", c.RateLimitRPS))
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BURST must be >= 1 when rate limiting is on (got %d)", c.RateLimitBurst))
	}
	if c.TrustedHops < 0 || c.TrustedHops > 8 {
		errs = append(errs, fmt.Errorf("TRUSTED_HOPS must be 0..8 (got %d)", c.TrustedHops))
	}
	if c.DrainDelay < 0 {
		errs = append(errs, fmt.Errorf("DRAIN_DELAY must be >= 0 (got %s)", c.DrainDelay))
	}

	return errors.Join(errs...)
}
