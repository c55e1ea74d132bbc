package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/keithlinneman/dsa-learning-api/internal/log"
)

// EnvPrefix namespaces environment overrides: flag "log-level" reads DSA_LOG_LEVEL.
const EnvPrefix = "DSA_"

// LegacyEnv maps the unprefixed variables the service has always honored to
// their flags. Unlike prefixed variables, a bad value here is a startup error.
var LegacyEnv = map[string]string{
	"PORT":      "http-port",
	"MONGO_URI": "mongo-uri",
}

type App struct {
	LogJSON           bool
	LogLevel          string
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int

	HTTPPort    int
	AdminPort   int
	DrainDelay  time.Duration
	EnablePprof bool

	EnableTracing   bool
	OTLPEndpoint    string
	TraceSample     float64
	EnablePyroscope bool
	PyroServer      string
	PyroTenantID    string

	RateLimitRPS     float64
	RateLimitBurst   int
	TrustedProxyHops int

	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	MongoReadiness  bool
}

// Register binds all config fields to fs with defaults inline.
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")

	fs.IntVar(&c.HTTPPort, "http-port", 8000, "public API listen TCP port (1..65535), also read from PORT")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "ops listen TCP port (1..65535, 0 disables)")
	fs.DurationVar(&c.DrainDelay, "drain-delay", 5*time.Second, "time to fail readiness before closing listeners on shutdown")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "Enable pprof profiling (on admin port only)")

	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")

	fs.Float64Var(&c.RateLimitRPS, "rate-limit-rps", 20, "per-ip request refill rate, 0 disables rate limiting")
	fs.IntVar(&c.RateLimitBurst, "rate-limit-burst", 60, "per-ip burst size")
	fs.IntVar(&c.TrustedProxyHops, "trusted-proxy-hops", 0, "number of trusted reverse proxies in X-Forwarded-For (0..8)")

	fs.StringVar(&c.MongoURI, "mongo-uri", "", "MongoDB connection string for the external store client, also read from MONGO_URI")
	fs.StringVar(&c.MongoDatabase, "mongo-database", "dsa_database", "MongoDB database name")
	fs.StringVar(&c.MongoCollection, "mongo-collection", "modules", "MongoDB collection name")
	fs.BoolVar(&c.MongoReadiness, "mongo-readiness", false, "include a MongoDB ping in ops readiness")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default. Invalid values are reported via
// logf and ignored.
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
			_ = fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

// FillFromLegacyEnv applies aliases (env var -> flag name) to flags that were
// not already set by the CLI or FillFromEnv. A value that does not parse is
// returned as an error rather than falling back to the default.
func FillFromLegacyEnv(fs *flag.FlagSet, aliases map[string]string) error {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var errs []error
	for env, name := range aliases {
		val, ok := os.LookupEnv(env)
		if !ok || set[name] {
			continue
		}
		f := fs.Lookup(name)
		if f == nil {
			errs = append(errs, fmt.Errorf("env %s maps to unknown flag -%s", env, name))
			continue
		}
		prev := f.Value.String()
		if err := fs.Set(name, strings.TrimSpace(val)); err != nil {
			_ = fs.Set(name, prev)
			errs = append(errs, fmt.Errorf("invalid %s=%q: %w", env, val, err))
		}
	}
	return errors.Join(errs...)
}

// YieldAdminPort disables the ops listener when it would collide with the
// public port and admin-port was left at its default. PORT may name any
// port, including the ops default. It reports whether the listener was
// disabled; a collision the operator asked for is left to Validate.
func YieldAdminPort(fs *flag.FlagSet, c *App) bool {
	if c.AdminPort == 0 || c.AdminPort != c.HTTPPort {
		return false
	}
	explicit := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "admin-port" {
			explicit = true
		}
	})
	if explicit {
		return false
	}
	c.AdminPort = 0
	return true
}

// Validate checks ranges and formats and reports every invalid field.
func Validate(c App) error {
	var errs []error

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}
	if c.AdminPort < 0 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 0..65535)", c.AdminPort))
	}
	if c.AdminPort != 0 && c.AdminPort == c.HTTPPort {
		errs = append(errs, fmt.Errorf("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort))
	}
	if c.DrainDelay < 0 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_DELAY %s (must be >= 0)", c.DrainDelay))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}
	if c.IncludeErrorLinks && (c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64) {
		errs = append(errs, fmt.Errorf("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks))
	}

	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}
	// grpc exporter wants host:port, no scheme
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
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

	if c.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("invalid RATE_LIMIT_RPS %.2f (must be >= 0)", c.RateLimitRPS))
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		errs = append(errs, fmt.Errorf("invalid RATE_LIMIT_BURST %d (must be >= 1 when rate limiting is on)", c.RateLimitBurst))
	}
	if c.TrustedProxyHops < 0 || c.TrustedProxyHops > 8 {
		errs = append(errs, fmt.Errorf("invalid TRUSTED_PROXY_HOPS %d (must be 0..8)", c.TrustedProxyHops))
	}

	if c.MongoURI != "" && !strings.HasPrefix(c.MongoURI, "mongodb://") && !strings.HasPrefix(c.MongoURI, "mongodb+srv://") {
		// never echo the uri, it may carry credentials
		errs = append(errs, fmt.Errorf("MONGO_URI must use the mongodb:// or mongodb+srv:// scheme"))
	}
	if c.MongoReadiness && c.MongoURI == "" {
		errs = append(errs, fmt.Errorf("MONGO_URI required when MONGO_READINESS=true"))
	}
	if c.MongoDatabase == "" {
		errs = append(errs, fmt.Errorf("MONGO_DATABASE must not be empty"))
	}
	if c.MongoCollection == "" {
		errs = append(errs, fmt.Errorf("MONGO_COLLECTION must not be empty"))
	}

	return errors.Join(errs...)
}
