package cfg

import (
	"flag"
	"fmt"
	"strings"
	"testing"
	"time"
)

func wantErrContains(t *testing.T, err error, sub string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error containing %q, got <nil>", sub)
	}
	if !strings.Contains(err.Error(), sub) {
		t.Fatalf("error %q does not contain %q", err.Error(), sub)
	}
}

// newTestFlags registers flags on a fresh FlagSet and parses args, isolating
// each test from flag.CommandLine.
func newTestFlags(t *testing.T, args []string) (*flag.FlagSet, *App) {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c := &App{}
	Register(fs, c)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	return fs, c
}

func newTestConfig(t *testing.T, args []string) App {
	t.Helper()
	_, c := newTestFlags(t, args)
	return *c
}

func TestRegister_Defaults(t *testing.T) {
	c := newTestConfig(t, nil)

	if c.HTTPPort != 8000 {
		t.Errorf("HTTPPort: want 8000, got %d", c.HTTPPort)
	}
	if c.AdminPort != 9000 {
		t.Errorf("AdminPort: want 9000, got %d", c.AdminPort)
	}
	if !c.LogJSON {
		t.Error("LogJSON: want true")
	}
	if c.LogLevel != "info" {
		t.Errorf("LogLevel: want info, got %q", c.LogLevel)
	}
	if c.DrainDelay != 5*time.Second {
		t.Errorf("DrainDelay: want 5s, got %s", c.DrainDelay)
	}
	if c.RateLimitRPS != 20 || c.RateLimitBurst != 60 {
		t.Errorf("rate limit: want 20/60, got %v/%d", c.RateLimitRPS, c.RateLimitBurst)
	}
	if c.MongoURI != "" {
		t.Errorf("MongoURI: want empty, got %q", c.MongoURI)
	}
	if c.MongoDatabase != "dsa_database" || c.MongoCollection != "modules" {
		t.Errorf("mongo names: got %q/%q", c.MongoDatabase, c.MongoCollection)
	}
	if c.MongoReadiness {
		t.Error("MongoReadiness: want false")
	}
	if c.EnableTracing || c.EnablePyroscope {
		t.Error("tracing and pyroscope should be off by default")
	}
	if err := Validate(c); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestRegister_CLIOverrides(t *testing.T) {
	c := newTestConfig(t, []string{
		"-http-port=8081",
		"-admin-port=0",
		"-log-json=false",
		"-drain-delay=250ms",
		"-rate-limit-rps=0",
		"-trusted-proxy-hops=1",
		"-mongo-uri=mongodb://db:27017",
		"-mongo-readiness=true",
	})
	if c.HTTPPort != 8081 || c.AdminPort != 0 {
		t.Errorf("ports: got %d/%d", c.HTTPPort, c.AdminPort)
	}
	if c.LogJSON {
		t.Error("LogJSON: want false")
	}
	if c.DrainDelay != 250*time.Millisecond {
		t.Errorf("DrainDelay: got %s", c.DrainDelay)
	}
	if c.RateLimitRPS != 0 || c.TrustedProxyHops != 1 {
		t.Errorf("rate limit/hops: got %v/%d", c.RateLimitRPS, c.TrustedProxyHops)
	}
	if c.MongoURI != "mongodb://db:27017" || !c.MongoReadiness {
		t.Errorf("mongo: got %q/%v", c.MongoURI, c.MongoReadiness)
	}
}

// FillFromEnv

func TestFillFromEnv(t *testing.T) {
	pfx := "TESTCFG_"
	t.Setenv(pfx+"HTTP_PORT", "8088")
	t.Setenv(pfx+"LOG_LEVEL", "debug")
	t.Setenv(pfx+"DRAIN_DELAY", "1s")
	t.Setenv(pfx+"MONGO_DATABASE", "dsa_test")

	fs, c := newTestFlags(t, nil)
	FillFromEnv(fs, pfx, nil)

	if c.HTTPPort != 8088 {
		t.Errorf("HTTPPort: want 8088, got %d", c.HTTPPort)
	}
	if c.LogLevel != "debug" {
		t.Errorf("LogLevel: want debug, got %q", c.LogLevel)
	}
	if c.DrainDelay != time.Second {
		t.Errorf("DrainDelay: want 1s, got %s", c.DrainDelay)
	}
	if c.MongoDatabase != "dsa_test" {
		t.Errorf("MongoDatabase: got %q", c.MongoDatabase)
	}
}

func TestFillFromEnv_CLITakesPrecedence(t *testing.T) {
	pfx := "TESTCFG2_"
	t.Setenv(pfx+"HTTP_PORT", "7777")
	t.Setenv(pfx+"LOG_LEVEL", "warn")

	fs, c := newTestFlags(t, []string{"-http-port=9090", "-log-level=debug"})

	var msgs []string
	FillFromEnv(fs, pfx, func(format string, args ...any) {
		msgs = append(msgs, fmt.Sprintf(format, args...))
	})

	if c.HTTPPort != 9090 || c.LogLevel != "debug" {
		t.Errorf("cli should win: got %d/%q", c.HTTPPort, c.LogLevel)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 override messages, got %v", msgs)
	}
	for _, m := range msgs {
		if !strings.Contains(m, "overrides env") {
			t.Errorf("unexpected message: %s", m)
		}
	}
}

func TestFillFromEnv_InvalidEnvIgnored(t *testing.T) {
	pfx := "TESTCFG3_"
	t.Setenv(pfx+"HTTP_PORT", "not-a-number")

	fs, c := newTestFlags(t, nil)
	var msgs []string
	FillFromEnv(fs, pfx, func(format string, args ...any) {
		msgs = append(msgs, fmt.Sprintf(format, args...))
	})

	if c.HTTPPort != 8000 {
		t.Errorf("HTTPPort: want 8000 (default), got %d", c.HTTPPort)
	}
	if len(msgs) != 1 || !strings.Contains(msgs[0], "ignoring invalid env") {
		t.Fatalf("unexpected messages: %v", msgs)
	}
}

// FillFromLegacyEnv

func TestFillFromLegacyEnv_Port(t *testing.T) {
	t.Setenv("PORT", "10000")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")

	fs, c := newTestFlags(t, nil)
	if err := FillFromLegacyEnv(fs, LegacyEnv); err != nil {
		t.Fatalf("FillFromLegacyEnv: %v", err)
	}
	if c.HTTPPort != 10000 {
		t.Errorf("HTTPPort: want 10000, got %d", c.HTTPPort)
	}
	if c.MongoURI != "mongodb://localhost:27017" {
		t.Errorf("MongoURI: got %q", c.MongoURI)
	}
}

func TestFillFromLegacyEnv_UnparseablePortFails(t *testing.T) {
	for _, v := range []string{"eighty", "80.5", ""} {
		t.Run(fmt.Sprintf("%q", v), func(t *testing.T) {
			t.Setenv("PORT", v)
			fs, c := newTestFlags(t, nil)
			err := FillFromLegacyEnv(fs, LegacyEnv)
			wantErrContains(t, err, "invalid PORT")
			if c.HTTPPort != 8000 {
				t.Errorf("HTTPPort changed to %d on error", c.HTTPPort)
			}
		})
	}
}

func TestFillFromLegacyEnv_Precedence(t *testing.T) {
	pfx := "TESTCFG4_"
	t.Setenv("PORT", "not-used")
	t.Setenv(pfx+"HTTP_PORT", "8089")

	fs, c := newTestFlags(t, nil)
	FillFromEnv(fs, pfx, nil)
	if err := FillFromLegacyEnv(fs, LegacyEnv); err != nil {
		t.Fatalf("prefixed env should shadow PORT: %v", err)
	}
	if c.HTTPPort != 8089 {
		t.Errorf("HTTPPort: want 8089, got %d", c.HTTPPort)
	}

	fs, c = newTestFlags(t, []string{"-http-port=8090"})
	if err := FillFromLegacyEnv(fs, LegacyEnv); err != nil {
		t.Fatalf("cli should shadow PORT: %v", err)
	}
	if c.HTTPPort != 8090 {
		t.Errorf("HTTPPort: want 8090, got %d", c.HTTPPort)
	}
}

func TestYieldAdminPort_LegacyPortTakesOpsDefault(t *testing.T) {
	t.Setenv("PORT", "9000")

	fs, c := newTestFlags(t, nil)
	FillFromEnv(fs, "TESTCFG5_", nil)
	if err := FillFromLegacyEnv(fs, LegacyEnv); err != nil {
		t.Fatalf("FillFromLegacyEnv: %v", err)
	}
	if !YieldAdminPort(fs, c) {
		t.Fatal("ops listener should yield the default port to PORT")
	}
	if c.HTTPPort != 9000 || c.AdminPort != 0 {
		t.Fatalf("ports = %d/%d, want 9000/0", c.HTTPPort, c.AdminPort)
	}
	if err := Validate(*c); err != nil {
		t.Fatalf("PORT=9000 should validate: %v", err)
	}
}

func TestYieldAdminPort_ExplicitClashStillFails(t *testing.T) {
	fs, c := newTestFlags(t, []string{"-http-port=9000", "-admin-port=9000"})
	if YieldAdminPort(fs, c) {
		t.Fatal("explicit admin-port must not be overridden")
	}
	wantErrContains(t, Validate(*c), "must differ")

	pfx := "TESTCFG6_"
	t.Setenv("PORT", "9100")
	t.Setenv(pfx+"ADMIN_PORT", "9100")
	fs, c = newTestFlags(t, nil)
	FillFromEnv(fs, pfx, nil)
	if err := FillFromLegacyEnv(fs, LegacyEnv); err != nil {
		t.Fatalf("FillFromLegacyEnv: %v", err)
	}
	if YieldAdminPort(fs, c) {
		t.Fatal("admin port from env counts as explicit")
	}
	wantErrContains(t, Validate(*c), "must differ")
}

func TestYieldAdminPort_NoClash(t *testing.T) {
	fs, c := newTestFlags(t, nil)
	if YieldAdminPort(fs, c) || c.AdminPort != 9000 {
		t.Fatalf("no clash: AdminPort = %d", c.AdminPort)
	}

	fs, c = newTestFlags(t, []string{"-admin-port=0"})
	if YieldAdminPort(fs, c) {
		t.Fatal("disabled ops listener has nothing to yield")
	}
}

func TestFillFromLegacyEnv_UnknownFlag(t *testing.T) {
	t.Setenv("TESTCFG_LEGACY", "x")
	fs, _ := newTestFlags(t, nil)
	err := FillFromLegacyEnv(fs, map[string]string{"TESTCFG_LEGACY": "no-such-flag"})
	wantErrContains(t, err, "unknown flag")
}

// Validate

func TestValidate_OK(t *testing.T) {
	c := newTestConfig(t, []string{
		"-enable-pyroscope=true",
		"-pyro-server=https://pyro:4040",
		"-pyro-tenant=test-tenant",
		"-enable-tracing=true",
		"-otlp-endpoint=otel:4317",
		"-trace-sample=0.2",
		"-mongo-uri=mongodb+srv://cluster.example.net",
		"-mongo-readiness=true",
	})
	if err := Validate(c); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_InvalidCombined(t *testing.T) {
	c := newTestConfig(t, []string{
		"-http-port=0",
		"-admin-port=70000",
		"-log-level=nope",
		"-stacktrace-level=alsonope",
		"-trace-sample=2.0",
		"-enable-pyroscope=true",
		"-pyro-server=not-a-url",
		"-enable-tracing=true",
		"-otlp-endpoint=otel",
		"-max-error-links=0",
		"-drain-delay=-1s",
		"-rate-limit-rps=-1",
		"-trusted-proxy-hops=9",
		"-mongo-uri=postgres://user:secret@db",
		"-mongo-database=",
	})

	err := Validate(c)
	wantErrContains(t, err, "invalid HTTP_PORT")
	wantErrContains(t, err, "invalid ADMIN_PORT")
	wantErrContains(t, err, "invalid LOG_LEVEL")
	wantErrContains(t, err, "invalid STACKTRACE_LEVEL")
	wantErrContains(t, err, "invalid TRACE_SAMPLE")
	wantErrContains(t, err, "PYRO_SERVER must be a URL")
	wantErrContains(t, err, "PYRO_TENANT required")
	wantErrContains(t, err, "OTLP_ENDPOINT must be host:port")
	wantErrContains(t, err, "MAX_ERROR_LINKS")
	wantErrContains(t, err, "invalid DRAIN_DELAY")
	wantErrContains(t, err, "invalid RATE_LIMIT_RPS")
	wantErrContains(t, err, "invalid TRUSTED_PROXY_HOPS")
	wantErrContains(t, err, "MONGO_URI must use")
	wantErrContains(t, err, "MONGO_DATABASE")
	if strings.Contains(err.Error(), "secret") {
		t.Fatal("validation error leaked mongo credentials")
	}
}

func TestValidate_PortsMustDiffer(t *testing.T) {
	c := newTestConfig(t, []string{"-http-port=9000", "-admin-port=9000"})
	wantErrContains(t, Validate(c), "must differ")
}

func TestValidate_MongoReadinessNeedsURI(t *testing.T) {
	c := newTestConfig(t, []string{"-mongo-readiness=true"})
	wantErrContains(t, Validate(c), "MONGO_URI required")
}

func TestValidate_BurstRequiredWhenLimiting(t *testing.T) {
	c := newTestConfig(t, []string{"-rate-limit-burst=0"})
	wantErrContains(t, Validate(c), "RATE_LIMIT_BURST")

	c = newTestConfig(t, []string{"-rate-limit-rps=0", "-rate-limit-burst=0"})
	if err := Validate(c); err != nil {
		t.Fatalf("burst is irrelevant when limiting is off: %v", err)
	}
}
