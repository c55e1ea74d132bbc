package opshttp

import (
	"net/http"

	"github.com/keithlinneman/dsa-learning-api/internal/health"
)

type Options struct {
	// Port 0 means DefaultPort. Callers skip Start entirely to disable.
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Probe
	Readiness   health.Probe
	// Catalog serves the /-/catalog summary when set.
	Catalog      http.Handler
	UseRecoverMW bool
	OnPanic      func()
}
