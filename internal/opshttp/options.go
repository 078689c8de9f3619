package opshttp

import (
	"net/http"

	"github.com/keithlinneman/nadi-go/internal/health"
)

type Options struct {
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Probe
	Readiness   health.Probe
	// OnPanic runs after a recovered handler panic, e.g. to bump a counter.
	OnPanic func()
}
