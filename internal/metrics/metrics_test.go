package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/keithlinneman/nadi-go/internal/version"
)

// family returns the gathered family called name, or nil.
func family(t *testing.T, m *ServerMetrics, name string) *dto.MetricFamily {
	t.Helper()
	families, err := m.reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// counterWith sums the counters in name whose label matches value.
func counterWith(t *testing.T, m *ServerMetrics, name, label, value string) float64 {
	t.Helper()
	f := family(t, m, name)
	if f == nil {
		return 0
	}
	var sum float64
	for _, metric := range f.GetMetric() {
		if label == "" || labelValue(metric, label) == value {
			sum += metric.GetCounter().GetValue()
		}
	}
	return sum
}

func TestNew_Scrape(t *testing.T) {
	m := New()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{
		"http_inflight_requests",
		"http_panic_total",
		"http_requests_rate_limited_total",
		"nadi_ssr_duration_seconds",
		"nadi_manifest_entries",
		"nadi_csrf_rejected_total",
		"go_goroutines",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metric %q missing from scrape", name)
		}
	}
}

func TestIncRender(t *testing.T) {
	m := New()
	m.IncRender("json")
	m.IncRender("json")
	m.IncRender("html")

	if got := counterWith(t, m, "nadi_renders_total", "kind", "json"); got != 2 {
		t.Fatalf("json renders = %v, want 2", got)
	}
	if got := counterWith(t, m, "nadi_renders_total", "kind", "html"); got != 1 {
		t.Fatalf("html renders = %v, want 1", got)
	}
}

func TestObserveSSR(t *testing.T) {
	m := New()
	m.ObserveSSR("ok", 120*time.Millisecond)
	m.ObserveSSR("error", 2*time.Second)
	m.ObserveSSR("disabled", 0)

	if got := counterWith(t, m, "nadi_ssr_requests_total", "result", "ok"); got != 1 {
		t.Fatalf("ok = %v", got)
	}
	if got := counterWith(t, m, "nadi_ssr_requests_total", "result", "disabled"); got != 1 {
		t.Fatalf("disabled = %v", got)
	}
	h := family(t, m, "nadi_ssr_duration_seconds").GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Fatalf("duration samples = %d, want 2 (no sample for disabled)", h.GetSampleCount())
	}
}

func TestSetManifest_ReplacesVersion(t *testing.T) {
	m := New()
	m.SetManifest(3, "dev")
	m.SetManifest(5, "d41d8cd98f00b204e9800998ecf8427e")

	if got := family(t, m, "nadi_manifest_entries").GetMetric()[0].GetGauge().GetValue(); got != 5 {
		t.Fatalf("entries = %v", got)
	}
	info := family(t, m, "nadi_manifest_info").GetMetric()
	if len(info) != 1 || labelValue(info[0], "version") != "d41d8cd98f00b204e9800998ecf8427e" {
		t.Fatalf("manifest_info = %v", info)
	}
}

func TestSetBuildInfo(t *testing.T) {
	m := New()
	dirty := true
	m.SetBuildInfo(version.Info{AppName: "nadi-server", Version: "1.2.3", Commit: "abc", VCSDirty: &dirty, Protocol: "0.2.0"})

	metrics := family(t, m, "build_info").GetMetric()
	if len(metrics) != 1 {
		t.Fatalf("got %d build_info series", len(metrics))
	}
	for k, want := range map[string]string{"app": "nadi-server", "version": "1.2.3", "vcs_dirty": "true", "nadi_protocol": "0.2.0"} {
		if got := labelValue(metrics[0], k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
}

func TestSimpleCounters(t *testing.T) {
	m := New()
	m.IncHttpPanic()
	m.IncRateLimitDenied()
	m.IncRateLimitDenied()
	m.IncCSRFRejected()
	m.SetProfilingActive(true)

	if got := counterWith(t, m, "http_panic_total", "", ""); got != 1 {
		t.Errorf("panics = %v", got)
	}
	if got := counterWith(t, m, "http_requests_rate_limited_total", "", ""); got != 2 {
		t.Errorf("rate limited = %v", got)
	}
	if got := counterWith(t, m, "nadi_csrf_rejected_total", "", ""); got != 1 {
		t.Errorf("csrf rejected = %v", got)
	}
	if got := family(t, m, "profiling_active").GetMetric()[0].GetGauge().GetValue(); got != 1 {
		t.Errorf("profiling_active = %v", got)
	}
}
