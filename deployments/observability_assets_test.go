package deployments

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"
)

func TestGrafanaDashboardJSONIsValid(t *testing.T) {
	root := repoRoot(t)
	path := filepath.Join(root, "deployments", "observability", "grafana", "sqlassist_dashboard.json")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read dashboard file: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(content, &decoded); err != nil {
		t.Fatalf("dashboard JSON parse error: %v", err)
	}

	title, _ := decoded["title"].(string)
	if strings.TrimSpace(title) == "" {
		t.Fatal("dashboard title is required")
	}
	panels, ok := decoded["panels"].([]any)
	if !ok || len(panels) == 0 {
		t.Fatal("dashboard must include at least one panel")
	}
}

func TestPrometheusRulesContainExpectedAlerts(t *testing.T) {
	root := repoRoot(t)
	path := filepath.Join(root, "deployments", "observability", "prometheus", "sqlassist_rules.yaml")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read rules file: %v", err)
	}
	text := string(content)

	requiredAlerts := []string{
		"SQLAssistLLMLatencyP95High",
		"SQLAssistLLMErrorRatioHigh",
		"SQLAssistCredentialMissing",
		"SQLAssistSchemaFallbackInUse",
		"SQLAssistExecErrorRatioHigh",
		"SQLAssistHTTPErrorRateHigh",
	}
	for _, alertName := range requiredAlerts {
		if !strings.Contains(text, "alert: "+alertName) {
			t.Fatalf("rules missing alert %q", alertName)
		}
	}

	requiredMetrics := []string{
		"sqlassist:slo_llm_latency_ms_p95",
		"sqlassist:slo_llm_error_ratio_15m",
		"sqlassist:slo_config_errors_15m",
		"sqlassist:slo_schema_fallbacks_15m",
		"sqlassist:slo_exec_error_ratio_15m",
		"sqlassist:slo_http_error_rate_5m",
	}
	for _, metricName := range requiredMetrics {
		matched, err := regexp.MatchString(regexp.QuoteMeta(metricName), text)
		if err != nil {
			t.Fatalf("regexp error for metric %q: %v", metricName, err)
		}
		if !matched {
			t.Fatalf("rules missing metric reference %q", metricName)
		}
	}
}

func TestPrometheusScrapeExampleContainsMetricsPathAndRules(t *testing.T) {
	root := repoRoot(t)
	path := filepath.Join(root, "deployments", "observability", "prometheus", "prometheus-scrape.example.yaml")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read scrape example: %v", err)
	}
	text := string(content)

	if !strings.Contains(text, "metrics_path: /v1/metrics") {
		t.Fatal("scrape example missing metrics path")
	}
	if !strings.Contains(text, "sqlassist_rules.yaml") {
		t.Fatal("scrape example missing alert rule file reference")
	}
	if !strings.Contains(text, "sqlassist_recording_rules.yaml") {
		t.Fatal("scrape example missing recording rule file reference")
	}
	if !strings.Contains(text, "job_name: sqlassist-api") {
		t.Fatal("scrape example missing sqlassist-api job")
	}
}

// Recording rules may only reference series the binaries actually export.
func TestRecordingRulesReferenceExportedMetrics(t *testing.T) {
	root := repoRoot(t)
	path := filepath.Join(root, "deployments", "observability", "prometheus", "sqlassist_recording_rules.yaml")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read recording rules file: %v", err)
	}
	text := string(content)

	requiredRecords := []string{
		"sqlassist:slo_llm_latency_ms_p95",
		"sqlassist:slo_turn_latency_ms_p95",
		"sqlassist:slo_llm_error_ratio_15m",
		"sqlassist:slo_exec_error_ratio_15m",
		"sqlassist:slo_config_errors_15m",
		"sqlassist:slo_schema_fallbacks_15m",
		"sqlassist:slo_gate_refusals_1h",
		"sqlassist:slo_http_error_rate_5m",
	}
	for _, recordName := range requiredRecords {
		if !strings.Contains(text, "record: "+recordName) {
			t.Fatalf("recording rules missing record %q", recordName)
		}
	}

	exported := map[string]bool{
		"sqlassist_turns_total":                   true,
		"sqlassist_gate_refusals_total":           true,
		"sqlassist_statements_total":              true,
		"sqlassist_schema_fallbacks_total":        true,
		"sqlassist_llm_latency_ms_bucket":         true,
		"sqlassist_turn_latency_ms_bucket":        true,
		"sqlassist_http_requests_total":           true,
		"sqlassist_http_request_duration_seconds": true,
	}
	for _, name := range regexp.MustCompile(`\bsqlassist_[a-z_]+\b`).FindAllString(text, -1) {
		if !exported[name] {
			t.Fatalf("recording rules reference unknown series %q", name)
		}
	}
}

func repoRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), ".."))
}
