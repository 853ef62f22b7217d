package admin

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/medb/medb/internal/config"
	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	requestRateQuery     = `sum(rate(medb_requests_total[5m]))`
	errorRateQuery       = `sum(rate(medb_requests_total{status=~"5.."}[5m])) / sum(rate(medb_requests_total[5m])) * 100`
	latencyP95Query      = `histogram_quantile(0.95, sum(rate(medb_request_duration_seconds_bucket[5m])) by (le))`
	allocationRateQuery  = `sum(rate(medb_sequence_allocations_total[5m]))`
	storeLatencyP95Query = `histogram_quantile(0.95, sum(rate(medb_store_latency_seconds_bucket[5m])) by (le, operation))`
	storeThroughputQuery = `sum(rate(medb_store_latency_seconds_count[5m])) by (operation)`

	prometheusTimeout = 5 * time.Second
	// Consecutive failed queries before the ops charts stop calling Prometheus
	// for breakerOpenFor.
	breakerTrip    = 3
	breakerOpenFor = 30 * time.Second
	defaultWindow  = time.Hour
	defaultStep    = time.Minute
)

var errPrometheusNotConfigured = errors.New("prometheus not configured")

// rangeQuerier is the slice of the Prometheus HTTP API the ops charts use.
type rangeQuerier interface {
	QueryRange(ctx context.Context, query string, r promv1.Range, opts ...promv1.Option) (model.Value, promv1.Warnings, error)
}

// opsHandler serves operational time series by proxying range queries to
// the Prometheus server that scrapes this service.
type opsHandler struct {
	prom    rangeQuerier
	breaker *gobreaker.CircuitBreaker[model.Value]
	now     func() time.Time
}

type timeSeriesPoint struct {
	Timestamp string   `json:"timestamp"`
	Value     *float64 `json:"value"`
}

type timeSeriesResponse struct {
	Metric string            `json:"metric"`
	Unit   string            `json:"unit"`
	Data   []timeSeriesPoint `json:"data"`
}

type labeledSeries struct {
	Label string            `json:"label"`
	Data  []timeSeriesPoint `json:"data"`
}

type multiSeriesResponse struct {
	Metric string          `json:"metric"`
	Unit   string          `json:"unit"`
	Series []labeledSeries `json:"series"`
}

func newOpsHandler(cfg *config.Config) *opsHandler {
	h := &opsHandler{now: time.Now, breaker: newBreaker()}
	if cfg == nil || strings.TrimSpace(cfg.PrometheusURL) == "" {
		return h
	}
	client, err := api.NewClient(api.Config{Address: strings.TrimSpace(cfg.PrometheusURL)})
	if err != nil {
		log.Warn("Admin ops charts disabled: invalid Prometheus URL", "url", cfg.PrometheusURL, "err", err)
		return h
	}
	h.prom = promv1.NewAPI(client)
	return h
}

func newBreaker() *gobreaker.CircuitBreaker[model.Value] {
	return gobreaker.NewCircuitBreaker[model.Value](gobreaker.Settings{
		Name:    "prometheus",
		Timeout: breakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
}

func (h *opsHandler) rangeHandler(promQL, metric, unit string) gin.HandlerFunc {
	return func(c *gin.Context) {
		matrix, err := h.query(c, promQL)
		if err != nil {
			writePrometheusError(c, err)
			return
		}
		resp := timeSeriesResponse{Metric: metric, Unit: unit, Data: []timeSeriesPoint{}}
		if len(matrix) > 0 {
			resp.Data = toPoints(matrix[0].Values)
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (h *opsHandler) multiSeriesHandler(promQL, metric, unit string, labelKey model.LabelName) gin.HandlerFunc {
	return func(c *gin.Context) {
		matrix, err := h.query(c, promQL)
		if err != nil {
			writePrometheusError(c, err)
			return
		}
		resp := multiSeriesResponse{Metric: metric, Unit: unit, Series: []labeledSeries{}}
		for _, stream := range matrix {
			label := strings.TrimSpace(string(stream.Metric[labelKey]))
			if label == "" {
				label = "unknown"
			}
			resp.Series = append(resp.Series, labeledSeries{Label: label, Data: toPoints(stream.Values)})
		}
		c.JSON(http.StatusOK, resp)
	}
}

// resolveRange reads start, end (RFC 3339) and step (Go duration) from the
// query string. Missing values default to the last hour at one minute steps.
func (h *opsHandler) resolveRange(c *gin.Context) (promv1.Range, error) {
	now := h.now().UTC()
	r := promv1.Range{Start: now.Add(-defaultWindow), End: now, Step: defaultStep}
	if v := strings.TrimSpace(c.Query("start")); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return r, fmt.Errorf("invalid start: %w", err)
		}
		r.Start = t
	}
	if v := strings.TrimSpace(c.Query("end")); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return r, fmt.Errorf("invalid end: %w", err)
		}
		r.End = t
	}
	if v := strings.TrimSpace(c.Query("step")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return r, fmt.Errorf("invalid step %q", v)
		}
		r.Step = d
	}
	if !r.End.After(r.Start) {
		return r, errors.New("end must be after start")
	}
	return r, nil
}

type rangeError struct{ err error }

func (e *rangeError) Error() string { return e.err.Error() }

func (h *opsHandler) query(c *gin.Context, promQL string) (model.Matrix, error) {
	if h.prom == nil {
		return nil, errPrometheusNotConfigured
	}
	r, err := h.resolveRange(c)
	if err != nil {
		return nil, &rangeError{err: err}
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), prometheusTimeout)
	defer cancel()

	value, err := h.breaker.Execute(func() (model.Value, error) {
		value, warnings, err := h.prom.QueryRange(ctx, promQL, r)
		if len(warnings) > 0 {
			log.Debug("Prometheus query warnings", "query", promQL, "warnings", warnings)
		}
		return value, err
	})
	if err != nil {
		return nil, fmt.Errorf("prometheus query: %w", err)
	}
	matrix, ok := value.(model.Matrix)
	if !ok {
		return nil, fmt.Errorf("prometheus returned %s, expected matrix", value.Type())
	}
	return matrix, nil
}

func toPoints(values []model.SamplePair) []timeSeriesPoint {
	out := make([]timeSeriesPoint, 0, len(values))
	for _, v := range values {
		p := timeSeriesPoint{Timestamp: v.Timestamp.Time().UTC().Format(time.RFC3339)}
		if f := float64(v.Value); !math.IsNaN(f) && !math.IsInf(f, 0) {
			p.Value = &f
		}
		out = append(out, p)
	}
	return out
}

func writePrometheusError(c *gin.Context, err error) {
	var badRange *rangeError
	switch {
	case errors.Is(err, errPrometheusNotConfigured):
		c.JSON(http.StatusNotImplemented, gin.H{
			"error": "Prometheus not configured",
			"code":  "prometheus_not_configured",
		})
	case errors.As(err, &badRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": badRange.Error()})
	default:
		log.Warn("Prometheus query failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Prometheus unavailable",
			"code":    "prometheus_unavailable",
			"details": gin.H{"message": err.Error()},
		})
	}
}
