// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 予約ストア、永続化コーデック、要約アダプタから利用する。
type MetricsCollector interface {
	RecordToggle(outcome string)
	RecordDecodeFailure(source string)
	RecordPersistFailure(target string)
	RecordSummaryRequest(outcome string)
	RecordSummaryLatency(duration time.Duration)
	SetBookedDays(count int)
}

// トグル結果のラベル値
const (
	ToggleClaimed    = "claimed"
	ToggleReleased   = "released"
	ToggleReassigned = "reassigned"
	ToggleRejected   = "rejected"
)

// 要約リクエスト結果のラベル値
const (
	SummarySuccess = "success"
	SummaryError   = "error"
	SummaryStale   = "stale"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	toggles         *prometheus.CounterVec
	decodeFailures  *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	summaryRequests *prometheus.CounterVec
	summaryLatency  prometheus.Histogram
	bookedDays      prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catsit_toggles_total",
			Help: "日付トグル操作の結果別の合計数",
		}, []string{"outcome"}),
		decodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catsit_decode_failures_total",
			Help: "読み込み元別の予約データ復元失敗の合計数",
		}, []string{"source"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catsit_persist_failures_total",
			Help: "書き込み先別の予約データ保存失敗の合計数",
		}, []string{"target"}),
		summaryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catsit_summary_requests_total",
			Help: "結果別の要約リクエストの合計数",
		}, []string{"outcome"}),
		summaryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "catsit_summary_latency_seconds",
			Help:    "要約生成のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		bookedDays: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catsit_booked_days",
			Help: "現在予約済みの日数",
		}),
	}

	reg.MustRegister(
		c.toggles,
		c.decodeFailures,
		c.persistFailures,
		c.summaryRequests,
		c.summaryLatency,
		c.bookedDays,
	)

	return c
}

// RecordToggle はトグル操作の結果を記録する。
func (c *Collector) RecordToggle(outcome string) {
	c.toggles.WithLabelValues(outcome).Inc()
}

// RecordDecodeFailure は復元失敗を記録する。sourceは "url" または "local"。
func (c *Collector) RecordDecodeFailure(source string) {
	c.decodeFailures.WithLabelValues(source).Inc()
}

// RecordPersistFailure は保存失敗を記録する。targetは "url" または "local"。
func (c *Collector) RecordPersistFailure(target string) {
	c.persistFailures.WithLabelValues(target).Inc()
}

// RecordSummaryRequest は要約リクエストの結果を記録する。
func (c *Collector) RecordSummaryRequest(outcome string) {
	c.summaryRequests.WithLabelValues(outcome).Inc()
}

// RecordSummaryLatency は要約生成のレイテンシを記録する。
func (c *Collector) RecordSummaryLatency(duration time.Duration) {
	c.summaryLatency.Observe(duration.Seconds())
}

// SetBookedDays は予約済み日数を設定する。
func (c *Collector) SetBookedDays(count int) {
	c.bookedDays.Set(float64(count))
}

// NopCollector は何も記録しないMetricsCollector実装。
type NopCollector struct{}

func (NopCollector) RecordToggle(string)                {}
func (NopCollector) RecordDecodeFailure(string)         {}
func (NopCollector) RecordPersistFailure(string)        {}
func (NopCollector) RecordSummaryRequest(string)        {}
func (NopCollector) RecordSummaryLatency(time.Duration) {}
func (NopCollector) SetBookedDays(int)                  {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
