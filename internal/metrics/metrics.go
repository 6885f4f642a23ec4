// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// アクセサや楽観的編集コントローラから利用する。
type MetricsCollector interface {
	RecordProfileFetchMiss(reason string)
	RecordProfileUpdate(success bool)
	RecordSettleLatency(duration time.Duration)
	RecordBlogRefresh(success bool)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchMiss     *prometheus.CounterVec
	updateResult  *prometheus.CounterVec
	settleLatency prometheus.Histogram
	blogRefresh   *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchMiss: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "serif_profile_fetch_miss_total",
			Help: "プロフィール取得がnilに潰された回数（理由別: not_found / store_error）",
		}, []string{"reason"}),
		updateResult: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "serif_profile_update_total",
			Help: "プロフィール更新の結果別回数",
		}, []string{"result"}),
		settleLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "serif_optimistic_settle_latency_seconds",
			Help:    "楽観的更新の送信からストア書き込み完了までのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		blogRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "serif_blog_refresh_total",
			Help: "ランディングページ用ブログフィード更新の結果別回数",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "serif_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.fetchMiss,
		c.updateResult,
		c.settleLatency,
		c.blogRefresh,
		c.httpStatus,
	)

	return c
}

// RecordProfileFetchMiss はプロフィール取得のnil結果を理由付きで記録する。
// 呼び出し側には「プロフィールなし」に潰して返すが、運用上は
// not_found と store_error を区別できるようにしておく。
func (c *Collector) RecordProfileFetchMiss(reason string) {
	c.fetchMiss.WithLabelValues(reason).Inc()
}

// RecordProfileUpdate はプロフィール更新の結果を記録する。
func (c *Collector) RecordProfileUpdate(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.updateResult.WithLabelValues(result).Inc()
}

// RecordSettleLatency は楽観的更新のセトルまでのレイテンシを記録する。
func (c *Collector) RecordSettleLatency(duration time.Duration) {
	c.settleLatency.Observe(duration.Seconds())
}

// RecordBlogRefresh はブログフィード更新の結果を記録する。
func (c *Collector) RecordBlogRefresh(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.blogRefresh.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
