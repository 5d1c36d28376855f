package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

type MetricsMiddleware struct {
	requestCounter   *metrics.Counter
	responseTimeHist *metrics.Histogram
	requestSizeHist  *metrics.Histogram
	responseSizeHist *metrics.Histogram
	bucketOpsCounter *metrics.Counter
	avatarBucket     string
}

// NewMetricsMiddleware registers its series in the default metrics set. It
// may be called more than once; the series are shared.
func NewMetricsMiddleware(avatarBucket string) *MetricsMiddleware {
	return &MetricsMiddleware{
		requestCounter:   metrics.GetOrCreateCounter("http_requests_total"),
		responseTimeHist: metrics.GetOrCreateHistogram("http_response_time_seconds"),
		requestSizeHist:  metrics.GetOrCreateHistogram("http_request_size_bytes"),
		responseSizeHist: metrics.GetOrCreateHistogram("http_response_size_bytes"),
		bucketOpsCounter: metrics.GetOrCreateCounter("bucket_operations_total"),
		avatarBucket:     avatarBucket,
	}
}

func (m *MetricsMiddleware) WithMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if r.ContentLength > 0 {
			m.requestSizeHist.Update(float64(r.ContentLength))
		}

		lrw := newLoggingResponseWriter(w)

		m.requestCounter.Inc()
		next.ServeHTTP(lrw, r)

		m.responseTimeHist.UpdateDuration(start)
		metrics.GetOrCreateCounter(`http_response_status_total{code="` + strconv.Itoa(lrw.statusCode) + `"}`).Inc()
		m.responseSizeHist.Update(float64(lrw.length))

		if _, ok := bucketFromPath(r.URL.Path, m.avatarBucket); ok {
			m.bucketOpsCounter.Inc()
		}
	})
}

func (m *MetricsMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	metrics.WritePrometheus(w, true)
}
