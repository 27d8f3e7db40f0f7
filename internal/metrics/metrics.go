package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the proxy. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	SignatureChecks *prometheus.CounterVec
	PageRequests    *prometheus.CounterVec
	PageRetries     prometheus.Counter
	FetchResults    *prometheus.CounterVec
	RecordsReturned prometheus.Histogram
	OAuthExchanges  *prometheus.CounterVec
	Webhooks        *prometheus.CounterVec
	// WebhookDuplicates counts redelivered webhooks acknowledged without
	// being handled again.
	WebhookDuplicates *prometheus.CounterVec
}

// New initializes the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SignatureChecks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coa_proxy",
			Subsystem: "auth",
			Name:      "signature_checks_total",
			Help:      "Inbound signature verifications by scheme and result.",
		}, []string{"scheme", "result"}), // scheme: query, header, install
		PageRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coa_proxy",
			Subsystem: "fetch",
			Name:      "page_requests_total",
			Help:      "Remote page requests by outcome.",
		}, []string{"outcome"}), // outcome: ok, transient, rejected
		PageRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: "coa_proxy",
			Subsystem: "fetch",
			Name:      "page_retries_total",
			Help:      "Page requests scheduled for another attempt after a transient failure.",
		}),
		FetchResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coa_proxy",
			Subsystem: "fetch",
			Name:      "results_total",
			Help:      "Completed pagination walks by result.",
		}, []string{"result"}),
		RecordsReturned: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "coa_proxy",
			Subsystem: "fetch",
			Name:      "records_returned",
			Help:      "Number of records returned per successful walk.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		OAuthExchanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coa_proxy",
			Subsystem: "oauth",
			Name:      "exchanges_total",
			Help:      "Authorization code exchanges by result.",
		}, []string{"result"}),
		Webhooks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coa_proxy",
			Subsystem: "webhooks",
			Name:      "received_total",
			Help:      "Verified webhooks by topic.",
		}, []string{"topic"}),
		WebhookDuplicates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coa_proxy",
			Subsystem: "webhooks",
			Name:      "duplicates_total",
			Help:      "Redelivered webhooks skipped by topic.",
		}, []string{"topic"}),
	}
}

func (m *Metrics) ObserveSignature(scheme string, ok bool) {
	if m == nil {
		return
	}
	m.SignatureChecks.WithLabelValues(scheme, result(ok)).Inc()
}

func (m *Metrics) ObservePage(outcome string) {
	if m == nil {
		return
	}
	m.PageRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.PageRetries.Inc()
}

func (m *Metrics) ObserveFetch(res string, records int) {
	if m == nil {
		return
	}
	m.FetchResults.WithLabelValues(res).Inc()
	if res == "ok" {
		m.RecordsReturned.Observe(float64(records))
	}
}

func (m *Metrics) ObserveOAuth(ok bool) {
	if m == nil {
		return
	}
	m.OAuthExchanges.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) ObserveWebhook(topic string) {
	if m == nil {
		return
	}
	m.Webhooks.WithLabelValues(topic).Inc()
}

func (m *Metrics) ObserveDuplicateWebhook(topic string) {
	if m == nil {
		return
	}
	m.WebhookDuplicates.WithLabelValues(topic).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "fail"
}
