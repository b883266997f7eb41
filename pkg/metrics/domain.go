package metrics

import "github.com/prometheus/client_golang/prometheus"

// DomainMetrics counts business operations.
type DomainMetrics struct {
	txnsApplied  *prometheus.CounterVec
	txnsRejected *prometheus.CounterVec
	offers       *prometheus.CounterVec
	codeRetries  *prometheus.CounterVec
}

func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		return &DomainMetrics{}
	}
	applied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_txns_applied_total",
		Help: "Stock transactions applied by type.",
	}, []string{"type"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_txns_rejected_total",
		Help: "Stock transactions rejected by type and reason.",
	}, []string{"type", "reason"})
	offers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "offers_total",
		Help: "Offer lifecycle operations by action and result.",
	}, []string{"action", "result"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "code_generation_retries_total",
		Help: "Code generation retries after unique conflicts.",
	}, []string{"scope"})
	reg.MustRegister(applied, rejected, offers, retries)
	return &DomainMetrics{
		txnsApplied:  applied,
		txnsRejected: rejected,
		offers:       offers,
		codeRetries:  retries,
	}
}

func (d *DomainMetrics) TxnApplied(txnType string) {
	if d == nil || d.txnsApplied == nil {
		return
	}
	d.txnsApplied.WithLabelValues(normalizeLabel(txnType)).Inc()
}

func (d *DomainMetrics) TxnRejected(txnType, reason string) {
	if d == nil || d.txnsRejected == nil {
		return
	}
	d.txnsRejected.WithLabelValues(normalizeLabel(txnType), normalizeLabel(reason)).Inc()
}

// Offer counts an offer action (created, sent, converted) with ok or error.
func (d *DomainMetrics) Offer(action string, err error) {
	if d == nil || d.offers == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	d.offers.WithLabelValues(normalizeLabel(action), result).Inc()
}

func (d *DomainMetrics) CodeRetry(scope string) {
	if d == nil || d.codeRetries == nil {
		return
	}
	d.codeRetries.WithLabelValues(normalizeLabel(scope)).Inc()
}
