package prometheus

import (
	"errors"

	"github.com/TomZ28/proc-module/pkg/bytestore"
)

// StoreObserver bridges bytestore events to Prometheus metrics.
type StoreObserver struct {
	m *Metrics
}

// NewStoreObserver creates an observer feeding the given metrics.
func NewStoreObserver(m *Metrics) *StoreObserver {
	if m == nil {
		m = GetMetrics()
	}
	return &StoreObserver{m: m}
}

func (o *StoreObserver) OnAppend(info bytestore.AppendInfo) {
	o.m.StoreAppendsTotal.WithLabelValues("ok").Inc()
	o.m.StoreAppendBytes.Observe(float64(info.Length))
	o.m.StoreSegments.Inc()
	o.m.StoreBytes.Add(float64(info.Length))
}

func (o *StoreObserver) OnRead(info bytestore.ReadInfo) {
	o.m.StoreReadBytes.Observe(float64(info.Length))
}

func (o *StoreObserver) OnReject(info bytestore.RejectInfo) {
	outcome := "oom"
	if errors.Is(info.Err, bytestore.ErrCopyFault) {
		outcome = "copy_fault"
	}
	o.m.StoreAppendsTotal.WithLabelValues(outcome).Inc()
}

func (o *StoreObserver) OnTeardown(bytestore.TeardownInfo) {
	o.m.StoreTeardowns.Inc()
	o.m.StoreSegments.Set(0)
	o.m.StoreBytes.Set(0)
}

// Compile-time interface assertion.
var _ bytestore.Observer = (*StoreObserver)(nil)
