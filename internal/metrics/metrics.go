// Package metrics records operational metrics for the retail ETL run.
//
// Callers use the package-level Record* helpers; a concrete backend
// (Prometheus Pushgateway or DogStatsD) is installed with SetBackend. The
// default backend is a no-op so metrics are always safe to call.
package metrics

import "time"

// Metric names shared by all backends.
const (
	StepTotal    = "etl_step_total"
	StepDuration = "etl_step_duration_seconds"
	RecordsTotal = "etl_records_total"
	BatchesTotal = "etl_batches_total"
	QualityGauge = "etl_quality_issues"
	ChecksTotal  = "etl_validation_checks_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// SetGauge sets a point-in-time value.
	SetGauge(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) SetGauge(string, float64, Labels)         {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Reset restores the no-op backend.
func Reset() { backend = nopBackend{} }

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// RecordStep counts one execution of a pipeline stage and observes its
// duration, labelled success or failure by err.
func RecordStep(job, step string, err error, d time.Duration) {
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status(err == nil),
	}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow increments a record-level counter for the given job and kind.
//
// Kinds used by the pipeline:
//   - "raw"
//   - "cleaned"
//   - "filtered"
//   - "inserted"
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBatches increments a batch-level counter for the given job.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{
		"job": job,
	})
}

// RecordQuality sets the gauge for one data-quality metric.
func RecordQuality(job, metric string, value int) {
	backend.SetGauge(QualityGauge, float64(value), Labels{
		"job":    job,
		"metric": metric,
	})
}

// RecordCheck counts one table validation check outcome.
func RecordCheck(job, check string, passed bool) {
	backend.IncCounter(ChecksTotal, 1, Labels{
		"job":    job,
		"check":  check,
		"status": status(passed),
	})
}
