// Package metrics is the metrics seam used by the pipeline.
//
// Pipeline code calls the package-level helpers; a process installs one
// Backend with SetBackend at startup. The default backend drops everything.
package metrics

import (
	"sync"
	"time"
)

// Metric names emitted by the pipeline.
const (
	StepTotal           = "etl_step_total"            // labels: step, status
	StepDurationSeconds = "etl_step_duration_seconds" // labels: step, status
	RecordsTotal        = "etl_records_total"         // labels: kind
	BatchesTotal        = "etl_batches_total"
	FilesTotal          = "etl_files_total"            // labels: pass, status
	FileDurationSeconds = "etl_file_duration_seconds" // labels: pass
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric events. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b. A nil b restores the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush asks the installed backend to submit buffered data.
func Flush() error {
	return current().Flush()
}

// RecordStep counts one step outcome and its duration.
func RecordStep(step string, err error, d time.Duration) {
	l := Labels{"step": step, "status": status(err)}
	IncCounter(StepTotal, 1, l)
	ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}

// RecordFile counts one processed input file of a pass.
func RecordFile(pass string, err error, d time.Duration) {
	IncCounter(FilesTotal, 1, Labels{"pass": pass, "status": status(err)})
	if err == nil {
		ObserveHistogram(FileDurationSeconds, d.Seconds(), Labels{"pass": pass})
	}
}

// AddRecords adds n rows of the given kind (song, artist, time, user, songplay, ...).
func AddRecords(kind string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(RecordsTotal, float64(n), Labels{"kind": kind})
}

// IncBatches counts one committed file transaction.
func IncBatches() {
	IncCounter(BatchesTotal, 1, nil)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
