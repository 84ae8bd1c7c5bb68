package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	procTerminate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bake_proc_terminate_total",
		Help: "Signals sent to child process groups",
	}, []string{"signal", "result"})

	procWait = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bake_proc_wait_total",
		Help: "Outcomes of waiting on terminated child processes",
	}, []string{"result"})
)

// IncProcTerminate records a signal delivery attempt ("sent", "esrch", "error").
func IncProcTerminate(signal, result string) {
	procTerminate.WithLabelValues(signal, result).Inc()
}

// IncProcWait records how a terminated child process exited.
func IncProcWait(result string) {
	procWait.WithLabelValues(result).Inc()
}
