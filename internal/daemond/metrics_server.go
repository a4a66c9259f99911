package daemond

import (
	"context"
	"net"
	"net/http"

	"github.com/noded/noded/internal/orchestrator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func newListener(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// metricsServer exposes the fleet as prometheus gauges on an optional
// /metrics endpoint (SPEC_FULL.md DOMAIN STACK: an enrichment spec.md
// neither requires nor excludes).
type metricsServer struct {
	addr string
	orch *orchestrator.Orchestrator
	reg  *prometheus.Registry
	http *http.Server

	rss       *prometheus.GaugeVec
	cpu       *prometheus.GaugeVec
	restarts  *prometheus.GaugeVec
}

func newMetricsServer(addr string, orch *orchestrator.Orchestrator) *metricsServer {
	reg := prometheus.NewRegistry()
	m := &metricsServer{
		addr: addr,
		orch: orch,
		reg:  reg,
		rss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "noded_instance_rss_bytes",
			Help: "Resident set size of one managed instance.",
		}, []string{"process", "instance"}),
		cpu: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "noded_instance_cpu_percent",
			Help: "CPU percent of one managed instance.",
		}, []string{"process", "instance"}),
		restarts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "noded_instance_restarts_total",
			Help: "Restart count of one managed instance.",
		}, []string{"process", "instance"}),
	}
	reg.MustRegister(m.rss, m.cpu, m.restarts)
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "noded_managed_processes",
		Help: "Number of ManagedProcess entries currently tracked.",
	}, func() float64 { return float64(len(orch.List())) }))
	return m
}

func (m *metricsServer) Start() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/metrics/refresh", func(w http.ResponseWriter, r *http.Request) {
		m.refresh()
		w.WriteHeader(http.StatusNoContent)
	})
	m.http = &http.Server{Addr: m.addr, Handler: m.refreshingHandler(mux)}

	ln, err := newListener(m.addr)
	if err != nil {
		return err
	}
	go m.http.Serve(ln)
	return nil
}

// refreshingHandler repopulates the gauges from the live fleet snapshot on
// every scrape, since the Orchestrator (not this server) owns the
// authoritative per-instance RSS/CPU/restart values.
func (m *metricsServer) refreshingHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.refresh()
		next.ServeHTTP(w, r)
	})
}

func (m *metricsServer) refresh() {
	m.rss.Reset()
	m.cpu.Reset()
	m.restarts.Reset()
	for _, mp := range m.orch.List() {
		for _, inst := range mp.Instances {
			m.rss.WithLabelValues(mp.Name, inst.ID).Set(float64(inst.MemoryBytes))
			m.cpu.WithLabelValues(mp.Name, inst.ID).Set(inst.CPUPercent)
			m.restarts.WithLabelValues(mp.Name, inst.ID).Set(float64(inst.Restarts))
		}
	}
}

func (m *metricsServer) Stop() {
	if m.http != nil {
		m.http.Shutdown(context.Background())
	}
}
