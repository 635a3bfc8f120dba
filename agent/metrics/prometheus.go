package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	statex "github.com/tanpawarit/ops-desk/agent/state"
)

// RunRecorder reports finished pipeline runs using Prometheus primitives.
type RunRecorder struct {
	runs          *prometheus.CounterVec
	stageResults  *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	handoffs      *prometheus.HistogramVec
	receipts      *prometheus.CounterVec
	resolutions   *prometheus.CounterVec
	cost          prometheus.Counter
}

var _ statex.Observer = (*RunRecorder)(nil)

func NewRunRecorder(registry *prometheus.Registry) (*RunRecorder, error) {
	if registry == nil {
		return nil, fmt.Errorf("prometheus registry is nil")
	}

	r := &RunRecorder{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsdesk_runs_total",
			Help: "Total number of pipeline runs by terminal status",
		}, []string{"status"}),
		stageResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsdesk_stage_results_total",
			Help: "Total number of stage executions by stage and result",
		}, []string{"stage", "result"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "opsdesk_stage_duration_seconds",
			Help:    "Stage latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		handoffs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "opsdesk_handoff_latency_seconds",
			Help:    "Gap between the end of one stage and the start of the next",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"from", "to"}),
		receipts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsdesk_tool_receipts_total",
			Help: "Total tool receipts by tool and outcome",
		}, []string{"tool", "outcome"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsdesk_resolutions_total",
			Help: "Total action resolutions by label",
		}, []string{"resolution"}),
		cost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opsdesk_action_cost_usd_total",
			Help: "Cumulative simulated processing cost in USD",
		}),
	}

	for _, collector := range []prometheus.Collector{
		r.runs, r.stageResults, r.stageDuration, r.handoffs, r.receipts, r.resolutions, r.cost,
	} {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return r, nil
}

func (r *RunRecorder) ObserveRun(_ context.Context, st *statex.PipelineState) {
	if r == nil || st == nil {
		return
	}

	r.runs.WithLabelValues(string(st.Status)).Inc()

	results := map[statex.Stage]statex.ResultStatus{
		statex.StageRecords: st.Records.Status,
		statex.StagePolicy:  st.Policy.Status,
		statex.StageAction:  st.Action.Status,
		statex.StageAudit:   st.Audit.Status,
	}
	for _, stage := range statex.Stages() {
		r.stageResults.WithLabelValues(string(stage), string(results[stage])).Inc()
		if d, ok := st.StageDuration(stage); ok {
			r.stageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
		}
	}
	for _, h := range st.HandoffLatencies() {
		r.handoffs.WithLabelValues(string(h.From), string(h.To)).Observe(h.Latency.Seconds())
	}

	action := st.ActionOutput()
	if action == nil {
		return
	}
	for _, receipt := range action.ToolReceipts {
		outcome := "success"
		if !receipt.Succeeded() {
			outcome = "failure"
		}
		r.receipts.WithLabelValues(receipt.Tool, outcome).Inc()
	}
	r.resolutions.WithLabelValues(string(action.Resolution)).Inc()
	r.cost.Add(action.CostUSD)
}

func StartPrometheusServer(addr string, registry *prometheus.Registry) (*http.Server, error) {
	if addr == "" {
		addr = ":2112"
	}
	if registry == nil {
		return nil, fmt.Errorf("prometheus registry is nil")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics endpoint %q: %w", addr, err)
	}

	srv := &http.Server{
		Addr:    ln.Addr().String(),
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	go func() {
		_ = srv.Serve(ln)
	}()
	return srv, nil
}
