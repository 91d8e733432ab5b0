package middleware

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shhac/nrpc/rpc"
)

// Metrics records Prometheus metrics for calls.
type Metrics struct {
	calls      *prometheus.CounterVec
	frames     *prometheus.CounterVec
	frameBytes *prometheus.HistogramVec
	duration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nrpc",
				Name:      "calls_total",
				Help:      "Total calls by outcome.",
			},
			[]string{"side", "service", "method", "outcome"},
		),
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nrpc",
				Name:      "frames_total",
				Help:      "Frames pulled through calls.",
			},
			[]string{"side", "service", "method", "direction"},
		),
		frameBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "nrpc",
				Name:      "frame_bytes",
				Help:      "Size of frames in bytes.",
				Buckets:   prometheus.ExponentialBuckets(16, 4, 8),
			},
			[]string{"side", "service", "method", "direction"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "nrpc",
				Name:      "call_duration_seconds",
				Help:      "Time from call start until the output stream ended.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"side", "service", "method", "outcome"},
		),
	}

	for _, c := range []prometheus.Collector{m.calls, m.frames, m.frameBytes, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Middleware returns the interceptor that feeds m.
func (m *Metrics) Middleware() rpc.Middleware {
	return func(next rpc.Invoker) rpc.Invoker {
		return func(ctx context.Context, info rpc.CallInfo, input rpc.FrameStream) (rpc.FrameStream, error) {
			s, svc := side(info), info.Descriptor()
			start := time.Now()
			finish := func(err error) {
				o := outcome(err)
				m.calls.WithLabelValues(s, svc, info.Method, o).Inc()
				m.duration.WithLabelValues(s, svc, info.Method, o).Observe(time.Since(start).Seconds())
			}

			in := observe(input, m.frameObserver(s, svc, info.Method, "in"), nil)
			out, err := next(ctx, info, in)
			if err != nil {
				finish(err)
				return nil, err
			}
			return observe(out, m.frameObserver(s, svc, info.Method, "out"), func(_ CallStats, err error) {
				finish(err)
			}), nil
		}
	}
}

func (m *Metrics) frameObserver(s, svc, method, direction string) func(int) {
	count := m.frames.WithLabelValues(s, svc, method, direction)
	size := m.frameBytes.WithLabelValues(s, svc, method, direction)
	return func(n int) {
		count.Inc()
		size.Observe(float64(n))
	}
}
