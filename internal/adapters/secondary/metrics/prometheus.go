package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hellodits/dee-POS-sub002/internal/core/domain"
	"github.com/hellodits/dee-POS-sub002/internal/core/ports"
)

const namespace = "pos_realtime"

// Prometheus implements ports.GatewayMetrics on a private registry.
type Prometheus struct {
	registry *prometheus.Registry

	connections     *prometheus.GaugeVec
	connectionsOpen *prometheus.CounterVec
	roomJoins       *prometheus.CounterVec
	published       *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
	rejected        *prometheus.CounterVec
}

var _ ports.GatewayMetrics = (*Prometheus)(nil)

// NewPrometheus registers the gateway collectors along with the Go runtime
// and process collectors.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Live connections by identity kind.",
		}, []string{"kind"}),
		connectionsOpen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_opened_total",
			Help:      "Connections registered since start.",
		}, []string{"kind"}),
		roomJoins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_joins_total",
			Help:      "Room joins by room family.",
		}, []string{"scope"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events accepted for dispatch.",
		}, []string{"kind"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Per-connection send attempts by outcome.",
		}, []string{"outcome"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_rejected_total",
			Help:      "Events rejected before dispatch.",
		}, []string{"reason"}),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.connections,
		p.connectionsOpen,
		p.roomJoins,
		p.published,
		p.deliveries,
		p.rejected,
	)
	return p
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prometheus) ConnectionOpened(kind domain.IdentityKind) {
	p.connections.WithLabelValues(string(kind)).Inc()
	p.connectionsOpen.WithLabelValues(string(kind)).Inc()
}

func (p *Prometheus) ConnectionClosed(kind domain.IdentityKind) {
	p.connections.WithLabelValues(string(kind)).Dec()
}

// RoomJoined labels by room family; individual rooms are unbounded.
func (p *Prometheus) RoomJoined(room domain.RoomID) {
	p.roomJoins.WithLabelValues(room.ScopeLabel()).Inc()
}

func (p *Prometheus) EventPublished(kind domain.EventKind) {
	p.published.WithLabelValues(string(kind)).Inc()
}

func (p *Prometheus) Delivery(outcome string) {
	p.deliveries.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) PublishRejected(reason string) {
	p.rejected.WithLabelValues(reason).Inc()
}
