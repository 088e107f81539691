package metrics

import (
	"sync"

	"barbershop/internal/events"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "barbershop"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	appointmentsBooked = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "appointments_booked_total",
		Help:      "Appointments booked.",
	})

	bookingsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_rejected_total",
			Help:      "Rejected booking submissions by reason.",
		},
		[]string{"reason"},
	)

	appointmentsPruned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "appointments_pruned_total",
		Help:      "Appointments removed by the retention sweep.",
	})

	storeReloads = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_reloads_total",
		Help:      "Full reloads after an external change of the appointment record.",
	})
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, appointmentsBooked, bookingsRejected, appointmentsPruned, storeReloads)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// Subscribe feeds domain events from the bus into the counters.
func Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventAppointmentBooked, func(_ *events.Event) error {
		appointmentsBooked.Inc()
		return nil
	})
	bus.Subscribe(events.EventBookingRejected, func(e *events.Event) error {
		var p events.RejectionPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		bookingsRejected.WithLabelValues(p.Reason).Inc()
		return nil
	})
	bus.Subscribe(events.EventAppointmentsPruned, func(e *events.Event) error {
		var p events.PrunePayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		appointmentsPruned.Add(float64(p.Removed))
		return nil
	})
	bus.Subscribe(events.EventStoreReloaded, func(_ *events.Event) error {
		storeReloads.Inc()
		return nil
	})
}
