package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Event metrics
	eventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groupkeeper_events_received_total",
		Help: "Total number of chat events received",
	}, []string{"kind"})

	eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groupkeeper_events_processed_total",
		Help: "Total number of chat events processed",
	}, []string{"status"})

	eventDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "groupkeeper_event_duration_seconds",
		Help:    "Duration of event handling",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// Command metrics
	commandsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groupkeeper_commands_executed_total",
		Help: "Total number of commands executed",
	}, []string{"command"})

	// Progression metrics
	xpAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groupkeeper_xp_awarded_total",
		Help: "Total XP awarded",
	}, []string{"source"})

	levelUps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "groupkeeper_level_ups_total",
		Help: "Total number of level ups",
	})

	// Moderation metrics
	warningsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groupkeeper_warnings_issued_total",
		Help: "Total number of warnings issued",
	}, []string{"source"})

	floodExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "groupkeeper_flood_exceeded_total",
		Help: "Total number of messages rejected by flood control",
	})

	sideEffects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groupkeeper_side_effects_total",
		Help: "Total number of moderation side effects executed",
	}, []string{"kind", "status"})

	// Storage metrics
	storageOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groupkeeper_storage_operations_total",
		Help: "Total number of storage operations",
	}, []string{"operation", "status"})

	storageOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "groupkeeper_storage_operation_duration_seconds",
		Help:    "Duration of storage operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	activeUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "groupkeeper_known_users",
		Help: "Number of users with stored settings",
	})

	activeChats = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "groupkeeper_known_chats",
		Help: "Number of chats with stored settings",
	})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordEventReceived records an inbound event
func (m *Metrics) RecordEventReceived(kind string) {
	eventsReceived.WithLabelValues(kind).Inc()
}

// RecordEventProcessed records the outcome of one event
func (m *Metrics) RecordEventProcessed(kind, status string, duration time.Duration) {
	eventsProcessed.WithLabelValues(status).Inc()
	eventDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordCommandExecuted records an executed command
func (m *Metrics) RecordCommandExecuted(command string) {
	commandsExecuted.WithLabelValues(command).Inc()
}

func (m *Metrics) RecordXPAwarded(source string, xp int) {
	xpAwarded.WithLabelValues(source).Add(float64(xp))
}

func (m *Metrics) RecordLevelUp() {
	levelUps.Inc()
}

func (m *Metrics) RecordWarning(source string) {
	warningsIssued.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordFloodExceeded() {
	floodExceeded.Inc()
}

// RecordSideEffect records a mute or delete executed against the chat
func (m *Metrics) RecordSideEffect(kind, status string) {
	sideEffects.WithLabelValues(kind, status).Inc()
}

// RecordStorageOperation records a storage operation
func (m *Metrics) RecordStorageOperation(operation, status string, duration time.Duration) {
	storageOperations.WithLabelValues(operation, status).Inc()
	storageOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetActiveUsers sets the number of known users
func (m *Metrics) SetActiveUsers(count float64) {
	activeUsers.Set(count)
}

// SetActiveChats sets the number of known chats
func (m *Metrics) SetActiveChats(count float64) {
	activeChats.Set(count)
}

// NewRouter builds the metrics and health routes. health may be nil.
func NewRouter(path string, health func(context.Context) error) *mux.Router {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(r.Context()); err != nil {
				http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	return router
}

// StartMetricsServer serves metrics until ctx is done.
func StartMetricsServer(ctx context.Context, port int, path string, health func(context.Context) error) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      NewRouter(path, health),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
