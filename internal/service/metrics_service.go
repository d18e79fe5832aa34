package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer
// and the auth flows. A nil receiver is a no-op, so wiring it is optional.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	loginTotal      *prometheus.CounterVec
	refreshTotal    *prometheus.CounterVec
	otpIssued       prometheus.Counter
	otpVerified     *prometheus.CounterVec
	passwordResets  prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	loginTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "Login attempts by result",
	}, []string{"result"})

	refreshTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_token_refreshes_total",
		Help: "Refresh-token exchanges by result",
	}, []string{"result"})

	otpIssued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_otp_issued_total",
		Help: "Password-reset challenges issued",
	})

	otpVerified := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_otp_verifications_total",
		Help: "OTP verification attempts by result",
	}, []string{"result"})

	passwordResets := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_password_resets_total",
		Help: "Completed password resets",
	})

	registry.MustRegister(requestDuration, requestTotal, loginTotal, refreshTotal, otpIssued, otpVerified, passwordResets)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		loginTotal:      loginTotal,
		refreshTotal:    refreshTotal,
		otpIssued:       otpIssued,
		otpVerified:     otpVerified,
		passwordResets:  passwordResets,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	if s == nil {
		return promhttp.Handler()
	}
	return s.handler
}

// ObserveHTTPRequest records latency and count for a completed request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if s == nil {
		return
	}
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// IncLogin counts a login attempt.
func (s *MetricsService) IncLogin(success bool) {
	if s == nil {
		return
	}
	s.loginTotal.WithLabelValues(resultLabel(success)).Inc()
}

// IncRefresh counts a refresh-token exchange.
func (s *MetricsService) IncRefresh(success bool) {
	if s == nil {
		return
	}
	s.refreshTotal.WithLabelValues(resultLabel(success)).Inc()
}

// IncOtpIssued counts an issued reset challenge.
func (s *MetricsService) IncOtpIssued() {
	if s == nil {
		return
	}
	s.otpIssued.Inc()
}

// IncOtpVerification counts a verification attempt with its outcome.
func (s *MetricsService) IncOtpVerification(result string) {
	if s == nil {
		return
	}
	s.otpVerified.WithLabelValues(result).Inc()
}

// IncPasswordReset counts a completed reset.
func (s *MetricsService) IncPasswordReset() {
	if s == nil {
		return
	}
	s.passwordResets.Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
