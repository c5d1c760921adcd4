// Package health tracks the liveness of engine subsystems: sources,
// the graph store, and the extraction backend. Statuses are aggregated
// for the HTTP health endpoint and sanitized so connection strings and
// credentials never leak into responses.
package health

import (
	"regexp"
	"time"
)

// Status values.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Status is the health of one subsystem at a point in time.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
}

// IsHealthy reports whether the status is healthy.
func (s Status) IsHealthy() bool { return s.Status == StatusHealthy }

// IsDegraded reports whether the status is degraded.
func (s Status) IsDegraded() bool { return s.Status == StatusDegraded }

// IsUnhealthy reports whether the status is unhealthy.
func (s Status) IsUnhealthy() bool { return s.Status == StatusUnhealthy }

// Healthy builds a healthy status for component.
func Healthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   true,
		Status:    StatusHealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Degraded builds a degraded status for component.
func Degraded(component, message string) Status {
	return Status{
		Component: component,
		Status:    StatusDegraded,
		Message:   Sanitize(message),
		Timestamp: time.Now(),
	}
}

// Unhealthy builds an unhealthy status for component.
func Unhealthy(component, message string) Status {
	return Status{
		Component: component,
		Status:    StatusUnhealthy,
		Message:   Sanitize(message),
		Timestamp: time.Now(),
	}
}

// Aggregate rolls sub-statuses up into one status for component. Any
// unhealthy sub-status makes the aggregate unhealthy; otherwise any
// degraded sub-status makes it degraded.
func Aggregate(component string, subs []Status) Status {
	if len(subs) == 0 {
		return Healthy(component, "no subsystems registered")
	}

	agg := Healthy(component, "")
	for _, sub := range subs {
		switch {
		case sub.IsUnhealthy():
			agg.Status = StatusUnhealthy
			agg.Healthy = false
		case sub.IsDegraded() && agg.Status == StatusHealthy:
			agg.Status = StatusDegraded
			agg.Healthy = false
		}
	}
	agg.SubStatuses = subs
	return agg
}

// Error messages carry endpoints and occasionally credentials; scrub them
// before they reach a status payload.
var (
	urlPattern        = regexp.MustCompile(`(?:https?|nats|wss?)://\S+`)
	ipPattern         = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}(?::\d{2,5})?\b`)
	credentialPattern = regexp.MustCompile(`(?i)(password|token|key|secret|credential)\s*[:=]\s*\S+`)
)

// Sanitize redacts URLs, addresses, and credential-shaped fragments from
// a message.
func Sanitize(message string) string {
	message = credentialPattern.ReplaceAllString(message, "$1=[redacted]")
	message = urlPattern.ReplaceAllString(message, "[endpoint]")
	message = ipPattern.ReplaceAllString(message, "[address]")
	return message
}
