package utils

import (
	"context"
	"time"
)

type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Services  []Service `json:"services"`
}

type Service struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Pinger is anything the health check can probe: stores, redis, minio.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthCheck struct {
	Name   string
	Pinger Pinger
}

type HealthChecker struct {
	Checks  []HealthCheck
	Timeout time.Duration
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	services := make([]Service, 0, len(h.Checks))
	overallStatus := "healthy"

	for _, check := range h.Checks {
		service := Service{Name: check.Name}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		if err := check.Pinger.Ping(ctx); err != nil {
			service.Status = "down"
			service.Message = err.Error()
			overallStatus = "degraded"
		} else {
			service.Status = "up"
		}
		services = append(services, service)
		cancel()
	}

	return HealthStatus{
		Status:    overallStatus,
		Timestamp: time.Now().UTC(),
		Services:  services,
	}
}
