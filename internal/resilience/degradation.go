package resilience

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DegradationLevel represents the current degradation state
type DegradationLevel int

const (
	LevelNormal DegradationLevel = iota
	LevelDegraded
	LevelCritical
	LevelEmergency
)

// DegradationConfig holds thresholds for graceful degradation.
type DegradationConfig struct {
	HealthCheckInterval time.Duration `json:"health_check_interval"`
	DegradedThreshold   float64       `json:"degraded_threshold"`
	CriticalThreshold   float64       `json:"critical_threshold"`
	EmergencyThreshold  float64       `json:"emergency_threshold"`
	HealthCheckTimeout  time.Duration `json:"health_check_timeout"`
}

// DefaultDegradationConfig returns sensible defaults
func DefaultDegradationConfig() DegradationConfig {
	return DegradationConfig{
		HealthCheckInterval: 30 * time.Second,
		DegradedThreshold:   0.1,
		CriticalThreshold:   0.25,
		EmergencyThreshold:  0.5,
		HealthCheckTimeout:  5 * time.Second,
	}
}

// ServiceHealth represents the health status of one upstream provider.
type ServiceHealth struct {
	ServiceName   string           `json:"service_name"`
	Level         DegradationLevel `json:"level"`
	ErrorRate     float64          `json:"error_rate"`
	TotalRequests int64            `json:"total_requests"`
	ErrorCount    int64            `json:"error_count"`
	LastErrorTime time.Time        `json:"last_error_time"`
	StatusMessage string           `json:"status_message"`
}

// HealthCheckFunc represents a function that checks service health
type HealthCheckFunc func(ctx context.Context) error

// DegradationManager tracks error rates per upstream provider so the
// discover path can skip a provider that is failing hard instead of
// waiting on its timeouts.
type DegradationManager struct {
	config       DegradationConfig
	services     map[string]*ServiceHealth
	healthChecks map[string]HealthCheckFunc
	mu           sync.RWMutex
}

// NewDegradationManager creates a new degradation manager
func NewDegradationManager(config DegradationConfig) *DegradationManager {
	return &DegradationManager{
		config:       config,
		services:     make(map[string]*ServiceHealth),
		healthChecks: make(map[string]HealthCheckFunc),
	}
}

// RegisterService registers a service with its health check function
func (dm *DegradationManager) RegisterService(serviceName string, healthCheck HealthCheckFunc) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	dm.services[serviceName] = &ServiceHealth{
		ServiceName:   serviceName,
		Level:         LevelNormal,
		StatusMessage: "Service is healthy",
	}
	if healthCheck != nil {
		dm.healthChecks[serviceName] = healthCheck
	}

	slog.Info("Registered service for degradation management", "service", serviceName)
}

// RecordRequest records a request outcome for a service.
func (dm *DegradationManager) RecordRequest(serviceName string, success bool) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	health, exists := dm.services[serviceName]
	if !exists {
		return
	}

	health.TotalRequests++
	if !success {
		health.ErrorCount++
		health.LastErrorTime = time.Now()
	}
	dm.updateLevel(health)
}

// RecordError records a failed request for a service.
func (dm *DegradationManager) RecordError(serviceName string, err error) {
	if err == nil {
		return
	}
	dm.RecordRequest(serviceName, false)
}

func (dm *DegradationManager) updateLevel(health *ServiceHealth) {
	if health.TotalRequests == 0 {
		return
	}
	health.ErrorRate = float64(health.ErrorCount) / float64(health.TotalRequests)

	previous := health.Level
	switch {
	case health.ErrorRate >= dm.config.EmergencyThreshold:
		health.Level = LevelEmergency
		health.StatusMessage = "Service is unavailable"
	case health.ErrorRate >= dm.config.CriticalThreshold:
		health.Level = LevelCritical
		health.StatusMessage = "Service is critically degraded"
	case health.ErrorRate >= dm.config.DegradedThreshold:
		health.Level = LevelDegraded
		health.StatusMessage = "Service is degraded"
	default:
		health.Level = LevelNormal
		health.StatusMessage = "Service is healthy"
	}

	if health.Level != previous {
		slog.Warn("Service degradation level changed",
			"service", health.ServiceName,
			"level", health.Level,
			"error_rate", health.ErrorRate)
	}
}

// IsAvailable reports whether a service should still be called.
func (dm *DegradationManager) IsAvailable(serviceName string) bool {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	health, exists := dm.services[serviceName]
	if !exists {
		return true
	}
	return health.Level < LevelEmergency
}

// GetAllServiceHealth returns a snapshot of every registered service.
func (dm *DegradationManager) GetAllServiceHealth() map[string]ServiceHealth {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	snapshot := make(map[string]ServiceHealth, len(dm.services))
	for name, health := range dm.services {
		snapshot[name] = *health
	}
	return snapshot
}

// StartHealthChecks runs registered health checks periodically until the
// context is cancelled. Check outcomes are recorded as ordinary request
// outcomes, so a recovered provider climbs back toward Normal gradually.
func (dm *DegradationManager) StartHealthChecks(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(dm.config.HealthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				dm.runHealthChecks(ctx)
			}
		}
	}()
}

func (dm *DegradationManager) runHealthChecks(ctx context.Context) {
	dm.mu.RLock()
	checks := make(map[string]HealthCheckFunc, len(dm.healthChecks))
	for name, fn := range dm.healthChecks {
		checks[name] = fn
	}
	dm.mu.RUnlock()

	for name, check := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, dm.config.HealthCheckTimeout)
		err := check(checkCtx)
		cancel()

		// A health check is one more data point, not an amnesty: a
		// passing ping dilutes the error rate but never erases the
		// recorded request history.
		if err != nil {
			dm.RecordError(name, err)
			continue
		}
		dm.RecordRequest(name, true)
	}
}

var globalDegradationManager = NewDegradationManager(DefaultDegradationConfig())

// RegisterService registers a service with the global degradation manager.
func RegisterService(serviceName string, healthCheck HealthCheckFunc) {
	globalDegradationManager.RegisterService(serviceName, healthCheck)
}

// RecordRequest records a request outcome with the global manager.
func RecordRequest(serviceName string, success bool) {
	globalDegradationManager.RecordRequest(serviceName, success)
}

// RecordError records a failure with the global manager.
func RecordError(serviceName string, err error) {
	globalDegradationManager.RecordError(serviceName, err)
}

// IsServiceAvailable reports whether a service should still be called.
func IsServiceAvailable(serviceName string) bool {
	return globalDegradationManager.IsAvailable(serviceName)
}

// GetAllServiceHealth returns a snapshot from the global manager.
func GetAllServiceHealth() map[string]ServiceHealth {
	return globalDegradationManager.GetAllServiceHealth()
}

// StartHealthChecks starts the global manager's health check loop.
func StartHealthChecks(ctx context.Context) {
	globalDegradationManager.StartHealthChecks(ctx)
}
