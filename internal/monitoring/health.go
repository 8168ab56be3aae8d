package monitoring

import (
	"context"
	"sync"
	"time"
)

type HealthChecker interface {
	CheckHealth(ctx context.Context) *HealthStatus
	RegisterCheck(name string, checker ComponentChecker)
}

type ComponentChecker interface {
	Check(ctx context.Context) error
	Timeout() time.Duration
}

type HealthStatus struct {
	Status     string                      `json:"status"` // "healthy", "degraded", "unhealthy"
	Timestamp  time.Time                   `json:"timestamp"`
	Uptime     string                      `json:"uptime"`
	Version    string                      `json:"version"`
	Components map[string]*ComponentHealth `json:"components"`
}

type ComponentHealth struct {
	Status      string    `json:"status"`
	LastChecked time.Time `json:"last_checked"`
	DurationMS  int64     `json:"duration_ms"`
	Error       string    `json:"error,omitempty"`
}

type healthChecker struct {
	checkers  map[string]ComponentChecker
	startTime time.Time
	version   string
	mutex     sync.RWMutex
}

func NewHealthChecker(version string) HealthChecker {
	return &healthChecker{
		checkers:  make(map[string]ComponentChecker),
		startTime: time.Now(),
		version:   version,
	}
}

func (h *healthChecker) RegisterCheck(name string, checker ComponentChecker) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.checkers[name] = checker
}

func (h *healthChecker) CheckHealth(ctx context.Context) *HealthStatus {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	components := make(map[string]*ComponentHealth, len(h.checkers))
	unhealthy := 0

	for name, checker := range h.checkers {
		components[name] = h.checkComponent(ctx, checker)
		if components[name].Status != "healthy" {
			unhealthy++
		}
	}

	overall := "healthy"
	switch {
	case unhealthy == 0:
	case unhealthy < len(h.checkers):
		overall = "degraded"
	default:
		overall = "unhealthy"
	}

	return &HealthStatus{
		Status:     overall,
		Timestamp:  time.Now(),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Version:    h.version,
		Components: components,
	}
}

func (h *healthChecker) checkComponent(ctx context.Context, checker ComponentChecker) *ComponentHealth {
	checkCtx, cancel := context.WithTimeout(ctx, checker.Timeout())
	defer cancel()

	start := time.Now()
	err := checker.Check(checkCtx)
	duration := time.Since(start)

	health := &ComponentHealth{
		Status:      "healthy",
		LastChecked: time.Now(),
		DurationMS:  duration.Milliseconds(),
	}
	if err != nil {
		health.Status = "unhealthy"
		health.Error = err.Error()
	}
	return health
}

// CheckFunc adapts a plain function into a ComponentChecker.
type CheckFunc struct {
	Fn    func(ctx context.Context) error
	Limit time.Duration
}

func NewCheckFunc(fn func(ctx context.Context) error, limit time.Duration) ComponentChecker {
	if limit <= 0 {
		limit = 5 * time.Second
	}
	return &CheckFunc{Fn: fn, Limit: limit}
}

func (c *CheckFunc) Check(ctx context.Context) error {
	return c.Fn(ctx)
}

func (c *CheckFunc) Timeout() time.Duration {
	return c.Limit
}
