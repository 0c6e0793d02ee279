package monitoring

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const checkTimeout = 5 * time.Second

type Metrics struct {
	RequestCount    int64            `json:"request_count"`
	RequestDuration float64          `json:"avg_request_duration_ms"`
	ActiveRequests  int64            `json:"active_requests"`
	ErrorCount      int64            `json:"error_count"`
	StatusCodes     map[string]int64 `json:"status_codes"`
	Endpoints       map[string]int64 `json:"endpoint_calls"`
	StartTime       time.Time        `json:"start_time"`
	LastRequest     time.Time        `json:"last_request"`
}

type HealthCheck struct {
	Name     string    `json:"name"`
	Status   string    `json:"status"`
	Message  string    `json:"message,omitempty"`
	Optional bool      `json:"optional,omitempty"`
	LastRun  time.Time `json:"last_run"`
}

type HealthCheckFunc func(ctx context.Context) error

type registeredCheck struct {
	check    HealthCheckFunc
	optional bool
}

// StatsFunc contributes a named section to the /metrics response.
type StatsFunc func() interface{}

// Monitor collects request metrics and runs readiness checks on demand.
type Monitor struct {
	mu            sync.RWMutex
	metrics       Metrics
	totalDuration time.Duration

	checksMu sync.RWMutex
	checks   map[string]registeredCheck
	stats    map[string]StatsFunc
	now      func() time.Time
}

func NewMonitor() *Monitor {
	return &Monitor{
		metrics: Metrics{
			StatusCodes: make(map[string]int64),
			Endpoints:   make(map[string]int64),
			StartTime:   time.Now(),
		},
		checks: make(map[string]registeredCheck),
		stats:  make(map[string]StatsFunc),
		now:    time.Now,
	}
}

func (m *Monitor) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := m.now()

		m.mu.Lock()
		m.metrics.ActiveRequests++
		m.mu.Unlock()

		// A panicking handler is counted as a 500, then the panic is
		// re-raised for the recovery middleware.
		defer func() {
			statusCode := c.Writer.Status()
			if r := recover(); r != nil {
				statusCode = http.StatusInternalServerError
				m.record(c, start, statusCode)
				panic(r)
			}
			m.record(c, start, statusCode)
		}()

		c.Next()
	}
}

func (m *Monitor) record(c *gin.Context, start time.Time, statusCode int) {
	duration := m.now().Sub(start)
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	endpoint := c.Request.Method + " " + route

	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics.RequestCount++
	m.metrics.ActiveRequests--
	m.totalDuration += duration
	m.metrics.LastRequest = m.now()
	if statusCode >= 400 {
		m.metrics.ErrorCount++
	}
	m.metrics.StatusCodes[strconv.Itoa(statusCode)]++
	m.metrics.Endpoints[endpoint]++
}

func (m *Monitor) GetMetrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metrics := m.metrics
	metrics.StatusCodes = make(map[string]int64, len(m.metrics.StatusCodes))
	metrics.Endpoints = make(map[string]int64, len(m.metrics.Endpoints))
	for k, v := range m.metrics.StatusCodes {
		metrics.StatusCodes[k] = v
	}
	for k, v := range m.metrics.Endpoints {
		metrics.Endpoints[k] = v
	}
	if m.metrics.RequestCount > 0 {
		avg := m.totalDuration / time.Duration(m.metrics.RequestCount)
		metrics.RequestDuration = float64(avg.Microseconds()) / 1000
	}
	return metrics
}

type SystemMetrics struct {
	Uptime         string      `json:"uptime"`
	MemoryUsage    MemoryStats `json:"memory"`
	GoroutineCount int         `json:"goroutine_count"`
	CPUCount       int         `json:"cpu_count"`
	GoVersion      string      `json:"go_version"`
}

type MemoryStats struct {
	Alloc        uint64 `json:"alloc_mb"`
	TotalAlloc   uint64 `json:"total_alloc_mb"`
	Sys          uint64 `json:"sys_mb"`
	NumGC        uint32 `json:"num_gc"`
	NextGC       uint64 `json:"next_gc_mb"`
	GCPauseTotal string `json:"gc_pause_total"`
}

func (m *Monitor) GetSystemMetrics() SystemMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return SystemMetrics{
		Uptime: m.now().Sub(m.metrics.StartTime).Round(time.Second).String(),
		MemoryUsage: MemoryStats{
			Alloc:        bToMb(ms.Alloc),
			TotalAlloc:   bToMb(ms.TotalAlloc),
			Sys:          bToMb(ms.Sys),
			NumGC:        ms.NumGC,
			NextGC:       bToMb(ms.NextGC),
			GCPauseTotal: time.Duration(ms.PauseTotalNs).String(),
		},
		GoroutineCount: runtime.NumGoroutine(),
		CPUCount:       runtime.NumCPU(),
		GoVersion:      runtime.Version(),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

// RegisterHealthCheck adds a dependency check that runs on every readiness
// probe.
func (m *Monitor) RegisterHealthCheck(name string, check HealthCheckFunc) {
	m.checksMu.Lock()
	defer m.checksMu.Unlock()
	m.checks[name] = registeredCheck{check: check}
}

// RegisterOptionalCheck adds a check that is reported by /ready
// but never makes the service not ready.
func (m *Monitor) RegisterOptionalCheck(name string, check HealthCheckFunc) {
	m.checksMu.Lock()
	defer m.checksMu.Unlock()
	m.checks[name] = registeredCheck{check: check, optional: true}
}

func (m *Monitor) RegisterStats(name string, stats StatsFunc) {
	m.checksMu.Lock()
	defer m.checksMu.Unlock()
	m.stats[name] = stats
}

func (m *Monitor) RunHealthChecks(ctx context.Context) []HealthCheck {
	m.checksMu.RLock()
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	checks := make(map[string]registeredCheck, len(m.checks))
	for name, check := range m.checks {
		checks[name] = check
	}
	m.checksMu.RUnlock()

	sort.Strings(names)

	results := make([]HealthCheck, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			registered := checks[name]
			result := HealthCheck{Name: name, Status: "healthy", Optional: registered.optional, LastRun: m.now()}
			if err := registered.check(checkCtx); err != nil {
				result.Status = "unhealthy"
				result.Message = err.Error()
			}
			results[i] = result
		}(i, name)
	}
	wg.Wait()

	return results
}

func (m *Monitor) MetricsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response := gin.H{
			"application": m.GetMetrics(),
			"system":      m.GetSystemMetrics(),
			"timestamp":   m.now().UTC(),
		}

		m.checksMu.RLock()
		for name, stats := range m.stats {
			response[name] = stats()
		}
		m.checksMu.RUnlock()

		c.JSON(http.StatusOK, response)
	}
}

// HealthHandler is a liveness probe; it never touches dependencies.
func (m *Monitor) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": m.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

func (m *Monitor) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := m.RunHealthChecks(c.Request.Context())

		ready := true
		for _, check := range checks {
			if check.Status != "healthy" && !check.Optional {
				ready = false
				break
			}
		}

		status := http.StatusOK
		label := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			label = "not ready"
		}

		c.JSON(status, gin.H{
			"status":    label,
			"timestamp": m.now().UTC(),
			"checks":    checks,
		})
	}
}
