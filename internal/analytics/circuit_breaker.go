package analytics

import (
	"errors"
	"sync"
	"time"
)

type CircuitBreakerState int

const (
	CircuitBreakerClosed CircuitBreakerState = iota
	CircuitBreakerOpen
	CircuitBreakerHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitBreakerOpen:
		return "open"
	case CircuitBreakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

var (
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	ErrTooManyRequests    = errors.New("too many requests")
)

type CircuitBreakerConfig struct {
	MaxFailures      int           `json:"max_failures"`
	ResetTimeout     time.Duration `json:"reset_timeout"`
	HalfOpenMaxCalls int           `json:"half_open_max_calls"`
	// IsFailure decides which errors count against the breaker. Nil means
	// every non-nil error does.
	IsFailure func(error) bool `json:"-"`
}

func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:      5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

type CircuitBreaker struct {
	mu            sync.Mutex
	state         CircuitBreakerState
	failureCount  int
	halfOpenCalls int
	halfOpenOK    int
	openedAt      time.Time

	maxFailures      int
	resetTimeout     time.Duration
	halfOpenMaxCalls int
	isFailure        func(error) bool
	now              func() time.Time
}

func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}

	cb := &CircuitBreaker{
		state:            CircuitBreakerClosed,
		maxFailures:      config.MaxFailures,
		resetTimeout:     config.ResetTimeout,
		halfOpenMaxCalls: config.HalfOpenMaxCalls,
		isFailure:        config.IsFailure,
		now:              time.Now,
	}
	if cb.maxFailures <= 0 {
		cb.maxFailures = 1
	}
	if cb.halfOpenMaxCalls <= 0 {
		cb.halfOpenMaxCalls = 1
	}
	if cb.isFailure == nil {
		cb.isFailure = func(err error) bool { return err != nil }
	}
	return cb
}

func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}

	err := fn()
	cb.after(!cb.isFailure(err))
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitBreakerOpen && cb.now().Sub(cb.openedAt) >= cb.resetTimeout {
		cb.state = CircuitBreakerHalfOpen
		cb.halfOpenCalls = 0
		cb.halfOpenOK = 0
	}

	switch cb.state {
	case CircuitBreakerOpen:
		return ErrCircuitBreakerOpen
	case CircuitBreakerHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMaxCalls {
			return ErrTooManyRequests
		}
		cb.halfOpenCalls++
	}
	return nil
}

func (cb *CircuitBreaker) after(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitBreakerClosed:
		if success {
			cb.failureCount = 0
			return
		}
		cb.failureCount++
		if cb.failureCount >= cb.maxFailures {
			cb.trip()
		}
	case CircuitBreakerHalfOpen:
		if !success {
			cb.trip()
			return
		}
		cb.halfOpenOK++
		if cb.halfOpenOK >= cb.halfOpenMaxCalls {
			cb.state = CircuitBreakerClosed
			cb.failureCount = 0
		}
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state = CircuitBreakerOpen
	cb.openedAt = cb.now()
	cb.halfOpenCalls = 0
	cb.halfOpenOK = 0
}

func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) GetStats() map[string]interface{} {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return map[string]interface{}{
		"state":                 cb.state.String(),
		"failure_count":         cb.failureCount,
		"opened_at":             cb.openedAt.Unix(),
		"max_failures":          cb.maxFailures,
		"reset_timeout_seconds": cb.resetTimeout.Seconds(),
	}
}
