package health

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const checkTimeout = 5 * time.Second

type Checker interface {
	Check(ctx context.Context) error
	Name() string
}

type Health struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckerFunc adapts a function into a named Checker.
type CheckerFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func NewCheckerFunc(name string, fn func(ctx context.Context) error) CheckerFunc {
	return CheckerFunc{name: name, fn: fn}
}

func (c CheckerFunc) Name() string                    { return c.name }
func (c CheckerFunc) Check(ctx context.Context) error { return c.fn(ctx) }

type optional struct {
	Checker
}

// Optional marks a dependency whose failure degrades the service instead of
// making it unhealthy.
func Optional(c Checker) Checker {
	return optional{Checker: c}
}

type CheckerRegistry struct {
	mu       sync.RWMutex
	checkers []Checker
}

func NewCheckerRegistry() *CheckerRegistry {
	return &CheckerRegistry{
		checkers: make([]Checker, 0),
	}
}

func (r *CheckerRegistry) Register(checkers ...Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range checkers {
		if c != nil {
			r.checkers = append(r.checkers, c)
		}
	}
}

// Check runs every checker concurrently, each bounded by its own timeout.
func (r *CheckerRegistry) Check(ctx context.Context) Health {
	r.mu.RLock()
	checkers := append([]Checker(nil), r.checkers...)
	r.mu.RUnlock()

	results := make(map[string]CheckResult, len(checkers))
	var (
		mu          sync.Mutex
		wg          sync.WaitGroup
		allHealthy  = true
		anyDegraded = false
	)

	for _, checker := range checkers {
		wg.Add(1)
		go func(checker Checker) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			err := checker.Check(checkCtx)

			result := CheckResult{Status: StatusHealthy, Timestamp: time.Now()}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Message = err.Error()
				if _, ok := checker.(optional); ok {
					result.Status = StatusDegraded
					anyDegraded = true
				} else {
					result.Status = StatusUnhealthy
					allHealthy = false
				}
			}
			results[checker.Name()] = result
		}(checker)
	}
	wg.Wait()

	overallStatus := StatusHealthy
	if !allHealthy {
		overallStatus = StatusUnhealthy
	} else if anyDegraded {
		overallStatus = StatusDegraded
	}

	return Health{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Checks:    results,
	}
}

func NewPostgreSQLChecker(db *sql.DB) Checker {
	return NewCheckerFunc("postgresql", func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgresql ping failed: %w", err)
		}
		return nil
	})
}

func NewRedisChecker(client redis.UniversalClient) Checker {
	return NewCheckerFunc("redis", func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		return nil
	})
}

func NewMongoDBChecker(client *mongo.Client) Checker {
	return NewCheckerFunc("mongodb", func(ctx context.Context) error {
		if err := client.Ping(ctx, nil); err != nil {
			return fmt.Errorf("mongodb ping failed: %w", err)
		}
		return nil
	})
}

// NewKafkaChecker dials the first reachable broker.
func NewKafkaChecker(brokers []string) Checker {
	return NewCheckerFunc("kafka", func(ctx context.Context) error {
		var lastErr error
		for _, addr := range brokers {
			conn, err := kafka.DialContext(ctx, "tcp", addr)
			if err != nil {
				lastErr = err
				continue
			}
			return conn.Close()
		}
		if lastErr == nil {
			return fmt.Errorf("no kafka brokers configured")
		}
		return fmt.Errorf("kafka dial failed: %w", lastErr)
	})
}
