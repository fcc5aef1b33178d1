package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

// HealthChecker aggregates the health of the server's dependencies into a
// read-only diagnostic map. It is consumed by the readiness probe and by the
// operator CLI healthcheck command.
type HealthChecker struct {
	db    *sql.DB
	redis *redis.Client
}

// coreTables are the tables the schema migrations must have created for the
// application to be considered functional.
var coreTables = []string{
	"users", "profiles", "roles", "groups", "groups_users",
	"resources", "permissions", "secrets", "favorites",
	"authentication_tokens", "ui_actions", "rbacs",
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(db *sql.DB, redis *redis.Client) *HealthChecker {
	return &HealthChecker{
		db:    db,
		redis: redis,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Checks    map[string]bool `json:"checks,omitempty"`
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Liveness returns a simple liveness probe (always returns 200 if server is running)
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness returns a readiness probe (checks all dependencies)
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")

	// 503 when unhealthy, 200 when healthy or degraded
	if status.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(status)
}

// Check performs a comprehensive health check
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Dependencies: make(map[string]DependencyStatus),
	}

	if h.db != nil {
		dbStatus := h.checkDatabase(ctx)
		status.Dependencies["database"] = dbStatus
		if dbStatus.Status == StatusUnhealthy {
			status.Status = StatusUnhealthy
		} else if dbStatus.Status == StatusDegraded && status.Status != StatusUnhealthy {
			status.Status = StatusDegraded
		}
	}

	if h.redis != nil {
		cacheStatus := h.checkCache(ctx)
		status.Dependencies["cache"] = cacheStatus
		// The permission cache is optional: degraded, never unhealthy.
		if cacheStatus.Status == StatusUnhealthy && status.Status != StatusUnhealthy {
			status.Status = StatusDegraded
		}
	}

	return status
}

// checkDatabase checks PostgreSQL connectivity and schema presence
func (h *HealthChecker) checkDatabase(ctx context.Context) DependencyStatus {
	start := time.Now()
	status := DependencyStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]bool),
	}

	err := h.db.PingContext(ctx)
	status.Latency = time.Since(start)
	status.Checks["connect"] = err == nil

	if err != nil {
		status.Status = StatusUnhealthy
		status.Message = err.Error()
		return status
	}

	var one int
	if err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		status.Status = StatusUnhealthy
		status.Message = "query failed: " + err.Error()
		return status
	}

	tablesOK, missing := h.checkTables(ctx)
	status.Checks["schema"] = tablesOK
	if !tablesOK {
		status.Status = StatusDegraded
		status.Message = "missing tables: " + missing
	}

	return status
}

// checkTables verifies the core tables exist. Returns the first missing table
// name when the schema is incomplete.
func (h *HealthChecker) checkTables(ctx context.Context) (bool, string) {
	const q = `SELECT EXISTS (
		SELECT 1 FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	)`
	for _, table := range coreTables {
		var exists bool
		if err := h.db.QueryRowContext(ctx, q, table).Scan(&exists); err != nil || !exists {
			return false, table
		}
	}
	return true, ""
}

// checkCache checks Redis connectivity
func (h *HealthChecker) checkCache(ctx context.Context) DependencyStatus {
	start := time.Now()
	status := DependencyStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
	}

	err := h.redis.Ping(ctx).Err()
	status.Latency = time.Since(start)

	if err != nil {
		status.Status = StatusUnhealthy
		status.Message = err.Error()
	}

	return status
}

// Diagnostics flattens the health check into the key/value map printed by the
// operator CLI.
func (h *HealthChecker) Diagnostics(ctx context.Context) map[string]string {
	status := h.Check(ctx)
	out := map[string]string{
		"application": status.Status,
	}
	for name, dep := range status.Dependencies {
		out[name] = dep.Status
		if dep.Message != "" {
			out[name+".message"] = dep.Message
		}
		for check, ok := range dep.Checks {
			if ok {
				out[name+"."+check] = "ok"
			} else {
				out[name+"."+check] = "fail"
			}
		}
	}
	return out
}
