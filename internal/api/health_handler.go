package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/zysolutions/octodash/internal/pkg/httputil"
)

// HealthStatus represents the overall health of the system.
type HealthStatus struct {
	Status  string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HeadBucketAPI is the S3 call used to probe the image bucket.
type HeadBucketAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// UpstreamCaller reaches the EmailOctopus API.
type UpstreamCaller interface {
	Call(ctx context.Context, endpoint, method string, body interface{}) (json.RawMessage, error)
}

// SnapshotAge reports when the usage snapshot was last computed.
type SnapshotAge interface {
	FetchedAt() (time.Time, bool)
}

// HealthChecker checks every dependency: EmailOctopus, the usage cache,
// Postgres, Redis and S3.
type HealthChecker struct {
	octopus     UpstreamCaller
	cache       SnapshotAge
	db          *sql.DB
	redisClient *redis.Client
	s3Client    HeadBucketAPI
	s3Bucket    string
	clock       clockwork.Clock
	startTime   time.Time
}

// NewHealthChecker creates a new HealthChecker.
// Any dependency can be nil; the check will report "not configured" for nil deps.
func NewHealthChecker(octopus UpstreamCaller, cache SnapshotAge, db *sql.DB, redisClient *redis.Client, s3Client HeadBucketAPI, s3Bucket string) *HealthChecker {
	clock := clockwork.NewRealClock()
	return &HealthChecker{
		octopus:     octopus,
		cache:       cache,
		db:          db,
		redisClient: redisClient,
		s3Client:    s3Client,
		s3Bucket:    s3Bucket,
		clock:       clock,
		startTime:   clock.Now(),
	}
}

// SetClock replaces the clock used for uptime and latency.
func (hc *HealthChecker) SetClock(clock clockwork.Clock) {
	hc.clock = clock
	hc.startTime = clock.Now()
}

const (
	healthVersion = "1.0.0"
	notConfigured = "not configured"
)

// HandleHealth returns the status of all components.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())

	// Always 200; /health/ready is the probe that returns 503.
	httputil.OK(w, HealthStatus{
		Status:  determineOverallStatus(checks),
		Version: healthVersion,
		Uptime:  formatUptime(hc.clock.Since(hc.startTime)),
		Checks:  checks,
	})
}

// HandleLiveness always returns 200 while the process runs.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{
		"status": "alive",
		"uptime": formatUptime(hc.clock.Since(hc.startTime)),
	})
}

// HandleReadiness returns 503 when a critical dependency is down.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	overall := determineOverallStatus(checks)

	ready := overall != "unhealthy"
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	httputil.JSON(w, status, map[string]interface{}{
		"ready":  ready,
		"status": overall,
		"checks": checks,
	})
}

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	type result struct {
		name  string
		check ComponentCheck
	}
	ch := make(chan result, 5)

	go func() { ch <- result{"emailoctopus", hc.checkEmailOctopus(ctx)} }()
	go func() { ch <- result{"usage_cache", hc.checkUsageCache()} }()
	go func() { ch <- result{"database", hc.checkDatabase(ctx)} }()
	go func() { ch <- result{"redis", hc.checkRedis(ctx)} }()
	go func() { ch <- result{"s3", hc.checkS3(ctx)} }()

	checks := make(map[string]ComponentCheck, 5)
	for i := 0; i < 5; i++ {
		r := <-ch
		checks[r.name] = r.check
	}
	return checks
}

// timed runs fn with a timeout and classifies the result by latency.
func (hc *HealthChecker) timed(ctx context.Context, timeout, slow time.Duration, fn func(context.Context) error, okMsg string) ComponentCheck {
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := hc.clock.Now()
	err := fn(checkCtx)
	latency := hc.clock.Since(start)

	if err != nil {
		return ComponentCheck{
			Status:  "down",
			Latency: latency.String(),
			Message: err.Error(),
		}
	}
	if latency > slow {
		return ComponentCheck{
			Status:  "degraded",
			Latency: latency.String(),
			Message: fmt.Sprintf("slow response (%s)", latency),
		}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: okMsg}
}

// checkEmailOctopus fetches a single list page.
func (hc *HealthChecker) checkEmailOctopus(ctx context.Context) ComponentCheck {
	if hc.octopus == nil {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}
	return hc.timed(ctx, 5*time.Second, 2*time.Second, func(ctx context.Context) error {
		if _, err := hc.octopus.Call(ctx, "/lists?limit=1", http.MethodGet, nil); err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		return nil
	}, "reachable")
}

// checkUsageCache reports the age of the last computed snapshot.
func (hc *HealthChecker) checkUsageCache() ComponentCheck {
	if hc.cache == nil {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}
	at, ok := hc.cache.FetchedAt()
	if !ok {
		return ComponentCheck{Status: "up", Message: "no snapshot yet"}
	}
	return ComponentCheck{
		Status:  "up",
		Message: fmt.Sprintf("snapshot age %s", hc.clock.Since(at).Truncate(time.Second)),
	}
}

// checkDatabase pings PostgreSQL with a 3-second timeout.
func (hc *HealthChecker) checkDatabase(ctx context.Context) ComponentCheck {
	if hc.db == nil {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}
	return hc.timed(ctx, 3*time.Second, time.Second, func(ctx context.Context) error {
		if err := hc.db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}
		return nil
	}, "connected")
}

// checkRedis pings Redis with a 2-second timeout.
func (hc *HealthChecker) checkRedis(ctx context.Context) ComponentCheck {
	if hc.redisClient == nil {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}
	return hc.timed(ctx, 2*time.Second, 500*time.Millisecond, func(ctx context.Context) error {
		if err := hc.redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}
		return nil
	}, "connected")
}

// checkS3 verifies the image bucket is reachable via HeadBucket.
func (hc *HealthChecker) checkS3(ctx context.Context) ComponentCheck {
	if hc.s3Client == nil || hc.s3Bucket == "" {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}
	return hc.timed(ctx, 3*time.Second, 2*time.Second, func(ctx context.Context) error {
		if _, err := hc.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &hc.s3Bucket}); err != nil {
			return fmt.Errorf("HeadBucket failed: %w", err)
		}
		return nil
	}, fmt.Sprintf("bucket %q accessible", hc.s3Bucket))
}

// determineOverallStatus derives the aggregate status from individual checks.
//
// Rules:
//   - "unhealthy" if EmailOctopus is configured and down
//   - "degraded"  if any check is degraded or a configured check is down
//   - "healthy"   otherwise
func determineOverallStatus(checks map[string]ComponentCheck) string {
	if eo, ok := checks["emailoctopus"]; ok && eo.Status == "down" && eo.Message != notConfigured {
		return "unhealthy"
	}

	for _, c := range checks {
		if c.Status == "degraded" {
			return "degraded"
		}
		if c.Status == "down" && c.Message != notConfigured {
			return "degraded"
		}
	}
	return "healthy"
}

// formatUptime produces a human-readable uptime string like "3d 4h 12m 5s".
func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
