package health

import (
	"context"
	"encoding/json"
	"runtime"
	"sort"
	"strconv"
	"time"

	"webcarros-backend/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// DBPinger is optional for health check. If nil, database is reported as disconnected.
type DBPinger interface {
	Ping() error
}

// BlobPinger is the configured blob backend. Optional.
type BlobPinger interface {
	Ping(ctx context.Context) error
	Name() string
}

// CollectResult is the shape of /health/json and the dashboard.
type CollectResult struct {
	Status       string               `json:"status"`
	Runtime      RuntimeInfo          `json:"runtime"`
	Traffic      TrafficInfo          `json:"traffic"`
	Dependencies map[string]DepStatus `json:"dependencies"`
}

type RuntimeInfo struct {
	UptimeSeconds int64      `json:"uptimeSeconds"`
	Memory        MemoryInfo `json:"memory"`
	Goroutines    int        `json:"goroutines"`
	Platform      string     `json:"platform"`
	GoVersion     string     `json:"goVersion"`
}

type MemoryInfo struct {
	Alloc    int `json:"alloc"`
	HeapUsed int `json:"heapUsed"`
}

type TrafficInfo struct {
	TotalRequests   int         `json:"totalRequests"`
	SuccessCount    int         `json:"successCount"`
	FailedCount     int         `json:"failedCount"`
	SuccessRate     string      `json:"successRate"`
	AvgResponseTime interface{} `json:"avgResponseTime"`
	LastRequest     interface{} `json:"lastRequest"`
}

type DepStatus struct {
	Status  string      `json:"status"`
	PingMs  interface{} `json:"pingMs"`
	Backend string      `json:"backend,omitempty"`
}

// CollectHealth gathers health data from Redis, the optional DB and the optional blob backend.
func CollectHealth(ctx context.Context, rdb *redis.Client, db DBPinger, blobs BlobPinger) CollectResult {
	result := CollectResult{
		Dependencies: make(map[string]DepStatus),
	}

	dbStatus := "disconnected"
	var dbPingMs *int64
	if db != nil {
		start := time.Now()
		if err := db.Ping(); err == nil {
			ms := time.Since(start).Milliseconds()
			dbPingMs = &ms
			dbStatus = "connected"
		} else {
			dbStatus = "error"
		}
	}
	result.Dependencies["database"] = DepStatus{Status: dbStatus, PingMs: dbPingMs}

	blobStatus := ""
	if blobs != nil {
		blobStatus = "connected"
		var pingMs *int64
		start := time.Now()
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := blobs.Ping(pctx)
		cancel()
		if err == nil {
			ms := time.Since(start).Milliseconds()
			pingMs = &ms
		} else {
			blobStatus = "error"
		}
		result.Dependencies["storage"] = DepStatus{Status: blobStatus, PingMs: pingMs, Backend: blobs.Name()}
	}

	redisStatus := "disconnected"
	var redisPingMs *int64
	stats := TrafficInfo{AvgResponseTime: 0, SuccessRate: "100"}
	startTimeMs := time.Now().UnixMilli()

	if rdb != nil {
		start := time.Now()
		if err := rdb.Ping(ctx).Err(); err == nil {
			ms := time.Since(start).Milliseconds()
			redisPingMs = &ms
			redisStatus = "connected"

			vals, _ := rdb.MGet(ctx,
				middleware.KeyReqTotal,
				middleware.KeyReqErrors,
				middleware.KeyResTime,
				middleware.KeyResCount,
				middleware.KeyStartTime,
				middleware.KeyLastReq,
			).Result()
			get := func(i int) string {
				if i < len(vals) {
					if s, ok := vals[i].(string); ok {
						return s
					}
				}
				return ""
			}

			if startTimeStr := get(4); startTimeStr != "" {
				if t, err := strconv.ParseInt(startTimeStr, 10, 64); err == nil {
					startTimeMs = t
				}
			} else {
				rdb.Set(ctx, middleware.KeyStartTime, startTimeMs, 0)
			}

			stats.TotalRequests, _ = strconv.Atoi(get(0))
			stats.FailedCount, _ = strconv.Atoi(get(1))
			stats.SuccessCount = stats.TotalRequests - stats.FailedCount
			if stats.TotalRequests > 0 {
				stats.SuccessRate = strconv.FormatFloat(float64(stats.SuccessCount)/float64(stats.TotalRequests)*100, 'f', 1, 64)
			}
			timeSum, _ := strconv.ParseFloat(get(2), 64)
			countSum, _ := strconv.Atoi(get(3))
			if countSum > 0 {
				stats.AvgResponseTime = strconv.FormatFloat(timeSum/float64(countSum), 'f', 2, 64)
			}
			if lastReqStr := get(5); lastReqStr != "" {
				var lastReq map[string]interface{}
				_ = json.Unmarshal([]byte(lastReqStr), &lastReq)
				stats.LastRequest = lastReq
			}
		} else {
			redisStatus = "error"
		}
	}
	result.Dependencies["redis"] = DepStatus{Status: redisStatus, PingMs: redisPingMs}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptimeSec := (time.Now().UnixMilli() - startTimeMs) / 1000
	if uptimeSec < 0 {
		uptimeSec = 0
	}
	result.Runtime = RuntimeInfo{
		UptimeSeconds: uptimeSec,
		Memory:        MemoryInfo{Alloc: int(m.Alloc / 1024 / 1024), HeapUsed: int(m.HeapInuse / 1024 / 1024)},
		Goroutines:    runtime.NumGoroutine(),
		Platform:      runtime.GOOS + " (" + runtime.GOARCH + ")",
		GoVersion:     runtime.Version(),
	}
	result.Traffic = stats

	if dbStatus == "connected" && redisStatus == "connected" && blobStatus != "error" {
		result.Status = "ok"
	} else {
		result.Status = "issue"
	}
	return result
}

// DependencyNames returns the dependency keys in display order.
func (r CollectResult) DependencyNames() []string {
	names := make([]string, 0, len(r.Dependencies))
	for k := range r.Dependencies {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
