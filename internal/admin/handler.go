// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/planejarpatrimonio/backend/internal/core"
	"github.com/planejarpatrimonio/backend/internal/seed"
	"github.com/planejarpatrimonio/backend/internal/user"
)

type UserCounter interface {
	CountByRole(ctx context.Context) (map[user.Role]int, error)
}

type ProjectCounter interface {
	Count(ctx context.Context) (int, error)
}

type Seeder interface {
	Initialize(ctx context.Context) (seed.Result, error)
	Clear(ctx context.Context) error
}

type Handler struct {
	users      UserCounter
	projects   ProjectCounter
	seeder     Seeder
	dbStats    func() sql.DBStats
	redisStats func() *redis.PoolStats
}

type HandlerConfig struct {
	Users      UserCounter
	Projects   ProjectCounter
	Seeder     Seeder
	DBStats    func() sql.DBStats
	RedisStats func() *redis.PoolStats
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		users:      cfg.Users,
		projects:   cfg.Projects,
		seeder:     cfg.Seeder,
		dbStats:    cfg.DBStats,
		redisStats: cfg.RedisStats,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.GetStats)
		r.Get("/stats/runtime", h.GetRuntimeStats)
		r.Post("/seed", h.Seed)
		r.Delete("/data", h.ClearData)
	})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	byRole, err := h.users.CountByRole(ctx)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	projects, err := h.projects.Count(ctx)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	users := UserStats{ByRole: make(map[string]int, len(byRole))}
	for role, n := range byRole {
		users.ByRole[string(role)] = n
		users.Total += n
	}

	core.OK(w, StatsResponse{
		Users:    users,
		Projects: projects,
		Database: h.getDBStats(),
		Redis:    h.getRedisStats(),
		Runtime:  runtimeStats(),
	})
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, runtimeStats())
}

func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	res, err := h.seeder.Initialize(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	if res.AlreadySeeded {
		core.OK(w, res)
		return
	}
	core.Created(w, res)
}

func (h *Handler) ClearData(w http.ResponseWriter, r *http.Request) {
	if err := h.seeder.Clear(r.Context()); err != nil {
		if errors.Is(err, seed.ErrProductionClear) {
			core.Forbidden(w, "clearing data is disabled in production")
			return
		}
		core.InternalServerError(w, err)
		return
	}
	core.NoContent(w)
}

func runtimeStats() RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     mem.Alloc,
		MemSys:       mem.Sys,
		NumGC:        mem.NumGC,
	}
}

func (h *Handler) getDBStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
	}
}

func (h *Handler) getRedisStats() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
	}
}

type StatsResponse struct {
	Users    UserStats       `json:"users"`
	Projects int             `json:"projects"`
	Database *DBPoolStats    `json:"database,omitempty"`
	Redis    *RedisPoolStats `json:"redis,omitempty"`
	Runtime  RuntimeStats    `json:"runtime"`
}

type UserStats struct {
	Total  int            `json:"total"`
	ByRole map[string]int `json:"by_role"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"max_open_connections"`
	OpenConnections    int    `json:"open_connections"`
	InUse              int    `json:"in_use"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"wait_count"`
	WaitDuration       string `json:"wait_duration"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
	MemSys       uint64 `json:"mem_sys_bytes"`
	NumGC        uint32 `json:"num_gc"`
}
