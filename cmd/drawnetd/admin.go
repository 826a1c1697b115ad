package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/inkwell-paint/drawnet/internal/auth"
	"github.com/inkwell-paint/drawnet/internal/observability"
	"github.com/inkwell-paint/drawnet/internal/peer"
	"github.com/inkwell-paint/drawnet/internal/session"
)

var startedAt = time.Now()

// newAdminServer wires the read-only admin API: health, session status, the
// live roster, and prometheus metrics. Kick is the one mutating endpoint.
func newAdminServer(daemon daemonConfig, sess *session.Session) *http.Server {
	observability.RegisterMetrics()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: daemon.AdminOrigins,
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))

	var validator auth.Validator
	if daemon.AdminToken != "" {
		validator = auth.StaticToken{Token: daemon.AdminToken}
	}
	r.Use(auth.Middleware(validator))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(startedAt).String(),
			"service": "drawnetd",
		})
	})

	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"state":          sess.State().String(),
			"status":         sess.Status(),
			"port":           sess.Port(),
			"code":           sess.JoinCode(),
			"stats":          sess.Stats(),
			"avg_latency_ms": avgLatencyMS(sess.Peers()),
		})
	})

	r.GET("/peers", func(c *gin.Context) {
		peers := sess.Peers()
		out := make([]gin.H, 0, len(peers))
		for _, p := range peers {
			out = append(out, gin.H{
				"id":         p.ID,
				"name":       p.Name,
				"addr":       p.Addr,
				"permission": p.Permission.String(),
				"connected":  p.Connected,
				"latency_ms": p.Latency.Milliseconds(),
			})
		}
		c.JSON(http.StatusOK, out)
	})

	r.POST("/peers/:id/kick", func(c *gin.Context) {
		var req struct {
			ID     uint32 `uri:"id" binding:"required"`
			Reason string `json:"reason"`
		}
		if err := c.ShouldBindUri(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		_ = c.ShouldBindJSON(&req) // reason is optional
		if req.Reason == "" {
			req.Reason = "removed by host"
		}
		if err := sess.Kick(req.ID, req.Reason); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"kicked": req.ID})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &http.Server{
		Addr:              daemon.AdminAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// avgLatencyMS averages measured round-trips, skipping peers without a
// sample yet.
func avgLatencyMS(peers []peer.Peer) int64 {
	var sum time.Duration
	n := 0
	for _, p := range peers {
		if p.Latency <= 0 {
			continue
		}
		sum += p.Latency
		n++
	}
	if n == 0 {
		return 0
	}
	return (sum / time.Duration(n)).Milliseconds()
}
