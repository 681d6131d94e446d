// Package api wires the HTTP surface: station registration, people
// management, attendance marking, and the aggregation reports.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"presence/internal/attendance"
	"presence/internal/auth"
	"presence/internal/config"
	"presence/internal/httpmiddleware"
	"presence/internal/queue"
	"presence/internal/recognizer"
	"presence/internal/roster"
	"presence/internal/station"
)

// Server bundles the constructor-injected collaborators for the HTTP
// handlers. Cache may be nil; report caching is then skipped.
type Server struct {
	Config     config.App
	People     roster.Store
	Entries    attendance.Store
	Marks      *attendance.Service
	Stations   station.Store
	Recognizer recognizer.Recognizer
	Queue      queue.Queue
	Cache      *redis.Client

	DBHealthy    func(context.Context) bool
	RedisHealthy func(context.Context) bool
}

// NewRouter builds the gin engine with the full middleware chain and
// route table.
func NewRouter(s *Server) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(s.Config.RateLimitPerMin, s.Config.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", s.healthz)

	r.POST("/v1/stations/register", s.registerStation)

	v1 := r.Group("/v1", auth.Bearer(s.Config.JWTSigningKey, s.Config.JWTIssuer))
	{
		v1.POST("/people", s.createPerson)
		v1.GET("/people", s.listPeople)
		v1.GET("/people/:id", s.getPerson)
		v1.PUT("/people/:id", s.updatePerson)
		v1.DELETE("/people/:id", s.deletePerson)
		v1.POST("/people/:id/face", s.enrollFace)

		v1.POST("/checkins", s.checkIn)
		v1.POST("/overrides", s.override)
		v1.GET("/entries", s.listEntries)

		v1.GET("/reports/daily", s.dailyReport)
		v1.GET("/reports/range", s.rangeReport)
		v1.GET("/reports/people/:id", s.personReport)
		v1.GET("/reports/departments", s.departmentReport)
	}

	return r
}

func (s *Server) healthz(c *gin.Context) {
	ctx := c.Request.Context()
	dbHealthy := s.DBHealthy == nil || s.DBHealthy(ctx)
	redisHealthy := s.RedisHealthy == nil || s.RedisHealthy(ctx)
	status := http.StatusOK
	if !dbHealthy || !redisHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": "ok", "db": dbHealthy, "redis": redisHealthy})
}

func (s *Server) registerStation(c *gin.Context) {
	var req struct {
		StationID string `json:"station_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.Stations.Register(c.Request.Context(), req.StationID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tokens, err := auth.Issue(req.StationID, "station", s.Config.JWTIssuer, s.Config.JWTSigningKey, s.Config.AccessTTL, s.Config.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}

	_ = s.Stations.SaveRefreshToken(c.Request.Context(), req.StationID, tokens.RefreshToken, tokens.RefreshExp)

	c.JSON(http.StatusCreated, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

func (s *Server) createPerson(c *gin.Context) {
	var req struct {
		Role       string `json:"role" binding:"required"`
		Name       string `json:"name" binding:"required"`
		Email      string `json:"email"`
		Department string `json:"department"`
		Cohort     string `json:"cohort"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role := roster.Role(req.Role)
	if !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be student or faculty"})
		return
	}

	p, err := s.People.Create(c.Request.Context(), roster.Person{
		Role:       role,
		Name:       req.Name,
		Email:      req.Email,
		Department: req.Department,
		Cohort:     req.Cohort,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) listPeople(c *gin.Context) {
	people, err := s.People.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"people": people})
}

func (s *Server) getPerson(c *gin.Context) {
	p, err := s.People.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) updatePerson(c *gin.Context) {
	var req struct {
		Role       string `json:"role" binding:"required"`
		Name       string `json:"name" binding:"required"`
		Email      string `json:"email"`
		Department string `json:"department"`
		Cohort     string `json:"cohort"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role := roster.Role(req.Role)
	if !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be student or faculty"})
		return
	}

	err := s.People.Update(c.Request.Context(), roster.Person{
		ID:         c.Param("id"),
		Role:       role,
		Name:       req.Name,
		Email:      req.Email,
		Department: req.Department,
		Cohort:     req.Cohort,
	})
	if err == roster.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

func (s *Server) deletePerson(c *gin.Context) {
	err := s.People.Delete(c.Request.Context(), c.Param("id"))
	if err == roster.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// enrollFace derives a gallery signature for the person and flips the
// enrollment flag. Re-enrollment overwrites the stored signature.
func (s *Server) enrollFace(c *gin.Context) {
	var req struct {
		Sample string `json:"sample" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide {\"sample\": \"<base64 image>\"}"})
		return
	}
	sample, err := base64.StdEncoding.DecodeString(req.Sample)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sample must be base64"})
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	p, err := s.People.Get(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return
	}

	sig, err := s.Recognizer.Enroll(ctx, id, sample)
	if err != nil {
		log.Printf("enroll failed for %s: %v", id, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "enrollment failed"})
		return
	}
	if err := s.People.SaveSignature(ctx, id, sig); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := s.People.SetFaceEnrolled(ctx, id, true); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enrolled": true})
}

// checkinPayload is the queue message body handed to the worker.
type checkinPayload struct {
	EntryID string `json:"entry_id"`
	Sample  string `json:"sample,omitempty"`
}

func (s *Server) checkIn(c *gin.Context) {
	var req struct {
		PersonID  string `json:"person_id" binding:"required"`
		StationID string `json:"station_id" binding:"required"`
		At        string `json:"at"`
		Sample    string `json:"sample"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claimsAny, _ := c.Get("claims")
	claims, _ := claimsAny.(auth.Claims)
	if claims.Role == "station" && claims.Subject != "" && claims.Subject != req.StationID {
		c.JSON(http.StatusForbidden, gin.H{"error": "station mismatch"})
		return
	}

	var at time.Time
	if req.At != "" {
		parsed, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "at must be RFC3339"})
			return
		}
		at = parsed
	}

	entry, err := s.Marks.Mark(c.Request.Context(), req.PersonID, req.StationID, at, 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if s.Queue != nil && req.Sample != "" {
		body, _ := json.Marshal(checkinPayload{EntryID: entry.ID, Sample: req.Sample})
		if err := s.Queue.Publish(c.Request.Context(), queue.Message{Type: "checkin", Body: body}); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
	}

	c.JSON(http.StatusAccepted, gin.H{"entry_id": entry.ID, "occurred_at": entry.OccurredAt, "status": entry.Status})
}

func (s *Server) override(c *gin.Context) {
	var req struct {
		PersonID string `json:"person_id" binding:"required"`
		At       string `json:"at" binding:"required"`
		Status   string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	at, err := time.Parse(time.RFC3339, req.At)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at must be RFC3339"})
		return
	}

	entry, err := s.Marks.Override(c.Request.Context(), req.PersonID, at, attendance.Status(req.Status))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) listEntries(c *gin.Context) {
	f := attendance.ListFilter{
		PersonID:  c.Query("person_id"),
		StationID: c.Query("station_id"),
		Limit:     50,
	}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.Limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.Offset = parsed
		}
	}
	entries, err := s.Entries.List(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
