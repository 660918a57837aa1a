package fakeband

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/fslongjin/bandsweep/internal/lifecycle"
	"github.com/fslongjin/bandsweep/internal/logx"
	"github.com/fslongjin/bandsweep/pkg/model"
	"github.com/gin-gonic/gin"
)

const htmlErrorPage = `<!DOCTYPE html>
<html><head><title>502 Bad Gateway</title></head>
<body><h1>Bad Gateway</h1><p>The upstream server is unavailable.</p></body></html>`

type Options struct {
	// ItemDelay is slept before each deleted item, simulating the upstream rate limit.
	ItemDelay time.Duration

	// ProgressInterval is how often the progress stream pushes an update.
	ProgressInterval time.Duration

	// StreamIdleTimeout bounds how long a progress stream waits for a deletion to start.
	StreamIdleTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = 500 * time.Millisecond
	}
	if o.StreamIdleTimeout <= 0 {
		o.StreamIdleTimeout = 30 * time.Second
	}
	return o
}

// Server serves the Band API proxy endpoints over a World.
type Server struct {
	world *World
	opts  Options
	drain *lifecycle.DrainManager

	faultMu     sync.RWMutex
	htmlErrors  bool
	remoteError string
	itemDelay   time.Duration
}

func New(f *Fixture, opts Options) *Server {
	opts = opts.withDefaults()
	return &Server{
		world:     NewWorld(f),
		opts:      opts,
		drain:     lifecycle.NewDrainManager(),
		itemDelay: opts.ItemDelay,
	}
}

func (s *Server) World() *World {
	return s.world
}

func (s *Server) Drain() *lifecycle.DrainManager {
	return s.drain
}

// SetHTMLErrors makes every /bands request answer with an HTML 502 page.
func (s *Server) SetHTMLErrors(on bool) {
	s.faultMu.Lock()
	s.htmlErrors = on
	s.faultMu.Unlock()
}

// SetRemoteError makes delete requests fail with a structured JSON error.
// An empty message clears the fault.
func (s *Server) SetRemoteError(message string) {
	s.faultMu.Lock()
	s.remoteError = message
	s.faultMu.Unlock()
}

func (s *Server) SetItemDelay(d time.Duration) {
	s.faultMu.Lock()
	s.itemDelay = d
	s.faultMu.Unlock()
}

func (s *Server) faults() (htmlErrors bool, remoteError string, itemDelay time.Duration) {
	s.faultMu.RLock()
	defer s.faultMu.RUnlock()
	return s.htmlErrors, s.remoteError, s.itemDelay
}

// Router returns a complete engine with the API mounted under /api.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logx.RequestIDMiddleware())
	r.Use(logx.AccessLogMiddleware("fakeband_http"))
	s.RegisterRoutes(r.Group("/api"))
	return r
}

func (s *Server) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.GET("/band", s.AuthURL)
		auth.POST("/oauth/token", s.ExchangeToken)
	}

	bands := r.Group("/bands")
	bands.Use(s.faultMiddleware())
	{
		bands.GET("", s.ListBands)
		bands.GET("/:key/comments/count", s.countHandler(model.ScopeAllComments))
		bands.GET("/:key/comments/count/keyword", s.countHandler(model.ScopeKeywordComments))
		bands.GET("/:key/posts/count", s.countHandler(model.ScopeAllPosts))
		bands.DELETE("/:key/comments", s.deleteHandler(model.ScopeAllComments))
		bands.DELETE("/:key/comments/keyword", s.deleteHandler(model.ScopeKeywordComments))
		bands.DELETE("/:key/posts", s.deleteHandler(model.ScopeAllPosts))
		bands.GET("/:key/progress", s.StreamProgress)
	}
}

func (s *Server) faultMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if htmlErrors, _, _ := s.faults(); htmlErrors {
			c.Data(http.StatusBadGateway, "text/html; charset=utf-8", []byte(htmlErrorPage))
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) AuthURL(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    model.AuthURLResponse{AuthURL: s.world.AuthURL()},
	})
}

func (s *Server) ExchangeToken(c *gin.Context) {
	var req model.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	cred, err := s.world.Exchange(req.Code)
	if err != nil {
		fail(c, http.StatusUnauthorized, err.Error())
		return
	}
	logx.WithComponent(c.Request.Context(), "fakeband").Info("code exchanged", "user_key", cred.IdentityID)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": cred})
}

func (s *Server) ListBands(c *gin.Context) {
	bands, err := s.world.Bands(c.Query("access_token"))
	if err != nil {
		failFor(c, err)
		return
	}
	var resp model.BandListResponse
	resp.ResultData.Bands = bands
	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp})
}

func (s *Server) countHandler(kind model.ScopeKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, ok := scopeFromRequest(c, kind)
		if !ok {
			return
		}
		n, err := s.world.Count(c.Query("access_token"), c.Param("key"), scope)
		if err != nil {
			failFor(c, err)
			return
		}
		// Comment counts come back at the top level, post counts under data.
		if kind == model.ScopeAllPosts {
			c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"count": n}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "count": n})
	}
}

func (s *Server) deleteHandler(kind model.ScopeKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, ok := scopeFromRequest(c, kind)
		if !ok {
			return
		}
		_, remoteError, itemDelay := s.faults()
		if remoteError != "" {
			c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": gin.H{"message": remoteError}})
			return
		}

		logger := logx.WithComponent(c.Request.Context(), "fakeband")
		logger.Info("deletion started", "band_key", c.Param("key"), "scope", scope.Key())
		outcome, err := s.world.Delete(c.Request.Context(), c.Query("access_token"), c.Param("key"), scope, itemDelay)
		if err != nil {
			if c.Request.Context().Err() != nil {
				logger.Warn("deletion abandoned by client", "band_key", c.Param("key"), "error", err)
				return
			}
			failFor(c, err)
			return
		}
		logger.Info("deletion finished",
			"band_key", c.Param("key"),
			"total", outcome.Total,
			"successful", outcome.Successful,
			"failed", outcome.Failed,
		)
		c.JSON(http.StatusOK, gin.H{"success": true, "data": wireOutcome(kind, outcome)})
	}
}

func scopeFromRequest(c *gin.Context, kind model.ScopeKind) (model.DeleteScope, bool) {
	scope := model.DeleteScope{Kind: kind, Keyword: c.Query("keyword")}
	if err := scope.Validate(); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return model.DeleteScope{}, false
	}
	return scope, true
}

// wireOutcome renders failed items the way the upstream proxy does:
// comments under failed_comments with an error object, posts under
// failed_posts with a plain error string.
func wireOutcome(kind model.ScopeKind, o *model.DeleteOutcome) gin.H {
	data := gin.H{
		"total":      o.Total,
		"successful": o.Successful,
		"failed":     o.Failed,
	}
	if len(o.FailedItems) == 0 {
		return data
	}
	items := make([]gin.H, 0, len(o.FailedItems))
	for _, item := range o.FailedItems {
		if kind == model.ScopeAllPosts {
			items = append(items, gin.H{"post_key": item.ItemID, "error": item.ErrorMessage})
		} else {
			items = append(items, gin.H{"comment_key": item.ItemID, "error": gin.H{"message": item.ErrorMessage}})
		}
	}
	if kind == model.ScopeAllPosts {
		data["failed_posts"] = items
	} else {
		data["failed_comments"] = items
	}
	return data
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}

func failFor(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrUnknownCode):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrNotMember):
		status = http.StatusForbidden
	case errors.Is(err, ErrUnknownBand):
		status = http.StatusNotFound
	}
	fail(c, status, err.Error())
}
