package server

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emilythestrangee/kaen/internal/cache"
	"github.com/emilythestrangee/kaen/internal/config"
	"github.com/emilythestrangee/kaen/internal/database"
	"github.com/emilythestrangee/kaen/internal/handlers"
	"github.com/emilythestrangee/kaen/internal/logger"
	"github.com/emilythestrangee/kaen/internal/markdown"
	"github.com/emilythestrangee/kaen/internal/middleware"
)

type Server struct {
	cfg     *config.Config
	db      database.Service
	handler *handlers.Handler
	tokens  *middleware.Tokens
	limiter *middleware.RateLimiter
}

// New wires the repositories on top of db. comments caches comment
// collections per post; nil means an in-process cache.
func New(cfg *config.Config, db database.Service, comments cache.Store) *Server {
	gdb := db.GetDB()
	tokens := middleware.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	handler := handlers.NewHandler(handlers.Deps{
		Users:       database.NewUserRepository(gdb),
		Posts:       database.NewPostRepository(gdb),
		Comments:    database.NewCommentRepository(gdb),
		Votes:       database.NewVoteRepository(gdb),
		Communities: database.NewCommunityRepository(gdb),
		Cache:       comments,
		Tokens:      tokens,
		Markdown:    markdown.New(),
	})
	return newServer(cfg, db, tokens, handler)
}

func newServer(cfg *config.Config, db database.Service, tokens *middleware.Tokens, handler *handlers.Handler) *Server {
	return &Server{
		cfg:     cfg,
		db:      db,
		handler: handler,
		tokens:  tokens,
		limiter: middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}
}

// NewServer creates and configures the HTTP server. Background work is tied
// to ctx.
func NewServer(ctx context.Context, cfg *config.Config, db database.Service, comments cache.Store) *http.Server {
	s := New(cfg, db, comments)
	s.limiter.StartSweeper(ctx, 5*time.Minute)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	logger.Log.Info("🚀 Server configured", "port", cfg.Port)
	return server
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog(), middleware.Metrics())

	r.Use(cors.New(corsConfig(s.cfg.CORSOrigins)))

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		// Auth routes (public)
		api.POST("/register", s.handler.Auth.Register)
		api.POST("/login", s.handler.Auth.Login)

		api.GET("/communities", s.handler.Community.GetCommunities)
		api.GET("/posts", s.handler.Post.GetPosts)
		api.GET("/posts/:id", s.handler.Post.GetPost)

		api.GET("/posts/:id/comments", s.handler.Comment.GetComments)
		api.GET("/posts/:id/comments/tree", s.handler.Comment.GetCommentTree)
		api.GET("/posts/:id/thread", middleware.OptionalAuth(s.tokens), s.handler.Comment.GetThread)

		api.GET("/users/:id", s.handler.User.GetUserProfile)
		api.GET("/users/:id/posts", s.handler.Post.GetUserPosts)

		// Protected routes (authentication required)
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(s.tokens), s.limiter.Middleware())
		{
			protected.GET("/me", s.handler.Auth.GetMe)

			protected.POST("/communities", s.handler.Community.CreateCommunity)

			protected.POST("/posts", s.handler.Post.CreatePost)
			protected.PUT("/posts/:id", s.handler.Post.UpdatePost)
			protected.DELETE("/posts/:id", s.handler.Post.DeletePost)
			protected.POST("/posts/:id/vote", s.handler.Post.VotePost)

			protected.POST("/posts/:id/comments", s.handler.Comment.CreateComment)
			protected.PUT("/comments/:commentId", s.handler.Comment.UpdateComment)
			protected.DELETE("/comments/:commentId", s.handler.Comment.DeleteComment)
			protected.POST("/comments/:commentId/vote", s.handler.Comment.VoteComment)
			protected.POST("/comments/:commentId/upvote", s.handler.Comment.UpvoteComment)
			protected.POST("/comments/:commentId/downvote", s.handler.Comment.DownvoteComment)

			protected.PUT("/users/:id", s.handler.User.UpdateUserProfile)
		}
	}

	return r
}

func (s *Server) health(c *gin.Context) {
	stats := s.db.Health()
	if stats["status"] != "up" {
		c.JSON(http.StatusServiceUnavailable, stats)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// corsConfig allows any origin when origins is empty or contains "*".
// Credentials are only allowed for an explicit origin list.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:  []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
