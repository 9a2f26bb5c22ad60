package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fly2outerspace/NeoChat/internal/bootstrap"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type LocalServer struct {
	core    *bootstrap.Core
	ln      net.Listener
	srv     *http.Server
	baseURL string
}

type Options struct {
	ListenAddr string // e.g. "127.0.0.1:8000"
}

// Start 监听并在后台提供 HTTP 服务；ctx 结束后自动关闭
func Start(ctx context.Context, core *bootstrap.Core, opts Options) (*LocalServer, error) {
	if core == nil {
		return nil, fmt.Errorf("core 不能为空")
	}
	if strings.TrimSpace(opts.ListenAddr) == "" {
		opts.ListenAddr = core.Cfg.Server.ListenAddr
	}

	ln, err := net.Listen("tcp", opts.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("监听 %s 失败: %w", opts.ListenAddr, err)
	}
	baseURL := "http://" + ln.Addr().String()

	srv := &http.Server{
		Handler:           NewRouter(core),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ls := &LocalServer{
		core:    core,
		ln:      ln,
		srv:     srv,
		baseURL: baseURL,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ls.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server 异常退出", "error", err)
		}
	}()

	slog.Info("HTTP 服务已启动", "base_url", baseURL)
	return ls, nil
}

func (s *LocalServer) BaseURL() string {
	if s == nil {
		return ""
	}
	return s.baseURL
}

func (s *LocalServer) Shutdown(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// NewRouter 构建 gin 路由
func NewRouter(core *bootstrap.Core) *gin.Engine {
	if !core.Cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(core.Cfg.Server.AllowedOrigins)))
	router.Use(LoggingMiddleware())

	api := newAPI(core)

	router.GET("/health", api.handleHealth)
	router.GET("/api/events", api.handleSSE)

	v1 := router.Group("/v1")
	v1.Use(TimeoutMiddleware(core.Cfg.Server.RequestTimeout()))
	{
		v1.GET("/sessions", api.listSessions)
		v1.POST("/sessions", api.createSession)

		session := v1.Group("/sessions/:id")
		session.Use(api.requireSession)
		{
			session.GET("", api.getSession)
			session.DELETE("", api.deleteSession)

			session.GET("/messages", api.listMessages)
			session.POST("/messages", api.createMessage)

			session.GET("/time", api.getClock)
			session.PUT("/time", api.updateClock)
			session.GET("/time/now", api.getCurrentTime)
			session.POST("/time/seek", api.seek)
			session.POST("/time/nudge", api.nudge)
			session.POST("/time/speed", api.setSpeed)
			session.POST("/time/freeze", api.freeze)
			session.POST("/time/rebase", api.rebase)
		}
	}
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	allowAll := len(origins) == 0
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
