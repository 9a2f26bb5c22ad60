package bootstrap

import (
	"time"

	"github.com/fly2outerspace/NeoChat/internal/eventbus"
	"github.com/fly2outerspace/NeoChat/internal/pkg/clock"
	"github.com/fly2outerspace/NeoChat/internal/pkg/config"
	"github.com/fly2outerspace/NeoChat/internal/repository"
	"github.com/fly2outerspace/NeoChat/internal/service"
)

// Core 持有跨子命令共享的核心依赖
type Core struct {
	Cfg *config.Config
	DB  *repository.Database
	Loc *time.Location
	Hub *eventbus.Hub

	Repos struct {
		Sessions *repository.ChatSessionRepository
		Clocks   *repository.SessionClockRepository
		Messages *repository.MessageRepository
	}

	Services struct {
		Sessions *service.ChatSessionService
		Clocks   *service.ClockService
		Messages *service.MessageService
	}
}

// NewCore 加载配置并构建核心依赖
func NewCore(cfgPath string) (*Core, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	config.SetupLogger(cfg.App.LogLevel)
	return NewCoreFromConfig(cfg, clock.Real{})
}

// NewCoreFromConfig 以已加载的配置构建核心依赖；clk 为墙钟来源
func NewCoreFromConfig(cfg *config.Config, clk clock.Clock) (*Core, error) {
	loc, err := cfg.Clock.Location()
	if err != nil {
		return nil, err
	}

	db, err := repository.NewDatabase(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	c := &Core{Cfg: cfg, DB: db, Loc: loc, Hub: eventbus.NewHub()}

	// Repos
	c.Repos.Sessions = repository.NewChatSessionRepository(db.DB)
	c.Repos.Clocks = repository.NewSessionClockRepository(db.DB, loc)
	c.Repos.Messages = repository.NewMessageRepository(db.DB)

	// Services
	c.Services.Sessions = service.NewChatSessionService(c.Repos.Sessions, c.Hub)
	c.Services.Clocks = service.NewClockService(c.Repos.Clocks, clk, loc, c.Hub)
	c.Services.Messages = service.NewMessageService(c.Repos.Messages, c.Services.Clocks, clk, loc, c.Hub)

	return c, nil
}

// Close 关闭核心依赖资源
func (c *Core) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
