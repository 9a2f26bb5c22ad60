package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fly2outerspace/NeoChat/internal/eventbus"
	"github.com/fly2outerspace/NeoChat/internal/pkg/clock"
	"github.com/fly2outerspace/NeoChat/internal/vclock"
)

// ErrEmptySessionID 会话 ID 为空
var ErrEmptySessionID = errors.New("session_id 不能为空")

// ClockService 会话虚拟时钟：读取时按需创建，修改时按会话串行、整体保存。
//
// 虚拟时间从不后台推进，每次读取都由 vclock.Project 即时计算。
type ClockService struct {
	store  ClockStore
	clock  clock.Clock
	loc    *time.Location
	events EventPublisher
	locks  *keyedMutex
}

// ClockSnapshot 某一时刻的时钟状态及其投影结果
type ClockSnapshot struct {
	State          vclock.State
	CurrentVirtual time.Time
	CurrentReal    time.Time
}

// UpdateRequest 通用更新请求；指针字段为空表示未提供
type UpdateRequest struct {
	BaseVirtual  *string
	Actions      []vclock.Action
	ResetActions bool
	Rebase       *bool // 默认 true
}

// NewClockService 创建时钟服务；clk 为空时使用系统时钟，loc 为空时使用本地时区
func NewClockService(store ClockStore, clk clock.Clock, loc *time.Location, events EventPublisher) *ClockService {
	if clk == nil {
		clk = clock.Real{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &ClockService{
		store:  store,
		clock:  clk,
		loc:    loc,
		events: events,
		locks:  newKeyedMutex(),
	}
}

// Location 时间字符串所在时区
func (s *ClockService) Location() *time.Location {
	return s.loc
}

// GetOrCreate 读取时钟，不存在时以当前真实时间为锚点创建
func (s *ClockService) GetOrCreate(ctx context.Context, sessionID string) (vclock.State, error) {
	if sessionID == "" {
		return vclock.State{}, ErrEmptySessionID
	}
	st, err := s.loadOrCreate(ctx, sessionID)
	if err != nil {
		return vclock.State{}, err
	}
	return *st, nil
}

// Snapshot 读取时钟并计算当前虚拟时间
func (s *ClockService) Snapshot(ctx context.Context, sessionID string) (ClockSnapshot, error) {
	st, err := s.GetOrCreate(ctx, sessionID)
	if err != nil {
		return ClockSnapshot{}, err
	}
	return s.snapshot(st, s.clock.Now()), nil
}

// CurrentTime 当前虚拟时间（整秒）
func (s *ClockService) CurrentTime(ctx context.Context, sessionID string) (time.Time, error) {
	snap, err := s.Snapshot(ctx, sessionID)
	if err != nil {
		return time.Time{}, err
	}
	return snap.CurrentVirtual, nil
}

// FormatNow 按格式输出当前虚拟时间
func (s *ClockService) FormatNow(ctx context.Context, sessionID string, format TimeFormat) (string, error) {
	now, err := s.CurrentTime(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return FormatTime(now, s.loc, format), nil
}

// Seek 跳转到 target（YYYY-MM-DD HH:MM:SS），清空动作日志
func (s *ClockService) Seek(ctx context.Context, sessionID, target string) (ClockSnapshot, error) {
	ts, err := vclock.ParseTimestamp(target, s.loc)
	if err != nil {
		return ClockSnapshot{}, err
	}
	return s.mutate(ctx, sessionID, "seek", func(st vclock.State, now time.Time) (vclock.State, error) {
		return vclock.Seek(st, ts, now)
	})
}

// Nudge 追加 offset 动作，幅度不限，可为负
func (s *ClockService) Nudge(ctx context.Context, sessionID string, deltaSeconds float64) (ClockSnapshot, error) {
	if err := vclock.OffsetAction(deltaSeconds).Validate(); err != nil {
		return ClockSnapshot{}, err
	}
	return s.mutate(ctx, sessionID, "nudge", func(st vclock.State, now time.Time) (vclock.State, error) {
		return vclock.Nudge(st, deltaSeconds, now)
	})
}

// SetSpeed 设置倍速；0 即暂停，负数返回 ErrInvalidSpeed
func (s *ClockService) SetSpeed(ctx context.Context, sessionID string, speed float64) (ClockSnapshot, error) {
	// 先校验再读取，非法输入不触发默认时钟的创建
	if err := vclock.ScaleAction(speed).Validate(); err != nil {
		return ClockSnapshot{}, err
	}
	return s.mutate(ctx, sessionID, "set_speed", func(st vclock.State, now time.Time) (vclock.State, error) {
		return vclock.SetSpeed(st, speed, now)
	})
}

// Freeze 冻结时钟
func (s *ClockService) Freeze(ctx context.Context, sessionID, note string) (ClockSnapshot, error) {
	return s.mutate(ctx, sessionID, "freeze", func(st vclock.State, now time.Time) (vclock.State, error) {
		return vclock.Freeze(st, note, now)
	})
}

// Rebase 压平动作日志，显示时间不变
func (s *ClockService) Rebase(ctx context.Context, sessionID string) (ClockSnapshot, error) {
	return s.mutate(ctx, sessionID, "rebase", func(st vclock.State, now time.Time) (vclock.State, error) {
		return vclock.Rebase(st, now)
	})
}

// Update 通用更新：替换基准、追加/重置动作、可选 rebase
func (s *ClockService) Update(ctx context.Context, sessionID string, req UpdateRequest) (ClockSnapshot, error) {
	u := vclock.Update{
		Actions:      req.Actions,
		ResetActions: req.ResetActions,
		Rebase:       true,
	}
	if req.Rebase != nil {
		u.Rebase = *req.Rebase
	}
	if req.BaseVirtual != nil {
		ts, err := vclock.ParseTimestamp(*req.BaseVirtual, s.loc)
		if err != nil {
			return ClockSnapshot{}, fmt.Errorf("base_virtual: %w", err)
		}
		u.BaseVirtual = &ts
	}
	if err := vclock.ValidateActions(u.Actions); err != nil {
		return ClockSnapshot{}, err
	}
	return s.mutate(ctx, sessionID, "update", func(st vclock.State, now time.Time) (vclock.State, error) {
		return vclock.ApplyUpdate(st, u, now)
	})
}

// mutate 读取-修改-保存；同一会话串行。任一步失败都不落库。
func (s *ClockService) mutate(
	ctx context.Context,
	sessionID, op string,
	fn func(st vclock.State, now time.Time) (vclock.State, error),
) (ClockSnapshot, error) {
	if sessionID == "" {
		return ClockSnapshot{}, ErrEmptySessionID
	}
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return ClockSnapshot{}, err
	}
	current, err := s.loadOrCreate(ctx, sessionID)
	if err != nil {
		return ClockSnapshot{}, err
	}

	now := s.clock.Now()
	next, err := fn(*current, now)
	if err != nil {
		return ClockSnapshot{}, err
	}
	if err := ctx.Err(); err != nil {
		return ClockSnapshot{}, err
	}
	if err := s.store.Save(ctx, &next); err != nil {
		slog.Warn("保存会话时钟失败", "session_id", sessionID, "op", op, "error", err)
		return ClockSnapshot{}, fmt.Errorf("保存会话时钟失败: %w", err)
	}

	snap := s.snapshot(next, now)
	slog.Info("会话时钟已更新",
		"session_id", sessionID,
		"op", op,
		"virtual_now", vclock.FormatTimestamp(snap.CurrentVirtual, s.loc),
		"actions", len(next.Actions),
	)
	s.publish(sessionID, op, snap)
	return snap, nil
}

func (s *ClockService) loadOrCreate(ctx context.Context, sessionID string) (*vclock.State, error) {
	st, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("读取会话时钟失败: %w", err)
	}
	if st != nil {
		return st, nil
	}
	st, err = s.store.CreateDefault(ctx, sessionID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("创建会话时钟失败: %w", err)
	}
	slog.Debug("会话时钟已创建", "session_id", sessionID)
	return st, nil
}

func (s *ClockService) snapshot(st vclock.State, now time.Time) ClockSnapshot {
	return ClockSnapshot{
		State:          st,
		CurrentVirtual: vclock.Project(st, now).Truncate(time.Second),
		CurrentReal:    now.Truncate(time.Second),
	}
}

func (s *ClockService) publish(sessionID, op string, snap ClockSnapshot) {
	if s.events == nil {
		return
	}
	s.events.Publish(eventbus.Event{
		Type:      eventbus.TypeClockUpdated,
		SessionID: sessionID,
		Data: map[string]any{
			"op":                   op,
			"current_virtual_time": vclock.FormatTimestamp(snap.CurrentVirtual, s.loc),
			"speed":                snap.State.EffectiveSpeed(),
			"actions":              len(snap.State.Actions),
		},
	})
}
