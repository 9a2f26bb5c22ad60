package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fly2outerspace/NeoChat/internal/schema"
	"github.com/fly2outerspace/NeoChat/internal/vclock"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionClockRepository 会话时钟仓储
//
// 写入语义：Save 以 revision 做 CAS，单条语句完成，不存在部分写入；
// 读取返回的是某次完整写入后的快照。
type SessionClockRepository struct {
	db  *gorm.DB
	loc *time.Location
}

// NewSessionClockRepository 创建时钟仓储，loc 为时间字符串所在时区
func NewSessionClockRepository(db *gorm.DB, loc *time.Location) *SessionClockRepository {
	if loc == nil {
		loc = time.Local
	}
	return &SessionClockRepository{db: db, loc: loc}
}

// Load 读取时钟；不存在返回 nil, nil
func (r *SessionClockRepository) Load(ctx context.Context, sessionID string) (*vclock.State, error) {
	var row schema.SessionClock
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: 查询会话时钟失败: %w", vclock.ErrPersistence, err)
	}
	st, err := r.toState(row)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// CreateDefault 以 now 为锚点创建默认时钟；并发创建时以先写入者为准
func (r *SessionClockRepository) CreateDefault(ctx context.Context, sessionID string, now time.Time) (*vclock.State, error) {
	row, err := r.toRow(vclock.NewState(sessionID, now))
	if err != nil {
		return nil, err
	}
	row.Revision = 1
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error; err != nil {
		return nil, fmt.Errorf("%w: 创建会话时钟失败: %w", vclock.ErrPersistence, err)
	}

	st, err := r.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("%w: 会话时钟创建后未找到: %s", vclock.ErrPersistence, sessionID)
	}
	return st, nil
}

// Save 保存时钟。st.Revision 为 0 时插入，否则仅当库中 revision 未变时更新；
// 成功后 st.Revision 同步为新版本号。
func (r *SessionClockRepository) Save(ctx context.Context, st *vclock.State) error {
	if st == nil {
		return fmt.Errorf("state is nil")
	}
	row, err := r.toRow(*st)
	if err != nil {
		return err
	}

	if st.Revision == 0 {
		row.Revision = 1
		res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return fmt.Errorf("%w: 写入会话时钟失败: %w", vclock.ErrPersistence, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: session_id=%s", vclock.ErrConcurrentUpdate, st.SessionID)
		}
		st.Revision = 1
		return nil
	}

	res := r.db.WithContext(ctx).
		Model(&schema.SessionClock{}).
		Where("session_id = ? AND revision = ?", st.SessionID, st.Revision).
		Updates(map[string]any{
			"virtual_base":    row.VirtualBase,
			"real_base":       row.RealBase,
			"actions":         row.Actions,
			"revision":        gorm.Expr("revision + 1"),
			"updated_at":      row.VirtualUpdatedAt,
			"real_updated_at": row.RealUpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("%w: 更新会话时钟失败: %w", vclock.ErrPersistence, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: session_id=%s revision=%d", vclock.ErrConcurrentUpdate, st.SessionID, st.Revision)
	}
	st.Revision++
	return nil
}

// Delete 删除时钟（会话删除时调用）
func (r *SessionClockRepository) Delete(ctx context.Context, sessionID string) (bool, error) {
	res := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&schema.SessionClock{})
	if res.Error != nil {
		return false, fmt.Errorf("%w: 删除会话时钟失败: %w", vclock.ErrPersistence, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ClockRecord 列表项；记录损坏时 State 为空、Err 非空
type ClockRecord struct {
	SessionID string
	State     *vclock.State
	Err       error
}

// List 列出全部时钟（按 session_id 排序），损坏记录逐条报告而不是整体失败
func (r *SessionClockRepository) List(ctx context.Context) ([]ClockRecord, error) {
	var rows []schema.SessionClock
	if err := r.db.WithContext(ctx).Order("session_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: 查询会话时钟列表失败: %w", vclock.ErrPersistence, err)
	}
	out := make([]ClockRecord, 0, len(rows))
	for _, row := range rows {
		rec := ClockRecord{SessionID: row.SessionID}
		st, err := r.toState(row)
		if err != nil {
			rec.Err = err
		} else {
			rec.State = &st
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *SessionClockRepository) toRow(st vclock.State) (schema.SessionClock, error) {
	actions, err := vclock.EncodeActions(st.Actions)
	if err != nil {
		return schema.SessionClock{}, err
	}
	return schema.SessionClock{
		SessionID:        st.SessionID,
		VirtualBase:      vclock.FormatTimestamp(st.BaseVirtual, r.loc),
		RealBase:         vclock.FormatTimestamp(st.BaseReal, r.loc),
		Actions:          actions,
		Revision:         st.Revision,
		VirtualUpdatedAt: vclock.FormatTimestamp(st.UpdatedAt, r.loc),
		RealUpdatedAt:    vclock.FormatTimestamp(st.RealUpdatedAt, r.loc),
	}, nil
}

// toState 解析存储行。基准时间或动作无法解析视为损坏，不做自动修复。
func (r *SessionClockRepository) toState(row schema.SessionClock) (vclock.State, error) {
	corrupt := func(field string, err error) error {
		return fmt.Errorf("%w: session_id=%s %s: %v", vclock.ErrStateCorruption, row.SessionID, field, err)
	}

	baseVirtual, err := vclock.ParseTimestamp(row.VirtualBase, r.loc)
	if err != nil {
		return vclock.State{}, corrupt("virtual_base", err)
	}
	baseReal, err := vclock.ParseTimestamp(row.RealBase, r.loc)
	if err != nil {
		return vclock.State{}, corrupt("real_base", err)
	}
	actions, err := vclock.DecodeActions(row.Actions)
	if err != nil {
		return vclock.State{}, corrupt("actions", err)
	}
	if err := vclock.ValidateActions(actions); err != nil {
		return vclock.State{}, corrupt("actions", err)
	}

	st := vclock.State{
		SessionID:   row.SessionID,
		BaseVirtual: baseVirtual,
		BaseReal:    baseReal,
		Actions:     actions,
		Revision:    row.Revision,
	}
	// 记账字段不参与投影，解析失败时留空
	if ts, err := vclock.ParseTimestamp(row.VirtualUpdatedAt, r.loc); err == nil {
		st.UpdatedAt = ts
	}
	if ts, err := vclock.ParseTimestamp(row.RealUpdatedAt, r.loc); err == nil {
		st.RealUpdatedAt = ts
	}
	return st, nil
}
