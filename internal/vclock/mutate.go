package vclock

import (
	"fmt"
	"time"
)

// 以下修改操作都是纯函数：输入状态不变，返回修改后的副本。
// 校验失败时返回原状态与错误，调用方据此保证“全有或全无”。

// Rebase 把当前时间线压平为新基准：base = (当前虚拟时间, now)，清空动作。
// 显示的虚拟时间不变，动作日志长度归零。
// 当前虚拟时间已超出可落库范围时返回 ErrInvalidTimestamp，此时只能 Seek。
func Rebase(s State, now time.Time) (State, error) {
	out := touch(rebase(s.Clone(), now), now)
	if err := checkRange(out, ErrInvalidTimestamp); err != nil {
		return s, err
	}
	return out, nil
}

// Seek 跳转到指定虚拟时间，丢弃此前的倍速/平移历史
func Seek(s State, target, now time.Time) (State, error) {
	out := s.Clone()
	out.BaseVirtual = toSecond(target)
	out.BaseReal = toSecond(now)
	out.Actions = []Action{}
	out = touch(out, now)
	if err := checkRange(out, ErrInvalidTimestamp); err != nil {
		return s, err
	}
	return out, nil
}

// Nudge 追加 offset 动作，不做 rebase
func Nudge(s State, deltaSeconds float64, now time.Time) (State, error) {
	return AppendAction(s, OffsetAction(deltaSeconds), false, now)
}

// SetSpeed 先 rebase 再追加 scale 动作，新倍速只作用于此后流逝的真实时间
func SetSpeed(s State, speed float64, now time.Time) (State, error) {
	return AppendAction(s, ScaleAction(speed), true, now)
}

// Freeze 先 rebase 再追加 freeze 动作（效果同 SetSpeed(0)，标签不同）
func Freeze(s State, note string, now time.Time) (State, error) {
	return AppendAction(s, FreezeAction().WithNote(note), true, now)
}

// AppendAction 追加单个动作；rebaseBefore 为 true 时先压平历史
func AppendAction(s State, a Action, rebaseBefore bool, now time.Time) (State, error) {
	if err := a.Validate(); err != nil {
		return s, err
	}
	out := s.Clone()
	if rebaseBefore {
		out = rebase(out, now)
	}
	out.Actions = append(out.Actions, a)
	out = touch(out, now)
	if err := checkRange(out, ErrInvalidAction); err != nil {
		return s, fmt.Errorf("%s %v: %w", a.Kind, a.Value, err)
	}
	return out, nil
}

// Update 通用更新参数（“整体替换时间线”）
type Update struct {
	// BaseVirtual 非空时替换虚拟基准；同时丢弃旧动作（新基准即新时间线）
	BaseVirtual *time.Time
	// Actions 为 nil 表示未提供；否则追加到动作日志末尾
	Actions []Action
	// ResetActions 在追加 Actions 之前清空动作日志
	ResetActions bool
	// Rebase 默认应为 true：
	//   - 提供 BaseVirtual 时，base_real 同步移到 now；为 false 时保持原 base_real
	//     （用于恢复先前导出的时钟，例如加载存档）
	//   - 未提供 BaseVirtual 时，先把当前时间线压平为新基准
	Rebase bool
}

// ApplyUpdate 应用通用更新
func ApplyUpdate(s State, u Update, now time.Time) (State, error) {
	if err := ValidateActions(u.Actions); err != nil {
		return s, err
	}
	if u.BaseVirtual != nil && !InRange(*u.BaseVirtual) {
		return s, fmt.Errorf("%w: base_virtual out of range (%s)", ErrInvalidTimestamp, rangeText)
	}

	out := s.Clone()
	switch {
	case u.BaseVirtual != nil:
		out.BaseVirtual = toSecond(*u.BaseVirtual)
		if u.Rebase {
			out.BaseReal = toSecond(now)
		}
		out.Actions = []Action{}
	case u.Rebase:
		out = rebase(out, now)
	}

	if u.ResetActions {
		out.Actions = []Action{}
	}
	out.Actions = append(out.Actions, u.Actions...)
	out = touch(out, now)
	if err := checkRange(out, ErrInvalidAction); err != nil {
		return s, err
	}
	return out, nil
}

// checkRange 确认基准与修改时的虚拟时间都能落库读回，否则以 kind 报错
func checkRange(s State, kind error) error {
	fields := []struct {
		name string
		t    time.Time
	}{
		{"base_virtual", s.BaseVirtual},
		{"base_real", s.BaseReal},
		{"virtual time", s.UpdatedAt},
	}
	for _, f := range fields {
		if !InRange(f.t) {
			return fmt.Errorf("%w: %s out of range (%s)", kind, f.name, rangeText)
		}
	}
	return nil
}

func rebase(s State, now time.Time) State {
	s.BaseVirtual = toSecond(Project(s, now))
	s.BaseReal = toSecond(now)
	s.Actions = []Action{}
	return s
}

func touch(s State, now time.Time) State {
	s.UpdatedAt = toSecond(Project(s, now))
	s.RealUpdatedAt = toSecond(now)
	return s
}
