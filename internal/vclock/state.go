package vclock

import (
	"time"
)

// State 单个会话的时钟状态：基准点 + 基准点之后的动作日志
//
// 当前虚拟时间不落库，每次按 Project(state, now) 即时计算。
type State struct {
	SessionID   string
	BaseVirtual time.Time // base_real 时刻对应的虚拟时间
	BaseReal    time.Time
	Actions     []Action

	// 以下为最近一次修改的记账字段，不参与投影计算
	UpdatedAt     time.Time // 修改时的虚拟时间
	RealUpdatedAt time.Time // 修改时的真实时间

	// Revision 存储层乐观锁版本号，0 表示尚未落库
	Revision int64
}

// NewState 以 now 为锚点创建默认时钟：虚拟时间 = 真实时间，无动作
func NewState(sessionID string, now time.Time) State {
	base := toSecond(now)
	return State{
		SessionID:     sessionID,
		BaseVirtual:   base,
		BaseReal:      base,
		Actions:       []Action{},
		UpdatedAt:     base,
		RealUpdatedAt: base,
	}
}

// Clone 深拷贝动作日志，修改副本不影响原状态
func (s State) Clone() State {
	out := s
	out.Actions = make([]Action, len(s.Actions))
	copy(out.Actions, s.Actions)
	return out
}

// Project 计算 now 时刻的虚拟时间。纯函数，无副作用。
//
// 动作按插入顺序折叠：scale 乘到累计的真实时间差上，offset 直接平移虚拟时间，
// freeze 把真实时间差清零；最后把真实时间差加到虚拟时间上。
// now 早于 base_real（时钟回拨）时真实时间差为负，照常计算。
func Project(s State, now time.Time) time.Time {
	virtual := s.BaseVirtual
	realDelta := now.Sub(s.BaseReal).Seconds()

	for _, a := range s.Actions {
		switch a.Kind {
		case KindScale:
			realDelta *= a.Value
		case KindOffset:
			virtual = addSeconds(virtual, a.Value)
		case KindFreeze:
			realDelta = 0
		}
	}

	return addSeconds(virtual, realDelta)
}

// EffectiveSpeed 当前生效的倍速：所有 scale 的乘积，出现 freeze 后恒为 0
func (s State) EffectiveSpeed() float64 {
	speed := 1.0
	for _, a := range s.Actions {
		switch a.Kind {
		case KindScale:
			speed *= a.Value
		case KindFreeze:
			speed = 0
		}
	}
	return speed
}

// Frozen 日志中是否含 freeze。freeze 之后的 scale 只会乘到 0 上，
// 因此直到下一次 rebase 之前时钟都保持冻结。
func (s State) Frozen() bool {
	for _, a := range s.Actions {
		if a.Kind == KindFreeze {
			return true
		}
	}
	return false
}
