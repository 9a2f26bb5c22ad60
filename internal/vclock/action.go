package vclock

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// ActionKind 时间动作类型
type ActionKind string

const (
	KindScale  ActionKind = "scale"  // 倍速：乘到此后累计的真实时间差上，0 即暂停
	KindOffset ActionKind = "offset" // 平移：直接加到虚拟时间上（秒，可正可负）
	KindFreeze ActionKind = "freeze" // 冻结：真实时间差清零，value 忽略
)

// ParseKind 解析动作类型字符串
func ParseKind(s string) (ActionKind, error) {
	switch ActionKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindScale:
		return KindScale, nil
	case KindOffset:
		return KindOffset, nil
	case KindFreeze:
		return KindFreeze, nil
	default:
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidAction, s)
	}
}

// Action 对会话时钟的一次不可变修改，按插入顺序回放
type Action struct {
	Kind  ActionKind
	Value float64
	Note  string
}

func ScaleAction(v float64) Action { return Action{Kind: KindScale, Value: v} }

func OffsetAction(seconds float64) Action { return Action{Kind: KindOffset, Value: seconds} }

func FreezeAction() Action { return Action{Kind: KindFreeze} }

// WithNote 返回带备注的副本
func (a Action) WithNote(note string) Action {
	a.Note = strings.TrimSpace(note)
	return a
}

// Validate 校验动作取值
func (a Action) Validate() error {
	if math.IsNaN(a.Value) || math.IsInf(a.Value, 0) {
		return fmt.Errorf("%w: %s value must be finite", ErrInvalidAction, a.Kind)
	}
	switch a.Kind {
	case KindScale:
		if a.Value < 0 {
			return fmt.Errorf("%w: %v (negative time flow is not supported)", ErrInvalidSpeed, a.Value)
		}
	case KindOffset, KindFreeze:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAction, a.Kind)
	}
	return nil
}

// ValidateActions 逐条校验，返回第一条错误（带下标）
func ValidateActions(actions []Action) error {
	for i, a := range actions {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("actions[%d]: %w", i, err)
		}
	}
	return nil
}

type actionJSON struct {
	Type  string   `json:"type"`
	Value *float64 `json:"value"`
	Note  *string  `json:"note,omitempty"`
}

// MarshalJSON 输出 {type, value, note?}
func (a Action) MarshalJSON() ([]byte, error) {
	v := a.Value
	out := actionJSON{Type: string(a.Kind), Value: &v}
	if a.Note != "" {
		note := a.Note
		out.Note = &note
	}
	return json.Marshal(out)
}

// UnmarshalJSON 严格解析：type 必填；scale/offset 必须带 value
func (a *Action) UnmarshalJSON(data []byte) error {
	var raw actionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	kind, err := ParseKind(raw.Type)
	if err != nil {
		return err
	}
	out := Action{Kind: kind}
	if raw.Value != nil {
		out.Value = *raw.Value
	} else if kind != KindFreeze {
		return fmt.Errorf("%w: %s requires a value", ErrInvalidAction, kind)
	}
	if raw.Note != nil {
		out.Note = *raw.Note
	}
	*a = out
	return nil
}

// EncodeActions 序列化动作列表（存储用），nil 输出 "[]"
func EncodeActions(actions []Action) (string, error) {
	if len(actions) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(actions)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	return string(b), nil
}

// DecodeActions 反序列化存储中的动作列表；空串视为空列表
func DecodeActions(raw string) ([]Action, error) {
	v := strings.TrimSpace(raw)
	if v == "" || v == "null" {
		return []Action{}, nil
	}
	var out []Action
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Action{}
	}
	return out, nil
}
