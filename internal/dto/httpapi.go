package dto

import "github.com/fly2outerspace/NeoChat/internal/vclock"

// 注意：本包用于承载“对外契约”的 DTO（与前端/HTTP API 保持稳定）。
// 不要在这里放 GORM/持久化细节；内部持久化 schema 请见 internal/schema；业务逻辑收敛在 internal/service。

// ClockDTO 会话时钟响应
type ClockDTO struct {
	SessionID          string          `json:"session_id"`
	BaseVirtual        string          `json:"base_virtual"`
	BaseReal           string          `json:"base_real"`
	Actions            []vclock.Action `json:"actions"`
	CurrentVirtualTime string          `json:"current_virtual_time"`
	CurrentRealTime    string          `json:"current_real_time"`
	UpdatedAt          string          `json:"updated_at,omitempty"`
	RealUpdatedAt      string          `json:"real_updated_at,omitempty"`
	Speed              float64         `json:"speed"`
	Frozen             bool            `json:"frozen"`
}

// ClockUpdateRequest PUT /time 请求体。
// mode/offset_seconds/fixed_time/speed/virtual_start 为旧版字段，仅在未提供 actions 时生效。
type ClockUpdateRequest struct {
	BaseVirtual  *string         `json:"base_virtual"`
	Actions      []vclock.Action `json:"actions"`
	ResetActions bool            `json:"reset_actions"`
	Rebase       *bool           `json:"rebase"`

	Mode          *string  `json:"mode"`
	OffsetSeconds *float64 `json:"offset_seconds"`
	FixedTime     *string  `json:"fixed_time"`
	Speed         *float64 `json:"speed"`
	VirtualStart  *string  `json:"virtual_start"`
}

type SeekRequest struct {
	VirtualTime string `json:"virtual_time" binding:"required"`
}

type NudgeRequest struct {
	DeltaSeconds *float64 `json:"delta_seconds" binding:"required"`
}

type SpeedRequest struct {
	Speed *float64 `json:"speed" binding:"required"`
}

type FreezeRequest struct {
	Note string `json:"note"`
}

// CurrentTimeDTO GET /time/now 响应
type CurrentTimeDTO struct {
	SessionID string `json:"session_id"`
	Format    string `json:"format"`
	Time      string `json:"time"`
}

type SessionDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CreatedAt    string `json:"created_at"`
	MessageCount *int64 `json:"message_count,omitempty"` // 仅单个会话详情返回
}

type CreateSessionRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type MessageDTO struct {
	ID            string `json:"id"`
	SessionID     string `json:"session_id"`
	Seq           int64  `json:"seq"`
	Role          string `json:"role"`
	Content       string `json:"content"`
	CreatedAt     string `json:"created_at"` // 会话虚拟时间
	RealCreatedAt string `json:"real_created_at"`
}

type CreateMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content" binding:"required"`
}

// ErrorDTO 错误响应
type ErrorDTO struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
