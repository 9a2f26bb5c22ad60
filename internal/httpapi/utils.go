package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fly2outerspace/NeoChat/internal/dto"
	"github.com/fly2outerspace/NeoChat/internal/schema"
	"github.com/fly2outerspace/NeoChat/internal/service"
	"github.com/fly2outerspace/NeoChat/internal/vclock"
	"github.com/gin-gonic/gin"
)

func writeError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, dto.ErrorDTO{Error: msg, Code: code})
}

// classifyError 错误类别 -> (HTTP 状态码, 错误码)
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, vclock.ErrInvalidTimestamp):
		return http.StatusBadRequest, "invalid_timestamp"
	case errors.Is(err, vclock.ErrInvalidSpeed):
		return http.StatusBadRequest, "invalid_speed"
	case errors.Is(err, vclock.ErrInvalidAction):
		return http.StatusBadRequest, "invalid_action"
	case errors.Is(err, service.ErrInvalidRole), errors.Is(err, service.ErrEmptySessionID):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, vclock.ErrConcurrentUpdate):
		return http.StatusConflict, "concurrent_update"
	case errors.Is(err, vclock.ErrStateCorruption):
		return http.StatusInternalServerError, "state_corruption"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "cancelled"
	case errors.Is(err, vclock.ErrPersistence):
		return http.StatusServiceUnavailable, "persistence_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeServiceError(c *gin.Context, err error) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("请求处理失败", "path", c.Request.URL.Path, "code", code, "error", err)
	}
	writeError(c, status, code, err.Error())
}

// writeBindError 请求体解析失败；动作字段的校验错误按具体类别返回
func writeBindError(c *gin.Context, err error) {
	if vclock.IsInputError(err) {
		writeServiceError(c, err)
		return
	}
	writeError(c, http.StatusBadRequest, "invalid_request", "请求体无效: "+err.Error())
}

// toUpdateRequest 把 PUT /time 请求（含旧版字段）转换为服务层更新请求。
// 优先级：base_virtual > fixed_time > virtual_start；actions 缺省时由 mode 等旧字段推导。
func toUpdateRequest(req dto.ClockUpdateRequest) (service.UpdateRequest, error) {
	out := service.UpdateRequest{
		BaseVirtual:  firstNonBlank(req.BaseVirtual, req.FixedTime, req.VirtualStart),
		Actions:      req.Actions,
		ResetActions: req.ResetActions,
		Rebase:       req.Rebase,
	}
	if out.Actions != nil {
		return out, nil
	}
	legacy, err := legacyActions(req)
	if err != nil {
		return service.UpdateRequest{}, err
	}
	if len(legacy) > 0 {
		out.Actions = legacy
	}
	return out, nil
}

func legacyActions(req dto.ClockUpdateRequest) ([]vclock.Action, error) {
	var actions []vclock.Action
	if req.Mode == nil {
		if req.OffsetSeconds != nil {
			actions = append(actions, vclock.OffsetAction(*req.OffsetSeconds))
		}
		if req.Speed != nil {
			actions = append(actions, vclock.ScaleAction(*req.Speed))
		}
		return actions, nil
	}

	switch mode := strings.ToLower(strings.TrimSpace(*req.Mode)); mode {
	case "", "real":
	case "offset":
		if req.OffsetSeconds != nil {
			actions = append(actions, vclock.OffsetAction(*req.OffsetSeconds))
		}
	case "scaled":
		if req.Speed != nil {
			actions = append(actions, vclock.ScaleAction(*req.Speed))
		}
	case "fixed":
		actions = append(actions, vclock.FreezeAction())
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", vclock.ErrInvalidAction, mode)
	}
	return actions, nil
}

func firstNonBlank(values ...*string) *string {
	for _, v := range values {
		if v != nil && strings.TrimSpace(*v) != "" {
			return v
		}
	}
	return nil
}

func sanitizeSSEName(name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return "message"
	}
	n = strings.ReplaceAll(n, "\n", "")
	n = strings.ReplaceAll(n, "\r", "")
	return n
}

func toClockDTO(snap service.ClockSnapshot, loc *time.Location) dto.ClockDTO {
	st := snap.State
	actions := st.Actions
	if actions == nil {
		actions = []vclock.Action{}
	}
	return dto.ClockDTO{
		SessionID:          st.SessionID,
		BaseVirtual:        vclock.FormatTimestamp(st.BaseVirtual, loc),
		BaseReal:           vclock.FormatTimestamp(st.BaseReal, loc),
		Actions:            actions,
		CurrentVirtualTime: vclock.FormatTimestamp(snap.CurrentVirtual, loc),
		CurrentRealTime:    vclock.FormatTimestamp(snap.CurrentReal, loc),
		UpdatedAt:          vclock.FormatTimestamp(st.UpdatedAt, loc),
		RealUpdatedAt:      vclock.FormatTimestamp(st.RealUpdatedAt, loc),
		Speed:              st.EffectiveSpeed(),
		Frozen:             st.Frozen(),
	}
}

func toSessionDTO(s *schema.ChatSession) dto.SessionDTO {
	return dto.SessionDTO{
		ID:        s.ID,
		Name:      s.Name,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
}

func toMessageDTO(m *schema.Message) dto.MessageDTO {
	return dto.MessageDTO{
		ID:            m.ID,
		SessionID:     m.SessionID,
		Seq:           m.Seq,
		Role:          m.Role,
		Content:       m.Content,
		CreatedAt:     m.VirtualCreatedAt,
		RealCreatedAt: m.RealCreatedAt,
	}
}
