package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/fly2outerspace/NeoChat/internal/bootstrap"
	"github.com/fly2outerspace/NeoChat/internal/dto"
	"github.com/fly2outerspace/NeoChat/internal/pkg/buildinfo"
	"github.com/fly2outerspace/NeoChat/internal/service"
	"github.com/gin-gonic/gin"
)

type apiServer struct {
	core      *bootstrap.Core
	loc       *time.Location
	startTime time.Time
}

func newAPI(core *bootstrap.Core) *apiServer {
	return &apiServer{
		core:      core,
		loc:       core.Loc,
		startTime: time.Now(),
	}
}

func (a *apiServer) clocks() *service.ClockService {
	return a.core.Services.Clocks
}

// ========== health / events ==========

func (a *apiServer) handleHealth(c *gin.Context) {
	out := dto.HealthDTO{
		OK:          true,
		Name:        a.core.Cfg.App.Name,
		Version:     buildinfo.Version,
		Commit:      buildinfo.Commit,
		StartedAt:   a.startTime.Format(time.RFC3339),
		UptimeSec:   int64(time.Since(a.startTime).Seconds()),
		Timezone:    a.loc.String(),
		Subscribers: a.core.Hub.Subscribers(),
	}
	if db := a.core.DB; db != nil {
		out.SafeMode = db.SafeMode
		out.SchemaVersion = db.SchemaVersion
		out.OK = !db.SafeMode
	}
	c.JSON(http.StatusOK, out)
}

func (a *apiServer) handleSSE(c *gin.Context) {
	ctx := c.Request.Context()
	sub := a.core.Hub.Subscribe(ctx, 32, c.Query("session_id"))

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	// initial event
	c.SSEvent("ready", gin.H{})
	c.Writer.Flush()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.SSEvent("ping", gin.H{})
			c.Writer.Flush()
		case evt, ok := <-sub:
			if !ok {
				return
			}
			c.SSEvent(sanitizeSSEName(evt.Type), evt)
			c.Writer.Flush()
		}
	}
}

// ========== sessions ==========

// requireSession 未知会话直接 404，不触碰时钟
func (a *apiServer) requireSession(c *gin.Context) {
	id := c.Param("id")
	ok, err := a.core.Services.Sessions.Exists(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if !ok {
		writeError(c, http.StatusNotFound, "session_not_found", "会话不存在: "+id)
		return
	}
	c.Next()
}

func (a *apiServer) listSessions(c *gin.Context) {
	sessions, err := a.core.Services.Sessions.List(c.Request.Context(), queryInt(c, "limit", 100))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]dto.SessionDTO, 0, len(sessions))
	for i := range sessions {
		out = append(out, toSessionDTO(&sessions[i]))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

func (a *apiServer) createSession(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBindError(c, err)
		return
	}
	session, err := a.core.Services.Sessions.Create(c.Request.Context(), req.ID, req.Name)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSessionDTO(session))
}

func (a *apiServer) getSession(c *gin.Context) {
	session, err := a.core.Services.Sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	count, err := a.core.Services.Messages.Count(c.Request.Context(), session.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := toSessionDTO(session)
	out.MessageCount = &count
	c.JSON(http.StatusOK, out)
}

func (a *apiServer) deleteSession(c *gin.Context) {
	if err := a.core.Services.Sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ========== messages ==========

func (a *apiServer) listMessages(c *gin.Context) {
	msgs, err := a.core.Services.Messages.List(c.Request.Context(), c.Param("id"), queryInt(c, "limit", 100))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]dto.MessageDTO, 0, len(msgs))
	for i := range msgs {
		out = append(out, toMessageDTO(&msgs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

func (a *apiServer) createMessage(c *gin.Context) {
	var req dto.CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	msg, err := a.core.Services.Messages.Create(c.Request.Context(), service.NewMessage{
		SessionID: c.Param("id"),
		Role:      req.Role,
		Content:   req.Content,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMessageDTO(msg))
}

// ========== time ==========

func (a *apiServer) getClock(c *gin.Context) {
	snap, err := a.clocks().Snapshot(c.Request.Context(), c.Param("id"))
	a.respondClock(c, snap, err)
}

func (a *apiServer) updateClock(c *gin.Context) {
	var req dto.ClockUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	update, err := toUpdateRequest(req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	snap, err := a.clocks().Update(c.Request.Context(), c.Param("id"), update)
	a.respondClock(c, snap, err)
}

func (a *apiServer) getCurrentTime(c *gin.Context) {
	format := service.ParseTimeFormat(c.Query("format"))
	text, err := a.clocks().FormatNow(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CurrentTimeDTO{SessionID: c.Param("id"), Format: string(format), Time: text})
}

func (a *apiServer) seek(c *gin.Context) {
	var req dto.SeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	snap, err := a.clocks().Seek(c.Request.Context(), c.Param("id"), req.VirtualTime)
	a.respondClock(c, snap, err)
}

func (a *apiServer) nudge(c *gin.Context) {
	var req dto.NudgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	snap, err := a.clocks().Nudge(c.Request.Context(), c.Param("id"), *req.DeltaSeconds)
	a.respondClock(c, snap, err)
}

func (a *apiServer) setSpeed(c *gin.Context) {
	var req dto.SpeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	snap, err := a.clocks().SetSpeed(c.Request.Context(), c.Param("id"), *req.Speed)
	a.respondClock(c, snap, err)
}

func (a *apiServer) freeze(c *gin.Context) {
	var req dto.FreezeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBindError(c, err)
		return
	}
	snap, err := a.clocks().Freeze(c.Request.Context(), c.Param("id"), req.Note)
	a.respondClock(c, snap, err)
}

func (a *apiServer) rebase(c *gin.Context) {
	snap, err := a.clocks().Rebase(c.Request.Context(), c.Param("id"))
	a.respondClock(c, snap, err)
}

func (a *apiServer) respondClock(c *gin.Context, snap service.ClockSnapshot, err error) {
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toClockDTO(snap, a.loc))
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 || v > 1000 {
		return def
	}
	return v
}
