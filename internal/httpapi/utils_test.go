package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/fly2outerspace/NeoChat/internal/dto"
	"github.com/fly2outerspace/NeoChat/internal/vclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("x: %w", vclock.ErrInvalidTimestamp), http.StatusBadRequest, "invalid_timestamp"},
		{vclock.ErrInvalidSpeed, http.StatusBadRequest, "invalid_speed"},
		{vclock.ErrConcurrentUpdate, http.StatusConflict, "concurrent_update"},
		{vclock.ErrStateCorruption, http.StatusInternalServerError, "state_corruption"},
		{fmt.Errorf("%w: %w", vclock.ErrPersistence, context.Canceled), http.StatusServiceUnavailable, "cancelled"},
		{fmt.Errorf("%w: disk", vclock.ErrPersistence), http.StatusServiceUnavailable, "persistence_error"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		status, code := classifyError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestToUpdateRequestPrecedence(t *testing.T) {
	base := "2024-01-01 00:00:00"
	fixed := "2025-01-01 00:00:00"
	blank := "  "
	speed := 3.0

	out, err := toUpdateRequest(dto.ClockUpdateRequest{BaseVirtual: &blank, FixedTime: &fixed, Speed: &speed, Mode: ptr("scaled")})
	require.NoError(t, err)
	require.NotNil(t, out.BaseVirtual)
	assert.Equal(t, fixed, *out.BaseVirtual)
	assert.Equal(t, []vclock.Action{vclock.ScaleAction(3)}, out.Actions)

	// 显式 actions 优先于旧字段
	out, err = toUpdateRequest(dto.ClockUpdateRequest{
		BaseVirtual:   &base,
		Actions:       []vclock.Action{},
		OffsetSeconds: &speed,
	})
	require.NoError(t, err)
	assert.Equal(t, base, *out.BaseVirtual)
	assert.Empty(t, out.Actions)
	assert.NotNil(t, out.Actions)

	out, err = toUpdateRequest(dto.ClockUpdateRequest{Mode: ptr("real")})
	require.NoError(t, err)
	assert.Nil(t, out.Actions)
	assert.Nil(t, out.BaseVirtual)
}

func ptr(s string) *string { return &s }
