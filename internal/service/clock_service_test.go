package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fly2outerspace/NeoChat/internal/eventbus"
	"github.com/fly2outerspace/NeoChat/internal/pkg/clock"
	"github.com/fly2outerspace/NeoChat/internal/repository"
	"github.com/fly2outerspace/NeoChat/internal/testutil"
	"github.com/fly2outerspace/NeoChat/internal/vclock"
)

// ===== Mock Implementations =====

type memClockStore struct {
	mu      sync.Mutex
	rows    map[string]vclock.State
	saveErr error
	saves   int
}

func newMemClockStore() *memClockStore {
	return &memClockStore{rows: make(map[string]vclock.State)}
}

func (m *memClockStore) Load(ctx context.Context, sessionID string) (*vclock.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.rows[sessionID]
	if !ok {
		return nil, nil
	}
	out := st.Clone()
	return &out, nil
}

func (m *memClockStore) CreateDefault(ctx context.Context, sessionID string, now time.Time) (*vclock.State, error) {
	m.mu.Lock()
	if _, ok := m.rows[sessionID]; !ok {
		st := vclock.NewState(sessionID, now)
		st.Revision = 1
		m.rows[sessionID] = st
	}
	m.mu.Unlock()
	return m.Load(ctx, sessionID)
}

func (m *memClockStore) Save(ctx context.Context, st *vclock.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	cur, ok := m.rows[st.SessionID]
	switch {
	case st.Revision == 0 && ok, st.Revision != 0 && (!ok || cur.Revision != st.Revision):
		return vclock.ErrConcurrentUpdate
	}
	st.Revision++
	m.rows[st.SessionID] = st.Clone()
	m.saves++
	return nil
}

func (m *memClockStore) get(id string) (vclock.State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.rows[id]
	return st, ok
}

var svcT0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestClockService(store ClockStore) (*ClockService, *clock.Manual) {
	clk := clock.NewManual(svcT0)
	return NewClockService(store, clk, time.UTC, nil), clk
}

func ts(s string) time.Time {
	t, err := vclock.ParseTimestamp(s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

// ===== Tests =====

func TestClockServiceLazyCreate(t *testing.T) {
	store := newMemClockStore()
	svc, clk := newTestClockService(store)
	ctx := context.Background()

	snap, err := svc.Snapshot(ctx, "s1")
	if err != nil {
		t.Fatalf("Snapshot error: %v", err)
	}
	if !snap.CurrentVirtual.Equal(svcT0) || len(snap.State.Actions) != 0 {
		t.Fatalf("snap=%+v", snap)
	}

	// 读取不修改状态，真实时间推进后虚拟时间同步推进
	clk.Advance(90 * time.Second)
	now, err := svc.CurrentTime(ctx, "s1")
	if err != nil {
		t.Fatalf("CurrentTime error: %v", err)
	}
	if !now.Equal(svcT0.Add(90 * time.Second)) {
		t.Fatalf("now=%v", now)
	}
	if store.saves != 0 {
		t.Fatalf("reads should not save, saves=%d", store.saves)
	}
}

func TestClockServiceNudgeThenSpeed(t *testing.T) {
	svc, clk := newTestClockService(newMemClockStore())
	ctx := context.Background()

	snap, err := svc.Nudge(ctx, "s1", 3600)
	if err != nil {
		t.Fatalf("Nudge error: %v", err)
	}
	if got := vclock.FormatTimestamp(snap.CurrentVirtual, time.UTC); got != "2024-01-01 01:00:00" {
		t.Fatalf("after nudge=%s", got)
	}

	clk.Advance(10 * time.Second)
	if _, err := svc.SetSpeed(ctx, "s1", 2); err != nil {
		t.Fatalf("SetSpeed error: %v", err)
	}
	clk.Advance(5 * time.Second)

	got, err := svc.FormatNow(ctx, "s1", FormatReadable)
	if err != nil {
		t.Fatalf("FormatNow error: %v", err)
	}
	if got != "2024-01-01 01:00:20" {
		t.Fatalf("now=%s, want 2024-01-01 01:00:20", got)
	}
}

func TestClockServiceSeek(t *testing.T) {
	svc, clk := newTestClockService(newMemClockStore())
	ctx := context.Background()

	_, _ = svc.Nudge(ctx, "s1", 100)
	_, _ = svc.SetSpeed(ctx, "s1", 3)

	snap, err := svc.Seek(ctx, "s1", "2030-06-01 12:00:00")
	if err != nil {
		t.Fatalf("Seek error: %v", err)
	}
	if len(snap.State.Actions) != 0 {
		t.Fatalf("seek should clear actions: %+v", snap.State.Actions)
	}
	clk.Advance(30 * time.Second)
	now, _ := svc.CurrentTime(ctx, "s1")
	if !now.Equal(ts("2030-06-01 12:00:30")) {
		t.Fatalf("now=%v", now)
	}
}

func TestClockServiceInvalidInputLeavesStateUntouched(t *testing.T) {
	store := newMemClockStore()
	svc, _ := newTestClockService(store)
	ctx := context.Background()

	if _, err := svc.Seek(ctx, "fresh", "2024-13-01 00:00:00"); !errors.Is(err, vclock.ErrInvalidTimestamp) {
		t.Fatalf("err=%v, want ErrInvalidTimestamp", err)
	}
	if _, ok := store.get("fresh"); ok {
		t.Fatalf("invalid seek should not create a clock")
	}

	_, _ = svc.Nudge(ctx, "s1", 60)
	before, _ := store.get("s1")

	cases := []struct {
		name string
		call func() error
		want error
	}{
		{"negative speed", func() error { _, err := svc.SetSpeed(ctx, "s1", -1); return err }, vclock.ErrInvalidSpeed},
		{"bad seek", func() error { _, err := svc.Seek(ctx, "s1", "tomorrow"); return err }, vclock.ErrInvalidTimestamp},
		{"bad base_virtual", func() error {
			bad := "2024/01/01"
			_, err := svc.Update(ctx, "s1", UpdateRequest{BaseVirtual: &bad})
			return err
		}, vclock.ErrInvalidTimestamp},
		{"bad action", func() error {
			_, err := svc.Update(ctx, "s1", UpdateRequest{Actions: []vclock.Action{vclock.OffsetAction(1), vclock.ScaleAction(-2)}})
			return err
		}, vclock.ErrInvalidSpeed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); !errors.Is(err, tc.want) {
				t.Fatalf("err=%v, want %v", err, tc.want)
			}
			after, _ := store.get("s1")
			if after.Revision != before.Revision || len(after.Actions) != len(before.Actions) {
				t.Fatalf("state changed: before=%+v after=%+v", before, after)
			}
		})
	}
}

func TestClockServiceSaveFailure(t *testing.T) {
	store := newMemClockStore()
	svc, _ := newTestClockService(store)
	ctx := context.Background()

	_, _ = svc.Nudge(ctx, "s1", 10)
	before, _ := store.get("s1")

	store.saveErr = fmt.Errorf("%w: disk full", vclock.ErrPersistence)
	if _, err := svc.Nudge(ctx, "s1", 20); !errors.Is(err, vclock.ErrPersistence) {
		t.Fatalf("err=%v, want ErrPersistence", err)
	}
	store.saveErr = nil

	after, _ := store.get("s1")
	if len(after.Actions) != 1 || after.Revision != before.Revision {
		t.Fatalf("failed save leaked: %+v", after)
	}
}

func TestClockServiceCancelledContext(t *testing.T) {
	store := newMemClockStore()
	svc, _ := newTestClockService(store)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Nudge(ctx, "s1", 10); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
	if store.saves != 0 {
		t.Fatalf("cancelled nudge saved")
	}
}

func TestClockServiceFreezeHoldsTime(t *testing.T) {
	svc, clk := newTestClockService(newMemClockStore())
	ctx := context.Background()

	clk.Advance(time.Minute)
	snap, err := svc.Freeze(ctx, "s1", "剧情暂停")
	if err != nil {
		t.Fatalf("Freeze error: %v", err)
	}
	if !snap.State.Frozen() || snap.State.Actions[0].Note != "剧情暂停" {
		t.Fatalf("state=%+v", snap.State)
	}
	clk.Advance(time.Hour)
	now, _ := svc.CurrentTime(ctx, "s1")
	if !now.Equal(svcT0.Add(time.Minute)) {
		t.Fatalf("frozen clock moved: %v", now)
	}

	// 冻结期间仍可平移
	_, _ = svc.Nudge(ctx, "s1", 30)
	now, _ = svc.CurrentTime(ctx, "s1")
	if !now.Equal(svcT0.Add(90 * time.Second)) {
		t.Fatalf("nudge while frozen: %v", now)
	}
}

func TestClockServiceRebasePreservesDisplay(t *testing.T) {
	svc, clk := newTestClockService(newMemClockStore())
	ctx := context.Background()

	_, _ = svc.Nudge(ctx, "s1", 120)
	_, _ = svc.SetSpeed(ctx, "s1", 4)
	clk.Advance(10 * time.Second)
	_, _ = svc.Nudge(ctx, "s1", -5)

	before, _ := svc.CurrentTime(ctx, "s1")
	snap, err := svc.Rebase(ctx, "s1")
	if err != nil {
		t.Fatalf("Rebase error: %v", err)
	}
	if len(snap.State.Actions) != 0 || !snap.CurrentVirtual.Equal(before) {
		t.Fatalf("before=%v snap=%+v", before, snap)
	}
	if !snap.State.BaseReal.Equal(clk.Now()) {
		t.Fatalf("base_real=%v", snap.State.BaseReal)
	}
}

func TestClockServiceUpdate(t *testing.T) {
	svc, clk := newTestClockService(newMemClockStore())
	ctx := context.Background()
	no := false

	_, _ = svc.Nudge(ctx, "s1", 600)
	clk.Advance(10 * time.Second)

	base := "2025-05-05 08:00:00"
	snap, err := svc.Update(ctx, "s1", UpdateRequest{
		BaseVirtual: &base,
		Actions:     []vclock.Action{vclock.ScaleAction(2)},
	})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if len(snap.State.Actions) != 1 || !snap.State.BaseReal.Equal(clk.Now()) {
		t.Fatalf("state=%+v", snap.State)
	}
	clk.Advance(10 * time.Second)
	now, _ := svc.CurrentTime(ctx, "s1")
	if !now.Equal(ts("2025-05-05 08:00:20")) {
		t.Fatalf("now=%v", now)
	}

	// rebase=false 且不给基准：直接在现有日志后追加
	snap, err = svc.Update(ctx, "s1", UpdateRequest{Actions: []vclock.Action{vclock.OffsetAction(60)}, Rebase: &no})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if len(snap.State.Actions) != 2 {
		t.Fatalf("actions=%+v", snap.State.Actions)
	}

	// reset_actions 不带新动作：清空
	snap, _ = svc.Update(ctx, "s1", UpdateRequest{ResetActions: true, Rebase: &no})
	if len(snap.State.Actions) != 0 {
		t.Fatalf("reset should clear: %+v", snap.State.Actions)
	}
}

func TestClockServicePublishesEvents(t *testing.T) {
	hub := eventbus.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := hub.Subscribe(ctx, 4, "s1")

	svc := NewClockService(newMemClockStore(), clock.NewManual(svcT0), time.UTC, hub)
	if _, err := svc.Nudge(context.Background(), "s1", 3600); err != nil {
		t.Fatalf("Nudge error: %v", err)
	}

	evt := <-ch
	if evt.Type != eventbus.TypeClockUpdated || evt.Data["op"] != "nudge" {
		t.Fatalf("evt=%+v", evt)
	}
	if evt.Data["current_virtual_time"] != "2024-01-01 01:00:00" {
		t.Fatalf("evt virtual=%v", evt.Data["current_virtual_time"])
	}
}

func TestClockServiceConcurrentNudges(t *testing.T) {
	db := testutil.OpenTestDB(t)
	store := repository.NewSessionClockRepository(db, time.UTC)
	svc, _ := newTestClockService(store)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Nudge(ctx, "s1", 60); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Nudge error: %v", err)
	}

	st, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(st.Actions) != n {
		t.Fatalf("actions=%d, want %d", len(st.Actions), n)
	}
	now, _ := svc.CurrentTime(ctx, "s1")
	if !now.Equal(svcT0.Add(n * time.Minute)) {
		t.Fatalf("now=%v", now)
	}
	if svc.locks.size() != 0 {
		t.Fatalf("lock entries leaked: %d", svc.locks.size())
	}
}

func TestClockServiceEmptySessionID(t *testing.T) {
	svc, _ := newTestClockService(newMemClockStore())
	if _, err := svc.Nudge(context.Background(), "", 1); !errors.Is(err, ErrEmptySessionID) {
		t.Fatalf("err=%v", err)
	}
}

func TestClockServiceOutOfRangeKeepsSessionLoadable(t *testing.T) {
	db := testutil.OpenTestDB(t)
	store := repository.NewSessionClockRepository(db, time.UTC)
	svc, clk := newTestClockService(store)
	ctx := context.Background()

	if _, err := svc.Nudge(ctx, "s1", 3600); err != nil {
		t.Fatalf("Nudge error: %v", err)
	}
	clk.Advance(10 * time.Second)

	if _, err := svc.Nudge(ctx, "s1", 1e12); !errors.Is(err, vclock.ErrInvalidAction) {
		t.Fatalf("Nudge(1e12) err=%v, want ErrInvalidAction", err)
	}
	if _, err := svc.Nudge(ctx, "s1", 1e20); !errors.Is(err, vclock.ErrInvalidAction) {
		t.Fatalf("Nudge(1e20) err=%v, want ErrInvalidAction", err)
	}
	if _, err := svc.Seek(ctx, "s1", "0000-06-01 00:00:00"); !errors.Is(err, vclock.ErrInvalidTimestamp) {
		t.Fatalf("Seek(year 0) err=%v, want ErrInvalidTimestamp", err)
	}

	snap, err := svc.SetSpeed(ctx, "s1", 1)
	if err != nil {
		t.Fatalf("SetSpeed error: %v", err)
	}
	if got := vclock.FormatTimestamp(snap.CurrentVirtual, time.UTC); got != "2024-01-01 01:00:10" {
		t.Fatalf("virtual=%q", got)
	}

	st, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(st.Actions) != 1 || st.Actions[0].Kind != vclock.KindScale {
		t.Fatalf("actions=%v", st.Actions)
	}
	if _, err := svc.Snapshot(ctx, "s1"); err != nil {
		t.Fatalf("Snapshot error: %v", err)
	}
}
