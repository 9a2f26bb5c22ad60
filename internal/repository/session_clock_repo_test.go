package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fly2outerspace/NeoChat/internal/schema"
	"github.com/fly2outerspace/NeoChat/internal/testutil"
	"github.com/fly2outerspace/NeoChat/internal/vclock"
)

var clockT0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestSessionClockRepositoryLoadMissing(t *testing.T) {
	repo := NewSessionClockRepository(testutil.OpenTestDB(t), time.UTC)
	st, err := repo.Load(context.Background(), "nope")
	if err != nil || st != nil {
		t.Fatalf("Load missing got=%v err=%v", st, err)
	}
}

func TestSessionClockRepositoryCreateDefaultIdempotent(t *testing.T) {
	repo := NewSessionClockRepository(testutil.OpenTestDB(t), time.UTC)
	ctx := context.Background()

	first, err := repo.CreateDefault(ctx, "s1", clockT0)
	if err != nil {
		t.Fatalf("CreateDefault error: %v", err)
	}
	if first.Revision != 1 || !first.BaseVirtual.Equal(clockT0) || len(first.Actions) != 0 {
		t.Fatalf("first=%+v", first)
	}

	// 第二次创建不覆盖已有记录
	second, err := repo.CreateDefault(ctx, "s1", clockT0.Add(time.Hour))
	if err != nil {
		t.Fatalf("CreateDefault error: %v", err)
	}
	if !second.BaseReal.Equal(clockT0) {
		t.Fatalf("second base_real=%v, want %v", second.BaseReal, clockT0)
	}
}

func TestSessionClockRepositorySaveRoundTrip(t *testing.T) {
	repo := NewSessionClockRepository(testutil.OpenTestDB(t), time.UTC)
	ctx := context.Background()

	st, err := repo.CreateDefault(ctx, "s1", clockT0)
	if err != nil {
		t.Fatalf("CreateDefault error: %v", err)
	}
	next, err := vclock.Nudge(*st, 3600, clockT0.Add(time.Second))
	if err != nil {
		t.Fatalf("Nudge error: %v", err)
	}
	next.Actions = append(next.Actions, vclock.FreezeAction().WithNote("pause"))
	if err := repo.Save(ctx, &next); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if next.Revision != 2 {
		t.Fatalf("revision=%d, want 2", next.Revision)
	}

	got, err := repo.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(got.Actions) != 2 || got.Actions[0] != vclock.OffsetAction(3600) || got.Actions[1].Note != "pause" {
		t.Fatalf("actions=%+v", got.Actions)
	}
	if got.Revision != 2 || !got.RealUpdatedAt.Equal(clockT0.Add(time.Second)) {
		t.Fatalf("got=%+v", got)
	}
}

func TestSessionClockRepositorySaveDetectsStaleRevision(t *testing.T) {
	repo := NewSessionClockRepository(testutil.OpenTestDB(t), time.UTC)
	ctx := context.Background()

	st, _ := repo.CreateDefault(ctx, "s1", clockT0)
	a, _ := vclock.Nudge(*st, 10, clockT0)
	b, _ := vclock.Nudge(*st, 20, clockT0)

	if err := repo.Save(ctx, &a); err != nil {
		t.Fatalf("Save a error: %v", err)
	}
	err := repo.Save(ctx, &b)
	if !errors.Is(err, vclock.ErrConcurrentUpdate) {
		t.Fatalf("err=%v, want ErrConcurrentUpdate", err)
	}

	got, _ := repo.Load(ctx, "s1")
	if len(got.Actions) != 1 || got.Actions[0].Value != 10 {
		t.Fatalf("stale write leaked: %+v", got.Actions)
	}
}

func TestSessionClockRepositoryInsertConflict(t *testing.T) {
	repo := NewSessionClockRepository(testutil.OpenTestDB(t), time.UTC)
	ctx := context.Background()

	fresh := vclock.NewState("s1", clockT0)
	if err := repo.Save(ctx, &fresh); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	again := vclock.NewState("s1", clockT0)
	if err := repo.Save(ctx, &again); !errors.Is(err, vclock.ErrConcurrentUpdate) {
		t.Fatalf("err=%v, want ErrConcurrentUpdate", err)
	}
}

func TestSessionClockRepositoryCorruptionSurfaced(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewSessionClockRepository(db, time.UTC)
	ctx := context.Background()

	rows := []schema.SessionClock{
		{SessionID: "bad-base", VirtualBase: "not a time", RealBase: "2024-01-01 00:00:00", Actions: "[]", Revision: 1},
		{SessionID: "bad-actions", VirtualBase: "2024-01-01 00:00:00", RealBase: "2024-01-01 00:00:00", Actions: `[{"type":"warp","value":1}]`, Revision: 1},
		{SessionID: "bad-speed", VirtualBase: "2024-01-01 00:00:00", RealBase: "2024-01-01 00:00:00", Actions: `[{"type":"scale","value":-2}]`, Revision: 1},
		{SessionID: "good", VirtualBase: "2024-01-01 00:00:00", RealBase: "2024-01-01 00:00:00", Actions: "[]", Revision: 1},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed error: %v", err)
	}

	for _, id := range []string{"bad-base", "bad-actions", "bad-speed"} {
		if _, err := repo.Load(ctx, id); !errors.Is(err, vclock.ErrStateCorruption) {
			t.Fatalf("%s: err=%v, want ErrStateCorruption", id, err)
		}
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != 4 {
		t.Fatalf("len=%d, want 4", len(list))
	}
	var bad, good int
	for _, rec := range list {
		if rec.Err != nil {
			bad++
		} else if rec.State != nil {
			good++
		}
	}
	if bad != 3 || good != 1 {
		t.Fatalf("bad=%d good=%d", bad, good)
	}
}

func TestSessionClockRepositoryCancelledContext(t *testing.T) {
	repo := NewSessionClockRepository(testutil.OpenTestDB(t), time.UTC)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := vclock.NewState("s1", clockT0)
	if err := repo.Save(ctx, &st); !errors.Is(err, vclock.ErrPersistence) {
		t.Fatalf("err=%v, want ErrPersistence", err)
	}
	got, err := repo.Load(context.Background(), "s1")
	if err != nil || got != nil {
		t.Fatalf("cancelled save wrote a row: %+v err=%v", got, err)
	}
}
