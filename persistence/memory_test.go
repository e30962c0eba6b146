package persistence

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/wfunc/beatroom/config"
	"github.com/wfunc/beatroom/models"
)

func round(code string, at time.Time) *models.RoundRecord {
	return &models.RoundRecord{
		RoomCode:  code,
		Mode:      "classic",
		Song:      models.Song(`{"id":"a"}`),
		PlayerIDs: []string{"p1", "p2"},
		StartedAt: at,
	}
}

func TestMemoryStore_NewestFirst(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := store.SaveRound(ctx, round(fmt.Sprintf("R%03d", i), base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("SaveRound failed: %v", err)
		}
	}

	got, err := store.RecentRounds(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRounds failed: %v", err)
	}
	if len(got) != 2 || got[0].RoomCode != "R002" || got[1].RoomCode != "R001" {
		t.Errorf("Expected R002, R001; got %+v", got)
	}
}

func TestMemoryStore_Capacity(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()
	for _, code := range []string{"AAAA", "BBBB", "CCCC"} {
		store.SaveRound(ctx, round(code, time.Now()))
	}

	got, _ := store.RecentRounds(ctx, 10)
	if len(got) != 2 || got[0].RoomCode != "CCCC" || got[1].RoomCode != "BBBB" {
		t.Errorf("Expected the oldest record to be evicted, got %+v", got)
	}
}

func TestMemoryStore_CopiesRecord(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()
	r := round("AAAA", time.Now())
	store.SaveRound(ctx, r)
	r.PlayerIDs[0] = "mutated"

	got, _ := store.RecentRounds(ctx, 1)
	if got[0].PlayerIDs[0] != "p1" {
		t.Error("Stored record must not alias the caller's slice")
	}
}

func TestMemoryStore_Errors(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()

	if _, err := store.RecentRounds(ctx, 0); !errors.Is(err, ErrBadLimit) {
		t.Errorf("Expected ErrBadLimit, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := store.SaveRound(cancelled, round("AAAA", time.Now())); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	store.Close()
	if err := store.SaveRound(ctx, round("AAAA", time.Now())); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Expected ErrStoreClosed, got %v", err)
	}
}

func TestOpen_DefaultsToMemory(t *testing.T) {
	store, err := Open(config.DatabaseConfig{Driver: config.DriverNone})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("Expected *MemoryStore, got %T", store)
	}
	if _, err := Open(config.DatabaseConfig{Driver: "sqlite"}); err == nil {
		t.Error("Unknown driver should fail")
	}
}

func TestMigrations_Embedded(t *testing.T) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) < 2 {
		t.Errorf("Expected up and down migrations, got %d files", len(entries))
	}
}
