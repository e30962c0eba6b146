package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wfunc/beatroom/models"
	"github.com/wfunc/beatroom/persistence"
)

type failingStore struct {
	persistence.RoundStore
}

func (failingStore) SaveRound(ctx context.Context, record *models.RoundRecord) error {
	return errors.New("disk full")
}

func TestRoundService_SavesInBackground(t *testing.T) {
	store := persistence.NewMemoryStore(10)
	rounds := NewRoundService(store)

	rounds.RoundStarted(models.RoundRecord{RoomCode: "AAAA", Mode: "classic", StartedAt: time.Now()})
	rounds.RoundStarted(models.RoundRecord{RoomCode: "BBBB", Mode: "classic", StartedAt: time.Now()})
	rounds.Wait()

	got, err := rounds.RecentRounds(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentRounds failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 saved rounds, got %d", len(got))
	}
}

func TestRoundService_SaveFailureIsSwallowed(t *testing.T) {
	rounds := NewRoundService(failingStore{})
	rounds.RoundStarted(models.RoundRecord{RoomCode: "AAAA"})
	rounds.Wait()
}

func TestRoundService_RecordsRoundsFromSessions(t *testing.T) {
	store := persistence.NewMemoryStore(10)
	rounds := NewRoundService(store)

	f := newFixture(t, DefaultOptions(), "AAAA")
	f.svc.observers = append(f.svc.observers, rounds)
	f.connect("p1")
	f.svc.CreateRoom("p1", models.CreateRoomRequest{Mode: "classic"})
	f.svc.SelectSong("p1", songA)
	f.svc.PlayerReady("p1")
	f.sched.Advance(4 * time.Second)
	rounds.Wait()

	got, _ := store.RecentRounds(context.Background(), 1)
	if len(got) != 1 || got[0].RoomCode != "AAAA" || got[0].Song.Info().ID != "a" {
		t.Errorf("Expected the started round to be stored, got %+v", got)
	}
}
