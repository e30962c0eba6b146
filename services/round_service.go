// services/round_service.go
package services

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/beatroom/logger"
	"github.com/wfunc/beatroom/models"
	"github.com/wfunc/beatroom/persistence"
)

const saveTimeout = 5 * time.Second

// RoundService writes round history off the room lock and serves it back.
type RoundService struct {
	store persistence.RoundStore
	wg    sync.WaitGroup
}

func NewRoundService(store persistence.RoundStore) *RoundService {
	return &RoundService{store: store}
}

// CountdownStarted is a no-op; only started rounds are recorded.
func (s *RoundService) CountdownStarted(code string) {}

// RoundStarted saves the record in the background. A failed save is logged
// and does not affect the room.
func (s *RoundService) RoundStarted(record models.RoundRecord) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()

		if err := s.store.SaveRound(ctx, &record); err != nil {
			logger.Log.Errorf("保存开局记录失败 room=%s: %v", record.RoomCode, err)
			return
		}
		logger.Log.Debugf("round saved for room %s", record.RoomCode)
	}()
}

// RecentRounds returns up to limit records, newest first.
func (s *RoundService) RecentRounds(ctx context.Context, limit int) ([]models.RoundRecord, error) {
	return s.store.RecentRounds(ctx, limit)
}

// Wait blocks until every pending save has finished.
func (s *RoundService) Wait() {
	s.wg.Wait()
}
