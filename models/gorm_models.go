// models/gorm_models.go
package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GormRound 开局记录
type GormRound struct {
	gorm.Model
	RoomCode  string         `gorm:"size:8;index;not null"`
	Mode      string         `gorm:"size:32;not null"`
	SongID    string         `gorm:"size:128;index"`
	Song      datatypes.JSON `gorm:"type:jsonb"`
	PlayerIDs datatypes.JSON `gorm:"type:jsonb;not null"`
	StartedAt time.Time      `gorm:"index;not null"`
}

func (GormRound) TableName() string {
	return "rounds"
}

// NewGormRound converts a round record into its row form.
func NewGormRound(r RoundRecord) (*GormRound, error) {
	players, err := json.Marshal(r.PlayerIDs)
	if err != nil {
		return nil, err
	}
	row := &GormRound{
		RoomCode:  r.RoomCode,
		Mode:      r.Mode,
		SongID:    r.Song.Info().ID,
		PlayerIDs: datatypes.JSON(players),
		StartedAt: r.StartedAt,
	}
	if !r.Song.IsZero() {
		row.Song = datatypes.JSON(r.Song)
	}
	return row, nil
}

// Record converts the row back.
func (g *GormRound) Record() (RoundRecord, error) {
	r := RoundRecord{
		RoomCode:  g.RoomCode,
		Mode:      g.Mode,
		StartedAt: g.StartedAt,
	}
	if len(g.Song) > 0 {
		r.Song = Song(g.Song)
	}
	if len(g.PlayerIDs) > 0 {
		if err := json.Unmarshal(g.PlayerIDs, &r.PlayerIDs); err != nil {
			return r, err
		}
	}
	return r, nil
}
