// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq" // PostgreSQL 驱动

	"github.com/wfunc/beatroom/logger"
	"github.com/wfunc/beatroom/models"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// PostgreSQL 数据库实现, schema managed by the embedded migrations.
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL connects with dsn and migrates the schema through url.
func NewPostgreSQL(dsn, url string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := MigrateUp(url); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// NewMigrator reads migrations from the binary and targets url.
func NewMigrator(url string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, err
	}
	return migrate.NewWithSourceInstance("iofs", src, url)
}

// MigrateUp applies every pending migration.
func MigrateUp(url string) error {
	m, err := NewMigrator(url)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	version, dirty, _ := m.Version()
	logger.Log.Infof("database schema at version %d (dirty=%v)", version, dirty)
	return nil
}

func (p *PostgreSQL) SaveRound(ctx context.Context, record *models.RoundRecord) error {
	players, err := json.Marshal(record.PlayerIDs)
	if err != nil {
		return err
	}
	var song []byte
	if !record.Song.IsZero() {
		song = record.Song
	}

	query := `
        INSERT INTO rounds (room_code, mode, song_id, song, player_ids, started_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	_, err = p.db.ExecContext(ctx, query,
		record.RoomCode,
		record.Mode,
		record.Song.Info().ID,
		song,
		players,
		record.StartedAt)
	return err
}

func (p *PostgreSQL) RecentRounds(ctx context.Context, limit int) ([]models.RoundRecord, error) {
	if limit < 1 {
		return nil, ErrBadLimit
	}

	query := `
        SELECT room_code, mode, song, player_ids, started_at
        FROM rounds
        WHERE deleted_at IS NULL
        ORDER BY started_at DESC
        LIMIT $1
    `
	rows, err := p.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RoundRecord
	for rows.Next() {
		var (
			r       models.RoundRecord
			song    []byte
			players []byte
		)
		if err := rows.Scan(&r.RoomCode, &r.Mode, &song, &players, &r.StartedAt); err != nil {
			return nil, err
		}
		if len(song) > 0 {
			r.Song = models.Song(song)
		}
		if err := json.Unmarshal(players, &r.PlayerIDs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
