// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/wfunc/beatroom/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(dsn string) (*GormPostgreSQL, error) {
	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.GormRound{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func (p *GormPostgreSQL) SaveRound(ctx context.Context, record *models.RoundRecord) error {
	row, err := models.NewGormRound(*record)
	if err != nil {
		return err
	}
	return p.db.WithContext(ctx).Create(row).Error
}

func (p *GormPostgreSQL) RecentRounds(ctx context.Context, limit int) ([]models.RoundRecord, error) {
	if limit < 1 {
		return nil, ErrBadLimit
	}
	var rows []models.GormRound
	err := p.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.RoundRecord, 0, len(rows))
	for i := range rows {
		r, err := rows[i].Record()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
