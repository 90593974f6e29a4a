package db

import (
	"time"

	"bookstore/internal/config"
	"bookstore/internal/domain/model"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。SQLログはlogrusに流す
func Connect(cfg config.Config, log *logrus.Logger) (*gorm.DB, error) {
	level := gormlogger.Warn
	if cfg.GoEnv == "dev" && log.IsLevelEnabled(logrus.DebugLevel) {
		level = gormlogger.Info
	}

	return gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.New(log, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
}

// テーブル作成
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.PickupPoint{},
		&model.User{},
		&model.Book{},
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.StockMovement{},
		&model.AuditLog{},
	)
}
