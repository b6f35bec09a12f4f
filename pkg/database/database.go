package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/free99/config"
	"github.com/d60-Lab/free99/internal/model"
	"github.com/d60-Lab/free99/pkg/logger"
)

// InitDB 按配置打开数据库并完成迁移
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	dc := cfg.Database
	dialector, err := Dialector(dc.Driver, dc.BuildDSN())
	if err != nil {
		return nil, err
	}

	level := gormlogger.Silent
	if dc.Debug {
		level = gormlogger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dc.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if dc.Driver == "sqlite" {
		// sqlite 只允许单写者；单连接让事务排队而不是返回 SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		if dc.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(dc.MaxOpenConns)
		}
		if dc.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(dc.MaxIdleConns)
		}
		if dc.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(dc.ConnMaxLifetime)
		}
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	logger.Info("database ready", zap.String("driver", dc.Driver))
	return db, nil
}

// Dialector 根据驱动名选择 gorm 方言
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "postgres", "":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Migrate 创建/更新全部表结构
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.VerificationToken{},
		&model.Listing{},
		&model.ListingTag{},
		&model.Claim{},
		&model.ListingEvent{},
		&model.Thread{},
		&model.ThreadParticipant{},
		&model.Message{},
	); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// Close 关闭底层连接池
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
