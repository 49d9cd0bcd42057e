package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/weiwangfds/scijournal/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// MemoryDSN 内存数据库，依赖单连接保持数据
const MemoryDSN = ":memory:"

// Open 打开数据库连接，不执行迁移
func Open(cfg config.DatabaseConfig, logLevel gormlogger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(sqliteDSN(cfg.DSN))
	case "memory":
		dialector = sqlite.Open(MemoryDSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// SQLite只使用单连接，避免写锁冲突
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	return db, nil
}

// sqliteDSN 为文件数据库创建目录并启用WAL模式
func sqliteDSN(dsn string) string {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return dsn
	}
	if dir := filepath.Dir(dsn); dir != "." {
		_ = os.MkdirAll(dir, 0755)
	}
	return dsn + "?_journal_mode=WAL&_synchronous=NORMAL&_timeout=5000&_busy_timeout=5000"
}

// InitLocal 打开客户端本地存储并迁移键值表
func InitLocal(driver, dsn string) (*gorm.DB, error) {
	db, err := Open(config.DatabaseConfig{Driver: driver, DSN: dsn}, gormlogger.Silent)
	if err != nil {
		return nil, err
	}
	if err := MigrateLocal(db); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}
	return db, nil
}

// InitServer 打开开发服务器数据库并迁移业务表
func InitServer(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := Open(cfg, gormlogger.Warn)
	if err != nil {
		return nil, err
	}
	if err := MigrateServer(db); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}
	return db, nil
}
