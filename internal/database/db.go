package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"work-platform/internal/config"
	"work-platform/internal/logutils"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	maxAttempts = 10
	retryDelay  = 2 * time.Second
)

// Open подключается к рабочей базе, при необходимости создав её.
// Пул один на процесс; закрывается через Close при остановке.
func Open(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	if maint := cfg.MaintenanceDSN(); maint != "" {
		if err := ensureDatabase(ctx, maint, cfg.DBName); err != nil {
			return nil, err
		}
	}

	var (
		db  *gorm.DB
		err error
	)
	for i := 1; i <= maxAttempts; i++ {
		logutils.Log.Infof("trying to connect to DB (attempt %d/%d)...", i, maxAttempts)

		db, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Warn),
			TranslateError: true,
		})
		if err == nil {
			err = ping(ctx, db)
		}
		if err == nil {
			logutils.Log.Info("connected to DB successfully")
			break
		}

		logutils.Log.WithError(err).Warn("failed to connect to DB")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to db after %d attempts: %w", maxAttempts, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// ensureDatabase создаёт базу name через служебную базу postgres.
func ensureDatabase(ctx context.Context, maintenanceDSN, name string) error {
	if name == "" {
		return errors.New("database name is empty")
	}

	admin, err := gorm.Open(postgres.Open(maintenanceDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		// сервер ещё может подниматься; это решит цикл в Open
		logutils.Log.WithError(err).Warn("maintenance database unavailable, skipping create")
		return nil
	}
	defer Close(admin)

	var exists bool
	err = admin.WithContext(ctx).
		Raw("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = ?)", name).
		Scan(&exists).Error
	if err != nil {
		logutils.Log.WithError(err).Warn("cannot check database existence, skipping create")
		return nil
	}
	if exists {
		return nil
	}

	if err := admin.WithContext(ctx).Exec("CREATE DATABASE " + quoteIdent(name)).Error; err != nil {
		return fmt.Errorf("create database %s: %w", name, err)
	}
	logutils.Log.WithField("database", name).Info("created database")
	return nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Close закрывает пул; повторный вызов безопасен.
func Close(db *gorm.DB) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logutils.Log.WithError(err).Warn("failed to close DB pool")
	}
}
