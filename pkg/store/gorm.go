package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/ricardocisco/polymarket-tracker/pkg/config"
)

// Gorm is the Postgres-backed store.
type Gorm struct {
	db *gorm.DB
}

// NewGorm wraps an open connection.
func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

// Open connects to Postgres, retrying with exponential backoff until
// cfg.ConnectTimeout elapses, and migrates the schema when enabled.
func Open(ctx context.Context, cfg config.DBConfig, log *zap.Logger) (*Gorm, error) {
	if cfg.DSN == "" {
		return nil, errors.New("store: empty dsn")
	}
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	deadline := time.Now().Add(timeout)

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 10 * time.Second

	for attempt := 1; ; attempt++ {
		db, err := connect(cfg)
		if err == nil {
			if cfg.AutoMigrate {
				if err := db.WithContext(ctx).AutoMigrate(&Wallet{}, &Subscription{}); err != nil {
					return nil, fmt.Errorf("store: migrate: %w", err)
				}
			}
			log.Info("database connected", zap.Int("attempt", attempt))
			return NewGorm(db), nil
		}

		sleep := bo.NextBackOff()
		if sleep == backoff.Stop || time.Now().Add(sleep).After(deadline) {
			return nil, fmt.Errorf("store: connect after %d attempts: %w", attempt, err)
		}
		log.Warn("database not ready", zap.Int("attempt", attempt), zap.Duration("retry_in", sleep), zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func connect(cfg config.DBConfig) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqldb, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if err := sqldb.Ping(); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	return gdb, nil
}

// Close releases the connection pool.
func (s *Gorm) Close() error {
	sqldb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqldb.Close()
}

func (s *Gorm) Ping(ctx context.Context) error {
	sqldb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqldb.PingContext(ctx)
}

func (s *Gorm) ListWallets(ctx context.Context) ([]Wallet, error) {
	var items []Wallet
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Gorm) ListSubscriptions(ctx context.Context, address string) ([]Subscription, error) {
	var items []Subscription
	err := s.db.WithContext(ctx).
		Where("wallet_address = ?", address).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Gorm) TouchWallet(ctx context.Context, address string, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&Wallet{}).
		Where("address = ?", address).
		Update("last_checked_at", at.UTC()).Error
}

func (s *Gorm) Track(ctx context.Context, channelID, address string) (bool, error) {
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w := Wallet{Address: address}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoNothing: true,
		}).Create(&w).Error; err != nil {
			return err
		}

		sub := Subscription{ChannelID: channelID, WalletAddress: address}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_id"}, {Name: "wallet_address"}},
			DoNothing: true,
		}).Create(&sub)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected > 0
		return nil
	})
	return created, err
}

func (s *Gorm) Untrack(ctx context.Context, channelID, address string) (int64, error) {
	var remaining int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("channel_id = ? AND wallet_address = ?", channelID, address).Delete(&Subscription{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotSubscribed
		}
		if err := tx.Model(&Subscription{}).Where("wallet_address = ?", address).Count(&remaining).Error; err != nil {
			return err
		}
		if remaining == 0 {
			return tx.Where("address = ?", address).Delete(&Wallet{}).Error
		}
		return nil
	})
	return remaining, err
}

func (s *Gorm) ListChannelWallets(ctx context.Context, channelID string) ([]Wallet, error) {
	var items []Wallet
	err := s.db.WithContext(ctx).
		Joins("JOIN subscriptions ON subscriptions.wallet_address = wallets.address").
		Where("subscriptions.channel_id = ?", channelID).
		Order("subscriptions.id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Gorm) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	db := s.db.WithContext(ctx)
	if err := db.Model(&Wallet{}).Count(&st.Wallets).Error; err != nil {
		return Stats{}, err
	}
	if err := db.Model(&Subscription{}).Count(&st.Subscriptions).Error; err != nil {
		return Stats{}, err
	}
	if err := db.Model(&Subscription{}).Distinct("channel_id").Count(&st.Channels).Error; err != nil {
		return Stats{}, err
	}
	return st, nil
}
