package csbot

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	sqliteExecPragma = []string{
		"pragma journal_mode=WAL;",
		"pragma synchronous = normal;",
		"pragma temp_store = memory;",
		"pragma foreign_keys = ON;",
	}
	dbOperationTimeout = 30 * time.Second
)

// ModelUnixTime is an embeddable model with Unix timestamps for
// creation, update, and deletion.
type ModelUnixTime struct {
	CreatedAt int64          `gorm:"autoCreateTime:milli" json:"created_at,omitempty"`
	UpdatedAt int64          `gorm:"autoUpdateTime:milli" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

type ModelUintID struct {
	ID uint `gorm:"primaryKey" json:"id"`
}

// InteractionLog records every gateway interaction received, for
// troubleshooting and auditing.
type InteractionLog struct {
	ModelUintID
	ModelUnixTime
	InteractionID string `json:"interaction_id" gorm:"index"`
	Type          string `json:"type"`
	GuildID       string `json:"guild_id" gorm:"index"`
	ChannelID     string `json:"channel_id"`
	UserID        string `json:"user_id" gorm:"index"`
	Username      string `json:"username"`
	CommandName   string `json:"command_name"`
}

// Verification records a completed email verification.
type Verification struct {
	ModelUintID
	ModelUnixTime
	GuildID  string `json:"guild_id" gorm:"index"`
	UserID   string `json:"user_id" gorm:"index"`
	Username string `json:"username"`
	Email    string `json:"email"`
	RoleID   string `json:"role_id"`
}

// database wraps the GORM connection with a write mutex, since the
// sqlite driver only tolerates a single writer.
type database struct {
	db     *gorm.DB
	mu     sync.Mutex
	logger *slog.Logger
}

func newWriteDB(db *gorm.DB, log *slog.Logger) *database {
	if log == nil {
		log = slog.Default()
	}
	return &database{
		db:     db,
		logger: log.With(loggerNameKey, "writedb"),
	}
}

func (d *database) DB() *gorm.DB {
	return d.db
}

func (d *database) Create(ctx context.Context, value any) (
	rowsAffected int64,
	err error,
) {
	d.mu.Lock()
	defer d.mu.Unlock()
	db := d.db
	_, ok := ctx.Deadline()
	if !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dbOperationTimeout)
		defer cancel()
	}
	rv := db.WithContext(ctx).Create(value)
	return rv.RowsAffected, rv.Error
}

func (d *database) Save(ctx context.Context, value any) (
	rowsAffected int64,
	err error,
) {
	d.mu.Lock()
	defer d.mu.Unlock()
	db := d.db
	_, ok := ctx.Deadline()
	if !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dbOperationTimeout)
		defer cancel()
	}
	rv := db.WithContext(ctx).Save(value)
	return rv.RowsAffected, rv.Error
}

// CreateDB opens (creating if needed) the sqlite database at the given
// path and migrates the schema, logging queries via gormLogger.
func CreateDB(
	ctx context.Context,
	path string,
	gormLogger logger.Interface,
) (*gorm.DB, error) {
	parentDir := filepath.Dir(path)
	if parentDir != "" {
		if err := os.MkdirAll(parentDir, 0755); err != nil {
			if !errors.Is(err, os.ErrExist) {
				return nil, err
			}
		}
	}
	db, err := gorm.Open(
		sqlite.Open(path),
		&gorm.Config{
			Logger: gormLogger,
			NowFunc: func() time.Time {
				return time.Now().UTC()
			},
		},
	)
	if err != nil {
		return nil, err
	}

	for _, pragma := range sqliteExecPragma {
		if err = db.WithContext(ctx).Exec(pragma).Error; err != nil {
			return db, err
		}
	}

	txn := db.WithContext(ctx).Begin()
	err = txn.Migrator().AutoMigrate(
		&InteractionLog{},
		&Verification{},
	)
	if err != nil {
		return db, err
	}
	if commitErr := txn.Commit().Error; commitErr != nil {
		return db, commitErr
	}
	return db, nil
}
