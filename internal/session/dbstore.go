package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type sessionRecord struct {
	ID        string    `gorm:"primaryKey;size:64"`
	UserID    uint      `gorm:"column:user_id;index"`
	Data      string    `gorm:"type:text;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	UpdatedAt time.Time
}

func (sessionRecord) TableName() string {
	return "sesion"
}

// DBStore keeps sessions in the application database. It is the default
// store, so a single sqlite file is enough to run the app.
type DBStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDBStore(ctx context.Context, db *gorm.DB) (*DBStore, error) {
	if err := db.WithContext(ctx).AutoMigrate(&sessionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate session table: %w", err)
	}
	return &DBStore{db: db, now: time.Now}, nil
}

func (s *DBStore) Name() string {
	return "database"
}

func (s *DBStore) Get(ctx context.Context, id string) (*Session, error) {
	var record sessionRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	if !record.ExpiresAt.After(s.now()) {
		_ = s.Delete(ctx, id)
		return nil, ErrNoSession
	}

	var sess Session
	if err := json.Unmarshal([]byte(record.Data), &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	sess.persisted = true
	return &sess, nil
}

func (s *DBStore) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	record := sessionRecord{
		ID:        sess.ID,
		UserID:    sess.UserID,
		Data:      string(data),
		ExpiresAt: sess.ExpiresAt.UTC(),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *DBStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&sessionRecord{}).Error
}

// DeleteExpired removes sessions past their expiry and reports how many.
func (s *DBStore) DeleteExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", s.now().UTC()).Delete(&sessionRecord{})
	return result.RowsAffected, result.Error
}

func (s *DBStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
