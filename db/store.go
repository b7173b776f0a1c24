package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Jochem-W/modmail/internal/snowflake"
	"gorm.io/gorm"
)

// Store is the persisted state of threads, blocks and ping subscriptions.
type Store struct {
	db *gorm.DB
}

func NewStore(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

func (s *Store) Thread(ctx context.Context, id string) (*Thread, error) {
	var t Thread
	if err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *Store) OpenThreadByUser(ctx context.Context, userID string) (*Thread, error) {
	var t Thread
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_open = ?", userID, true).
		First(&t).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *Store) OpenThreads(ctx context.Context) ([]Thread, error) {
	var out []Thread
	err := s.db.WithContext(ctx).
		Where("is_open = ?", true).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ThreadsByUser lists every thread of a user, newest first.
func (s *Store) ThreadsByUser(ctx context.Context, userID string) ([]Thread, error) {
	var out []Thread
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) LatestClosedThread(ctx context.Context, userID string) (*Thread, error) {
	var t Thread
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_open IS NULL", userID).
		Order("created_at DESC").
		Order("id DESC").
		First(&t).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *Store) ListThreads(ctx context.Context, openOnly bool) ([]Thread, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if openOnly {
		q = q.Where("is_open = ?", true)
	}
	var out []Thread
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// CreateThread inserts an open thread. The unique index is the only
// arbiter of "one open thread per user": a violation is reported as
// ErrThreadExists.
func (s *Store) CreateThread(ctx context.Context, id, userID, last string) (*Thread, error) {
	id = strings.TrimSpace(id)
	userID = strings.TrimSpace(userID)
	if id == "" || userID == "" {
		return nil, errors.New("thread id and user id are required")
	}
	open := true
	t := Thread{ID: id, UserID: userID, Open: &open, Last: strings.TrimSpace(last)}
	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrThreadExists
		}
		return nil, fmt.Errorf("insert thread: %w", err)
	}
	return &t, nil
}

// Advance moves the resume cursor and close-control pointer of a thread
// forward. Pointers older than the stored ones are ignored.
func (s *Store) Advance(ctx context.Context, id, last string, lastClose *string) error {
	t, err := s.Thread(ctx, id)
	if err != nil {
		return err
	}
	updates := map[string]any{}
	if snowflake.After(last, t.Last) {
		updates["last_message_id"] = last
	}
	if lastClose != nil && (t.LastClose == nil || snowflake.After(*lastClose, *t.LastClose)) {
		updates["last_close_id"] = *lastClose
	}
	if len(updates) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Model(&Thread{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("advance thread %s: %w", id, err)
	}
	return nil
}

// CloseThread clears the open flag. It reports false when the thread was
// not open, so concurrent closes have exactly one winner.
func (s *Store) CloseThread(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&Thread{}).
		Where("id = ? AND is_open = ?", id, true).
		Update("is_open", gorm.Expr("NULL"))
	if res.Error != nil {
		return false, fmt.Errorf("close thread %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) IsBlocked(ctx context.Context, userID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Block{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ToggleBlock flips the block state of a user and returns the new state.
func (s *Store) ToggleBlock(ctx context.Context, userID string) (bool, error) {
	return toggle(ctx, s.db, &Block{UserID: userID}, userID)
}

func (s *Store) Blocks(ctx context.Context) ([]string, error) {
	return listIDs[Block](ctx, s.db)
}

func (s *Store) Pings(ctx context.Context) ([]string, error) {
	return listIDs[Ping](ctx, s.db)
}

// TogglePing flips the ping subscription of a staff member and returns the
// new state.
func (s *Store) TogglePing(ctx context.Context, userID string) (bool, error) {
	return toggle(ctx, s.db, &Ping{UserID: userID}, userID)
}

func (s *Store) RemovePing(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Delete(&Ping{}, "user_id = ?", userID).Error
}

func toggle[T any](ctx context.Context, gdb *gorm.DB, row *T, userID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, errors.New("user id is required")
	}
	var zero T
	res := gdb.WithContext(ctx).Delete(&zero, "user_id = ?", userID)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return false, nil
	}
	if err := gdb.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return true, nil
		}
		return false, err
	}
	return true, nil
}

func listIDs[T any](ctx context.Context, gdb *gorm.DB) ([]string, error) {
	var ids []string
	var zero T
	if err := gdb.WithContext(ctx).Model(&zero).Order("created_at ASC").Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
