package db

import "time"

// Thread pairs a forum thread (ID) with the user it relays for. Open is
// true while active and NULL once closed, so the unique index on
// (user_id, is_open) allows any number of closed threads per user but at
// most one open one.
type Thread struct {
	ID        string  `gorm:"column:id;primaryKey;size:32"`
	UserID    string  `gorm:"column:user_id;size:32;not null;uniqueIndex:idx_threads_user_open,priority:1"`
	Open      *bool   `gorm:"column:is_open;uniqueIndex:idx_threads_user_open,priority:2"`
	Last      string  `gorm:"column:last_message_id;size:32;not null"`
	LastClose *string `gorm:"column:last_close_id;size:32"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Thread) TableName() string { return "threads" }

func (t Thread) IsOpen() bool {
	return t.Open != nil && *t.Open
}

type Block struct {
	UserID    string `gorm:"column:user_id;primaryKey;size:32"`
	CreatedAt time.Time
}

func (Block) TableName() string { return "blocks" }

type Ping struct {
	UserID    string `gorm:"column:user_id;primaryKey;size:32"`
	CreatedAt time.Time
}

func (Ping) TableName() string { return "pings" }
