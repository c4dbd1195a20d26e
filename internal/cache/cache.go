// Package cache holds the last-known-good application state. It is the
// sole source of truth when the sheet endpoint is unreachable and is
// always written before any remote call is attempted.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"prayerlog/internal/model"
)

// Keys for the logical cache entries. All backends namespace them with
// the application prefix.
const (
	KeyStudents   = "students"
	KeyAttendance = "attendance"
	KeySession    = "session"
)

// Store is a small key-value contract over JSON blobs. Get returns
// (nil, nil) for an absent key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, raw []byte) error
	Remove(ctx context.Context, key string) error
}

// Students reads the cached roster. Absent or malformed content reads
// as an empty roster; a backend read failure is an error so callers
// never mistake an unreachable cache for an empty one.
func Students(ctx context.Context, s Store) ([]model.Student, error) {
	raw, err := s.Get(ctx, KeyStudents)
	if err != nil {
		return nil, fmt.Errorf("cache read %s: %w", KeyStudents, err)
	}
	if raw == nil {
		return nil, nil
	}
	var out []model.Student
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Printf("cache: malformed students blob, treating as empty: %v", err)
		return nil, nil
	}
	return out, nil
}

// SetStudents replaces the cached roster.
func SetStudents(ctx context.Context, s Store, students []model.Student) error {
	raw, err := json.Marshal(students)
	if err != nil {
		return err
	}
	return s.Set(ctx, KeyStudents, raw)
}

// Records reads the cached attendance set. Absent or malformed content
// reads as empty; a backend read failure is an error. The write path
// depends on this distinction: treating an unreadable cache as empty
// would defeat the duplicate-day check and let a rewrite clobber the
// whole set.
func Records(ctx context.Context, s Store) ([]model.Record, error) {
	raw, err := s.Get(ctx, KeyAttendance)
	if err != nil {
		return nil, fmt.Errorf("cache read %s: %w", KeyAttendance, err)
	}
	if raw == nil {
		return nil, nil
	}
	var out []model.Record
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Printf("cache: malformed attendance blob, treating as empty: %v", err)
		return nil, nil
	}
	return out, nil
}

// SetRecords replaces the cached attendance set.
func SetRecords(ctx context.Context, s Store, records []model.Record) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return s.Set(ctx, KeyAttendance, raw)
}

// SessionFor reads a stored session for a username, nil when absent or
// malformed.
func SessionFor(ctx context.Context, s Store, username string) *model.Session {
	raw, err := s.Get(ctx, KeySession+":"+username)
	if err != nil || raw == nil {
		return nil
	}
	var sess model.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil
	}
	return &sess
}

// SetSession persists a session blob.
func SetSession(ctx context.Context, s Store, sess model.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.Set(ctx, KeySession+":"+sess.Username, raw)
}

// ClearSession removes a stored session.
func ClearSession(ctx context.Context, s Store, username string) error {
	return s.Remove(ctx, KeySession+":"+username)
}
