// Package attendance owns the write path: duplicate-day rejection,
// optimistic cache update, then a queued best-effort remote write.
package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"prayerlog/internal/archive"
	"prayerlog/internal/cache"
	"prayerlog/internal/metrics"
	"prayerlog/internal/model"
	"prayerlog/internal/outbox"
	"prayerlog/internal/sheets"
)

// ErrDuplicate is returned when the student already has a record for
// the current day.
var ErrDuplicate = errors.New("attendance already recorded for today")

// Service coordinates attendance writes against the cache and outbox.
type Service struct {
	store cache.Store
	out   outbox.Queue
	arch  *archive.Archive
	now   func() time.Time
}

// NewService creates a service. arch may be nil when no mirror is
// configured.
func NewService(store cache.Store, out outbox.Queue, arch *archive.Archive) *Service {
	return &Service{store: store, out: out, arch: arch, now: time.Now}
}

// Record marks a student present (or haid-excused) for today. The cache
// is updated synchronously before the remote write is queued; the
// returned record reflects what callers should display immediately.
// The duplicate check consults only this process's cache, so it holds
// under sequential local access, not across independent clients.
func (s *Service) Record(ctx context.Context, student model.Student, operator string, status model.Status) (model.Record, error) {
	if student.ID == "" {
		return model.Record{}, errors.New("student id required")
	}
	if !status.Valid() {
		return model.Record{}, errors.New("unknown status: " + string(status))
	}

	now := s.now()
	date := model.DateKey(now)
	records, err := cache.Records(ctx, s.store)
	if err != nil {
		// An unreadable cache must fail the write: proceeding would skip
		// the duplicate check and overwrite the whole cached set.
		return model.Record{}, fmt.Errorf("attendance cache unavailable: %w", err)
	}
	for _, rec := range records {
		if rec.StudentID == student.ID && rec.Date == date {
			return model.Record{}, ErrDuplicate
		}
	}

	rec := model.Record{
		ID:           uuid.NewString(),
		StudentID:    student.ID,
		StudentName:  student.Name,
		ClassName:    student.ClassName,
		Date:         date,
		Timestamp:    now,
		OperatorName: operator,
		Status:       status,
	}
	records = append([]model.Record{rec}, records...)
	if err := cache.SetRecords(ctx, s.store, records); err != nil {
		return model.Record{}, err
	}
	metrics.RecordsWritten.Inc()

	s.queue(ctx, sheets.ActionAddAttendance, rec)
	if err := s.arch.SaveRecord(ctx, rec); err != nil {
		log.Printf("attendance: archive write failed for %s: %v", rec.ID, err)
	}
	return rec, nil
}

// UpdateStatus changes the status of a cached record. A missing id is a
// no-op and reports found=false.
func (s *Service) UpdateStatus(ctx context.Context, id string, status model.Status) (bool, error) {
	if !status.Valid() {
		return false, errors.New("unknown status: " + string(status))
	}
	records, err := cache.Records(ctx, s.store)
	if err != nil {
		return false, fmt.Errorf("attendance cache unavailable: %w", err)
	}
	found := false
	for i := range records {
		if records[i].ID == id {
			records[i].Status = status
			found = true
			break
		}
	}
	if !found {
		return false, nil
	}
	if err := cache.SetRecords(ctx, s.store, records); err != nil {
		return false, err
	}

	s.queue(ctx, sheets.ActionUpdateAttendance, map[string]string{"id": id, "status": string(status)})
	if err := s.arch.UpdateStatus(ctx, id, status); err != nil {
		log.Printf("attendance: archive update failed for %s: %v", id, err)
	}
	return true, nil
}

// Delete removes a cached record. A missing id is a no-op and reports
// found=false; the cache is not rewritten in that case.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	records, err := cache.Records(ctx, s.store)
	if err != nil {
		return false, fmt.Errorf("attendance cache unavailable: %w", err)
	}
	idx := -1
	for i := range records {
		if records[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}
	records = append(records[:idx], records[idx+1:]...)
	if err := cache.SetRecords(ctx, s.store, records); err != nil {
		return false, err
	}

	s.queue(ctx, sheets.ActionDeleteAttendance, map[string]string{"id": id})
	if err := s.arch.DeleteRecord(ctx, id); err != nil {
		log.Printf("attendance: archive delete failed for %s: %v", id, err)
	}
	return true, nil
}

// List returns the cached working set.
func (s *Service) List(ctx context.Context) ([]model.Record, error) {
	return cache.Records(ctx, s.store)
}

// queue enqueues a remote write; delivery failures are the worker's
// problem, a publish failure is only logged.
func (s *Service) queue(ctx context.Context, action string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("attendance: marshal for outbox failed: %v", err)
		return
	}
	if err := s.out.Publish(ctx, outbox.Message{Action: action, Payload: raw}); err != nil {
		log.Printf("attendance: outbox publish failed: %v", err)
	}
}
