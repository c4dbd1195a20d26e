// Package sync reconciles the remote sheet snapshot with the local
// cache. The merge never drops a locally written record: the outbox is
// fire-and-forget, so a record can exist locally long before the remote
// store has seen it.
package sync

import (
	"context"
	"log"
	"sort"

	"prayerlog/internal/cache"
	"prayerlog/internal/metrics"
	"prayerlog/internal/model"
	"prayerlog/internal/sheets"
)

// StudentPolicy selects how the remote roster is reconciled with the
// local one. The source tool shipped both behaviors at different times,
// so the choice is configuration, not code.
type StudentPolicy string

const (
	// PolicyReplace takes the remote roster wholesale when non-empty.
	PolicyReplace StudentPolicy = "replace"
	// PolicyMerge keeps local-only students alongside the remote roster.
	PolicyMerge StudentPolicy = "merge"
)

// ParsePolicy maps a config string to a policy, defaulting to replace.
func ParsePolicy(s string) StudentPolicy {
	if StudentPolicy(s) == PolicyMerge {
		return PolicyMerge
	}
	return PolicyReplace
}

// MergeRecords combines remote and local attendance by record id.
// Every remote record is kept; a local record survives only when its id
// is absent remotely. Output is ordered by timestamp descending.
func MergeRecords(remote, local []model.Record) []model.Record {
	seen := make(map[string]model.Record, len(remote)+len(local))
	for _, rec := range remote {
		seen[rec.ID] = rec
	}
	for _, rec := range local {
		if _, ok := seen[rec.ID]; !ok {
			seen[rec.ID] = rec
		}
	}
	out := make([]model.Record, 0, len(seen))
	for _, rec := range seen {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MergeStudents reconciles the roster under the configured policy. An
// empty remote roster always keeps the local one.
func MergeStudents(policy StudentPolicy, remote, local []model.Student) []model.Student {
	if len(remote) == 0 {
		return local
	}
	if policy != PolicyMerge {
		return remote
	}
	seen := make(map[string]struct{}, len(remote))
	out := make([]model.Student, 0, len(remote)+len(local))
	for _, st := range remote {
		seen[st.ID] = struct{}{}
		out = append(out, st)
	}
	for _, st := range local {
		if _, ok := seen[st.ID]; !ok {
			out = append(out, st)
		}
	}
	return out
}

// Syncer refreshes the cache from the sheet endpoint.
type Syncer struct {
	sheet  *sheets.Client
	store  cache.Store
	policy StudentPolicy
}

// NewSyncer creates a syncer.
func NewSyncer(sheet *sheets.Client, store cache.Store, policy StudentPolicy) *Syncer {
	return &Syncer{sheet: sheet, store: store, policy: policy}
}

// Refresh fetches both collections, merges them with the cached state
// and persists the result. Any fetch failure degrades to the cached
// snapshot for that collection; nothing is surfaced to the caller
// beyond the returned working set.
func (s *Syncer) Refresh(ctx context.Context) ([]model.Student, []model.Record) {
	var students []model.Student
	var records []model.Record
	degraded := false

	// A collection whose local snapshot cannot be read is left alone
	// entirely: merging against a snapshot we never saw would persist a
	// result missing every local-only entry.
	if localStudents, err := cache.Students(ctx, s.store); err != nil {
		log.Printf("sync: cached roster unreadable, skipping roster refresh: %v", err)
		degraded = true
	} else if remote, err := s.sheet.FetchStudents(ctx); err != nil {
		log.Printf("sync: student fetch failed, keeping cached roster: %v", err)
		students = localStudents
		degraded = true
	} else {
		students = MergeStudents(s.policy, remote, localStudents)
		if err := cache.SetStudents(ctx, s.store, students); err != nil {
			log.Printf("sync: persisting roster failed: %v", err)
		}
	}

	if localRecords, err := cache.Records(ctx, s.store); err != nil {
		log.Printf("sync: cached records unreadable, skipping attendance refresh: %v", err)
		degraded = true
	} else if remote, err := s.sheet.FetchAttendance(ctx); err != nil {
		log.Printf("sync: attendance fetch failed, keeping cached records: %v", err)
		records = localRecords
		degraded = true
	} else {
		records = MergeRecords(remote, localRecords)
		if err := cache.SetRecords(ctx, s.store, records); err != nil {
			log.Printf("sync: persisting records failed: %v", err)
		}
	}

	if degraded {
		metrics.SyncRuns.WithLabelValues("fallback").Inc()
	} else {
		metrics.SyncRuns.WithLabelValues("refreshed").Inc()
	}
	return students, records
}
