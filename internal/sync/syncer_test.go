package sync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"prayerlog/internal/cache"
	"prayerlog/internal/model"
	"prayerlog/internal/sheets"
)

func TestRefreshMergesRemoteIntoCache(t *testing.T) {
	remoteStudents := []model.Student{{ID: "1", Name: "Aisyah", ClassName: "7A"}}
	remoteRecords := []model.Record{{
		ID: "r1", StudentID: "1", Date: "2024-03-01",
		Timestamp: time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC),
		Status:    model.StatusPresent,
	}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case sheets.ActionGetStudents:
			_ = json.NewEncoder(w).Encode(remoteStudents)
		case sheets.ActionGetAttendance:
			_ = json.NewEncoder(w).Encode(remoteRecords)
		default:
			http.Error(w, "unknown action", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	store := cache.NewMemory()
	local := model.Record{
		ID: "local", StudentID: "2", Date: "2024-03-01",
		Timestamp: time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC),
		Status:    model.StatusHaid,
	}
	if err := cache.SetRecords(ctx, store, []model.Record{local}); err != nil {
		t.Fatal(err)
	}

	syncer := NewSyncer(sheets.New(srv.URL, time.Second, false), store, PolicyReplace)
	students, records := syncer.Refresh(ctx)

	if len(students) != 1 || students[0].Name != "Aisyah" {
		t.Fatalf("unexpected roster: %v", students)
	}
	if len(records) != 2 {
		t.Fatalf("merged %d records, want 2 (remote + local-only)", len(records))
	}
	if got, _ := cache.Records(ctx, store); len(got) != 2 {
		t.Errorf("cache holds %d records after refresh, want 2", len(got))
	}
}

// failingStore errors on reads of one key, like redis during a blip.
type failingStore struct {
	cache.Store
	failKey string
}

func (f *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == f.failKey {
		return nil, errors.New("connection refused")
	}
	return f.Store.Get(ctx, key)
}

func TestRefreshSkipsCollectionWhenLocalReadFails(t *testing.T) {
	remoteRecords := []model.Record{{
		ID: "remote", StudentID: "1", Date: "2024-03-01",
		Timestamp: time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC),
		Status:    model.StatusPresent,
	}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case sheets.ActionGetStudents:
			_, _ = w.Write([]byte("[]"))
		case sheets.ActionGetAttendance:
			_ = json.NewEncoder(w).Encode(remoteRecords)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	mem := cache.NewMemory()
	local := []model.Record{{ID: "local-only", StudentID: "2", Date: "2024-03-01", Timestamp: time.Now(), Status: model.StatusHaid}}
	if err := cache.SetRecords(ctx, mem, local); err != nil {
		t.Fatal(err)
	}

	broken := &failingStore{Store: mem, failKey: cache.KeyAttendance}
	syncer := NewSyncer(sheets.New(srv.URL, time.Second, false), broken, PolicyReplace)
	syncer.Refresh(ctx)

	// The unreadable collection must not be rewritten from the remote
	// snapshot alone; the local-only record has to survive.
	got, err := cache.Records(ctx, mem)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "local-only" {
		t.Errorf("local read failure let the refresh clobber the cache: %v", got)
	}
}

func TestRefreshFallsBackToCacheOnFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broken", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx := context.Background()
	store := cache.NewMemory()
	localStudents := []model.Student{{ID: "2", Name: "Budi", ClassName: "7B"}}
	localRecords := []model.Record{{ID: "l1", StudentID: "2", Date: "2024-03-01", Timestamp: time.Now(), Status: model.StatusPresent}}
	if err := cache.SetStudents(ctx, store, localStudents); err != nil {
		t.Fatal(err)
	}
	if err := cache.SetRecords(ctx, store, localRecords); err != nil {
		t.Fatal(err)
	}

	syncer := NewSyncer(sheets.New(srv.URL, time.Second, false), store, PolicyReplace)
	students, records := syncer.Refresh(ctx)

	if len(students) != 1 || students[0].ID != "2" {
		t.Error("fetch failure must return the cached roster unchanged")
	}
	if len(records) != 1 || records[0].ID != "l1" {
		t.Error("fetch failure must return the cached records unchanged")
	}
}
