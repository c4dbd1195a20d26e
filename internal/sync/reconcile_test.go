package sync

import (
	"testing"
	"time"

	"prayerlog/internal/model"
)

func rec(id, studentID, date string, ts time.Time) model.Record {
	return model.Record{
		ID:        id,
		StudentID: studentID,
		Date:      date,
		Timestamp: ts,
		Status:    model.StatusPresent,
	}
}

func TestMergeRecordsKeepsRemoteAndLocalOnly(t *testing.T) {
	base := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	remote := []model.Record{
		rec("r1", "s1", "2024-03-01", base),
		rec("shared", "s2", "2024-03-01", base.Add(time.Minute)),
	}
	local := []model.Record{
		rec("shared", "s2", "2024-03-01", base.Add(2*time.Minute)), // remote copy must win
		rec("l1", "s3", "2024-03-01", base.Add(3*time.Minute)),
	}

	out := MergeRecords(remote, local)
	if len(out) != 3 {
		t.Fatalf("merged %d records, want 3", len(out))
	}

	byID := map[string]model.Record{}
	for _, r := range out {
		if _, dup := byID[r.ID]; dup {
			t.Fatalf("record %s appears twice", r.ID)
		}
		byID[r.ID] = r
	}
	for _, id := range []string{"r1", "shared", "l1"} {
		if _, ok := byID[id]; !ok {
			t.Errorf("record %s missing from merge", id)
		}
	}
	if !byID["shared"].Timestamp.Equal(base.Add(time.Minute)) {
		t.Error("remote copy of shared record did not win")
	}
}

func TestMergeRecordsSortsByTimestampDescending(t *testing.T) {
	base := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	out := MergeRecords(
		[]model.Record{rec("a", "s1", "2024-03-01", base)},
		[]model.Record{
			rec("b", "s2", "2024-03-01", base.Add(time.Hour)),
			rec("c", "s3", "2024-02-29", base.Add(-time.Hour)),
		},
	)
	for i := 1; i < len(out); i++ {
		if out[i].Timestamp.After(out[i-1].Timestamp) {
			t.Fatalf("records out of order at %d: %s after %s", i, out[i].ID, out[i-1].ID)
		}
	}
	if out[0].ID != "b" || out[2].ID != "c" {
		t.Errorf("unexpected order: %s, %s, %s", out[0].ID, out[1].ID, out[2].ID)
	}
}

func TestMergeRecordsEmptyInputs(t *testing.T) {
	if out := MergeRecords(nil, nil); len(out) != 0 {
		t.Errorf("merge of nothing produced %d records", len(out))
	}
	local := []model.Record{rec("l1", "s1", "2024-03-01", time.Now())}
	if out := MergeRecords(nil, local); len(out) != 1 || out[0].ID != "l1" {
		t.Error("empty remote should keep local records")
	}
}

func TestMergeStudentsReplacePolicy(t *testing.T) {
	remote := []model.Student{{ID: "1", Name: "Aisyah"}}
	local := []model.Student{{ID: "1", Name: "Old Name"}, {ID: "2", Name: "Budi"}}

	out := MergeStudents(PolicyReplace, remote, local)
	if len(out) != 1 || out[0].Name != "Aisyah" {
		t.Fatalf("replace policy kept local entries: %v", out)
	}
}

func TestMergeStudentsMergePolicy(t *testing.T) {
	remote := []model.Student{{ID: "1", Name: "Aisyah"}}
	local := []model.Student{{ID: "1", Name: "Old Name"}, {ID: "2", Name: "Budi"}}

	out := MergeStudents(PolicyMerge, remote, local)
	if len(out) != 2 {
		t.Fatalf("merge policy produced %d students, want 2", len(out))
	}
	if out[0].Name != "Aisyah" {
		t.Error("remote entry should win for shared id")
	}
	if out[1].ID != "2" {
		t.Error("local-only student dropped")
	}
}

func TestMergeStudentsEmptyRemoteKeepsLocal(t *testing.T) {
	local := []model.Student{{ID: "2", Name: "Budi"}}
	for _, policy := range []StudentPolicy{PolicyReplace, PolicyMerge} {
		out := MergeStudents(policy, nil, local)
		if len(out) != 1 || out[0].ID != "2" {
			t.Errorf("policy %s: empty remote replaced local roster", policy)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	if ParsePolicy("merge") != PolicyMerge {
		t.Error("merge not recognized")
	}
	if ParsePolicy("replace") != PolicyReplace {
		t.Error("replace not recognized")
	}
	if ParsePolicy("bogus") != PolicyReplace {
		t.Error("unknown policy should default to replace")
	}
}
