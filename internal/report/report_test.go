package report

import (
	"testing"
	"time"

	"prayerlog/internal/model"
)

var roster = []model.Student{
	{ID: "1", Name: "Aisyah", ClassName: "7A"},
	{ID: "2", Name: "Budi", ClassName: "7A"},
	{ID: "3", Name: "Citra", ClassName: "8B"},
}

func presentAt(id, studentID, name, class, date string, hour int) model.Record {
	return model.Record{
		ID: id, StudentID: studentID, StudentName: name, ClassName: class,
		Date:      date,
		Timestamp: mustTime(date, hour),
		Status:    model.StatusPresent,
	}
}

func mustTime(date string, hour int) time.Time {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return d.Add(time.Duration(hour) * time.Hour)
}

func TestDailyMarksMissingStudentsAbsent(t *testing.T) {
	records := []model.Record{presentAt("r1", "1", "Aisyah", "7A", "2024-03-01", 6)}

	rows := Daily(roster, records, "2024-03-01", "")
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want one per student", len(rows))
	}
	// Ordered by class then name: Aisyah(7A), Budi(7A), Citra(8B).
	if rows[0].Student.Name != "Aisyah" || rows[1].Student.Name != "Budi" || rows[2].Student.Name != "Citra" {
		t.Fatalf("unexpected order: %s, %s, %s", rows[0].Student.Name, rows[1].Student.Name, rows[2].Student.Name)
	}
	if !rows[0].Attended || rows[0].Time != "06:00" {
		t.Errorf("Aisyah should be present at 06:00, got %+v", rows[0])
	}
	if rows[1].Attended || rows[1].Label != "Belum absen" {
		t.Errorf("Budi should be marked not yet attended, got %+v", rows[1])
	}
}

func TestDailyReflectsNewRecordOnRecompute(t *testing.T) {
	var records []model.Record
	rows := Daily(roster, records, "2024-03-01", "7A")
	if rows[1].Attended {
		t.Fatal("Budi attended before any record exists")
	}

	records = append(records, presentAt("r2", "2", "Budi", "7A", "2024-03-01", 5))
	rows = Daily(roster, records, "2024-03-01", "7A")
	if !rows[1].Attended || rows[1].Time != "05:00" || rows[1].Status != model.StatusPresent {
		t.Errorf("Budi's row should show the new record, got %+v", rows[1])
	}
}

func TestDailyClassFilter(t *testing.T) {
	rows := Daily(roster, nil, "2024-03-01", "8B")
	if len(rows) != 1 || rows[0].Student.Name != "Citra" {
		t.Fatalf("class filter failed: %+v", rows)
	}
}

func TestDailyHaidLabel(t *testing.T) {
	rec := presentAt("r1", "1", "Aisyah", "7A", "2024-03-01", 6)
	rec.Status = model.StatusHaid
	rows := Daily(roster[:1], []model.Record{rec}, "2024-03-01", "")
	if rows[0].Label != "Haid" || rows[0].Status != model.StatusHaid {
		t.Errorf("haid record mislabeled: %+v", rows[0])
	}
}

func TestRangeMatrixExcusedDay(t *testing.T) {
	rec := presentAt("r1", "1", "Aisyah", "7A", "2024-01-02", 6)
	rec.Status = model.StatusHaid

	rows, dates, err := RangeMatrix(roster[:1], []model.Record{rec}, "2024-01-01", "2024-01-03", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(dates) != 3 {
		t.Fatalf("interval has %d days, want 3", len(dates))
	}
	row := rows[0]
	want := []Cell{CellAbsent, CellHaid, CellAbsent}
	for i, cell := range row.Cells {
		if cell != want[i] {
			t.Errorf("cell %d = %s, want %s", i, cell, want[i])
		}
	}
	if row.HaidCount != 1 || row.PresentCount != 0 || row.AbsentCount != 2 {
		t.Errorf("counts = present %d, haid %d, absent %d", row.PresentCount, row.HaidCount, row.AbsentCount)
	}
}

func TestRangeMatrixRejectsBadInterval(t *testing.T) {
	if _, _, err := RangeMatrix(roster, nil, "2024-01-03", "2024-01-01", ""); err == nil {
		t.Error("inverted interval accepted")
	}
	if _, _, err := RangeMatrix(roster, nil, "garbage", "2024-01-01", ""); err == nil {
		t.Error("unparseable date accepted")
	}
}

func TestMonthlyCounts(t *testing.T) {
	haid := presentAt("r3", "1", "Aisyah", "7A", "2024-03-10", 6)
	haid.Status = model.StatusHaid
	records := []model.Record{
		presentAt("r1", "1", "Aisyah", "7A", "2024-03-01", 6),
		presentAt("r2", "1", "Aisyah", "7A", "2024-03-02", 6),
		haid,
		presentAt("r4", "1", "Aisyah", "7A", "2024-04-01", 6), // outside month
	}

	rows := Monthly(roster[:1], records, "2024-03", "")
	if rows[0].PresentCount != 2 || rows[0].HaidCount != 1 {
		t.Errorf("got present %d haid %d, want 2 and 1", rows[0].PresentCount, rows[0].HaidCount)
	}
}

func TestLeaderboardRanking(t *testing.T) {
	var records []model.Record
	for i := 0; i < 3; i++ {
		records = append(records, presentAt("a"+string(rune('0'+i)), "A", "Ani", "7A", "2024-03-0"+string(rune('1'+i)), 6))
	}
	for i := 0; i < 5; i++ {
		records = append(records, presentAt("b"+string(rune('0'+i)), "B", "Bela", "7A", "2024-03-0"+string(rune('1'+i)), 6))
	}

	entries := Leaderboard(records)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 (zero-count students excluded)", len(entries))
	}
	if entries[0].StudentID != "B" || entries[0].Total != 5 {
		t.Errorf("first place should be B with 5, got %+v", entries[0])
	}
	if entries[1].StudentID != "A" || entries[1].Total != 3 {
		t.Errorf("second place should be A with 3, got %+v", entries[1])
	}
}

func TestLeaderboardTieBrokenByName(t *testing.T) {
	records := []model.Record{
		presentAt("r1", "Z", "Zahra", "7A", "2024-03-01", 6),
		presentAt("r2", "A", "Ani", "7A", "2024-03-01", 6),
	}
	entries := Leaderboard(records)
	if entries[0].StudentName != "Ani" {
		t.Errorf("tie should rank Ani first, got %s", entries[0].StudentName)
	}
}

func TestLeaderboardCountsHaidAsAttendance(t *testing.T) {
	haid := presentAt("r1", "A", "Ani", "7A", "2024-03-01", 6)
	haid.Status = model.StatusHaid
	entries := Leaderboard([]model.Record{haid, presentAt("r2", "A", "Ani", "7A", "2024-03-02", 6)})
	if entries[0].Total != 2 {
		t.Errorf("haid record should count toward the total, got %d", entries[0].Total)
	}
}
