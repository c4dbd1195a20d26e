// Package report derives the read-side views from the reconciled
// roster and attendance set. Every function is pure and recomputes from
// scratch; data volumes (hundreds of students, thousands of records)
// make incremental maintenance pointless.
package report

import (
	"fmt"
	"sort"
	"time"

	"prayerlog/internal/model"
)

// Cell is one day's outcome in a range matrix.
type Cell string

const (
	CellPresent Cell = "present"
	CellHaid    Cell = "haid"
	CellAbsent  Cell = "absent"
)

// DailyRow is one student's state for a single day.
type DailyRow struct {
	Student  model.Student `json:"student"`
	Attended bool          `json:"attended"`
	Status   model.Status  `json:"status,omitempty"`
	Time     string        `json:"time,omitempty"` // HH:MM of the record
	Label    string        `json:"label"`
}

// Daily produces one row per in-scope student for the given date,
// ordered by class then name. class filters the roster when non-empty.
func Daily(students []model.Student, records []model.Record, date, class string) []DailyRow {
	byStudent := make(map[string]model.Record)
	for _, rec := range records {
		if rec.Date == date {
			byStudent[rec.StudentID] = rec
		}
	}

	rows := make([]DailyRow, 0, len(students))
	for _, st := range students {
		if class != "" && st.ClassName != class {
			continue
		}
		row := DailyRow{Student: st, Label: "Belum absen"}
		if rec, ok := byStudent[st.ID]; ok {
			row.Attended = true
			row.Status = rec.Status
			row.Time = rec.Timestamp.Format("15:04")
			if rec.Status == model.StatusHaid {
				row.Label = "Haid"
			} else {
				row.Label = fmt.Sprintf("Hadir %s", row.Time)
			}
		}
		rows = append(rows, row)
	}
	sortByClassThenName(rows)
	return rows
}

func sortByClassThenName(rows []DailyRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Student.ClassName != rows[j].Student.ClassName {
			return rows[i].Student.ClassName < rows[j].Student.ClassName
		}
		return rows[i].Student.Name < rows[j].Student.Name
	})
}

// MatrixRow is one student's cells across a date interval.
type MatrixRow struct {
	Student      model.Student `json:"student"`
	Cells        []Cell        `json:"cells"`
	PresentCount int           `json:"presentCount"`
	HaidCount    int           `json:"haidCount"`
	AbsentCount  int           `json:"absentCount"`
}

// RangeMatrix produces one row per in-scope student with one cell per
// calendar day in [from, to] inclusive. The returned date slice is the
// column order of every row's cells.
func RangeMatrix(students []model.Student, records []model.Record, from, to, class string) ([]MatrixRow, []string, error) {
	start, err := time.Parse("2006-01-02", from)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid start date %q: %w", from, err)
	}
	end, err := time.Parse("2006-01-02", to)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid end date %q: %w", to, err)
	}
	if end.Before(start) {
		return nil, nil, fmt.Errorf("range end %s before start %s", to, from)
	}

	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, model.DateKey(d))
	}

	// (studentID, date) -> status
	statusAt := make(map[string]model.Status)
	for _, rec := range records {
		statusAt[rec.StudentID+"|"+rec.Date] = rec.Status
	}

	var rows []MatrixRow
	for _, st := range students {
		if class != "" && st.ClassName != class {
			continue
		}
		row := MatrixRow{Student: st, Cells: make([]Cell, 0, len(dates))}
		for _, date := range dates {
			switch statusAt[st.ID+"|"+date] {
			case model.StatusPresent:
				row.Cells = append(row.Cells, CellPresent)
				row.PresentCount++
			case model.StatusHaid:
				row.Cells = append(row.Cells, CellHaid)
				row.HaidCount++
			default:
				row.Cells = append(row.Cells, CellAbsent)
				row.AbsentCount++
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Student.ClassName != rows[j].Student.ClassName {
			return rows[i].Student.ClassName < rows[j].Student.ClassName
		}
		return rows[i].Student.Name < rows[j].Student.Name
	})
	return rows, dates, nil
}

// MonthlyRow is one student's totals for a calendar month. Absences are
// for callers to derive against a known school-day count; the record
// set alone cannot say which days held prayers.
type MonthlyRow struct {
	Student      model.Student `json:"student"`
	PresentCount int           `json:"presentCount"`
	HaidCount    int           `json:"haidCount"`
}

// Monthly produces per-student totals for month (format YYYY-MM).
func Monthly(students []model.Student, records []model.Record, month, class string) []MonthlyRow {
	type counts struct{ present, haid int }
	byStudent := make(map[string]counts)
	for _, rec := range records {
		if len(rec.Date) < 7 || rec.Date[:7] != month {
			continue
		}
		c := byStudent[rec.StudentID]
		switch rec.Status {
		case model.StatusHaid:
			c.haid++
		case model.StatusPresent:
			c.present++
		}
		byStudent[rec.StudentID] = c
	}

	rows := make([]MonthlyRow, 0, len(students))
	for _, st := range students {
		if class != "" && st.ClassName != class {
			continue
		}
		c := byStudent[st.ID]
		rows = append(rows, MonthlyRow{Student: st, PresentCount: c.present, HaidCount: c.haid})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Student.ClassName != rows[j].Student.ClassName {
			return rows[i].Student.ClassName < rows[j].Student.ClassName
		}
		return rows[i].Student.Name < rows[j].Student.Name
	})
	return rows
}

// LeaderboardEntry is one student's all-time total.
type LeaderboardEntry struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	ClassName   string `json:"className"`
	Total       int    `json:"total"`
}

// Leaderboard ranks students by cumulative attendance (present plus
// haid) across all records, descending, ties broken by name ascending.
// Students with no records never appear. Names come from the record
// snapshots, so the board survives roster edits and deletions.
func Leaderboard(records []model.Record) []LeaderboardEntry {
	byStudent := make(map[string]*LeaderboardEntry)
	for _, rec := range records {
		entry, ok := byStudent[rec.StudentID]
		if !ok {
			entry = &LeaderboardEntry{
				StudentID:   rec.StudentID,
				StudentName: rec.StudentName,
				ClassName:   rec.ClassName,
			}
			byStudent[rec.StudentID] = entry
		}
		entry.Total++
	}
	out := make([]LeaderboardEntry, 0, len(byStudent))
	for _, entry := range byStudent {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].StudentName < out[j].StudentName
	})
	return out
}
