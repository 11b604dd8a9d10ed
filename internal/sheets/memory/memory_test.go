package memory

import (
	"context"
	"testing"

	"doordashboard/internal/aggregate"
)

func TestMemoryStoreExportAndRead(t *testing.T) {
	s := New()
	weeks, err := s.ReadWeekly(context.Background())
	if err != nil || len(weeks) != 0 {
		t.Fatalf("unexpected initial read: weeks=%v err=%v", weeks, err)
	}

	in := []aggregate.Week{
		{WeekNumber: 1, Year: 2024, StartDate: "2024-01-01", Earnings: 10.004},
		{WeekNumber: 2, Year: 2024, StartDate: "2024-01-08", Earnings: 5},
	}
	ref, err := s.ExportWeekly(context.Background(), in)
	if err != nil || ref != "mem:3" {
		t.Fatalf("unexpected export: ref=%q err=%v", ref, err)
	}

	weeks, _ = s.ReadWeekly(context.Background())
	if len(weeks) != 2 || weeks[0].Earnings != 10 {
		t.Fatalf("unexpected weeks: %+v", weeks)
	}

	weeks[0].Earnings = 99
	again, _ := s.ReadWeekly(context.Background())
	if again[0].Earnings != 10 {
		t.Fatal("ReadWeekly must return a copy")
	}

	if _, err := s.ExportWeekly(context.Background(), in[:1]); err != nil {
		t.Fatalf("second export: %v", err)
	}
	weeks, _ = s.ReadWeekly(context.Background())
	if len(weeks) != 1 || s.Exports() != 2 {
		t.Fatalf("export should replace previous rows: %+v exports=%d", weeks, s.Exports())
	}
}
