package google

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"doordashboard/internal/aggregate"
	ports "doordashboard/internal/sheets"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), Config{SpreadsheetID: "sheet"}, nil)
	if err == nil {
		t.Fatal("expected error for missing credentials")
	}
	if !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCredentials(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "sa.json")
	if err := os.WriteFile(file, []byte(`{"type":"service_account"}`), 0o600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}

	got, err := credentials(Config{CredentialsJSON: ` {"inline":true} `, CredentialsFile: file})
	if err != nil || string(got) != `{"inline":true}` {
		t.Fatalf("inline credentials should win: %q err=%v", got, err)
	}

	got, err = credentials(Config{CredentialsFile: file})
	if err != nil || string(got) != `{"type":"service_account"}` {
		t.Fatalf("file credentials: %q err=%v", got, err)
	}

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", file)
	got, err = credentials(Config{})
	if err != nil || len(got) == 0 {
		t.Fatalf("application default file: %q err=%v", got, err)
	}

	_, err = credentials(Config{CredentialsFile: filepath.Join(dir, "missing.json")})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestClient_UninitializedService(t *testing.T) {
	c := &Client{spreadsheetID: "test", weeklySheet: "Weekly"}

	if _, err := c.ExportWeekly(context.Background(), nil); err == nil {
		t.Fatal("expected error from export without service")
	}
	if _, err := c.ReadWeekly(context.Background()); err == nil {
		t.Fatal("expected error from read without service")
	}
}

func TestWeeklyRows(t *testing.T) {
	weeks := []aggregate.Week{
		{ID: 0, WeekNumber: 1, Year: 2024, StartDate: "2024-01-01", EndDate: "2024-01-07", Earnings: 16.504, Deliveries: 1, DashMinutes: 60, ActiveMinutes: 45, ChallengeBonus: 10},
		{ID: 1, WeekNumber: 2, Year: 2024, StartDate: "2024-01-08", EndDate: "2024-01-14", ChallengeBonus: 5, Earnings: 5},
	}
	rows := weeklyRows(weeks)
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if len(rows[0]) != len(ports.WeeklyHeader) || rows[0][0] != "Week" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if rows[1][4] != 16.5 || rows[1][9] != 16.5 {
		t.Errorf("expected rounded earnings and per-delivery, got %v", rows[1])
	}
	if rows[2][9] != 0.0 {
		t.Errorf("per-delivery without deliveries should be 0, got %v", rows[2][9])
	}

	parsed, err := parseWeekly(rows)
	if err != nil {
		t.Fatalf("parse exported rows: %v", err)
	}
	if len(parsed) != 2 || parsed[1].StartDate != "2024-01-08" || parsed[0].Earnings != 16.5 {
		t.Fatalf("unexpected round trip: %+v", parsed)
	}
}
