package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"doordashboard/internal/aggregate"
	"doordashboard/internal/log"
	ports "doordashboard/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const lastColumn = "J"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	weeklySheet   string
	logger        *log.Logger
}

// Ensure interface conformance
var (
	_ ports.WeeklyExporter = (*Client)(nil)
	_ ports.WeeklyReader   = (*Client)(nil)
)

// Config selects the spreadsheet and the service account used to reach it.
// CredentialsJSON wins over CredentialsFile; when both are empty
// GOOGLE_APPLICATION_CREDENTIALS is consulted.
type Config struct {
	SpreadsheetID   string
	WeeklySheet     string
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if strings.TrimSpace(cfg.WeeklySheet) == "" {
		cfg.WeeklySheet = "Weekly"
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(creds),
		"scope", gsheet.SpreadsheetsScope)

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		weeklySheet:   strings.TrimSpace(cfg.WeeklySheet),
		logger:        logger,
	}, nil
}

func credentials(cfg Config) ([]byte, error) {
	if j := strings.TrimSpace(cfg.CredentialsJSON); j != "" {
		return []byte(j), nil
	}
	file := strings.TrimSpace(cfg.CredentialsFile)
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// ExportWeekly writes the header and one row per week starting at A1, then
// clears any rows left over from a longer previous export.
func (c *Client) ExportWeekly(ctx context.Context, weeks []aggregate.Week) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rows := weeklyRows(weeks)
	rng := fmt.Sprintf("%s!A1:%s%d", c.weeklySheet, lastColumn, len(rows))
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to update %s: %w", rng, err)
	}

	stale := fmt.Sprintf("%s!A%d:%s", c.weeklySheet, len(rows)+1, lastColumn)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, stale, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		c.logger.WarnContext(ctx, "Failed to clear stale weekly rows", "range", stale, log.FieldError, err)
	}

	c.logger.InfoContext(ctx, "Weekly rollup exported",
		log.FieldOperation, log.OpExport,
		"range", rng,
		"weeks", len(weeks))
	return rng, nil
}

// ReadWeekly parses the exported sheet back into weeks.
func (c *Client) ReadWeekly(ctx context.Context) ([]aggregate.Week, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:%s", c.weeklySheet, lastColumn)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseWeekly(resp.Values)
}

// weeklyRows renders the header and the week rows in WeeklyHeader order.
func weeklyRows(weeks []aggregate.Week) [][]any {
	header := make([]any, len(ports.WeeklyHeader))
	for i, h := range ports.WeeklyHeader {
		header[i] = h
	}
	rows := make([][]any, 0, len(weeks)+1)
	rows = append(rows, header)
	for _, w := range weeks {
		w = w.Rounded()
		perDelivery := 0.0
		if w.Deliveries > 0 {
			perDelivery = aggregate.Round2(w.Earnings / float64(w.Deliveries))
		}
		rows = append(rows, []any{
			w.WeekNumber,
			w.Year,
			w.StartDate,
			w.EndDate,
			w.Earnings,
			w.Deliveries,
			w.DashMinutes,
			w.ActiveMinutes,
			w.ChallengeBonus,
			perDelivery,
		})
	}
	return rows
}
