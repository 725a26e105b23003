// Package google mirrors month sheets to a Google spreadsheet. The mirror
// is write-only: the local workbook stays the source of truth.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"compta/internal/core"
	ports "compta/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var header = []any{"Date", "Libellé", "Montant", "Catégorie", "Type", "Prélèvement", "Compte"}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

// Ensure interface conformance
var _ ports.MonthMirror = (*Client)(nil)

// New wraps an existing Sheets service.
func New(svc *gsheet.Service, spreadsheetID string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID}
}

// Credentials selects the service account used by NewFromCredentials.
// JSON takes precedence over File; with neither, GOOGLE_APPLICATION_CREDENTIALS
// is tried.
type Credentials struct {
	JSON string
	File string
}

// NewFromCredentials creates a mirror client authenticated with a service account.
func NewFromCredentials(ctx context.Context, spreadsheetID string, creds Credentials) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, spreadsheetID), nil
}

func newSheetsService(ctx context.Context, creds Credentials) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(creds.JSON)
	serviceAccountFile := strings.TrimSpace(creds.File)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// PushMonth replaces the tab named after p with the given rows.
func (c *Client) PushMonth(ctx context.Context, p core.Period, rows []core.TransactionRecord) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if err := p.Validate(); err != nil {
		return "", err
	}
	tab := p.SheetName()
	if err := c.ensureTab(ctx, tab); err != nil {
		return "", err
	}

	full := fmt.Sprintf("%s!A:G", tab)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, full, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", full, err)
	}

	values := monthValues(rows)
	rng := fmt.Sprintf("%s!A1:G%d", tab, len(values))
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", rng, err)
	}
	if resp.UpdatedRange != "" {
		return resp.UpdatedRange, nil
	}
	return rng, nil
}

func (c *Client) ensureTab(ctx context.Context, tab string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == tab {
			return nil
		}
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", tab, err)
	}
	return nil
}

// monthValues lays rows out the way the local workbook does, header first.
func monthValues(rows []core.TransactionRecord) [][]any {
	out := make([][]any, 0, len(rows)+1)
	out = append(out, header)
	for _, r := range rows {
		recurring := ""
		if r.Recurring {
			recurring = "Oui"
		}
		out = append(out, []any{
			r.Date.ISO(),
			r.Label,
			r.Amount.InexactFloat64(),
			r.Category.Label(),
			r.Direction.Label(),
			recurring,
			r.Transfer.String(),
		})
	}
	return out
}
