package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"nedwiyt/internal/core"
	"nedwiyt/internal/log"
	"nedwiyt/internal/sheets"
)

// Exporter overwrites the Inventory, Categories and Summary tabs of one
// spreadsheet on every export.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *log.Logger
}

var _ sheets.Exporter = (*Exporter)(nil)

// Credentials locate the service account. JSON wins over File; when both
// are empty GOOGLE_APPLICATION_CREDENTIALS is tried.
type Credentials struct {
	SpreadsheetID string
	JSON          string
	File          string
}

// New creates an exporter authenticated with service-account credentials.
func New(ctx context.Context, creds Credentials, logger *log.Logger) (*Exporter, error) {
	if strings.TrimSpace(creds.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	credentialsJSON, err := loadCredentials(creds, logger)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newExporter(svc, creds.SpreadsheetID, logger), nil
}

// NewWithClient talks to endpoint through client without authentication.
// Used against emulators and in tests.
func NewWithClient(ctx context.Context, spreadsheetID, endpoint string, client *http.Client, logger *log.Logger) (*Exporter, error) {
	svc, err := gsheet.NewService(ctx,
		goption.WithEndpoint(endpoint),
		goption.WithHTTPClient(client),
		goption.WithoutAuthentication())
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newExporter(svc, spreadsheetID, logger), nil
}

func newExporter(svc *gsheet.Service, id string, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.Discard()
	}
	return &Exporter{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(id),
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

func loadCredentials(creds Credentials, logger *log.Logger) ([]byte, error) {
	inline := strings.TrimSpace(creds.JSON)
	file := strings.TrimSpace(creds.File)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		if logger != nil {
			logger.Debug("Read service account credentials", "path", file, "size", len(b))
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// Export creates missing tabs, clears the three tabs and writes the
// snapshot in one values batch.
func (e *Exporter) Export(ctx context.Context, s sheets.Snapshot) (string, error) {
	const op = "export_sheets"
	if e.svc == nil {
		return "", core.Errorf(core.KindUnavailable, op, "sheets service not initialized")
	}
	tabs := s.Tabs()

	if err := e.ensureTabs(ctx, tabs); err != nil {
		return "", classify(op, err)
	}

	ranges := make([]string, len(tabs))
	data := make([]*gsheet.ValueRange, len(tabs))
	for i, t := range tabs {
		ranges[i] = t.Name
		data[i] = &gsheet.ValueRange{Range: t.Name + "!A1", Values: t.Rows}
	}

	_, err := e.svc.Spreadsheets.Values.BatchClear(e.spreadsheetID, &gsheet.BatchClearValuesRequest{Ranges: ranges}).
		Context(ctx).Do()
	if err != nil {
		return "", classify(op, fmt.Errorf("clear tabs: %w", err))
	}

	resp, err := e.svc.Spreadsheets.Values.BatchUpdate(e.spreadsheetID, &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             data,
	}).Context(ctx).Do()
	if err != nil {
		return "", classify(op, fmt.Errorf("write tabs: %w", err))
	}

	ref := fmt.Sprintf("%s:%d", e.spreadsheetID, resp.TotalUpdatedCells)
	e.logger.InfoContext(ctx, "Exported snapshot",
		log.FieldSheetsRef, ref,
		"items", len(s.Items),
		"categories", len(s.Categories))
	return ref, nil
}

func (e *Exporter) ensureTabs(ctx context.Context, tabs []sheets.Tab) error {
	ss, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	existing := make(map[string]bool, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			existing[sh.Properties.Title] = true
		}
	}

	var reqs []*gsheet.Request
	for _, t := range tabs {
		if existing[t.Name] {
			continue
		}
		reqs = append(reqs, &gsheet.Request{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: t.Name}},
		})
	}
	if len(reqs) == 0 {
		return nil
	}
	_, err = e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add tabs: %w", err)
	}
	e.logger.InfoContext(ctx, "Created missing tabs", "count", len(reqs))
	return nil
}

func classify(op string, err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return core.Wrap(core.KindUnavailable, op, err)
		}
		return core.Wrap(core.KindUnknown, op, err)
	}
	switch {
	case gerr.Code == http.StatusUnauthorized:
		return core.Wrap(core.KindAuth, op, err)
	case gerr.Code == http.StatusForbidden:
		return core.Wrap(core.KindPermission, op, err)
	case gerr.Code == http.StatusNotFound:
		return core.Wrap(core.KindNotFound, op, err)
	case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
		return core.Wrap(core.KindUnavailable, op, err)
	default:
		return core.Wrap(core.KindUnknown, op, err)
	}
}
