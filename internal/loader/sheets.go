package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"presupuesto/internal/store"
)

// SheetSource streams payment rows from a Google spreadsheet range whose
// first row is a header of canonical column names. Smaller municipalities
// publish their payment data this way rather than as CSV exports.
type SheetSource struct {
	svc           *gsheet.Service
	spreadsheetID string
	readRange     string
}

// NewSheetSource creates a source for one spreadsheet range. Credentials
// come from the environment: GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func NewSheetSource(ctx context.Context, spreadsheetID, readRange string) (*SheetSource, error) {
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if readRange == "" {
		readRange = "A:Z"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &SheetSource{svc: svc, spreadsheetID: spreadsheetID, readRange: readRange}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (s *SheetSource) Stream(ctx context.Context, out chan<- store.PaymentRow) error {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read range %s: %w", s.readRange, err)
	}
	if len(resp.Values) == 0 {
		return fmt.Errorf("range %s is empty", s.readRange)
	}

	mapper, err := newRowMapper(toStrings(resp.Values[0]))
	if err != nil {
		return fmt.Errorf("spreadsheet %s: %w", s.spreadsheetID, err)
	}

	for i, raw := range resp.Values[1:] {
		record := toStrings(raw)
		if empty(record) {
			continue
		}
		row, err := mapper.mapRow(record)
		if err != nil {
			return fmt.Errorf("spreadsheet %s row %d: %w", s.spreadsheetID, i+2, err)
		}

		select {
		case out <- row:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = fmt.Sprint(v)
	}
	return out
}
