package store

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"idscan/internal/logger"
	"idscan/pkg/models"
)

const (
	defaultWorksheet = "AadharData"
	lastColumn       = "H"
)

// sheetHeaders are written to row 1: the user id, the six result keys and
// the time of the last write.
var sheetHeaders = append(append([]string{"userId"}, models.FieldKeys...), "updatedAt")

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// SheetsStore keeps one row per user id in a Google Sheets worksheet.
type SheetsStore struct {
	sheetsService *sheets.Service
	spreadsheetID string
	worksheet     string
	log           zerolog.Logger
}

// NewSheetsStore opens the spreadsheet at sheetURL with service account
// credentials from GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS.
// The worksheet is created with headers if it does not exist.
func NewSheetsStore(ctx context.Context, sheetURL, worksheet string) (*SheetsStore, error) {
	const op = "NewSheetsStore"

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}

	var creds []byte
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err = os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	} else if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		creds = []byte(credsJSON)
	} else {
		return nil, fmt.Errorf("%s: neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set", op)
	}

	config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	svc, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	s := newSheetsStore(svc, spreadsheetID, worksheet)
	if err := s.ensureSheetWithHeaders(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

func newSheetsStore(svc *sheets.Service, spreadsheetID, worksheet string) *SheetsStore {
	if worksheet == "" {
		worksheet = defaultWorksheet
	}
	log := logger.WithComponent("store").With().Str("driver", DriverSheets).Logger()
	log.Debug().Str("spreadsheet_id", spreadsheetID).Str("worksheet", worksheet).Msg("Using spreadsheet")

	return &SheetsStore{
		sheetsService: svc,
		spreadsheetID: spreadsheetID,
		worksheet:     worksheet,
		log:           log,
	}
}

func extractSpreadsheetID(url string) (string, error) {
	matches := spreadsheetIDPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format")
	}
	return matches[1], nil
}

// Merge implements Store. An existing row is rewritten in place with the
// merged values, otherwise a new row is appended.
func (s *SheetsStore) Merge(ctx context.Context, id string, record map[string]string) error {
	const op = "Merge"

	if id == "" {
		return fmt.Errorf("%s: %w", op, ErrEmptyID)
	}

	rows, err := s.readRows(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	updatedAt := time.Now().UTC().Format(time.RFC3339)
	idx := findRow(rows, id)
	if idx < 0 {
		values := mergeRow(nil, id, record, updatedAt)
		_, err = s.sheetsService.Spreadsheets.Values.Append(
			s.spreadsheetID,
			s.columnsRange(),
			&sheets.ValueRange{Values: [][]interface{}{values}},
		).ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to append row: %w", op, err)
		}
		s.log.Debug().Str("user_id", id).Msg("Row appended")
		return nil
	}

	values := mergeRow(rows[idx], id, record, updatedAt)
	rowRange := fmt.Sprintf("%s!A%d:%s%d", s.worksheet, idx+1, lastColumn, idx+1)
	_, err = s.sheetsService.Spreadsheets.Values.Update(
		s.spreadsheetID,
		rowRange,
		&sheets.ValueRange{Values: [][]interface{}{values}},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to update row %d: %w", op, idx+1, err)
	}

	s.log.Debug().Str("user_id", id).Int("row", idx+1).Msg("Row updated")
	return nil
}

// Get implements Store.
func (s *SheetsStore) Get(ctx context.Context, id string) (map[string]string, error) {
	const op = "Get"

	rows, err := s.readRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	idx := findRow(rows, id)
	if idx < 0 {
		return nil, ErrNotFound
	}
	return rowToRecord(rows[idx]), nil
}

func (s *SheetsStore) Close() error { return nil }

func (s *SheetsStore) columnsRange() string {
	return fmt.Sprintf("%s!A:%s", s.worksheet, lastColumn)
}

func (s *SheetsStore) readRows(ctx context.Context) ([][]interface{}, error) {
	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, s.columnsRange()).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.columnsRange(), err)
	}
	return resp.Values, nil
}

// ensureSheetWithHeaders creates the worksheet if needed and writes the header
// row when it is empty.
func (s *SheetsStore) ensureSheetWithHeaders(ctx context.Context) error {
	const op = "ensureSheetWithHeaders"

	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	var sheetExists bool
	var sheetID int64
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == s.worksheet {
			sheetExists = true
			sheetID = sheet.Properties.SheetId
			break
		}
	}

	if !sheetExists {
		s.log.Info().Str("sheet", s.worksheet).Msg("Creating new sheet")

		req := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{
				{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: s.worksheet}}},
			},
		}
		resp, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to create sheet: %w", op, err)
		}
		sheetID = resp.Replies[0].AddSheet.Properties.SheetId
	}

	headerRange := fmt.Sprintf("%s!A1:%s1", s.worksheet, lastColumn)
	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get headers: %w", op, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	s.log.Info().Str("sheet", s.worksheet).Msg("Adding headers to sheet")

	header := make([]interface{}, len(sheetHeaders))
	for i, h := range sheetHeaders {
		header[i] = h
	}
	_, err = s.sheetsService.Spreadsheets.Values.Update(
		s.spreadsheetID,
		headerRange,
		&sheets.ValueRange{Values: [][]interface{}{header}},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to add headers: %w", op, err)
	}

	if err := s.formatHeaders(ctx, sheetID); err != nil {
		s.log.Warn().Err(err).Msg("Failed to format headers, continuing anyway")
	}
	return nil
}

// formatHeaders makes the header row bold and freezes it.
func (s *SheetsStore) formatHeaders(ctx context.Context, sheetID int64) error {
	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(len(sheetHeaders)),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{TextFormat: &sheets.TextFormat{Bold: true}},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:        sheetID,
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}
	if _, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("formatHeaders: %w", err)
	}
	return nil
}

// findRow returns the index of the row whose first cell is id, skipping the
// header row, or -1.
func findRow(rows [][]interface{}, id string) int {
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) > 0 && fmt.Sprint(rows[i][0]) == id {
			return i
		}
	}
	return -1
}

// mergeRow lays record over existing in header order.
func mergeRow(existing []interface{}, id string, record map[string]string, updatedAt string) []interface{} {
	out := make([]interface{}, len(sheetHeaders))
	out[0] = id
	for i, key := range models.FieldKeys {
		col := i + 1
		if v, ok := record[key]; ok {
			out[col] = v
		} else if col < len(existing) {
			out[col] = fmt.Sprint(existing[col])
		} else {
			out[col] = ""
		}
	}
	out[len(out)-1] = updatedAt
	return out
}

// rowToRecord reads the six result columns. Trailing empty cells are omitted
// by the API, so short rows yield empty values.
func rowToRecord(row []interface{}) map[string]string {
	record := make(map[string]string, len(models.FieldKeys))
	for i, key := range models.FieldKeys {
		col := i + 1
		if col < len(row) {
			record[key] = fmt.Sprint(row[col])
		} else {
			record[key] = ""
		}
	}
	return record
}
