package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

type sheetsCall struct {
	Method string
	Path   string
	Query  string
	Values [][]interface{}
}

// fakeSheetsAPI serves the values endpoints of one spreadsheet from rows
// and records every call.
type fakeSheetsAPI struct {
	mu    sync.Mutex
	rows  [][]interface{}
	calls []sheetsCall
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := sheetsCall{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query().Get("valueInputOption")}
	if r.Method != http.MethodGet {
		var body sheets.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		call.Values = body.Values
	}
	f.calls = append(f.calls, call)

	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodGet {
		json.NewEncoder(w).Encode(sheets.ValueRange{Range: "AadharData!A1:H100", Values: f.rows})
		return
	}
	w.Write([]byte(`{}`))
}

func newTestSheetsStore(t *testing.T, rows [][]interface{}) (*SheetsStore, *fakeSheetsAPI) {
	t.Helper()
	api := &fakeSheetsAPI{rows: rows}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return newSheetsStore(svc, "sheet-id", ""), api
}

var testSheetRows = [][]interface{}{
	{"userId", "name", "dob", "gender", "aadharNumber", "vid", "issueDate", "updatedAt"},
	{"u0", "Asha Devi Rao", "", "FEMALE"},
	{"u1", "Rahul Kumar Singh", "05/11/1998", "MALE", "123456789012", "", "", "2024-01-01T00:00:00Z"},
}

func TestExtractSpreadsheetID(t *testing.T) {
	id, err := extractSpreadsheetID("https://docs.google.com/spreadsheets/d/1AbC-d_EfG/edit#gid=0")
	require.NoError(t, err)
	assert.Equal(t, "1AbC-d_EfG", id)

	_, err = extractSpreadsheetID("https://example.com/not-a-sheet")
	assert.Error(t, err)
}

func TestSheetHeaders(t *testing.T) {
	assert.Equal(t, []string{
		"userId", "name", "dob", "gender", "aadharNumber", "vid", "issueDate", "updatedAt",
	}, sheetHeaders)
}

func TestFindRowSkipsHeader(t *testing.T) {
	rows := [][]interface{}{
		{"userId", "name"},
		{"u1", "Rahul Kumar Singh"},
		{},
		{"u2"},
	}

	assert.Equal(t, 1, findRow(rows, "u1"))
	assert.Equal(t, 3, findRow(rows, "u2"))
	assert.Equal(t, -1, findRow(rows, "userId"))
	assert.Equal(t, -1, findRow(rows, "u3"))
}

func TestMergeRowKeepsExistingValues(t *testing.T) {
	existing := []interface{}{"u1", "Rahul Kumar Singh", "05/11/1998", "MALE"}

	got := mergeRow(existing, "u1", map[string]string{"dob": "06/11/1998", "vid": "12345678901"}, "2024-01-02T03:04:05Z")

	assert.Equal(t, []interface{}{
		"u1", "Rahul Kumar Singh", "06/11/1998", "MALE", "", "12345678901", "", "2024-01-02T03:04:05Z",
	}, got)
}

func TestRowToRecordShortRow(t *testing.T) {
	got := rowToRecord([]interface{}{"u1", "Rahul Kumar Singh", "05/11/1998"})

	assert.Equal(t, map[string]string{
		"name":         "Rahul Kumar Singh",
		"dob":          "05/11/1998",
		"gender":       "",
		"aadharNumber": "",
		"vid":          "",
		"issueDate":    "",
	}, got)
}

func TestSheetsStoreMergeUpdatesExistingRow(t *testing.T) {
	s, api := newTestSheetsStore(t, testSheetRows)

	err := s.Merge(context.Background(), "u1", map[string]string{"dob": "06/11/1998", "vid": "91234567890"})
	require.NoError(t, err)

	require.Len(t, api.calls, 2)
	assert.Equal(t, http.MethodGet, api.calls[0].Method)
	assert.Equal(t, "/v4/spreadsheets/sheet-id/values/AadharData!A:H", api.calls[0].Path)

	update := api.calls[1]
	assert.Equal(t, http.MethodPut, update.Method)
	assert.Equal(t, "/v4/spreadsheets/sheet-id/values/AadharData!A3:H3", update.Path)
	assert.Equal(t, "RAW", update.Query)
	require.Len(t, update.Values, 1)
	row := update.Values[0]
	require.Len(t, row, len(sheetHeaders))
	assert.Equal(t, []interface{}{
		"u1", "Rahul Kumar Singh", "06/11/1998", "MALE", "123456789012", "91234567890", "",
	}, row[:7])
	assert.NotEqual(t, "2024-01-01T00:00:00Z", row[7])
}

func TestSheetsStoreMergeAppendsNewRow(t *testing.T) {
	s, api := newTestSheetsStore(t, testSheetRows)

	err := s.Merge(context.Background(), "u2", map[string]string{"name": "Meena Kumari Das"})
	require.NoError(t, err)

	require.Len(t, api.calls, 2)
	appendCall := api.calls[1]
	assert.Equal(t, http.MethodPost, appendCall.Method)
	assert.Equal(t, "/v4/spreadsheets/sheet-id/values/AadharData!A:H:append", appendCall.Path)
	assert.Equal(t, "RAW", appendCall.Query)
	require.Len(t, appendCall.Values, 1)
	assert.Equal(t, []interface{}{"u2", "Meena Kumari Das", "", "", "", "", ""}, appendCall.Values[0][:7])
}

func TestSheetsStoreMergeRejectsEmptyID(t *testing.T) {
	s, api := newTestSheetsStore(t, testSheetRows)

	err := s.Merge(context.Background(), "", map[string]string{"name": "x"})

	assert.ErrorIs(t, err, ErrEmptyID)
	assert.Empty(t, api.calls)
}

func TestSheetsStoreGet(t *testing.T) {
	s, _ := newTestSheetsStore(t, testSheetRows)

	got, err := s.Get(context.Background(), "u0")
	require.NoError(t, err)
	assert.Equal(t, "Asha Devi Rao", got["name"])
	assert.Equal(t, "FEMALE", got["gender"])
	assert.Equal(t, "", got["vid"])

	_, err = s.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get(context.Background(), "userId")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSheetsStoreMergeReportsAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)
	svc, err := sheets.NewService(context.Background(), option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)

	err = newSheetsStore(svc, "sheet-id", "").Merge(context.Background(), "u1", map[string]string{"name": "x"})

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
