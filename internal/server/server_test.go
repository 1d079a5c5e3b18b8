package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/flowledger/ledgerd/internal/classify"
	"github.com/flowledger/ledgerd/internal/model"
	"github.com/flowledger/ledgerd/internal/oracle"
	"github.com/flowledger/ledgerd/internal/testutil"
)

const salesCSV = `Date,Item,Amount
2024-03-01,Latte,4.50
2024-03-01,Burger,12.00
2024-03-02,Mystery Box,40.00
`

func newTestServer(t *testing.T) (*httptest.Server, *oracle.MockClient) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	mock := oracle.NewMockClient()
	ingestor := classify.NewIngestor(db.Storage, mock, classify.DefaultConfig())
	reviewer := classify.NewReviewer(db.Storage)

	srv := New(db.Storage, ingestor, reviewer, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		DefaultTenant: testutil.TestTenant,
	})

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, mock
}

func uploadFile(t *testing.T, ts *httptest.Server, filename, content string) *http.Response {
	return uploadBytes(t, ts, filename, []byte(content))
}

func uploadBytes(t *testing.T, ts *httptest.Server, filename string, content []byte) *http.Response {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
		ts.URL+"/api/ingest", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestIngestCSVUpload(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := uploadFile(t, ts, "sales.csv", salesCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result model.IngestResult
	decodeBody(t, resp, &result)
	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 1, result.Quarantined)
	assert.Equal(t, 0, result.Duplicates)

	// Same upload again dedupes on content-derived ids.
	resp = uploadFile(t, ts, "sales.csv", salesCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &result)
	assert.Equal(t, 3, result.Duplicates)
	assert.Equal(t, 0, result.Accepted)
}

func TestIngestXLSXKeepsUploadFilename(t *testing.T) {
	ts, _ := newTestServer(t)

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Menu")
	require.NoError(t, err)
	for _, row := range [][]string{
		{"Item", "Price", "Category"},
		{"Latte", "4.50", "Beverages"},
		{"Burger", "12.00", "Food"},
	} {
		r := sheet.AddRow()
		for _, cell := range row {
			r.AddCell().Value = cell
		}
	}
	var workbook bytes.Buffer
	require.NoError(t, f.Write(&workbook))

	// Uploads are spooled to a temp file; the result and the kind-detection
	// filename hints must still see the original name.
	resp := uploadBytes(t, ts, "menu.xlsx", workbook.Bytes())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result model.IngestResult
	decodeBody(t, resp, &result)
	assert.Equal(t, "menu.xlsx", result.SourceFile)
	assert.Equal(t, model.FileKindState, result.FileKind)
	assert.Equal(t, 2, result.Accepted)
}

func TestIngestRejectsUnsupportedFormat(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := uploadFile(t, ts, "sales.pdf", "%PDF-1.4")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body errorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "FORMAT_REJECTED", body.Code)
	assert.NotEmpty(t, body.Reason)
}

func TestIngestRejectsBadSchema(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := uploadFile(t, ts, "notes.csv", "Name,Mood\nAlice,Happy\n")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body errorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "SCHEMA_REJECTED", body.Code)
}

func TestIngestMissingFileField(t *testing.T) {
	ts, _ := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())

	resp, err := ts.Client().Post(ts.URL+"/api/ingest", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListEventsWithFilter(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := uploadFile(t, ts, "sales.csv", salesCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// First-seen stream entities leave their events tagged provisional.
	resp, err := ts.Client().Get(ts.URL + "/api/events?status=PROVISIONAL_ENTITY")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Events []model.UniversalEvent `json:"events"`
		Count  int                    `json:"count"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, 2, body.Count)
	for _, ev := range body.Events {
		assert.Equal(t, model.StatusProvisionalEntity, ev.Status)
	}

	resp, err = ts.Client().Get(ts.URL + "/api/events?status=QUARANTINED")
	require.NoError(t, err)
	var quarantined struct {
		Count int `json:"count"`
	}
	decodeBody(t, resp, &quarantined)
	assert.Equal(t, 1, quarantined.Count)

	resp, err = ts.Client().Get(ts.URL + "/api/events?limit=bogus")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQuarantineReviewFlow(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := uploadFile(t, ts, "sales.csv", salesCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/quarantine")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pending struct {
		Quarantine []model.QuarantineRecord `json:"quarantine"`
		Count      int                      `json:"count"`
	}
	decodeBody(t, resp, &pending)
	require.Equal(t, 1, pending.Count)
	eventID := pending.Quarantine[0].EventID

	resolve := func(body string) *http.Response {
		resp, err := ts.Client().Post(
			fmt.Sprintf("%s/api/quarantine/%s/resolve", ts.URL, eventID),
			"application/json", strings.NewReader(body))
		require.NoError(t, err)
		return resp
	}

	resp = resolve(`{"decision":"APPROVE","category":"Food","sub_category":"Specials"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// The correction lands as a superseding accepted event.
	resp, err = ts.Client().Get(ts.URL + "/api/events?status=ACCEPTED&category=Food")
	require.NoError(t, err)
	var accepted struct {
		Events []model.UniversalEvent `json:"events"`
	}
	decodeBody(t, resp, &accepted)
	found := false
	for _, ev := range accepted.Events {
		if ev.Entity == "Mystery Box" {
			found = true
			assert.Equal(t, 100, ev.Confidence)
		}
	}
	assert.True(t, found, "corrected event should be accepted under Food")

	// Queue drains and a retried resolution stays a no-op.
	resp, err = ts.Client().Get(ts.URL + "/api/quarantine")
	require.NoError(t, err)
	decodeBody(t, resp, &pending)
	assert.Equal(t, 0, pending.Count)

	resp = resolve(`{"decision":"APPROVE","category":"Food"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp = resolve(`{"decision":"MAYBE"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestResolveUnknownEvent(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := ts.Client().Post(ts.URL+"/api/quarantine/no-such-event/resolve",
		"application/json", strings.NewReader(`{"decision":"REJECT"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCategoriesEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/api/categories")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Categories []model.Category `json:"categories"`
	}
	decodeBody(t, resp, &listing)
	names := make(map[string]bool)
	for _, c := range listing.Categories {
		names[c.Name] = true
	}
	assert.True(t, names["Food"])
	assert.True(t, names["Uncategorized"])

	resp, err = ts.Client().Post(ts.URL+"/api/categories", "application/json",
		strings.NewReader(`{"name":"Marketing","description":"Ads and promos"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created model.Category
	decodeBody(t, resp, &created)
	assert.Equal(t, "Marketing", created.Name)

	resp, err = ts.Client().Post(ts.URL+"/api/categories", "application/json",
		strings.NewReader(`{"name":"Marketing"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, err = ts.Client().Post(ts.URL+"/api/categories", "application/json",
		strings.NewReader(`{}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTenantHeaderIsolation(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := uploadFile(t, ts, "sales.csv", salesCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet,
		ts.URL+"/api/events", nil)
	require.NoError(t, err)
	req.Header.Set("X-Tenant-ID", "someone-else")

	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Count int `json:"count"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, 0, body.Count)
}
