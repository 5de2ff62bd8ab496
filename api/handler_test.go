package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geouploader/geosheet"
	"github.com/geouploader/geosheet/internal/testtemplate"
	"github.com/geouploader/geosheet/session"
	"github.com/geouploader/geosheet/store"
)

const yamlManifest = `
session: liver
samples:
  - name: S1
    raw_files:
      - {path: /data/S1_R1.fq.gz, file_name: S1_R1.fq.gz}
      - {path: /data/S1_R2.fq.gz, file_name: S1_R2.fq.gz}
  - name: S2
    raw_files:
      - {path: /data/S2.fq.gz, file_name: S2.fq.gz}
`

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	dir := t.TempDir()
	cfg := geosheet.DefaultConfig()
	cfg.BaseWorkbook = filepath.Join(dir, "base.xlsx")
	cfg.SessionsDir = filepath.Join(dir, "sessions")
	_, err := testtemplate.Save(cfg.Template, cfg.BaseWorkbook)
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(dir, "geosheet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	logger, _ := test.NewNullLogger()
	return GetRouter(session.New(st, cfg, logger))
}

func do(t *testing.T, h http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createYAMLSession(t *testing.T, h http.Handler) store.Session {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/sessions/", "application/yaml", yamlManifest)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sess store.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	return sess
}

func TestCreateSession_YAML(t *testing.T) {
	h := newRouter(t)
	sess := createYAMLSession(t, h)
	assert.Equal(t, "liver", sess.Title)
	assert.Equal(t, 2, sess.Layout.SamplesLength)

	rec := do(t, h, http.MethodGet, "/sessions/", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []store.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, sess.ID, list[0].ID)

	rec = do(t, h, http.MethodPost, "/sessions/", "application/yaml", yamlManifest)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateSession_JSON(t *testing.T) {
	h := newRouter(t)
	m, err := geosheet.ParseManifest(strings.NewReader(yamlManifest))
	require.NoError(t, err)
	body, err := json.Marshal(createRequest{Title: "kidney", Manifest: m})
	require.NoError(t, err)

	rec := do(t, h, http.MethodPost, "/sessions/", "application/json", string(body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/sessions/", "application/json", `{"title": "x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodPost, "/sessions/", "application/json", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResize(t *testing.T) {
	h := newRouter(t)
	sess := createYAMLSession(t, h)
	path := fmt.Sprintf("/sessions/%d/resize", sess.ID)

	rec := do(t, h, http.MethodPost, path, "application/json", `{"action": "add_contributor"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got store.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 8, got.Layout.ContributorsNumber)

	rec = do(t, h, http.MethodPost, path, "application/json", `{"action": "add_sample"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	do(t, h, http.MethodPost, path, "application/json", `{"action": "remove_supplementary_file"}`)
	rec = do(t, h, http.MethodPost, path, "application/json", `{"action": "remove_supplementary_file"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var errBody errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.Equal(t, "error", errBody.Status)

	rec = do(t, h, http.MethodPost, "/sessions/99/resize", "application/json", `{"action": "add_step"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, http.MethodPost, "/sessions/abc/resize", "application/json", `{"action": "add_step"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetadata_RoundTrip(t *testing.T) {
	h := newRouter(t)
	sess := createYAMLSession(t, h)
	path := fmt.Sprintf("/sessions/%d/metadata", sess.ID)

	rec := do(t, h, http.MethodGet, path, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var md geosheet.Metadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &md))
	assert.Equal(t, "S1", md.Samples[1][0])
	require.Len(t, md.PairedEnd, 2)
	assert.Equal(t, "S1_R2.fq.gz", md.PairedEnd[1][1])

	md.Study[0][1] = "Liver atlas"
	body, err := json.Marshal(md)
	require.NoError(t, err)
	rec = do(t, h, http.MethodPut, path, "application/json", string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, path, "", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &md))
	assert.Equal(t, "Liver atlas", md.Study[0][1])
}

func TestSampleWidth(t *testing.T) {
	h := newRouter(t)
	sess := createYAMLSession(t, h)
	path := fmt.Sprintf("/sessions/%d/samples/width", sess.ID)

	rec := do(t, h, http.MethodPut, path, "application/json", `{"width": 21}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, h, http.MethodPut, path, "application/json", `{"width": 2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChecksums_TSV(t *testing.T) {
	h := newRouter(t)
	sess := createYAMLSession(t, h)
	var tsv bytes.Buffer
	require.NoError(t, geosheet.WriteChecksumTSV(&tsv, []geosheet.ChecksumEntry{
		{FileName: "S1_R1.fq.gz", FileType: geosheet.FileTypeRaw, MD5: "abc"},
	}))

	rec := do(t, h, http.MethodPost, fmt.Sprintf("/sessions/%d/checksums", sess.ID), "text/tab-separated-values", tsv.String())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"files": 1}`, rec.Body.String())
}

func TestValidateAndDescribe(t *testing.T) {
	h := newRouter(t)
	sess := createYAMLSession(t, h)

	rec := do(t, h, http.MethodGet, fmt.Sprintf("/sessions/%d/validate", sess.ID), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"issues": []}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, fmt.Sprintf("/sessions/%d/describe", sess.ID), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2 samples x 20 columns")

	rec = do(t, h, http.MethodGet, fmt.Sprintf("/sessions/%d/dropdowns", sess.ID), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var d geosheet.Dropdowns
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, testtemplate.Instruments[0], d.Instrument[0])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{badRequest(errors.New("bad")), http.StatusBadRequest},
		{fmt.Errorf("x: %w", geosheet.ErrLastRow), http.StatusBadRequest},
		{fmt.Errorf("x: %w", store.ErrNotFound), http.StatusNotFound},
		{store.ErrDuplicateTitle, http.StatusConflict},
		{fmt.Errorf("%w: busy", geosheet.ErrLocked), http.StatusLocked},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
