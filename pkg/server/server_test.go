package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/augview/augview/pkg/domain"
	"github.com/augview/augview/pkg/transform"
	"github.com/augview/augview/pkg/viewer"
)

func newTestServer(t *testing.T, withImage bool) (*httptest.Server, *viewer.Viewer, domain.Step) {
	t.Helper()

	v := viewer.New("test", nil)
	tr, err := transform.New("grayscale", map[string]any{"p": 1.0})
	require.NoError(t, err)
	step := v.AddTransform(tr)
	if withImage {
		require.NoError(t, v.Process(context.Background(), viewer.GradientImage(16, 16)))
	}

	srv := New(v, nil, NewMetrics())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, v, step
}

func getJSON(t *testing.T, method, url string, body *bytes.Buffer, contentType string, out any) int {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestGetPipeline(t *testing.T) {
	ts, _, step := newTestServer(t, true)

	var p domain.Pipeline
	status := getJSON(t, http.MethodGet, ts.URL+"/api/pipeline", nil, "", &p)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "test", p.Name)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, step.ID, p.Steps[0].ID)
	assert.NotEmpty(t, p.FinalImage)
}

func TestUpdateParams(t *testing.T) {
	ts, v, step := newTestServer(t, true)

	body := bytes.NewBufferString(`{"p": 0.25}`)
	var resp map[string]string
	status := getJSON(t, http.MethodPut, ts.URL+"/api/step/"+step.ID+"/params", body, "application/json", &resp)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, 0.25, v.Pipeline().Steps[0].Params["p"])
}

func TestUpdateParamsErrors(t *testing.T) {
	ts, _, step := newTestServer(t, true)

	status := getJSON(t, http.MethodPut, ts.URL+"/api/step/missing/params",
		bytes.NewBufferString(`{"p": 0.5}`), "application/json", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status = getJSON(t, http.MethodPut, ts.URL+"/api/step/"+step.ID+"/params",
		bytes.NewBufferString(`{"bogus": 1}`), "application/json", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status = getJSON(t, http.MethodPut, ts.URL+"/api/step/"+step.ID+"/params",
		bytes.NewBufferString(`{not json`), "application/json", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestToggleStep(t *testing.T) {
	ts, v, step := newTestServer(t, true)

	status := getJSON(t, http.MethodPut, ts.URL+"/api/step/"+step.ID+"/toggle?enabled=false", nil, "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.False(t, v.Pipeline().Steps[0].Enabled)

	status = getJSON(t, http.MethodPut, ts.URL+"/api/step/"+step.ID+"/toggle?enabled=true", nil, "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, v.Pipeline().Steps[0].Enabled)

	status = getJSON(t, http.MethodPut, ts.URL+"/api/step/"+step.ID+"/toggle?enabled=maybe", nil, "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status = getJSON(t, http.MethodPut, ts.URL+"/api/step/missing/toggle?enabled=true", nil, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRerun(t *testing.T) {
	ts, _, _ := newTestServer(t, true)

	var resp struct {
		Status   string          `json:"status"`
		Pipeline domain.Pipeline `json:"pipeline"`
	}
	status := getJSON(t, http.MethodPost, ts.URL+"/api/rerun", nil, "", &resp)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Pipeline.FinalImage)
}

func TestRerunWithoutImage(t *testing.T) {
	ts, _, _ := newTestServer(t, false)

	status := getJSON(t, http.MethodPost, ts.URL+"/api/rerun", nil, "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUpload(t *testing.T) {
	ts, v, _ := newTestServer(t, false)

	var imgBuf bytes.Buffer
	require.NoError(t, png.Encode(&imgBuf, viewer.GradientImage(24, 24)))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "img.png")
	require.NoError(t, err)
	_, err = part.Write(imgBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	var resp struct {
		Status   string          `json:"status"`
		Pipeline domain.Pipeline `json:"pipeline"`
	}
	status := getJSON(t, http.MethodPost, ts.URL+"/api/upload", &body, mw.FormDataContentType(), &resp)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, domain.Size{24, 24}, resp.Pipeline.OriginalSize)
	assert.NotEmpty(t, v.Pipeline().OriginalImage)
}

func TestUploadRejectsNonImage(t *testing.T) {
	ts, _, _ := newTestServer(t, false)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("plain text"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	status := getJSON(t, http.MethodPost, ts.URL+"/api/upload", &body, mw.FormDataContentType(), nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHealthAndIndex(t *testing.T) {
	ts, _, _ := newTestServer(t, false)

	var health map[string]string
	status := getJSON(t, http.MethodGet, ts.URL+"/healthz", nil, "", &health)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", health["status"])

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _, step := newTestServer(t, true)

	// Drive one command so the counter exists.
	getJSON(t, http.MethodPut, ts.URL+"/api/step/"+step.ID+"/toggle?enabled=false", nil, "", nil)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "augview_commands_total")
	assert.Contains(t, buf.String(), `command="toggle_step"`)
}

func TestCORSPreflight(t *testing.T) {
	ts, _, _ := newTestServer(t, false)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/pipeline", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(resp.Header.Get("Access-Control-Allow-Methods"), "PUT"))
}
