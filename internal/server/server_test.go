package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"testops/internal/generator"
	"testops/internal/pipeline"
	"testops/internal/store"
	"testops/internal/validator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const draft = "```python\nimport allure\n\n@allure.title('t')\ndef test_a():\n    with allure.step('s'):\n        allure.attach('x')\n```"

func newServer(t *testing.T, withHistory bool) (*Server, *store.Store) {
	t.Helper()
	var st *store.Store
	cfg := pipeline.Config{
		Generator: generator.New(generator.StubClient{Response: draft}, "", 0),
	}
	var history History
	if withHistory {
		var err error
		st, err = store.Open(filepath.Join(t.TempDir(), "runs.db"))
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
		cfg.Recorder = st
		history = st
	}
	return New(Options{MaxConns: 4}, pipeline.New(cfg), history), st
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoot(t *testing.T) {
	s, _ := newServer(t, false)
	rec := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Backend is running"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	s, _ := newServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := do(t, s.Handler(), req)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}

func TestGenerateTest_URLEncoded(t *testing.T) {
	s, _ := newServer(t, false)
	form := url.Values{"req": {"login works"}}
	req := httptest.NewRequest(http.MethodPost, "/generate-test", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := do(t, s.Handler(), req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Code       string           `json:"code"`
		Validation validator.Report `json:"validation"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Code, "def test_a")
	c, ok := body.Validation.Checks()
	require.True(t, ok)
	assert.True(t, c.DecoratorPresent && c.StepPresent && c.AttachmentPresent)
	assert.False(t, c.AAA)
}

func TestGenerateTest_Multipart(t *testing.T) {
	s, _ := newServer(t, false)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("req", "cart"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/generate-test", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := do(t, s.Handler(), req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestGenerateTest_MissingField(t *testing.T) {
	s, _ := newServer(t, false)
	req := httptest.NewRequest(http.MethodPost, "/generate-test", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := do(t, s.Handler(), req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "req")
}

func TestGenerateTest_WrongMethod(t *testing.T) {
	s, _ := newServer(t, false)
	rec := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/generate-test", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestValidate(t *testing.T) {
	s, _ := newServer(t, false)

	rec := do(t, s.Handler(), httptest.NewRequest(http.MethodPost, "/validate", strings.NewReader("def (:\n")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"validation":{"error":"Invalid syntax"},"complexity":{"complexity":"low","score":0,"factors":[]}}`, rec.Body.String())

	rec = do(t, s.Handler(), httptest.NewRequest(http.MethodPost, "/validate", strings.NewReader("allure.attach('x')\n")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"attachment_present":true`)
}

func TestHistory_DisabledIsNotRouted(t *testing.T) {
	s, _ := newServer(t, false)
	rec := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/history", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistory(t *testing.T) {
	s, _ := newServer(t, true)
	h := s.Handler()

	for _, src := range []string{"x = 1\n", "def (:\n"} {
		rec := do(t, h, httptest.NewRequest(http.MethodPost, "/validate?name=inline", strings.NewReader(src)))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/history?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Runs  []store.Run `json:"runs"`
		Stats store.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, store.Stats{Total: 2, Passed: 0, ParseErrors: 1}, body.Stats)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/history/"+body.Runs[0].ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/history/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/history?limit=-3", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServe_GracefulShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s, _ := newServer(t, false)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	assert.NoError(t, <-done)
}
