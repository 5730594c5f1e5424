package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThatCatDev/ggufdeck/internal/accel"
	"github.com/ThatCatDev/ggufdeck/internal/config"
	"github.com/ThatCatDev/ggufdeck/internal/hub"
	"github.com/ThatCatDev/ggufdeck/internal/logutil"
	"github.com/ThatCatDev/ggufdeck/internal/runner/runnertest"
	"github.com/ThatCatDev/ggufdeck/internal/session"
	"github.com/ThatCatDev/ggufdeck/pkg/api"
)

type stubCommander struct {
	err  error
	out  string
	args [][]string
}

func (s *stubCommander) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	s.args = append(s.args, args)
	return []byte(s.out), s.err
}

type testEnv struct {
	srv    *Server
	fake   *runnertest.Fake
	cfg    *config.Config
	cmd    *stubCommander
	outDir string
}

func newTestEnv(t *testing.T, hubURL string) *testEnv {
	t.Helper()
	root := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Port = 0
	cfg.ModelsDir = filepath.Join(root, "models")
	cfg.OutputsDir = filepath.Join(root, "outputs")
	require.NoError(t, os.MkdirAll(cfg.ModelsDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ModelsDir, "test.gguf"), []byte("not really gguf"), 0644))

	if hubURL == "" {
		hubURL = "https://hub.invalid"
	}

	log := logutil.Discard()
	fake := &runnertest.Fake{Reply: "  Hi there  "}
	cmd := &stubCommander{}
	sess := session.New(session.Options{
		Factory: fake.Factory(),
		Detect:  func(ctx context.Context) accel.Device { return accel.Device{Kind: accel.CPU} },
		Logger:  log,
	})

	srv := New(cfg, Deps{
		Session: sess,
		Hub:     hub.NewClient(hub.WithEndpoint(hubURL), hub.WithCommander(cmd), hub.WithLogger(log)),
		Logger:  log,
		Version: "test",
	})
	return &testEnv{srv: srv, fake: fake, cfg: cfg, cmd: cmd, outDir: cfg.OutputsDir}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, errType string) {
	t.Helper()
	assert.Equal(t, status, w.Code, w.Body.String())
	resp := decode[api.ErrorResponse](t, w)
	assert.Equal(t, errType, resp.Error.Type)
	assert.NotEmpty(t, resp.Error.Message)
}

func (e *testEnv) load(t *testing.T) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/models/load", api.LoadRequest{Model: "test.gguf", ContextLength: 512, Threads: 4})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestLoadGenerateSaveRoundTrip(t *testing.T) {
	e := newTestEnv(t, "")

	w := e.do(t, http.MethodPost, "/api/models/load", api.LoadRequest{Model: "test.gguf", ContextLength: 512, Threads: 4})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cur := decode[api.CurrentModelResponse](t, w)
	require.True(t, cur.Loaded)
	assert.Equal(t, "test.gguf", cur.Model.Name)
	assert.Equal(t, 512, cur.Model.ContextLength)
	assert.Equal(t, 4, cur.Model.Threads)
	assert.Equal(t, "cpu", cur.Model.Device)

	w = e.do(t, http.MethodPost, "/api/generate", api.GenerateRequest{Prompt: "Hello"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	gen := decode[api.GenerateResponse](t, w)
	assert.Equal(t, "Hi there", gen.Response)
	require.NotEmpty(t, gen.Chat)

	reqs := e.fake.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Hello", reqs[0].Prompt)
	assert.Equal(t, e.cfg.Model.MaxTokens, reqs[0].MaxTokens)

	w = e.do(t, http.MethodGet, "/api/chats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[api.ChatListResponse](t, w)
	require.Len(t, list.Chats, 1)
	assert.Equal(t, gen.Chat, list.Chats[0].Name)

	w = e.do(t, http.MethodGet, "/api/chats/"+gen.Chat, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	chat := decode[api.ChatResponse](t, w)
	assert.Equal(t, "Hello", chat.Prompt)
	assert.Equal(t, "Hi there", chat.Response)
	assert.Equal(t, []api.ChatTurn{{Prompt: "Hello", Response: "Hi there"}}, chat.History)
}

func TestGenerateWithoutModel(t *testing.T) {
	e := newTestEnv(t, "")
	w := e.do(t, http.MethodPost, "/api/generate", api.GenerateRequest{Prompt: "Hello"})
	assertError(t, w, http.StatusConflict, "not_loaded")
}

func TestGenerateRequiresPrompt(t *testing.T) {
	e := newTestEnv(t, "")
	w := e.do(t, http.MethodPost, "/api/generate", api.GenerateRequest{})
	assertError(t, w, http.StatusBadRequest, "invalid_request")
}

func TestGenerateNoSave(t *testing.T) {
	e := newTestEnv(t, "")
	e.load(t)

	w := e.do(t, http.MethodPost, "/api/generate", api.GenerateRequest{Prompt: "Hello", NoSave: true, MaxTokens: 8})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[api.GenerateResponse](t, w).Chat)
	assert.Equal(t, 8, e.fake.Requests()[0].MaxTokens)

	w = e.do(t, http.MethodGet, "/api/chats", nil)
	assert.Empty(t, decode[api.ChatListResponse](t, w).Chats)
}

func TestGenerateRunnerFailure(t *testing.T) {
	e := newTestEnv(t, "")
	e.load(t)
	e.fake.Fn = func(ctx context.Context, req *api.CompletionRequest) (*api.CompletionResponse, error) {
		return nil, errors.New("llama-server crashed")
	}
	w := e.do(t, http.MethodPost, "/api/generate", api.GenerateRequest{Prompt: "Hello"})
	assertError(t, w, http.StatusInternalServerError, "internal_error")
}

func TestLoadUnknownModel(t *testing.T) {
	e := newTestEnv(t, "")
	w := e.do(t, http.MethodPost, "/api/models/load", api.LoadRequest{Model: "missing"})
	assertError(t, w, http.StatusNotFound, "not_found")
}

func TestLoadTwice(t *testing.T) {
	e := newTestEnv(t, "")
	e.load(t)
	w := e.do(t, http.MethodPost, "/api/models/load", api.LoadRequest{Model: "test.gguf"})
	assertError(t, w, http.StatusConflict, "already_loaded")
}

func TestHealthDuringSlowLoad(t *testing.T) {
	e := newTestEnv(t, "")
	gate := make(chan struct{})
	e.fake.LoadGate = gate

	loaded := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		loaded <- e.do(t, http.MethodPost, "/api/models/load", api.LoadRequest{Model: "test.gguf"})
	}()
	require.Eventually(t, e.srv.Session().Loading, time.Second, 5*time.Millisecond)

	w := e.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[api.HealthResponse](t, w)
	assert.False(t, health.Loaded)
	assert.True(t, health.Loading)

	w = e.do(t, http.MethodGet, "/api/models/current", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[api.CurrentModelResponse](t, w).Loaded)

	w = e.do(t, http.MethodPost, "/api/models/load", api.LoadRequest{Model: "test.gguf"})
	assertError(t, w, http.StatusConflict, "loading")

	close(gate)
	select {
	case w := <-loaded:
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	case <-time.After(time.Second):
		t.Fatal("load did not return")
	}
}

func TestLoadUsesConfiguredDefaults(t *testing.T) {
	e := newTestEnv(t, "")
	w := e.do(t, http.MethodPost, "/api/models/load", api.LoadRequest{Model: "test"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	opts := e.fake.Options()
	assert.Equal(t, e.cfg.Model.ContextLength, opts.CtxSize)
	assert.Equal(t, e.cfg.Model.Threads, opts.Threads)
}

func TestUnload(t *testing.T) {
	e := newTestEnv(t, "")

	w := e.do(t, http.MethodPost, "/api/models/unload", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "idle", decode[api.StatusResponse](t, w).Status)

	e.load(t)
	w = e.do(t, http.MethodPost, "/api/models/unload", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "unloaded", decode[api.StatusResponse](t, w).Status)
	assert.True(t, e.fake.Closed())

	w = e.do(t, http.MethodGet, "/api/models/current", nil)
	assert.False(t, decode[api.CurrentModelResponse](t, w).Loaded)
}

func TestListModels(t *testing.T) {
	e := newTestEnv(t, "")
	w := e.do(t, http.MethodGet, "/api/models", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[api.ModelListResponse](t, w)
	require.Len(t, list.Models, 1)
	assert.Equal(t, "test.gguf", list.Models[0].Name)
	assert.Equal(t, "file", list.Models[0].Kind)
}

func TestChatErrors(t *testing.T) {
	e := newTestEnv(t, "")
	require.NoError(t, os.MkdirAll(e.outDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(e.outDir, "chat_broken.json"), []byte("{"), 0644))

	assertError(t, e.do(t, http.MethodGet, "/api/chats/chat_missing.json", nil), http.StatusNotFound, "not_found")
	assertError(t, e.do(t, http.MethodGet, "/api/chats/chat_broken.json", nil), http.StatusUnprocessableEntity, "parse_error")

	require.NoError(t, os.WriteFile(filepath.Join(e.outDir, "chat_empty.json"), []byte("{}"), 0644))
	assertError(t, e.do(t, http.MethodGet, "/api/chats/chat_empty.json", nil), http.StatusUnprocessableEntity, "parse_error")
}

func TestChatSearchFallsBackToKeywords(t *testing.T) {
	e := newTestEnv(t, "")
	e.load(t)
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/generate", api.GenerateRequest{Prompt: "Hello"}).Code)

	w := e.do(t, http.MethodGet, "/api/chats/search?q=hello", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[api.ChatSearchResponse](t, w)
	assert.Equal(t, "keyword", res.Mode)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "Hello", res.Results[0].Prompt)

	assertError(t, e.do(t, http.MethodGet, "/api/chats/search", nil), http.StatusBadRequest, "invalid_request")
}

func TestVisualization(t *testing.T) {
	e := newTestEnv(t, "")

	w := e.do(t, http.MethodGet, "/api/visualization", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())

	e.load(t)
	w = e.do(t, http.MethodGet, "/api/visualization", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var payload struct {
		Attention  [][]float64 `json:"attention"`
		Weights    []float64   `json:"weights"`
		Embeddings [][]float64 `json:"embeddings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, []float64{0.5, 0.6, 0.7, 0.8, 0.9}, payload.Weights)
	assert.Len(t, payload.Attention, 3)
	assert.Len(t, payload.Embeddings, 3)

	// The test file is not a real GGUF, so the graph is the placeholder.
	w = e.do(t, http.MethodGet, "/api/visualization/graph", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var graph struct {
		Nodes []json.RawMessage `json:"nodes"`
		Links []json.RawMessage `json:"links"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &graph))
	assert.Len(t, graph.Nodes, 2)
	assert.Len(t, graph.Links, 1)

	assertError(t, e.do(t, http.MethodGet, "/api/visualization/layout", nil), http.StatusNotFound, "not_found")
	assertError(t, e.do(t, http.MethodGet, "/api/visualization/layers/x", nil), http.StatusBadRequest, "invalid_request")

	w = e.do(t, http.MethodPost, "/api/visualization/text", api.TextVisualizationRequest{Input: "ab", Output: "c"})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestExperiments(t *testing.T) {
	e := newTestEnv(t, "")

	assertError(t, e.do(t, http.MethodPost, "/api/experiments/mirror", api.ExperimentRequest{Prompt: "Who are you?"}),
		http.StatusConflict, "not_loaded")

	e.load(t)
	w := e.do(t, http.MethodPost, "/api/experiments/mirror", api.ExperimentRequest{Prompt: "Who are you?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[api.ExperimentResponse](t, w)
	assert.Equal(t, "mirror", res.Kind)
	assert.Equal(t, "You said: Hi there", res.Response)

	assertError(t, e.do(t, http.MethodPost, "/api/experiments/levitate", api.ExperimentRequest{Prompt: "x"}),
		http.StatusNotFound, "unknown_experiment")
}

func TestHubSearch(t *testing.T) {
	catalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/models", r.URL.Path)
		assert.Equal(t, "llama", r.URL.Query().Get("search"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"acme/llama-GGUF","downloads":42,"likes":7}]`))
	}))
	defer catalog.Close()

	e := newTestEnv(t, catalog.URL)
	w := e.do(t, http.MethodGet, "/api/hub/search?q=llama", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[api.HubSearchResponse](t, w)
	assert.Equal(t, []api.HubModel{{ID: "acme/llama-GGUF", Downloads: 42, Likes: 7}}, res.Models)
}

func TestHubSearchUpstreamFailure(t *testing.T) {
	catalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer catalog.Close()

	e := newTestEnv(t, catalog.URL)
	assertError(t, e.do(t, http.MethodGet, "/api/hub/search?q=llama", nil), http.StatusBadGateway, "download_error")
}

func TestHubDownload(t *testing.T) {
	e := newTestEnv(t, "")

	w := e.do(t, http.MethodPost, "/api/hub/download", api.HubDownloadRequest{Model: "acme/tiny-GGUF"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[api.HubDownloadResponse](t, w)
	assert.Equal(t, filepath.Join(e.cfg.ModelsDir, "tiny-GGUF"), res.Path)
	require.Len(t, e.cmd.args, 2)
	assert.Equal(t, []string{"lfs", "install"}, e.cmd.args[0])

	assertError(t, e.do(t, http.MethodPost, "/api/hub/download", api.HubDownloadRequest{Model: "no-owner"}),
		http.StatusBadRequest, "invalid_request")

	e.cmd.err = errors.New("exit status 128")
	e.cmd.out = "fatal: repository not found"
	assertError(t, e.do(t, http.MethodPost, "/api/hub/download", api.HubDownloadRequest{Model: "acme/gone"}),
		http.StatusBadGateway, "download_error")
}

func TestHealthAndIndex(t *testing.T) {
	e := newTestEnv(t, "")

	w := e.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, api.HealthResponse{Status: "ok", Version: "test"}, decode[api.HealthResponse](t, w))

	w = e.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<title>ggufdeck</title>")

	w = e.do(t, http.MethodOptions, "/api/generate", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStartUnloadsOnShutdown(t *testing.T) {
	e := newTestEnv(t, "")
	e.load(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, e.srv.Start(ctx))
	assert.True(t, e.fake.Closed())
	assert.False(t, e.srv.Session().Loaded())
}
