package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/olegiv/crashlens-ai-go/internal/ai"
	"github.com/olegiv/crashlens-ai-go/internal/analyzer"
	"github.com/olegiv/crashlens-ai-go/internal/bugtracker"
	"github.com/olegiv/crashlens-ai-go/internal/chat"
	"github.com/olegiv/crashlens-ai-go/internal/crashlog"
	"github.com/olegiv/crashlens-ai-go/internal/session"
)

const crashLog = "INFO: starting worker\nFATAL: segmentation fault (core dumped)\n"

type stubProvider struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (p *stubProvider) Complete(_ context.Context, _ ai.CompletionRequest) (string, *ai.Stats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return "", nil, p.err
	}
	return p.reply, &ai.Stats{Provider: "Stub", Model: "stub-1"}, nil
}

func (p *stubProvider) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{"provider": "Stub", "model": "stub-1"}
}

func (p *stubProvider) GetProviderName() string { return "Stub" }

type testEnv struct {
	srv      *httptest.Server
	client   *http.Client
	provider *stubProvider
	localDir string
	server   *Server
}

func newTestEnv(t *testing.T, bugTrackerURL string) *testEnv {
	t.Helper()

	uploadDir := filepath.Join(t.TempDir(), "uploads")
	localDir := t.TempDir()

	sources := analyzer.NewRegistry()
	if err := sources.Register(&analyzer.LogSource{
		Type: analyzer.LogSourceUpload,
		Reader: crashlog.NewReader(crashlog.ReaderOptions{
			MaxSizeMB:         1,
			AllowedExtensions: crashlog.UploadExtensions,
			BaseDir:           uploadDir,
		}),
	}); err != nil {
		t.Fatalf("register upload: %v", err)
	}
	if err := sources.Register(&analyzer.LogSource{
		Type: analyzer.LogSourceLocal,
		Reader: crashlog.NewReader(crashlog.ReaderOptions{
			MaxSizeMB:         1,
			AllowedExtensions: crashlog.LocalExtensions,
			BaseDir:           localDir,
			RejectBinary:      true,
		}),
	}); err != nil {
		t.Fatalf("register local: %v", err)
	}

	sessions, err := session.NewLRUStore(10, 10, nil)
	if err != nil {
		t.Fatalf("NewLRUStore: %v", err)
	}
	provider := &stubProvider{reply: "The worker dereferenced a freed buffer."}
	chatSvc := chat.NewService(provider, sessions, nil, nil, chat.Options{Attempts: 1}, nil)

	s, err := New(Options{UploadDir: uploadDir, MaxUploadMB: 1, BugTrackerURL: bugTrackerURL}, chatSvc, sessions, sources, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &testEnv{
		srv:      srv,
		client:   &http.Client{Jar: jar},
		provider: provider,
		localDir: localDir,
		server:   s,
	}
}

func (e *testEnv) postJSON(t *testing.T, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := e.client.Post(e.srv.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp, decodeBody(t, resp)
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := e.client.Get(e.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp, decodeBody(t, resp)
}

func (e *testEnv) upload(t *testing.T, filename string, content []byte) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = fw.Write(content)
	_ = mw.Close()

	resp, err := e.client.Post(e.srv.URL+"/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST /upload: %v", err)
	}
	return resp, decodeBody(t, resp)
}

// uploadID uploads a crash log and returns its file id.
func (e *testEnv) uploadID(t *testing.T) string {
	t.Helper()
	resp, body := e.upload(t, "worker.crash", []byte(crashLog))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d, body %v", resp.StatusCode, body)
	}
	return body["file"].(map[string]interface{})["id"].(string)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body (status %d): %v", resp.StatusCode, err)
	}
	return body
}

func TestNew_RequiresSources(t *testing.T) {
	_, err := New(Options{UploadDir: t.TempDir()}, nil, nil, analyzer.NewRegistry(), nil)
	if err == nil {
		t.Fatal("New with empty registry succeeded")
	}
}

func TestHealthAndStatus(t *testing.T) {
	env := newTestEnv(t, "")

	resp, body := env.get(t, "/health")
	if resp.StatusCode != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("/health = %d %v", resp.StatusCode, body)
	}

	resp, body = env.get(t, "/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/status = %d", resp.StatusCode)
	}
	if body["status"] != "online" || body["provider"] != "Stub" || body["bug_tracker"] != false {
		t.Errorf("/status body = %v", body)
	}
	sources, _ := body["sources"].([]interface{})
	if len(sources) != 2 {
		t.Fatalf("/status sources = %v", body["sources"])
	}
	local, _ := sources[0].(map[string]interface{})
	if local["type"] != "local" || local["reject_binary"] != true {
		t.Errorf("local source = %v", local)
	}
	if _, leaked := local["BaseDir"]; leaked {
		t.Errorf("local source exposes its base directory: %v", local)
	}
}

func TestChatAndHistory(t *testing.T) {
	env := newTestEnv(t, "")

	resp, body := env.postJSON(t, "/chat", map[string]string{"message": "   "})
	if resp.StatusCode != http.StatusBadRequest || body["error"] != "No message provided" {
		t.Errorf("empty message = %d %v", resp.StatusCode, body)
	}

	resp, body = env.postJSON(t, "/chat", map[string]string{"message": "Why does my app crash?"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d, body %v", resp.StatusCode, body)
	}
	if body["response"] != env.provider.reply {
		t.Errorf("response = %v", body["response"])
	}
	if body["timestamp"] == "" {
		t.Error("timestamp missing")
	}

	_, body = env.get(t, "/history")
	history, ok := body["history"].([]interface{})
	if !ok || len(history) != 1 {
		t.Fatalf("history = %v", body)
	}
	turn := history[0].(map[string]interface{})
	if turn["user"] != "Why does my app crash?" {
		t.Errorf("turn = %v", turn)
	}

	resp, body = env.postJSON(t, "/clear", map[string]string{})
	if resp.StatusCode != http.StatusOK || body["message"] != "Conversation cleared" {
		t.Errorf("/clear = %d %v", resp.StatusCode, body)
	}
	_, body = env.get(t, "/history")
	if history := body["history"].([]interface{}); len(history) != 0 {
		t.Errorf("history after clear = %v", history)
	}
}

func TestChat_ProviderFailure(t *testing.T) {
	env := newTestEnv(t, "")
	env.provider.err = errors.New("backend down")

	resp, body := env.postJSON(t, "/chat", map[string]string{"message": "hello"})
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, body %v", resp.StatusCode, body)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	env := newTestEnv(t, "")
	if _, body := env.postJSON(t, "/chat", map[string]string{"message": "first"}); body["response"] == nil {
		t.Fatalf("chat failed: %v", body)
	}

	resp, err := http.Get(env.srv.URL + "/history")
	if err != nil {
		t.Fatalf("GET /history: %v", err)
	}
	if len(resp.Cookies()) == 0 || resp.Cookies()[0].Name != sessionCookie {
		t.Errorf("new session did not get a cookie: %v", resp.Cookies())
	}
	body := decodeBody(t, resp)
	if history := body["history"].([]interface{}); len(history) != 0 {
		t.Errorf("cookie-less history = %v, want empty", history)
	}
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t, "")

	resp, body := env.upload(t, "../../etc/app server.log", []byte(crashLog))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, body)
	}
	file := body["file"].(map[string]interface{})
	if file["filename"] != "app_server.log" {
		t.Errorf("filename = %v", file["filename"])
	}
	stored := file["filepath"].(string)
	if !strings.HasPrefix(filepath.Base(stored), env.server.now().Format("20060102")) ||
		!strings.HasSuffix(stored, "_app_server.log") {
		t.Errorf("stored path = %q", stored)
	}
	data, err := os.ReadFile(stored)
	if err != nil || string(data) != crashLog {
		t.Errorf("stored content = %q, err %v", data, err)
	}

	_, body = env.get(t, "/files")
	if files := body["files"].([]interface{}); len(files) != 1 {
		t.Errorf("files = %v", files)
	}
}

func TestUpload_Rejections(t *testing.T) {
	env := newTestEnv(t, "")

	tests := []struct {
		name     string
		filename string
		content  []byte
		want     int
	}{
		{"bad extension", "payload.exe", []byte("x"), http.StatusBadRequest},
		{"too large", "big.log", bytes.Repeat([]byte("a"), 1024*1024+10), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.upload(t, tt.filename, tt.content)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d (body %v)", resp.StatusCode, tt.want, body)
			}
		})
	}

	resp, err := env.client.Post(env.srv.URL+"/upload", "multipart/form-data; boundary=x", strings.NewReader("--x--\r\n"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if body := decodeBody(t, resp); resp.StatusCode != http.StatusBadRequest || body["error"] != "No file provided" {
		t.Errorf("missing file = %d %v", resp.StatusCode, body)
	}
}

func TestAnalyze(t *testing.T) {
	env := newTestEnv(t, "")

	resp, body := env.postJSON(t, "/analyze/nope", nil)
	if resp.StatusCode != http.StatusNotFound || body["error"] != "No files uploaded" {
		t.Errorf("no uploads = %d %v", resp.StatusCode, body)
	}

	id := env.uploadID(t)

	resp, body = env.postJSON(t, "/analyze/nope", nil)
	if resp.StatusCode != http.StatusNotFound || body["error"] != "File not found" {
		t.Errorf("unknown id = %d %v", resp.StatusCode, body)
	}

	resp, body = env.postJSON(t, "/analyze/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("analyze status = %d, body %v", resp.StatusCode, body)
	}
	if body["severity"] != "critical" || body["log_type"] != crashlog.LogTypeCrashDump {
		t.Errorf("severity/log_type = %v/%v", body["severity"], body["log_type"])
	}
	if body["analysis"] != env.provider.reply || body["filename"] != "worker.crash" {
		t.Errorf("analysis body = %v", body)
	}
	findings := body["findings"].(map[string]interface{})
	if findings["error_count"].(float64) != 1 {
		t.Errorf("findings = %v", findings)
	}
}

func TestAnalyze_GenerationFailureKeepsFindings(t *testing.T) {
	env := newTestEnv(t, "")
	id := env.uploadID(t)
	env.provider.err = errors.New("model unavailable")

	resp, body := env.postJSON(t, "/analyze/"+id, nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, body %v", resp.StatusCode, body)
	}
	if body["status"] != "partial" || body["severity"] != "critical" || body["findings"] == nil {
		t.Errorf("body = %v", body)
	}
}

func TestFetchLog(t *testing.T) {
	env := newTestEnv(t, "")

	logPath := filepath.Join(env.localDir, "service.log")
	if err := os.WriteFile(logPath, []byte(crashLog), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	binPath := filepath.Join(env.localDir, "core.dump")
	if err := os.WriteFile(binPath, bytes.Repeat([]byte{0x01, 0x02, 0x03}, 100), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	resp, body := env.postJSON(t, "/fetch-log", map[string]string{"path": logPath, "filename": "service.log"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, body)
	}
	file := body["file"].(map[string]interface{})
	if file["source"] != SourceAutoFetched || file["original_path"] != logPath {
		t.Errorf("file = %v", file)
	}
	if file["size"].(float64) != float64(len(crashLog)) {
		t.Errorf("size = %v", file["size"])
	}

	resp, body = env.postJSON(t, "/analyze/"+file["id"].(string), nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("analyze fetched = %d %v", resp.StatusCode, body)
	}

	tests := []struct {
		name string
		req  map[string]string
		want int
	}{
		{"missing fields", map[string]string{"path": logPath}, http.StatusBadRequest},
		{"bad extension", map[string]string{"path": filepath.Join(env.localDir, "x.bin"), "filename": "x.log"}, http.StatusBadRequest},
		{"not found", map[string]string{"path": filepath.Join(env.localDir, "missing.log"), "filename": "missing.log"}, http.StatusNotFound},
		{"outside base", map[string]string{"path": "/etc/hosts.log", "filename": "hosts.log"}, http.StatusForbidden},
		{"directory", map[string]string{"path": env.localDir + "/sub.log", "filename": "sub.log"}, http.StatusBadRequest},
		{"binary", map[string]string{"path": binPath, "filename": "core.dump"}, http.StatusUnsupportedMediaType},
	}
	if err := os.Mkdir(filepath.Join(env.localDir, "sub.log"), 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.postJSON(t, "/fetch-log", tt.req)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d (body %v)", resp.StatusCode, tt.want, body)
			}
		})
	}
}

func newTrackerBackend(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := bugtracker.NewStore(filepath.Join(t.TempDir(), "bugs.db"), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	backend := httptest.NewServer(bugtracker.NewHandler(store, bugtracker.NewGenerator(1), nil).Routes())
	t.Cleanup(backend.Close)
	return backend
}

func TestFileBug(t *testing.T) {
	backend := newTrackerBackend(t)
	env := newTestEnv(t, backend.URL)
	id := env.uploadID(t)

	resp, body := env.postJSON(t, "/analyze/"+id+"/bug", map[string]string{
		"analysis":       "Freed buffer reused by the worker.",
		"releaseVersion": "v2.2.0",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body %v", resp.StatusCode, body)
	}
	bug := body["bug"].(map[string]interface{})
	if bug["priority"] != "critical" || bug["severity"] != bugtracker.SeverityCritical || bug["releaseVersion"] != "v2.2.0" {
		t.Errorf("bug = %v", bug)
	}
	if !strings.Contains(bug["description"].(string), "Freed buffer reused by the worker.") {
		t.Errorf("description = %v", bug["description"])
	}
	if env.provider.calls != 0 {
		t.Errorf("provider called %d times, want 0", env.provider.calls)
	}

	// Proxied listing sees the new bug on both paths.
	for _, path := range []string{"/api/bugs", "/bts/bugs"} {
		resp, err := env.client.Get(env.srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		var bugs []map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&bugs); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		_ = resp.Body.Close()
		if len(bugs) != 1 || bugs[0]["id"] != bug["id"] {
			t.Errorf("%s = %v", path, bugs)
		}
	}

	resp, body = env.get(t, "/bts/bugs/"+bug["id"].(string))
	if resp.StatusCode != http.StatusOK || body["id"] != bug["id"] {
		t.Errorf("/bts/bugs/{id} = %d %v", resp.StatusCode, body)
	}
}

func TestFileBug_TrackerNotConfigured(t *testing.T) {
	env := newTestEnv(t, "")
	id := env.uploadID(t)

	resp, body := env.postJSON(t, "/analyze/"+id+"/bug", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("file bug = %d %v", resp.StatusCode, body)
	}
	resp, body = env.get(t, "/api/bugs")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("proxy = %d %v", resp.StatusCode, body)
	}
}

func TestBugProxy_TrackerDown(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	url := backend.URL
	backend.Close()

	env := newTestEnv(t, url)
	resp, body := env.get(t, "/api/bugs")
	if resp.StatusCode != http.StatusServiceUnavailable || body["error"] != "Cannot connect to the bug tracker" {
		t.Errorf("proxy = %d %v", resp.StatusCode, body)
	}
}

func TestNew_InvalidTrackerURL(t *testing.T) {
	sources := analyzer.NewRegistry()
	reader := crashlog.NewReader(crashlog.ReaderOptions{})
	_ = sources.Register(&analyzer.LogSource{Type: analyzer.LogSourceUpload, Reader: reader})
	_ = sources.Register(&analyzer.LogSource{Type: analyzer.LogSourceLocal, Reader: reader})

	if _, err := New(Options{UploadDir: t.TempDir(), BugTrackerURL: "ftp://tracker"}, nil, nil, sources, nil); err == nil {
		t.Error("New accepted an ftp tracker URL")
	}
}

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"app.log", "app.log"},
		{"my app.log", "my_app.log"},
		{"../../etc/passwd.log", "passwd.log"},
		{`C:\logs\crash.dmp`, "crash.dmp"},
		{"naïve-ünïcode.txt", "nave-ncode.txt"},
		{".hidden.log", "hidden.log"},
		{"..", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := secureFilename(tt.in); got != tt.want {
				t.Errorf("secureFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
