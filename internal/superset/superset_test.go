package superset

import (
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testUser     = "admin"
	testPassword = "general"
	testToken    = "T"
	testCSRF     = "csrf123"
)

// importUpload is what the fake server saw on the import endpoint.
type importUpload struct {
	Header    http.Header
	Filename  string
	FileType  string
	File      []byte
	Overwrite string
	Passwords *string
	Cookie    string
}

// fakeSuperset implements the three endpoints the importer talks to.
type fakeSuperset struct {
	t *testing.T

	mu           sync.Mutex
	loginCalls   int
	loginBodies  []LoginRequest
	csrfHeaders  []http.Header
	uploads      []importUpload
	loginStatus  []int // consumed per call; empty means 200
	csrfStatus   int
	importStatus int
	importBody   string
}

func newFakeSuperset(t *testing.T) (*fakeSuperset, *httptest.Server) {
	t.Helper()
	f := &fakeSuperset{t: t, importStatus: http.StatusOK, csrfStatus: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+LoginPath, f.login)
	mux.HandleFunc("GET "+CSRFPath, f.csrf)
	mux.HandleFunc("POST "+ImportPath, f.importDashboard)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeSuperset) login(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.loginCalls++
	status := http.StatusOK
	if len(f.loginStatus) > 0 {
		status = f.loginStatus[0]
		f.loginStatus = f.loginStatus[1:]
	}
	var body LoginRequest
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.loginBodies = append(f.loginBodies, body)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"message":"login unavailable"}`)
		return
	}
	if body.Username != testUser || body.Password != testPassword {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"Not authorized"}`)
		return
	}
	_, _ = io.WriteString(w, `{"access_token":"`+testToken+`","refresh_token":"R"}`)
}

func (f *fakeSuperset) csrf(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.csrfHeaders = append(f.csrfHeaders, r.Header.Clone())
	status := f.csrfStatus
	f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+testToken {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"msg":"Missing Authorization Header"}`)
		return
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "session", Value: "csrf-session", Path: "/"})
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"result":"`+testCSRF+`"}`)
}

func (f *fakeSuperset) importDashboard(w http.ResponseWriter, r *http.Request) {
	up := importUpload{Header: r.Header.Clone()}
	if c, err := r.Cookie("session"); err == nil {
		up.Cookie = c.Value
	}

	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		f.t.Errorf("parsing content type: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	mr := multipart.NewReader(r.Body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			f.t.Errorf("reading part: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		// FileName() strips directories, so read the raw parameter.
		_, dispParams, _ := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
		data, _ := io.ReadAll(part)
		switch part.FormName() {
		case FieldFormData:
			up.Filename = dispParams["filename"]
			up.FileType = part.Header.Get("Content-Type")
			up.File = data
		case FieldOverwrite:
			up.Overwrite = string(data)
		case FieldPasswords:
			s := string(data)
			up.Passwords = &s
		}
	}

	f.mu.Lock()
	f.uploads = append(f.uploads, up)
	status, body := f.importStatus, f.importBody
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == "" {
		body = `{"message":"OK"}`
	}
	_, _ = io.WriteString(w, body)
}

func (f *fakeSuperset) lastUpload() importUpload {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(f.t, f.uploads, "no import request received")
	return f.uploads[len(f.uploads)-1]
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(Options{BaseURL: baseURL, RetryInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	return c
}

func writeExport(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dashboard.zip")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// newJSONServer answers every request with the same status and body.
func newJSONServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeSuperset) logins() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls
}

func (f *fakeSuperset) loginRequests() []LoginRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]LoginRequest(nil), f.loginBodies...)
}

func (f *fakeSuperset) csrfRequests() []http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]http.Header(nil), f.csrfHeaders...)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
