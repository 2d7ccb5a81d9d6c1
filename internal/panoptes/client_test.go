package panoptes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/skysurvey-tools/subjectgen/internal/render"
)

// newTestClient creates a Client pointing at a test HTTP server.
func newTestClient(server *httptest.Server) *Client {
	c := NewClientWithBaseURL("test-token", server.URL)
	c.httpClient = server.Client()
	return c
}

func testSubject() Subject {
	return Subject{
		ProjectID: "4321",
		Locations: []render.Media{
			{Data: []byte("png-bytes-1"), MIMEType: "image/png"},
			{Data: []byte("png-bytes-2"), MIMEType: "image/png"},
			{Data: []byte(`{"data":[]}`), MIMEType: "application/json"},
		},
		Metadata: map[string]string{"objectId": "obj-001", "diaSourceId": "101"},
	}
}

// subjectAPIServer fakes the two-step save: subject creation returning signed
// upload URLs, then PUTs of the payloads.
type subjectAPIServer struct {
	mu      sync.Mutex
	server  *httptest.Server
	uploads map[string][]byte
	mimes   map[string]string
	created int
}

func newSubjectAPIServer(t *testing.T) *subjectAPIServer {
	t.Helper()
	s := &subjectAPIServer{
		uploads: make(map[string][]byte),
		mimes:   make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/subjects", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected auth header: %s", got)
		}

		var req createSubjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad create body: %v", err)
		}
		if req.Subjects.Links.Project != "4321" {
			t.Errorf("unexpected project link: %s", req.Subjects.Links.Project)
		}

		s.mu.Lock()
		s.created++
		s.mu.Unlock()

		locations := make([]map[string]string, len(req.Subjects.Locations))
		for i, mime := range req.Subjects.Locations {
			locations[i] = map[string]string{mime: fmt.Sprintf("%s/upload/%d", s.server.URL, i)}
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(createSubjectResponse{
			Subjects: []createdSubject{{ID: "subj-900", Locations: locations}},
		})
	})
	mux.HandleFunc("/upload/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.uploads[r.URL.Path] = body
		s.mimes[r.URL.Path] = r.Header.Get("Content-Type")
		s.mu.Unlock()
	})

	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)
	return s
}

func TestSaveSubject(t *testing.T) {
	api := newSubjectAPIServer(t)
	client := newTestClient(api.server)

	id, err := client.SaveSubject(context.Background(), testSubject())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "subj-900" {
		t.Errorf("expected subj-900, got %s", id)
	}

	if api.created != 1 {
		t.Errorf("expected exactly one create call, got %d", api.created)
	}
	if len(api.uploads) != 3 {
		t.Fatalf("expected 3 uploads, got %d", len(api.uploads))
	}
	if got := string(api.uploads["/upload/0"]); got != "png-bytes-1" {
		t.Errorf("location 0 payload wrong: %q", got)
	}
	// MIME types declared explicitly, never sniffed
	if api.mimes["/upload/0"] != "image/png" {
		t.Errorf("location 0 content type wrong: %s", api.mimes["/upload/0"])
	}
	if api.mimes["/upload/2"] != "application/json" {
		t.Errorf("location 2 content type wrong: %s", api.mimes["/upload/2"])
	}
}

func TestSaveSubjectCreateFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unprocessable", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	_, err := newTestClient(server).SaveSubject(context.Background(), testSubject())
	if err == nil {
		t.Fatal("expected an error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 APIError, got %v", err)
	}
}

func TestSaveSubjectUploadFails(t *testing.T) {
	var created bool
	mux := http.NewServeMux()
	var serverURL string
	mux.HandleFunc("/subjects", func(w http.ResponseWriter, r *http.Request) {
		created = true
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(createSubjectResponse{
			Subjects: []createdSubject{{
				ID: "subj-901",
				Locations: []map[string]string{
					{"image/png": serverURL + "/upload/0"},
					{"image/png": serverURL + "/upload/1"},
					{"application/json": serverURL + "/upload/2"},
				},
			}},
		})
	})
	mux.HandleFunc("/upload/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "storage down", http.StatusServiceUnavailable)
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	serverURL = server.URL

	_, err := newTestClient(server).SaveSubject(context.Background(), testSubject())
	if err == nil {
		t.Fatal("expected an error")
	}
	if !created {
		t.Error("subject create should have happened before the upload failure")
	}
}
