// Package providerstub is an in-process fake of the document generation and
// PDF services. It honours their wire contract, records every call and can
// be told to fail or stall individual operations.
package providerstub

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gartstein/hrflow/internal/hrflow/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

const (
	DocGenPrefix      = "/document-generation"
	PDFServicesPrefix = "/pdf-services"

	OpGenerate = "generate"
	OpUpload   = "upload"
	OpTask     = "task"
	OpDownload = "download"
)

// Failure is a canned HTTP error answer.
type Failure struct {
	Status int
	Body   string
}

type Options struct {
	// ClientID and ClientSecret, when set, are required on every request.
	ClientID     string
	ClientSecret string
	// PendingPolls is how many times a task reports PROCESSING before it
	// completes.
	PendingPolls int
	// Failures answers the named operation with an HTTP error.
	Failures map[string]Failure
	// FailedTasks makes tasks of the named operation end in FAILED.
	FailedTasks map[string]bool
	// StuckTasks makes tasks of the named operation never finish.
	StuckTasks map[string]bool
	// OmitPayload drops the rendered file from generate responses.
	OmitPayload bool
	// Render produces the generated file from the submitted values.
	// Rendered is used when nil.
	Render func(values map[string]any) []byte
}

// Call is one recorded request.
type Call struct {
	Operation string
	Body      map[string]any
	Filename  string
	ClientID  string
}

type task struct {
	operation string
	result    string
	pending   int
}

type Stub struct {
	opts Options

	mu    sync.Mutex
	calls []Call
	docs  map[string][]byte
	tasks map[string]*task
}

func New(opts Options) *Stub {
	return &Stub{
		opts:  opts,
		docs:  map[string][]byte{},
		tasks: map[string]*task{},
	}
}

// Handler serves both services under DocGenPrefix and PDFServicesPrefix.
func (s *Stub) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.checkCredentials)

	r.Route(DocGenPrefix, func(r chi.Router) {
		r.Post("/api/GenerateDocumentBase64", s.generate)
	})
	r.Route(PDFServicesPrefix, func(r chi.Router) {
		r.Post("/api/documents/upload", s.upload)
		r.Get("/api/documents/{id}/download", s.download)
		r.Get("/api/tasks/{id}", s.taskStatus)
		r.Post("/api/{operation}", s.submit)
	})
	return r
}

// Calls returns a copy of every recorded call, task polls included.
func (s *Stub) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Sequence returns the recorded operation names without task polls.
func (s *Stub) Sequence() []string {
	var ops []string
	for _, c := range s.Calls() {
		if c.Operation != OpTask {
			ops = append(ops, c.Operation)
		}
	}
	return ops
}

// Find returns the recorded calls of one operation.
func (s *Stub) Find(operation string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Operation == operation {
			out = append(out, c)
		}
	}
	return out
}

// Document returns the stored content of a handle.
func (s *Stub) Document(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.docs[id]
	return data, ok
}

// Rendered is the file the stub returns for a generate request.
func Rendered(values map[string]any) []byte {
	return []byte(fmt.Sprintf("%%PDF-1.7\n%% rendered for %v (%v)\n%%%%EOF\n",
		values["candidate_name"], values["designation"]))
}

func (s *Stub) record(r *http.Request, c Call) {
	c.ClientID = r.Header.Get(auth.HeaderClientID)
	s.mu.Lock()
	s.calls = append(s.calls, c)
	s.mu.Unlock()
}

func (s *Stub) checkCredentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.ClientID != "" &&
			(r.Header.Get(auth.HeaderClientID) != s.opts.ClientID ||
				r.Header.Get(auth.HeaderClientSecret) != s.opts.ClientSecret) {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "invalid client credentials"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Stub) fail(w http.ResponseWriter, r *http.Request, operation string) bool {
	f, ok := s.opts.Failures[operation]
	if !ok {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.Status)
	_, _ = io.WriteString(w, f.Body)
	return true
}

func (s *Stub) generate(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"message": "malformed request body"})
		return
	}
	s.record(r, Call{Operation: OpGenerate, Body: body})
	if s.fail(w, r, OpGenerate) {
		return
	}
	if s.opts.OmitPayload {
		render.JSON(w, r, map[string]string{"message": "Document generated"})
		return
	}
	values, _ := body["documentValues"].(map[string]any)
	renderFile := Rendered
	if s.opts.Render != nil {
		renderFile = s.opts.Render
	}
	render.JSON(w, r, map[string]string{
		"message":          "Document generated",
		"fileExtension":    fmt.Sprint(body["outputFormat"]),
		"base64FileString": base64.StdEncoding.EncodeToString(renderFile(values)),
	})
}

func (s *Stub) upload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"message": "file field is required"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"message": err.Error()})
		return
	}
	s.record(r, Call{Operation: OpUpload, Filename: header.Filename})
	if s.fail(w, r, OpUpload) {
		return
	}
	render.JSON(w, r, map[string]string{"documentId": s.store(data)})
}

func (s *Stub) download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.record(r, Call{Operation: OpDownload, Body: map[string]any{"documentId": id}})
	if s.fail(w, r, OpDownload) {
		return
	}
	data, ok := s.Document(id)
	if !ok {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"message": "document not found"})
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	_, _ = w.Write(data)
}

func (s *Stub) submit(w http.ResponseWriter, r *http.Request) {
	operation := chi.URLParam(r, "operation")
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"message": "malformed request body"})
		return
	}
	s.record(r, Call{Operation: operation, Body: body})
	if s.fail(w, r, operation) {
		return
	}

	inputs := inputHandles(body)
	var result []byte
	for _, id := range inputs {
		data, ok := s.Document(id)
		if !ok {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"message": "unknown document " + id})
			return
		}
		result = append(result, data...)
	}
	result = append(result, []byte("\n% "+operation+"\n")...)

	taskID := uuid.NewString()
	s.mu.Lock()
	s.tasks[taskID] = &task{operation: operation, result: s.storeLocked(result), pending: s.opts.PendingPolls}
	s.mu.Unlock()

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{"taskId": taskID})
}

func (s *Stub) taskStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.record(r, Call{Operation: OpTask, Body: map[string]any{"taskId": id}})

	s.mu.Lock()
	t, ok := s.tasks[id]
	var status, result string
	if ok {
		switch {
		case s.opts.StuckTasks[t.operation]:
			status = "PROCESSING"
		case t.pending > 0:
			t.pending--
			status = "PROCESSING"
		case s.opts.FailedTasks[t.operation]:
			status = "FAILED"
		default:
			status, result = "COMPLETED", t.result
		}
	}
	s.mu.Unlock()

	if !ok {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"message": "task not found"})
		return
	}
	resp := map[string]any{"taskId": id, "status": status}
	if result != "" {
		resp["resultDocumentId"] = result
	}
	if status == "FAILED" {
		resp["error"] = t.operation + " failed on the provider"
	}
	render.JSON(w, r, resp)
}

func (s *Stub) store(data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeLocked(data)
}

func (s *Stub) storeLocked(data []byte) string {
	id := uuid.NewString()
	s.docs[id] = data
	return id
}

func inputHandles(body map[string]any) []string {
	var ids []string
	if infos, ok := body["documentInfos"].([]any); ok {
		for _, info := range infos {
			if m, ok := info.(map[string]any); ok {
				if id, ok := m["documentId"].(string); ok {
					ids = append(ids, id)
				}
			}
		}
	}
	for _, key := range []string{"documentId", "documentId1", "documentId2"} {
		if id, ok := body[key].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
