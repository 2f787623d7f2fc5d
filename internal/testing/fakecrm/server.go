// Package fakecrm is an in-memory CRM API for tests. It speaks the same
// routes, headers and error bodies as the real service.
package fakecrm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// AuthHeader is the credential header checked on protected routes.
const AuthHeader = "x-auth-token"

var idFields = map[string]string{
	"customers": "customer_id",
	"deals":     "deal_id",
	"employees": "employee_id",
	"tasks":     "task_id",
	"inventory": "item_id",
	"invoices":  "invoice_id",
}

type account struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Call is one request received by the server.
type Call struct {
	Method string
	Path   string
	Header http.Header
	Body   map[string]any
}

type fault struct {
	status int
	skip   int
	times  int
}

// Server is a running fake CRM API.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	accounts    map[string]*account
	tokens      map[string]string
	collections map[string]map[string]map[string]any
	versions    map[string]int
	payments    []map[string]any
	nextID      int
	calls       []Call
	faults      map[string]*fault
	etags       bool
}

// New starts a server that is closed with the test.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		accounts:    make(map[string]*account),
		tokens:      make(map[string]string),
		collections: make(map[string]map[string]map[string]any),
		versions:    make(map[string]int),
		faults:      make(map[string]*fault),
		etags:       true,
	}
	for name := range idFields {
		s.collections[name] = make(map[string]map[string]any)
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// DisableETags stops the server from sending ETag headers on invoices.
func (s *Server) DisableETags() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.etags = false
}

// AddUser registers an account.
func (s *Server) AddUser(first, last, email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[strings.ToLower(email)] = &account{FirstName: first, LastName: last, Email: email, Password: password}
}

// IssueToken returns a valid token for email, registering the account if
// needed.
func (s *Server) IssueToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	if _, ok := s.accounts[key]; !ok {
		s.accounts[key] = &account{FirstName: "Test", LastName: "User", Email: email}
	}
	token := uuid.NewString()
	s.tokens[token] = key
	return token
}

// RevokeTokens invalidates every issued token.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]string)
}

// Seed stores rec in collection and returns its id.
func (s *Server) Seed(collection string, rec map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(collection, rec)
}

// SeedPayment stores a payment for an invoice.
func (s *Server) SeedPayment(invoiceID, amount, method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.payments = append(s.payments, map[string]any{
		"payment_id":     json.Number(strconv.Itoa(s.nextID)),
		"invoice_id":     json.Number(invoiceID),
		"payment_date":   "2024-03-01T00:00:00.000Z",
		"amount_paid":    amount,
		"payment_method": method,
	})
}

// Record returns a copy of the stored record.
func (s *Server) Record(collection, id string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.collections[collection][id]
	if !ok {
		return nil
	}
	return clone(rec)
}

// Find returns the id of the first record whose field equals value.
func (s *Server) Find(collection, field, value string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 1; i <= s.nextID; i++ {
		id := strconv.Itoa(i)
		if rec, ok := s.collections[collection][id]; ok && text(rec[field]) == value {
			return id
		}
	}
	return ""
}

// Update changes a stored record as another client would.
func (s *Server) Update(collection, id string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.collections[collection][id]
	for k, v := range fields {
		rec[k] = v
	}
	s.versions[collection+"/"+id]++
}

// Payments returns the payments stored for invoiceID.
func (s *Server) Payments(invoiceID string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []map[string]any
	for _, p := range s.payments {
		if text(p["invoice_id"]) == invoiceID {
			out = append(out, clone(p))
		}
	}
	return out
}

// Fail makes the next times requests to "METHOD /path" answer status.
func (s *Server) Fail(method, path string, status, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method+" "+path] = &fault{status: status, times: times}
}

// FailAfter lets skip requests to "METHOD /path" through, then fails the
// following times requests with status.
func (s *Server) FailAfter(method, path string, status, skip, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method+" "+path] = &fault{status: status, skip: skip, times: times}
}

// Calls returns the recorded requests matching method and path. An empty
// method matches any.
func (s *Server) Calls(method, path string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if (method == "" || c.Method == method) && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls forgets the recorded requests.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *Server) insert(collection string, rec map[string]any) string {
	s.nextID++
	id := strconv.Itoa(s.nextID)
	stored := clone(rec)
	stored[idFields[collection]] = json.Number(id)
	s.collections[collection][id] = stored
	s.versions[collection+"/"+id] = 1
	return id
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record, s.inject)

	r.Post("/api/auth/login", s.login)
	r.Post("/api/auth/register", s.register)
	r.Post("/api/auth/forgot-password", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"msg": "Password reset link sent to your email."})
	})
	r.Post("/api/auth/reset-password/{token}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "token") == "expired" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "Password reset token is invalid or has expired."})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"msg": "Password has been reset."})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/api/auth/user", s.currentUser)
		r.Get("/api/dashboard", s.dashboard)
		r.Get("/api/payments/invoice/{id}", s.listPayments)
		r.Post("/api/payments", s.createPayment)
		for name := range idFields {
			r.Get("/api/"+name, s.list(name))
			r.Post("/api/"+name, s.create(name))
			r.Get("/api/"+name+"/{id}", s.get(name))
			r.Put("/api/"+name+"/{id}", s.update(name))
			r.Delete("/api/"+name+"/{id}", s.remove(name))
		}
	})
	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if r.Body != nil {
			var buf bytes.Buffer
			_, _ = buf.ReadFrom(r.Body)
			if buf.Len() > 0 {
				dec := json.NewDecoder(bytes.NewReader(buf.Bytes()))
				dec.UseNumber()
				_ = dec.Decode(&body)
			}
			r.Body.Close()
			r.Body = nopCloser{bytes.NewReader(buf.Bytes())}
		}
		s.mu.Lock()
		s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Body: body})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		s.mu.Lock()
		f, ok := s.faults[key]
		status := 0
		switch {
		case !ok:
		case f.skip > 0:
			f.skip--
		case f.times > 0:
			f.times--
			status = f.status
		}
		s.mu.Unlock()
		if status != 0 {
			writeJSON(w, status, map[string]string{"msg": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(AuthHeader)
		s.mu.Lock()
		_, ok := s.tokens[token]
		s.mu.Unlock()
		if token == "" || !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Token is not valid"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	body := decode(r)
	s.mu.Lock()
	acct, ok := s.accounts[strings.ToLower(text(body["email"]))]
	valid := ok && acct.Password == text(body["password"])
	var token string
	if valid {
		token = uuid.NewString()
		s.tokens[token] = strings.ToLower(acct.Email)
	}
	s.mu.Unlock()
	if !valid {
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "Invalid Credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	body := decode(r)
	email := strings.ToLower(text(body["email"]))
	s.mu.Lock()
	_, exists := s.accounts[email]
	if !exists {
		s.accounts[email] = &account{
			FirstName: text(body["first_name"]),
			LastName:  text(body["last_name"]),
			Email:     text(body["email"]),
			Password:  text(body["password"]),
		}
	}
	s.mu.Unlock()
	if exists {
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "User already exists"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": uuid.NewString()})
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	acct := s.accounts[s.tokens[r.Header.Get(AuthHeader)]]
	s.mu.Unlock()
	if acct == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"msg": "User not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"first_name": acct.FirstName,
		"last_name":  acct.LastName,
		"email":      acct.Email,
	})
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lowStock := 0
	for _, item := range s.collections["inventory"] {
		if n, err := strconv.Atoi(text(item["stock_quantity"])); err == nil && n < 10 {
			lowStock++
		}
	}
	stages := map[string]int{}
	for _, d := range s.collections["deals"] {
		stages[text(d["stage"])]++
	}
	statuses := map[string]int{}
	for _, inv := range s.collections["invoices"] {
		statuses[text(inv["status"])]++
	}
	var byStage, byStatus, recent []map[string]any
	for stage, n := range stages {
		byStage = append(byStage, map[string]any{"stage": stage, "count": strconv.Itoa(n)})
	}
	for status, n := range statuses {
		byStatus = append(byStatus, map[string]any{"status": status, "count": strconv.Itoa(n)})
	}
	for _, t := range s.collections["tasks"] {
		recent = append(recent, map[string]any{
			"task_id":   t["task_id"],
			"task_name": t["task_name"],
			"status":    t["status"],
			"due_date":  t["due_date"],
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"customersCount":   strconv.Itoa(len(s.collections["customers"])),
		"dealsCount":       strconv.Itoa(len(s.collections["deals"])),
		"employeesCount":   len(s.collections["employees"]),
		"lowStockCount":    lowStock,
		"dealsByStage":     byStage,
		"invoicesByStatus": byStatus,
		"recentTasks":      recent,
	})
}

func (s *Server) list(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		out := make([]map[string]any, 0, len(s.collections[name]))
		for i := 1; i <= s.nextID; i++ {
			if rec, ok := s.collections[name][strconv.Itoa(i)]; ok {
				out = append(out, clone(rec))
			}
		}
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) create(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := decode(r)
		s.mu.Lock()
		id := s.insert(name, body)
		rec := clone(s.collections[name][id])
		s.mu.Unlock()
		writeJSON(w, http.StatusCreated, rec)
	}
}

func (s *Server) get(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		s.mu.Lock()
		rec, ok := s.collections[name][id]
		var out map[string]any
		if ok {
			out = clone(rec)
		}
		version := s.versions[name+"/"+id]
		etags := s.etags
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"msg": strings.TrimSuffix(name, "s") + " not found"})
			return
		}
		if etags && name == "invoices" {
			w.Header().Set("ETag", etag(version))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) update(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		body := decode(r)
		s.mu.Lock()
		rec, ok := s.collections[name][id]
		key := name + "/" + id
		if ok {
			if match := r.Header.Get("If-Match"); match != "" && match != etag(s.versions[key]) {
				s.mu.Unlock()
				writeJSON(w, http.StatusPreconditionFailed, map[string]string{"msg": "Invoice was modified"})
				return
			}
			for k, v := range body {
				rec[k] = v
			}
			s.versions[key]++
		}
		var out map[string]any
		if ok {
			out = clone(rec)
		}
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"msg": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) remove(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		s.mu.Lock()
		_, ok := s.collections[name][id]
		delete(s.collections[name], id)
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"msg": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"msg": "deleted"})
	}
}

func (s *Server) listPayments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, append([]map[string]any{}, s.Payments(chi.URLParam(r, "id"))...))
}

func (s *Server) createPayment(w http.ResponseWriter, r *http.Request) {
	body := decode(r)
	if text(body["amount_paid"]) == "" || text(body["payment_method"]) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []map[string]string{{"msg": "Amount and method are required"}}})
		return
	}
	s.mu.Lock()
	s.nextID++
	body["payment_id"] = json.Number(strconv.Itoa(s.nextID))
	s.payments = append(s.payments, body)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, body)
}

func etag(version int) string {
	return fmt.Sprintf(`"v%d"`, version)
}

func decode(r *http.Request) map[string]any {
	body := map[string]any{}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	_ = dec.Decode(&body)
	return body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func clone(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
