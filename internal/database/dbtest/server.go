// Package dbtest runs an in-memory stand-in for the PostgREST table API,
// enough of it to exercise database.Client and everything built on it.
package dbtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

const APIKey = "test-anon-key"

type Row = map[string]any

// Request is one call the server received.
type Request struct {
	Method string
	Table  string
	Query  string
	Body   string
	Prefer string
}

type failure struct {
	status int
	body   string
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	tables   map[string][]Row
	nextID   map[string]int64
	clock    time.Time
	fails    map[string]failure
	requests []Request
}

func NewServer() *Server {
	s := &Server{
		tables: map[string][]Row{},
		nextID: map[string]int64{},
		clock:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		fails:  map[string]failure{},
	}

	r := chi.NewRouter()
	r.Use(s.authenticate)
	r.Route("/rest/v1/{table}", func(r chi.Router) {
		r.Get("/", s.handleSelect)
		r.Post("/", s.handleInsert)
		r.Patch("/", s.handleUpdate)
		r.Delete("/", s.handleDelete)
	})

	s.Server = httptest.NewServer(r)
	return s
}

// Seed inserts rows directly, assigning id and created_at when missing.
func (s *Server) Seed(table string, rows ...Row) []Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, s.insertLocked(table, r))
	}
	return out
}

func (s *Server) Rows(table string) []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRows(s.tables[table])
}

// Fail makes the next request with the given method ("GET", "POST", ...)
// answer with status and a PostgREST error carrying message.
func (s *Server) Fail(method string, status int, message string) {
	body, _ := json.Marshal(map[string]string{
		"code":    "P0001",
		"message": message,
	})
	s.FailRaw(method, status, string(body))
}

func (s *Server) FailRaw(method string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails[method] = failure{status: status, body: body}
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != APIKey || r.Header.Get("Authorization") != "Bearer "+APIKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// record logs the request and reports a pending injected failure.
func (s *Server) record(w http.ResponseWriter, r *http.Request, body []byte) bool {
	s.requests = append(s.requests, Request{
		Method: r.Method,
		Table:  chi.URLParam(r, "table"),
		Query:  r.URL.RawQuery,
		Body:   string(body),
		Prefer: r.Header.Get("Prefer"),
	})

	if f, ok := s.fails[r.Method]; ok {
		delete(s.fails, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		w.Write([]byte(f.body))
		return true
	}
	return false
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record(w, r, nil) {
		return
	}

	table := chi.URLParam(r, "table")
	rows, err := s.matching(table, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	q := r.URL.Query()
	if order := q.Get("order"); order != "" {
		sortRows(rows, order)
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit < len(rows) {
		rows = rows[:limit]
	}
	writeJSON(w, http.StatusOK, cloneRows(rows))
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var body []Row
	raw, err := decodeBody(r, &body)
	if s.record(w, r, raw) {
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	table := chi.URLParam(r, "table")
	out := make([]Row, 0, len(body))
	for _, row := range body {
		out = append(out, s.insertLocked(table, row))
	}
	s.respond(w, r, http.StatusCreated, out)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var patch Row
	raw, err := decodeBody(r, &patch)
	if s.record(w, r, raw) {
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	rows, err := s.matching(chi.URLParam(r, "table"), r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	for _, row := range rows {
		for k, v := range patch {
			row[k] = v
		}
	}
	s.respond(w, r, http.StatusOK, cloneRows(rows))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record(w, r, nil) {
		return
	}

	table := chi.URLParam(r, "table")
	doomed, err := s.matching(table, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	kept := s.tables[table][:0]
	for _, row := range s.tables[table] {
		if !containsRow(doomed, row) {
			kept = append(kept, row)
		}
	}
	s.tables[table] = kept
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, rows []Row) {
	if strings.Contains(r.Header.Get("Prefer"), "return=representation") {
		writeJSON(w, status, rows)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) insertLocked(table string, in Row) Row {
	row := Row{}
	for k, v := range in {
		row[k] = v
	}
	if _, ok := row["id"]; !ok {
		s.nextID[table]++
		row["id"] = float64(s.nextID[table])
	} else if id, ok := row["id"].(float64); ok && int64(id) > s.nextID[table] {
		s.nextID[table] = int64(id)
	}
	if _, ok := row["created_at"]; !ok {
		s.clock = s.clock.Add(time.Second)
		row["created_at"] = s.clock.Format("2006-01-02T15:04:05.000000Z07:00")
	}
	s.tables[table] = append(s.tables[table], row)
	return cloneRow(row)
}

// matching returns the live rows of table that pass every column filter in
// the request's query string.
func (s *Server) matching(table string, r *http.Request) ([]Row, error) {
	var out []Row
	for _, row := range s.tables[table] {
		ok, err := matchRow(row, r.URL.Query())
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

var reservedParams = map[string]bool{"select": true, "order": true, "limit": true, "offset": true}

func matchRow(row Row, q map[string][]string) (bool, error) {
	for col, exprs := range q {
		if reservedParams[col] {
			continue
		}
		for _, expr := range exprs {
			op, val, found := strings.Cut(expr, ".")
			if !found {
				return false, fmt.Errorf("malformed filter %s=%s", col, expr)
			}
			ok, err := matchValue(row[col], op, val)
			if err != nil || !ok {
				return false, err
			}
		}
	}
	return true, nil
}

func matchValue(have any, op, want string) (bool, error) {
	switch op {
	case "eq":
		return have != nil && format(have) == want, nil
	case "neq":
		return have != nil && format(have) != want, nil
	case "gt", "gte", "lt", "lte":
		if have == nil {
			return false, nil
		}
		c := compare(have, want)
		switch op {
		case "gt":
			return c > 0, nil
		case "gte":
			return c >= 0, nil
		case "lt":
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	case "in":
		list := strings.TrimSuffix(strings.TrimPrefix(want, "("), ")")
		if list == "" || have == nil {
			return false, nil
		}
		for _, v := range splitList(list) {
			if format(have) == v {
				return true, nil
			}
		}
		return false, nil
	case "is":
		if want == "null" {
			return have == nil, nil
		}
		return have != nil && format(have) == want, nil
	case "like", "ilike":
		if have == nil {
			return false, nil
		}
		h, w := format(have), strings.NewReplacer("*", "", "%", "").Replace(want)
		if op == "ilike" {
			h, w = strings.ToLower(h), strings.ToLower(w)
		}
		return strings.Contains(h, w), nil
	}
	return false, fmt.Errorf("unsupported operator %q", op)
}

// splitList splits an in-list on commas outside double quotes and unquotes
// the members.
func splitList(list string) []string {
	var (
		out    []string
		cur    strings.Builder
		quoted bool
	)
	for i := 0; i < len(list); i++ {
		c := list[i]
		switch {
		case c == '\\' && quoted && i+1 < len(list):
			i++
			cur.WriteByte(list[i])
		case c == '"':
			quoted = !quoted
		case c == ',' && !quoted:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(out, cur.String())
}

func sortRows(rows []Row, order string) {
	terms := strings.Split(order, ",")
	sort.SliceStable(rows, func(i, j int) bool {
		for _, term := range terms {
			col, dir, _ := strings.Cut(term, ".")
			c := compareValues(rows[i][col], rows[j][col])
			if c == 0 {
				continue
			}
			if dir == "desc" {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return compare(a, format(b))
}

func compare(have any, want string) int {
	if f, ok := have.(float64); ok {
		w, err := strconv.ParseFloat(want, 64)
		if err == nil {
			switch {
			case f < w:
				return -1
			case f > w:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(format(have), want)
}

func format(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func containsRow(rows []Row, row Row) bool {
	for _, r := range rows {
		if r["id"] == row["id"] {
			return true
		}
	}
	return false
}

func decodeBody(r *http.Request, v any) ([]byte, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid body: %w", err)
	}
	return raw, json.Unmarshal(raw, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func cloneRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = cloneRow(r)
	}
	return out
}
