package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/dreamware/graphdb/internal/model"
	"github.com/dreamware/graphdb/internal/query"

	"github.com/dreamware/graphdb"
)

// server exposes a minimal HTTP API over an Engine for manual
// exercising: CRUD on nodes and relationships, query, and traversal.
// Every request is authorized as the single configured identity —
// resolving a caller-specific AuthContext from a request is left to
// whatever sits in front of this driver in a real deployment.
type server struct {
	engine *graphdb.Engine
	auth   model.AuthContext
	log    *zap.Logger
}

func newServer(engine *graphdb.Engine, auth model.AuthContext, log *zap.Logger) *server {
	return &server{engine: engine, auth: auth, log: log}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/nodes/", s.handleNode)
	mux.HandleFunc("/relationships/", s.handleRelationship)
	mux.HandleFunc("/query", s.handleQuery)
	mux.HandleFunc("/traverse", s.handleTraverse)
	return mux
}

// handleNode dispatches /nodes/{id} to Get/Update/Delete and bare
// /nodes/ POST to Create, switching on the HTTP method.
func (s *server) handleNode(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/nodes/")

	switch r.Method {
	case http.MethodPost:
		var n model.Node
		if !decodeBody(w, r, &n) {
			return
		}
		created, err := s.engine.CreateNode(r.Context(), &n, s.auth)
		s.respond(w, created, err)

	case http.MethodGet:
		if id == "" {
			http.Error(w, "missing node id", http.StatusBadRequest)
			return
		}
		n, err := s.engine.GetNode(r.Context(), id, s.auth)
		if err == nil && n == nil {
			http.NotFound(w, r)
			return
		}
		s.respond(w, n, err)

	case http.MethodPatch:
		if id == "" {
			http.Error(w, "missing node id", http.StatusBadRequest)
			return
		}
		var req updateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		updated, err := s.engine.UpdateNode(r.Context(), id, req.Patch, req.ExpectedVersion, s.auth)
		s.respond(w, updated, err)

	case http.MethodDelete:
		if id == "" {
			http.Error(w, "missing node id", http.StatusBadRequest)
			return
		}
		err := s.engine.DeleteNode(r.Context(), id, s.auth)
		s.respond(w, nil, err)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type updateRequest struct {
	Patch           model.Properties `json:"patch"`
	ExpectedVersion *int64           `json:"expectedVersion,omitempty"`
}

func (s *server) handleRelationship(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var rel model.Relationship
		if !decodeBody(w, r, &rel) {
			return
		}
		created, err := s.engine.CreateRelationship(r.Context(), &rel, s.auth)
		s.respond(w, created, err)

	case http.MethodGet:
		from, to, typ, ok := s.tripleFromQuery(w, r)
		if !ok {
			return
		}
		rel, err := s.engine.GetRelationship(r.Context(), from, to, typ, s.auth)
		if err == nil && rel == nil {
			http.NotFound(w, r)
			return
		}
		s.respond(w, rel, err)

	case http.MethodPatch:
		from, to, typ, ok := s.tripleFromQuery(w, r)
		if !ok {
			return
		}
		var req updateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		updated, err := s.engine.UpdateRelationship(r.Context(), from, to, typ, req.Patch, req.ExpectedVersion, s.auth)
		s.respond(w, updated, err)

	case http.MethodDelete:
		from, to, typ, ok := s.tripleFromQuery(w, r)
		if !ok {
			return
		}
		err := s.engine.DeleteRelationship(r.Context(), from, to, typ, s.auth)
		s.respond(w, nil, err)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *server) tripleFromQuery(w http.ResponseWriter, r *http.Request) (from, to, typ string, ok bool) {
	q := r.URL.Query()
	from, to, typ = q.Get("from"), q.Get("to"), q.Get("type")
	if from == "" || to == "" || typ == "" {
		http.Error(w, "from, to, and type query parameters are required", http.StatusBadRequest)
		return "", "", "", false
	}
	return from, to, typ, true
}

func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req query.Request
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := s.engine.Query(r.Context(), req, s.auth)
	s.respond(w, result, err)
}

type traverseRequest struct {
	From      string          `json:"from"`
	Type      string          `json:"type"`
	Direction model.Direction `json:"direction"`
}

func (s *server) handleTraverse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req traverseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	related, err := s.engine.QueryRelatedNodes(r.Context(), req.From, req.Type, s.auth, req.Direction)
	s.respond(w, related, err)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// respond writes v as JSON on success, or maps err's Kind to an HTTP
// status so a client can distinguish "not found" from "forbidden" from
// "conflict" without parsing the message text.
func (s *server) respond(w http.ResponseWriter, v any, err error) {
	if err != nil {
		var gerr *graphdb.Error
		status := http.StatusInternalServerError
		if errors.As(err, &gerr) {
			switch gerr.Kind() {
			case graphdb.KindNotFound:
				status = http.StatusNotFound
			case graphdb.KindValidation:
				status = http.StatusBadRequest
			case graphdb.KindPermissionDenied:
				status = http.StatusForbidden
			case graphdb.KindConcurrentModified:
				status = http.StatusConflict
			case graphdb.KindBackend:
				status = http.StatusBadGateway
			}
		}
		s.log.Warn("request failed", zap.Error(err), zap.Int("status", status))
		http.Error(w, err.Error(), status)
		return
	}
	if v == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("response encode failed", zap.Error(err))
	}
}
