package backtest

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// Server exposes a Generator and Runner as a JSON-RPC 2.0 HTTP handler.
type Server struct {
	generator Generator
	runner    Runner
	log       logrus.FieldLogger
}

// NewServer creates a handler serving generate and runSingle.
func NewServer(generator Generator, runner Runner, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{generator: generator, runner: runner, log: log}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, 0, codeParseError, "parse error: "+err.Error())
		return
	}
	if req.JSONRPC != "2.0" || len(req.Params) != 1 {
		s.writeError(w, req.ID, codeInvalidRequest, "expected jsonrpc 2.0 with one param")
		return
	}

	ctx := r.Context()
	switch req.Method {
	case MethodGenerate:
		var p documentPayload
		if err := json.Unmarshal(req.Params[0], &p); err != nil {
			s.writeError(w, req.ID, codeInvalidParams, err.Error())
			return
		}
		if s.generator == nil {
			s.writeError(w, req.ID, codeInternalError, ErrUnconfigured.Error())
			return
		}
		res, err := s.generator.Generate(ctx, p.toDocument())
		if err != nil {
			s.writeError(w, req.ID, codeInternalError, err.Error())
			return
		}
		s.writeResult(w, req.ID, res)

	case MethodRunSingle:
		var p runPayload
		if err := json.Unmarshal(req.Params[0], &p); err != nil {
			s.writeError(w, req.ID, codeInvalidParams, err.Error())
			return
		}
		if s.runner == nil {
			s.writeError(w, req.ID, codeInternalError, ErrUnconfigured.Error())
			return
		}
		res, err := s.runner.RunSingle(ctx, p.Code, p.StartDate, p.EndDate, p.StrategyID)
		if err != nil {
			s.writeError(w, req.ID, codeInternalError, err.Error())
			return
		}
		s.writeResult(w, req.ID, res)

	default:
		s.writeError(w, req.ID, codeMethodNotFound, "method not found: "+req.Method)
	}
}

func (s *Server) writeResult(w http.ResponseWriter, id uint64, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		s.writeError(w, id, codeInternalError, err.Error())
		return
	}
	s.write(w, rpcResponse{JSONRPC: "2.0", ID: id, Result: raw})
}

func (s *Server) writeError(w http.ResponseWriter, id uint64, code int, msg string) {
	s.log.WithFields(logrus.Fields{"id": id, "code": code}).Warn(msg)
	s.write(w, rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: msg}})
}

func (s *Server) write(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.WithError(err).Error("write rpc response")
	}
}
