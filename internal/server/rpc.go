package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	lev "github.com/agnivade/levenshtein"

	apperrors "github.com/copyleftdev/hexshield/internal/errors"
	"github.com/copyleftdev/hexshield/internal/shielding"
)

// JSON-RPC 2.0 error codes.
const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
	rpcInvalidParams  = -32602
	rpcServerError    = -32000
)

// rpcMethods lists the methods served on /rpc.
var rpcMethods = []string{"search.start", "search.status", "search.cancel", "mesh.evaluate"}

// suggestMethod returns the served method closest to name, or "" when none
// is within two edits.
func suggestMethod(name string) string {
	best, bestDist := "", 3
	for _, m := range rpcMethods {
		if d := lev.ComputeDistance(name, m); d < bestDist {
			best, bestDist = m, d
		}
	}
	return best
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type searchIDParams struct {
	SearchID string `json:"search_id"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, rpcParseError, "Parse error", nil, nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" || request.Method == "" {
		s.respondWithError(w, rpcInvalidRequest, "Invalid Request", request.ID, nil)
		return
	}

	// Route to appropriate handler
	var result interface{}
	var err error

	switch request.Method {
	case "search.start":
		var params shielding.PanelParams
		if err = decodeParams(request.Params, &params); err == nil {
			result, err = s.StartSearch(params)
		}
	case "search.status":
		var params searchIDParams
		if err = decodeSearchID(request.Params, &params); err == nil {
			result, err = s.SearchStatus(params.SearchID)
		}
	case "search.cancel":
		var params searchIDParams
		if err = decodeSearchID(request.Params, &params); err == nil {
			if err = s.CancelSearch(params.SearchID); err == nil {
				result = map[string]string{"search_id": params.SearchID, "status": StatusCancelled}
			}
		}
	case "mesh.evaluate":
		var params EvaluateRequest
		if err = decodeParams(request.Params, &params); err == nil {
			result, err = s.Evaluate(params)
		}
	default:
		var data interface{}
		if suggestion := suggestMethod(request.Method); suggestion != "" {
			data = map[string]string{"suggestion": suggestion}
		}
		s.respondWithError(w, rpcMethodNotFound, "Method not found", request.ID, data)
		return
	}

	if err != nil {
		code := rpcServerError
		if status := apperrors.StatusCode(err); status == http.StatusBadRequest {
			code = rpcInvalidParams
		}
		s.respondWithError(w, code, err.Error(), request.ID, map[string]interface{}{
			"status": apperrors.StatusCode(err),
		})
		return
	}

	// Send successful response
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

// decodeParams accepts params either as an object or as a one element array
// holding the object.
func decodeParams(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return fmt.Errorf("missing required parameters: %w", apperrors.ErrBadRequest)
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return fmt.Errorf("invalid parameter format: %v: %w", err, apperrors.ErrBadRequest)
		}
		if len(list) == 0 {
			return fmt.Errorf("missing required parameters: %w", apperrors.ErrBadRequest)
		}
		raw = list[0]
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid parameter format, expected object: %v: %w", err, apperrors.ErrBadRequest)
	}
	return nil
}

func decodeSearchID(raw json.RawMessage, p *searchIDParams) error {
	if err := decodeParams(raw, p); err != nil {
		return err
	}
	if p.SearchID == "" {
		return fmt.Errorf("search_id is required: %w", apperrors.ErrBadRequest)
	}
	return nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}, data interface{}) {
	s.logger.Warn("JSON-RPC error", map[string]interface{}{
		"code":    code,
		"message": message,
	})

	rpcErr := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	if data != nil {
		rpcErr["data"] = data
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"error":   rpcErr,
		"id":      id,
	})
}
