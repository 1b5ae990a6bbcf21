package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "marketing-analyst/internal/common/errors"
	"marketing-analyst/internal/common/validation"
	"marketing-analyst/internal/models"
)

const readyTimeout = 3 * time.Second

var filtersSchema = validation.Property{
	Type: "object",
	Properties: map[string]validation.Property{
		"date_from": {Type: "string", Pattern: validation.DatePattern},
		"date_to":   {Type: "string", Pattern: validation.DatePattern},
		"segment":   {Type: "string"},
		"channel":   {Type: "string"},
	},
}

var chatRequestSchema = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"message": {Type: "string", MinLength: validation.Int(1)},
		"history": {
			Type: "array",
			Items: &validation.Property{
				Type: "object",
				Properties: map[string]validation.Property{
					"role":    {Type: "string"},
					"content": {Type: "string"},
				},
				Required: []string{"role", "content"},
			},
		},
		"filters": filtersSchema,
	},
	Required: []string{"message"},
}

var templateRequestSchema = validation.JSONSchema{
	Type:       "object",
	Properties: filtersSchema.Properties,
}

// TemplateResponse is the body of the direct template endpoints.
type TemplateResponse struct {
	Template string                   `json:"template"`
	Params   map[string]interface{}   `json:"params"`
	Data     []map[string]interface{} `json:"data"`
	Columns  []string                 `json:"columns"`
	RowCount int                      `json:"row_count"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	var mu sync.Mutex
	results := make(map[string]string, len(s.checks))

	g, gctx := errgroup.WithContext(ctx)
	for name, check := range s.checks {
		if check == nil {
			continue
		}
		name, check := name, check
		g.Go(func() error {
			err := check.Ping(gctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[name] = err.Error()
				return fmt.Errorf("%s: %w", name, err)
			}
			results[name] = "ok"
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.log.Warn("Readiness check failed", map[string]interface{}{"error": err.Error()})
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "unavailable", "checks": results})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ready", "checks": results})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("Chat handler panicked", map[string]interface{}{"panic": fmt.Sprint(rec)})
			writeDetail(w, http.StatusInternalServerError, "internal server error")
		}
	}()

	body, err := readBody(w, r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateBody(chatRequestSchema, body); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	var req models.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.chat.Chat(r.Context(), req))
}

// handleTemplate serves a fixed template without the model. The body is
// an optional filters object.
func (s *Server) handleTemplate(name models.TemplateName) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(w, r)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		var filters models.Filters
		if len(body) > 0 {
			if err := validateBody(templateRequestSchema, body); err != nil {
				writeDetail(w, http.StatusBadRequest, err.Error())
				return
			}
			if err := json.Unmarshal(body, &filters); err != nil {
				writeDetail(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
				return
			}
		}
		filters = filters.WithDefaults(s.agent.DefaultDateFrom, s.agent.DefaultDateTo)
		if err := filters.Validate(); err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		result, err := s.runner.RunTemplate(r.Context(), string(name), filters)
		if err != nil {
			apperrors.LogError(s.log, "Template endpoint failed", err, map[string]interface{}{"template": string(name)})
			writeJSON(w, http.StatusInternalServerError,
				apperrors.ToolPayload(err, map[string]interface{}{"template": string(name)}))
			return
		}

		writeJSON(w, http.StatusOK, TemplateResponse{
			Template: string(name),
			Params:   filters.Params(),
			Data:     result.Rows,
			Columns:  result.Columns,
			RowCount: result.RowCount,
		})
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("could not read request body: %w", err)
	}
	return bytes.TrimSpace(body), nil
}

func validateBody(schema validation.JSONSchema, body []byte) error {
	if !json.Valid(body) {
		return fmt.Errorf("invalid JSON body")
	}
	result, err := validation.ValidateJSON(schema, body)
	if err != nil {
		return err
	}
	if !result.Valid {
		return fmt.Errorf("invalid request: %s", result.Error())
	}
	return nil
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
