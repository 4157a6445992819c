package server

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/saadbelcaidx/connector-os/internal/pipeline"
	"github.com/saadbelcaidx/connector-os/internal/server/middleware"
	"github.com/saadbelcaidx/connector-os/internal/types"
)

var validate = validator.New()

// DetectRequest represents the request body for /detect
type DetectRequest struct {
	Records []types.RawRecord `json:"records"`
}

// DetectResponse represents the response for /detect
type DetectResponse struct {
	SchemaID   string           `json:"schema_id"`
	Name       string           `json:"name"`
	SignalType types.SignalType `json:"signal_type"`
	Records    int              `json:"records"`
}

// ScoreRequest represents the request body for /score and /score/stream
type ScoreRequest struct {
	Records    []types.RawRecord        `json:"records"`
	Profile    *types.CapabilityProfile `json:"profile,omitempty"`
	Threshold  *int                     `json:"threshold,omitempty" validate:"omitempty,min=0,max=100"`
	Strength   *int                     `json:"strength,omitempty" validate:"omitempty,min=0,max=100"`
	NoGroup    bool                     `json:"no_group,omitempty"`
	ResolveTop int                      `json:"resolve_top,omitempty" validate:"min=0"`
}

// ResolveRequest represents the request body for /resolve
type ResolveRequest struct {
	Entity   *types.Entity `json:"entity" validate:"required"`
	Supplier string        `json:"supplier,omitempty"`
}

// ChargeRequest represents the request body for /charges
type ChargeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ChargeResponse represents the response for /charges
type ChargeResponse struct {
	Email    string `json:"email"`
	Recorded bool   `json:"recorded"`
}

func validateRequest(v any) error {
	if err := validate.Struct(v); err != nil {
		return &ErrValidation{Field: "request", Message: err.Error()}
	}
	return nil
}

// handleDetect classifies a dataset
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	schema, err := pipeline.Detect(s.deps.Registry, req.Records)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, DetectResponse{
		SchemaID:   schema.ID,
		Name:       schema.Name,
		SignalType: schema.SignalType,
		Records:    len(req.Records),
	})
}

// runOptions builds pipeline options for a score request.
func (s *Server) runOptions(r *http.Request, req *ScoreRequest) (pipeline.RunOptions, error) {
	if err := validateRequest(req); err != nil {
		return pipeline.RunOptions{}, err
	}

	profile := req.Profile
	if profile == nil {
		profile = s.deps.Profile
	}
	if profile == nil {
		return pipeline.RunOptions{}, &ErrValidation{Field: "profile", Message: "required"}
	}
	if err := profile.Validate(); err != nil {
		return pipeline.RunOptions{}, &ErrValidation{Field: "profile", Message: err.Error()}
	}

	opts := pipeline.RunOptions{
		Records:    req.Records,
		Profile:    profile,
		Registry:   s.deps.Registry,
		Threshold:  s.cfg.Threshold,
		Strength:   req.Strength,
		NoGroup:    req.NoGroup,
		Store:      s.deps.Store,
		Publisher:  s.deps.Publisher,
		OperatorID: profile.OperatorID,
		Logger:     s.log,
	}
	if req.Threshold != nil {
		opts.Threshold = *req.Threshold
	}
	if op, err := middleware.GetOperatorID(r); err == nil {
		opts.OperatorID = op
	}

	if req.ResolveTop > 0 {
		if s.deps.Resolver == nil {
			return pipeline.RunOptions{}, &ErrNotConfigured{Feature: "contact resolution"}
		}
		opts.Resolver = s.deps.Resolver
		opts.ResolveTop = req.ResolveTop
		if s.cfg.ResolveTop > 0 {
			opts.ResolveTop = min(opts.ResolveTop, s.cfg.ResolveTop)
		}
	}
	return opts, nil
}

// handleScore detects, normalizes, scores and ranks a dataset
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	opts, err := s.runOptions(r, &req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out, err := pipeline.Run(r.Context(), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, out)
}

// handleScoreStream runs a score request and streams progress via SSE
func (s *Server) handleScoreStream(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	opts, err := s.runOptions(r, &req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	opts.OnProgress = func(event pipeline.ProgressEvent) {
		if err := sse.WriteEvent("step", event); err != nil {
			s.log.Warn("failed to write SSE event", zap.Error(err))
		}
	}

	out, err := pipeline.Run(r.Context(), opts)
	if err != nil {
		sse.WriteError(err.Error())
		return
	}
	if err := sse.WriteEvent("result", out); err != nil {
		s.log.Warn("failed to write SSE result", zap.Error(err))
		return
	}
	sse.WriteComplete(out.RunID, "completed")
}

// handleResolve resolves a contact for one entity
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := validateRequest(&req); err != nil {
		s.writeError(w, err)
		return
	}
	if s.deps.Resolver == nil {
		s.writeError(w, &ErrNotConfigured{Feature: "contact resolution"})
		return
	}

	resolver, err := s.deps.Resolver.WithSupplier(strings.TrimSpace(req.Supplier))
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := resolver.Resolve(r.Context(), req.Entity)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

// handleRecordCharge records a charge made outside the resolver
func (s *Server) handleRecordCharge(w http.ResponseWriter, r *http.Request) {
	var req ChargeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateRequest(&req); err != nil {
		s.writeError(w, err)
		return
	}
	if s.deps.Charges == nil {
		s.writeError(w, &ErrNotConfigured{Feature: "charge guard"})
		return
	}

	if err := s.deps.Charges.Record(r.Context(), req.Email); err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, ChargeResponse{Email: req.Email, Recorded: true})
}
