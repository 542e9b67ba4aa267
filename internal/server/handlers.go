package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/mail-sentinel/internal/privacy"
	"github.com/raaihank/mail-sentinel/internal/store"
	"github.com/raaihank/mail-sentinel/internal/websocket"
)

// ClassifyRequest is the body of POST /
type ClassifyRequest struct {
	InputEmailBody *string `json:"input_email_body"`
}

// ClassifyResponse is the reply of POST /
type ClassifyResponse struct {
	InputEmailBody       string           `json:"input_email_body"`
	ListOfMaskedEntities []privacy.Entity `json:"list_of_masked_entities"`
	MaskedEmail          string           `json:"masked_email"`
	CategoryOfTheEmail   string           `json:"category_of_the_email"`
}

// MaskRequest is the body of POST /mask
type MaskRequest struct {
	Text *string `json:"text"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// handleClassify masks an email and predicts its category from the masked text
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.InputEmailBody == nil {
		writeError(w, http.StatusBadRequest, "input_email_body is required")
		return
	}

	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	result, ok := s.mask(w, r, *req.InputEmailBody)
	if !ok {
		return
	}

	category, cacheHit, err := s.classify(r.Context(), result.MaskedText)
	if err != nil {
		log.Error("Classification failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "model prediction failed")
		return
	}

	s.metrics.Classifications.WithLabelValues(category).Inc()
	s.audit(r.Context(), requestID, result, category)

	if s.wsHub != nil {
		s.wsHub.BroadcastEvent(websocket.Event{
			Type:      websocket.EventTypeClassification,
			RequestID: requestID,
			Data: websocket.ClassificationEvent{
				RequestID:   requestID,
				Category:    category,
				EntityCount: len(result.Entities),
				CacheHit:    cacheHit,
			},
		})
	}

	log.Info("Email classified",
		zap.String("category", category),
		zap.Int("entities", len(result.Entities)),
		zap.Bool("cache_hit", cacheHit))

	writeJSON(w, http.StatusOK, ClassifyResponse{
		InputEmailBody:       *req.InputEmailBody,
		ListOfMaskedEntities: result.Entities,
		MaskedEmail:          result.MaskedText,
		CategoryOfTheEmail:   category,
	})
}

// handleMask masks text without classifying it
func (s *Server) handleMask(w http.ResponseWriter, r *http.Request) {
	var req MaskRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Text == nil {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	result, ok := s.mask(w, r, *req.Text)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// mask runs the masker and records detection metrics and events
func (s *Server) mask(w http.ResponseWriter, r *http.Request, text string) (*privacy.Result, bool) {
	requestID := getRequestID(r.Context())

	start := time.Now()
	result, err := s.masker.Mask(text)
	elapsed := time.Since(start)
	if err != nil {
		s.logger.WithRequestID(requestID).Error("Masking failed", zap.Error(err))
		if errors.Is(err, privacy.ErrMatchTimeout) {
			writeError(w, http.StatusUnprocessableEntity, "input too complex to mask")
		} else {
			writeError(w, http.StatusInternalServerError, "masking failed")
		}
		return nil, false
	}
	s.metrics.ObserveMaskLatency(elapsed)

	if len(result.Entities) == 0 {
		return result, true
	}

	counts := privacy.Summarize(result.Entities)
	for _, c := range counts {
		s.metrics.MaskedEntities.WithLabelValues(c.Category).Add(float64(c.Count))
	}

	if s.wsHub != nil {
		s.wsHub.BroadcastEvent(websocket.Event{
			Type:      websocket.EventTypePIIDetection,
			RequestID: requestID,
			Data: websocket.PIIDetectionEvent{
				RequestID:     requestID,
				Path:          r.URL.Path,
				Categories:    counts,
				TotalEntities: len(result.Entities),
				ProcessingMS:  float64(elapsed.Microseconds()) / 1000,
			},
		})
	}

	return result, true
}

// classify predicts a category, consulting the result cache first
func (s *Server) classify(ctx context.Context, maskedText string) (string, bool, error) {
	if s.cache != nil {
		if category, ok := s.cache.Get(ctx, maskedText); ok {
			s.metrics.CacheLookups.WithLabelValues("hit").Inc()
			return category, true, nil
		}
		s.metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	category, err := s.classifier.Predict(maskedText)
	if err != nil {
		return "", false, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, maskedText, category); err != nil {
			s.logger.Warn("Failed to cache classification", zap.Error(err))
		}
	}

	return category, false, nil
}

// audit stores the masked classification when storage is enabled
func (s *Server) audit(ctx context.Context, requestID string, result *privacy.Result, category string) {
	if s.store == nil {
		return
	}

	categories := make([]string, 0)
	for _, c := range privacy.Summarize(result.Entities) {
		categories = append(categories, c.Category)
	}

	hash := sha256.Sum256([]byte(result.MaskedText))
	record := &store.Classification{
		RequestID:   requestID,
		TextHash:    hex.EncodeToString(hash[:]),
		MaskedEmail: result.MaskedText,
		Category:    category,
		EntityCount: len(result.Entities),
		Categories:  categories,
	}

	if err := s.store.InsertClassification(ctx, record); err != nil {
		s.logger.WithRequestID(requestID).Warn("Failed to store classification", zap.Error(err))
	}
}

// handleHealth reports liveness and the state of optional backends
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	checks := map[string]string{}

	if s.cache != nil {
		checks["cache"] = "ok"
		if err := s.cache.Ping(ctx); err != nil {
			checks["cache"] = "unavailable"
			status = "degraded"
		}
	}
	if s.store != nil {
		checks["storage"] = "ok"
		if err := s.store.Ping(ctx); err != nil {
			checks["storage"] = "unavailable"
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleInfo describes the running service
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":              "mail-sentinel",
		"version":           s.version,
		"uptime":            time.Since(s.startTime).Round(time.Second).String(),
		"privacy_enabled":   s.masker.Enabled(),
		"categories":        s.masker.Categories(),
		"classes":           s.classifier.Classes(),
		"cache_enabled":     s.cache != nil,
		"storage_enabled":   s.store != nil,
		"websocket_enabled": s.wsHub != nil,
	}
	if s.wsHub != nil {
		info["websocket"] = s.wsHub.GetStats()
	}

	writeJSON(w, http.StatusOK, info)
}

// decode reads a JSON body, answering 400 or 413 on failure
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
