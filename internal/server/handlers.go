package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
)

// statusForKind maps error kinds to HTTP status codes. ProcessingInProgress
// is 202: the request is valid, the resource just is not ready yet.
func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.KindInvalidRequest:
		return http.StatusBadRequest
	case models.KindVideoNotFound:
		return http.StatusNotFound
	case models.KindNotProcessed:
		return http.StatusConflict
	case models.KindProcessingInProgress:
		return http.StatusAccepted
	case models.KindTranscriptUnavailable:
		return http.StatusUnprocessableEntity
	case models.KindTimeout:
		return http.StatusGatewayTimeout
	case models.KindEmbeddingProviderError, models.KindGenerationProviderError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	videoID := r.URL.Query().Get("video_id")
	if videoID == "" {
		s.respondError(w, http.StatusBadRequest, models.KindInvalidRequest, "video_id is required")
		return
	}
	force := r.URL.Query().Get("force") == "true"
	s.logger.Debug("process request", zap.String("video_id", videoID), zap.Bool("force", force))

	res, err := s.coordinator.Process(r.Context(), videoID, force)
	if err != nil {
		s.respondPipelineError(w, "processing failed", videoID, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

type askRequest struct {
	VideoID  string `json:"video_id"`
	Question string `json:"question"`
}

type askResponse struct {
	Answer         string   `json:"answer"`
	Mode           string   `json:"mode"`
	SourceChunkIDs []string `json:"source_chunk_ids,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, models.KindInvalidRequest, "invalid request body")
		return
	}
	if req.VideoID == "" || req.Question == "" {
		s.respondError(w, http.StatusBadRequest, models.KindInvalidRequest, "video_id and question are required")
		return
	}
	s.logger.Debug("ask request", zap.String("video_id", req.VideoID))

	ans, err := s.coordinator.Ask(r.Context(), req.VideoID, req.Question)
	if err != nil {
		s.respondPipelineError(w, "ask failed", req.VideoID, err)
		return
	}
	s.respondJSON(w, http.StatusOK, askResponse{
		Answer:         ans.Text,
		Mode:           ans.Mode,
		SourceChunkIDs: ans.SourceChunkIDs,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoCount, err := s.storage.CountVideos(ctx)
	if err != nil {
		s.logger.Error("status: count videos failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, models.KindInternal, "count videos failed")
		return
	}
	chunkCount, err := s.storage.CountChunks(ctx)
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, models.KindInternal, "count chunks failed")
		return
	}

	resp := map[string]interface{}{
		"videos": videoCount,
		"chunks": chunkCount,
		"config": map[string]interface{}{
			"embedding_model":      s.config.Embedding.Model,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"generation_model":     s.config.Generation.Model,
			"max_chunk_tokens":     s.config.Chunking.MaxChunkTokens,
			"overlap_tokens":       s.config.Chunking.OverlapTokens,
			"top_k":                s.config.Retrieval.TopK,
			"min_score":            s.config.Retrieval.MinScore,
			"hybrid_enabled":       s.config.Retrieval.HybridEnabled,
			"database_path":        s.config.Storage.DatabasePath,
			"bleve_index_path":     s.config.Storage.BleveIndexPath,
		},
	}
	if diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.BleveIndexPath,
	); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// respondPipelineError logs err and writes its kind-mapped status and a
// structured error body. The wrapped cause stays in the log.
func (s *Server) respondPipelineError(w http.ResponseWriter, msg, videoID string, err error) {
	kind := models.KindOf(err)
	status := statusForKind(kind)
	if status >= 500 {
		s.logger.Error(msg, zap.String("video_id", videoID), zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.String("video_id", videoID), zap.Error(err))
	}
	message := err.Error()
	var perr *models.Error
	if errors.As(err, &perr) {
		message = perr.Message
	}
	s.respondError(w, status, kind, message)
}

type errorResponse struct {
	Error string           `json:"error"`
	Kind  models.ErrorKind `json:"kind"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, kind models.ErrorKind, message string) {
	s.respondJSON(w, status, errorResponse{Error: message, Kind: kind})
}
