package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/mise/internal/models"
	"github.com/hyperjump/mise/internal/storage"
)

const defaultPageLimit = 10

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "Product retrieval API",
		"version": s.version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	products, fitted := 0, false
	if b := s.Backend(); b != nil {
		if b.Catalog != nil {
			products = b.Catalog.Len()
		}
		if b.Engine != nil {
			fitted = b.Engine.Stats().VectorizerFitted
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "healthy",
		"products_loaded":   products,
		"vectorizer_fitted": fitted,
	})
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil || skip < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid skip")
		return
	}
	limit, err := queryInt(r, "limit", defaultPageLimit)
	if err != nil || limit < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	products, total := []*models.Product{}, 0
	if b := s.Backend(); b != nil && b.Catalog != nil {
		products = b.Catalog.Page(skip, limit)
		total = b.Catalog.Len()
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"products": products,
		"total":    total,
		"skip":     skip,
		"limit":    limit,
	})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if b := s.Backend(); b != nil && b.Catalog != nil {
		if p, ok := b.Catalog.GetProduct(id); ok {
			s.respondJSON(w, http.StatusOK, p)
			return
		}
		s.respondError(w, http.StatusNotFound, "Product not found")
		return
	}
	// Without a loaded catalog the last snapshot can still answer lookups.
	if s.storage != nil {
		p, err := s.storage.GetProduct(r.Context(), id)
		if err == nil {
			s.respondJSON(w, http.StatusOK, p)
			return
		}
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error("get product failed", zap.String("id", id), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	s.respondError(w, http.StatusNotFound, "Product not found")
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(s.config.Retrieval.MaxTopK); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	b := s.Backend()
	if b == nil || b.Engine == nil {
		s.respondError(w, http.StatusInternalServerError, "Retriever not initialized")
		return
	}
	s.logger.Debug("query request", zap.String("query", req.Query), zap.Int("top_k", req.TopK))
	products, explanation, err := b.Engine.Retrieve(r.Context(), req.Query, req.TopK, req.Filters)
	if err != nil {
		s.logger.Error("query failed", zap.String("query", req.Query), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.queryResults.Observe(float64(len(products)))
	s.respondJSON(w, http.StatusOK, &models.QueryResponse{
		Products:    products,
		Explanation: explanation,
	})
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	brands, categories := []string{}, []string{}
	var priceRange models.PriceRange
	if b := s.Backend(); b != nil && b.Catalog != nil {
		brands = b.Catalog.Brands()
		categories = b.Catalog.Categories()
		priceRange = b.Catalog.PriceRange()
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"brands":      brands,
		"categories":  categories,
		"price_range": priceRange,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := map[string]interface{}{
		"version":         s.version,
		"products_loaded": 0,
		"initialized":     false,
	}
	if b := s.Backend(); b != nil {
		if b.Catalog != nil {
			resp["products_loaded"] = b.Catalog.Len()
		}
		if b.Engine != nil {
			stats := b.Engine.Stats()
			resp["initialized"] = true
			resp["vector_index_size"] = stats.IndexSize
			resp["embedding_dimensions"] = stats.Dimension
			resp["vectorizer_fitted"] = stats.VectorizerFitted
		}
	}

	if s.storage != nil {
		count, err := s.storage.CountProducts(ctx)
		if err != nil {
			s.logger.Error("status: count products failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["stored_products"] = count
		saved, err := s.storage.LastSaved(ctx)
		if err != nil {
			s.logger.Error("status: last saved failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !saved.IsZero() {
			resp["last_saved"] = saved.UTC().Format(time.RFC3339)
		}
	}

	configInfo := map[string]interface{}{
		"catalog_path":  s.config.Catalog.Path,
		"catalog_watch": s.config.Catalog.Watch,
		"database_path": s.config.Catalog.DatabasePath,
		"max_features":  s.config.Embedding.MaxFeatures,
		"default_top_k": s.config.Retrieval.DefaultTopK,
		"max_top_k":     s.config.Retrieval.MaxTopK,
	}
	if diskBytes, err := storage.DatabaseUsageBytes(s.config.Catalog.DatabasePath); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
