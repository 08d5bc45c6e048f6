package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/hektorlabs/vdbgate/internal/apierror"
	"github.com/hektorlabs/vdbgate/internal/auth"
	"github.com/hektorlabs/vdbgate/internal/engine"
)

// Request body validation bounds.
const (
	maxCollectionNameLen = 100
	defaultDimension     = 1536
	defaultK             = 10
	maxK                 = 100
)

// handleHealth reports engine readiness: 200 only when the handle is Ready.
// It never triggers initialization and never blocks on the engine.
func (s *Server) handleHealth(c echo.Context) error {
	state := s.manager.State()
	resp := HealthResponse{
		Version:       s.version,
		Database:      state.String(),
		UptimeSeconds: time.Since(s.startTime).Seconds(),
	}

	if state != engine.StateReady {
		resp.Status = "unavailable"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	resp.Status = "healthy"
	return c.JSON(http.StatusOK, resp)
}

// handleLogin authenticates against the credential store and issues a
// bearer token. Unknown username and wrong password are indistinguishable.
func (s *Server) handleLogin(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apierror.Validation(apierror.FieldError{Field: "body", Reason: "malformed JSON"})
	}

	var fields []apierror.FieldError
	if req.Username == "" {
		fields = append(fields, apierror.FieldError{Field: "username", Reason: "must not be empty"})
	}
	if req.Password == "" {
		fields = append(fields, apierror.FieldError{Field: "password", Reason: "must not be empty"})
	}
	if len(fields) > 0 {
		return apierror.Validation(fields...)
	}

	role, err := s.store.Authenticate(req.Username, req.Password)
	if err != nil {
		return apierror.Unauthorized("incorrect username or password", err)
	}

	token, err := s.tokens.Issue(req.Username, role)
	if err != nil {
		s.logger.Error("token issuance failed", zap.Error(err))
		return apierror.Unauthorized("could not issue token", err)
	}

	s.logger.Info("login", zap.String("username", req.Username))
	return c.JSON(http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// handleStats returns engine-wide counters.
func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.manager.Stats(c.Request().Context())
	if err != nil {
		return mapEngineError("stats", err)
	}
	return c.JSON(http.StatusOK, stats)
}

// handleCreateCollection validates the collection spec and creates it.
// Violations fail before the engine handle is touched.
func (s *Server) handleCreateCollection(c echo.Context) error {
	var req CreateCollectionRequest
	if err := c.Bind(&req); err != nil {
		return apierror.Validation(apierror.FieldError{Field: "body", Reason: "malformed JSON"})
	}

	dimension := defaultDimension
	if req.Dimension != nil {
		dimension = *req.Dimension
	}
	metric := engine.Metric(req.Metric)
	if req.Metric == "" {
		metric = engine.MetricCosine
	}

	var fields []apierror.FieldError
	if req.Name == "" {
		fields = append(fields, apierror.FieldError{Field: "name", Reason: "must not be empty"})
	} else if len(req.Name) > maxCollectionNameLen {
		fields = append(fields, apierror.FieldError{
			Field:  "name",
			Reason: fmt.Sprintf("must be at most %d characters", maxCollectionNameLen),
		})
	}
	if dimension < 1 || dimension > engine.MaxDimension {
		fields = append(fields, apierror.FieldError{
			Field:  "dimension",
			Reason: fmt.Sprintf("must be between 1 and %d", engine.MaxDimension),
		})
	}
	if !engine.ValidMetric(metric) {
		fields = append(fields, apierror.FieldError{
			Field:  "metric",
			Reason: "must be one of cosine, euclidean, dot_product",
		})
	}
	if len(fields) > 0 {
		return apierror.Validation(fields...)
	}

	info, err := s.manager.CreateCollection(c.Request().Context(), engine.CollectionSpec{
		Name:      req.Name,
		Dimension: dimension,
		Metric:    metric,
	})
	if err != nil {
		return mapEngineError("create_collection", err)
	}

	s.logger.Info("collection created",
		zap.String("collection", info.Name),
		zap.String("subject", auth.Subject(c)),
	)
	return c.JSON(http.StatusOK, info)
}

// handleListCollections lists all collections.
func (s *Server) handleListCollections(c echo.Context) error {
	infos, err := s.manager.ListCollections(c.Request().Context())
	if err != nil {
		return mapEngineError("list_collections", err)
	}
	if infos == nil {
		infos = []engine.CollectionInfo{}
	}
	return c.JSON(http.StatusOK, infos)
}

// handleDeleteCollection deletes a collection.
func (s *Server) handleDeleteCollection(c echo.Context) error {
	name := c.Param("name")
	if err := s.manager.DeleteCollection(c.Request().Context(), name); err != nil {
		return mapEngineError("delete_collection", err)
	}

	s.logger.Info("collection deleted",
		zap.String("collection", name),
		zap.String("subject", auth.Subject(c)),
	)
	return c.JSON(http.StatusOK, DeleteCollectionResponse{
		Message: fmt.Sprintf("Collection %s deleted successfully", name),
	})
}

// handleAddDocument validates and indexes a single document.
func (s *Server) handleAddDocument(c echo.Context) error {
	var req DocumentRequest
	if err := c.Bind(&req); err != nil {
		return apierror.Validation(apierror.FieldError{Field: "body", Reason: "malformed JSON"})
	}

	if fields := validateDocument(req, ""); len(fields) > 0 {
		return apierror.Validation(fields...)
	}

	id, err := s.manager.AddDocument(c.Request().Context(), c.Param("name"), toEngineDocument(req))
	if err != nil {
		return mapEngineError("add_document", err)
	}

	return c.JSON(http.StatusOK, AddDocumentResponse{
		ID:      id,
		Message: "Document added successfully",
	})
}

// handleAddBatch validates every element before any insert; an invalid
// element rejects the whole batch. Past validation, insert failures are
// reported per element.
func (s *Server) handleAddBatch(c echo.Context) error {
	var req BatchAddRequest
	if err := c.Bind(&req); err != nil {
		return apierror.Validation(apierror.FieldError{Field: "body", Reason: "malformed JSON"})
	}

	if len(req.Documents) == 0 {
		return apierror.Validation(apierror.FieldError{Field: "documents", Reason: "must not be empty"})
	}

	var fields []apierror.FieldError
	for i, doc := range req.Documents {
		fields = append(fields, validateDocument(doc, fmt.Sprintf("documents[%d].", i))...)
	}
	if len(fields) > 0 {
		return apierror.Validation(fields...)
	}

	docs := make([]engine.Document, len(req.Documents))
	for i, doc := range req.Documents {
		docs[i] = toEngineDocument(doc)
	}

	ids, failed, err := s.manager.AddBatch(c.Request().Context(), c.Param("name"), docs)
	if err != nil {
		return mapEngineError("add_batch", err)
	}

	return c.JSON(http.StatusOK, BatchAddResponse{
		IDs:     ids,
		Count:   len(ids),
		Failed:  failed,
		Message: fmt.Sprintf("Added %d documents successfully", len(ids)),
	})
}

// handleSearch validates and runs a similarity query. Results are returned
// in the engine's relevance order, untouched.
func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return apierror.Validation(apierror.FieldError{Field: "body", Reason: "malformed JSON"})
	}

	k := defaultK
	if req.K != nil {
		k = *req.K
	}

	var fields []apierror.FieldError
	if req.Query == "" {
		fields = append(fields, apierror.FieldError{Field: "query", Reason: "must not be empty"})
	}
	if k < 1 || k > maxK {
		fields = append(fields, apierror.FieldError{
			Field:  "k",
			Reason: fmt.Sprintf("must be between 1 and %d", maxK),
		})
	}
	if len(fields) > 0 {
		return apierror.Validation(fields...)
	}

	results, err := s.manager.Search(c.Request().Context(), c.Param("name"), req.Query, k, req.Filters)
	if err != nil {
		return mapEngineError("search", err)
	}
	if results == nil {
		results = []engine.SearchResult{}
	}
	return c.JSON(http.StatusOK, results)
}

// validateDocument checks one document body; prefix scopes field names for
// batch elements.
func validateDocument(doc DocumentRequest, prefix string) []apierror.FieldError {
	var fields []apierror.FieldError
	if doc.Content == "" {
		fields = append(fields, apierror.FieldError{
			Field:  prefix + "content",
			Reason: "must not be empty",
		})
	}
	return fields
}

func toEngineDocument(req DocumentRequest) engine.Document {
	docType := req.DocumentType
	if docType == "" {
		docType = "general"
	}
	return engine.Document{
		Content:  req.Content,
		Metadata: req.Metadata,
		Type:     docType,
	}
}

// mapEngineError translates engine-layer errors into the gateway taxonomy.
// This is the only place engine errors meet HTTP semantics.
func mapEngineError(op string, err error) error {
	switch {
	case errors.Is(err, engine.ErrBackendUnavailable):
		return apierror.Unavailable(err)
	case errors.Is(err, engine.ErrCollectionNotFound):
		return apierror.NotFound("collection")
	case errors.Is(err, engine.ErrCollectionExists):
		return apierror.Validation(apierror.FieldError{Field: "name", Reason: "collection already exists"})
	}

	var opErr *engine.OperationError
	if errors.As(err, &opErr) {
		return apierror.Backend(opErr.Op, opErr.Err)
	}
	return apierror.Backend(op, err)
}
