package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"recordproof/internal/domain"
	"recordproof/internal/infra/codec"
	"recordproof/internal/usecase"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	contentTypeProtobuf = "application/x-protobuf"
	contentTypePEM      = "application/x-pem-file"
	schemaHeader        = "X-Record-Schema"
	exportCountHeader   = "X-Export-Count"
	exportTruncHeader   = "X-Export-Truncated"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type createRecordRequest struct {
	Email  string `json:"email" binding:"required,email"`
	Role   string `json:"role" binding:"omitempty,oneof=user admin moderator"`
	Status string `json:"status" binding:"omitempty,oneof=active inactive suspended"`
}

type updateRecordRequest struct {
	Email  *string `json:"email" binding:"omitempty,email"`
	Role   *string `json:"role" binding:"omitempty,oneof=user admin moderator"`
	Status *string `json:"status" binding:"omitempty,oneof=active inactive suspended"`
}

type listResponse struct {
	Records []codec.Record `json:"records"`
	Total   int64          `json:"total"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
}

type healthResponse struct {
	Status        string `json:"status"`
	Mode          string `json:"mode"`
	SignAlgorithm string `json:"sign_algorithm"`
	HashAlgorithm string `json:"hash_algorithm"`
	Schema        string `json:"schema,omitempty"`
}

// verifyResponse adds the overall verdict next to the individual checks.
type verifyResponse struct {
	domain.VerificationResult
	Valid bool `json:"valid"`
}

func (s *Server) handleHealth(c *gin.Context) {
	mode := "no-db"
	if s.store.Enabled() {
		mode = "db"
	}
	out := healthResponse{
		Status:        "ok",
		Mode:          mode,
		SignAlgorithm: domain.SignAlgorithm,
		HashAlgorithm: domain.HashAlgorithm,
	}
	if s.schema != nil {
		out.Schema = s.schema.Version()
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handlePublicKey(c *gin.Context) {
	if s.keys == nil {
		writeError(c, domain.ErrKeyUnavailable)
		return
	}
	pemBytes, err := s.keys.PublicKeyPEM()
	if err != nil {
		s.writeInternal(c, err)
		return
	}
	c.Data(http.StatusOK, contentTypePEM, pemBytes)
}

func (s *Server) handleCreateRecord(c *gin.Context) {
	var req createRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_INPUT", "invalid record: "+err.Error())
		return
	}
	rec, err := s.records.Create(c.Request.Context(), usecase.CreateRecordInput{
		Email:  req.Email,
		Role:   domain.Role(req.Role),
		Status: domain.Status(req.Status),
	})
	if err != nil {
		s.writeInternal(c, err)
		return
	}
	c.JSON(http.StatusCreated, codec.FromDomain(*rec))
}

func (s *Server) handleListRecords(c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_INPUT", "page must be a positive integer")
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_INPUT", "limit must be a positive integer")
		return
	}
	result, err := s.records.List(c.Request.Context(), usecase.Page{Number: page, Size: limit})
	if err != nil {
		s.writeInternal(c, err)
		return
	}
	out := listResponse{
		Records: make([]codec.Record, 0, len(result.Records)),
		Total:   result.Total,
		Page:    result.Page,
		Limit:   result.Size,
	}
	for _, rec := range result.Records {
		out.Records = append(out.Records, codec.FromDomain(rec))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetRecord(c *gin.Context) {
	id := c.Param("id")
	if wantsProtobuf(c) {
		payload, err := s.records.ExportRecord(c.Request.Context(), id)
		if err != nil {
			s.writeInternal(c, err)
			return
		}
		s.writeProtobuf(c, payload)
		return
	}
	rec, err := s.records.Get(c.Request.Context(), id)
	if err != nil {
		s.writeInternal(c, err)
		return
	}
	c.JSON(http.StatusOK, codec.FromDomain(*rec))
}

func (s *Server) handleUpdateRecord(c *gin.Context) {
	var req updateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_INPUT", "invalid record: "+err.Error())
		return
	}
	in := usecase.UpdateRecordInput{Email: req.Email}
	if req.Role != nil {
		role := domain.Role(*req.Role)
		in.Role = &role
	}
	if req.Status != nil {
		status := domain.Status(*req.Status)
		in.Status = &status
	}
	rec, err := s.records.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		s.writeInternal(c, err)
		return
	}
	c.JSON(http.StatusOK, codec.FromDomain(*rec))
}

func (s *Server) handleDeleteRecord(c *gin.Context) {
	if err := s.records.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.writeInternal(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleVerifyRecord(c *gin.Context) {
	result, err := s.records.VerifyRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeInternal(c, err)
		return
	}
	c.JSON(http.StatusOK, verifyResponse{VerificationResult: result, Valid: result.Valid()})
}

func (s *Server) handleExport(c *gin.Context) {
	exported, err := s.records.Export(c.Request.Context())
	if err != nil {
		s.writeInternal(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="records.pb"`)
	c.Header(exportCountHeader, strconv.Itoa(exported.Count))
	if exported.Truncated {
		c.Header(exportTruncHeader, "true")
		s.logger.Warn("export truncated", zap.Int("records", exported.Count))
	}
	s.writeProtobuf(c, exported.Payload)
}

func (s *Server) writeProtobuf(c *gin.Context, payload []byte) {
	if s.schema != nil {
		c.Header(schemaHeader, s.schema.Version())
	}
	c.Data(http.StatusOK, contentTypeProtobuf, payload)
}

func wantsProtobuf(c *gin.Context) bool {
	for _, part := range strings.Split(c.GetHeader("Accept"), ",") {
		mediaType := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if strings.EqualFold(mediaType, contentTypeProtobuf) {
			return true
		}
	}
	return false
}

// queryInt returns 0 for an absent parameter.
func queryInt(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return v, nil
}

// writeInternal logs failures that map to a 5xx before writing them.
func (s *Server) writeInternal(c *gin.Context, err error) {
	if status, _ := classifyError(err); status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	writeError(c, err)
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, domain.ErrMalformedInput):
		return http.StatusBadRequest, "MALFORMED_INPUT"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, domain.ErrSchemaViolation):
		return http.StatusInternalServerError, "SCHEMA_VIOLATION"
	case errors.Is(err, domain.ErrKeyUnavailable):
		return http.StatusInternalServerError, "KEY_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func writeError(c *gin.Context, err error) {
	status, code := classifyError(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = "internal error"
	}
	writeErrorCode(c, status, code, message)
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
