package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"recordproof/internal/domain"

	"github.com/google/uuid"
)

const (
	defaultPageSize         = 20
	defaultMaxPageSize      = 100
	defaultExportMaxRecords = 10000
	defaultVerifyCacheTTL   = 5 * time.Minute
)

type CreateRecordInput struct {
	Email  string
	Role   domain.Role
	Status domain.Status
}

// UpdateRecordInput carries the fields to change; nil leaves a field as is.
type UpdateRecordInput struct {
	Email  *string
	Role   *domain.Role
	Status *domain.Status
}

type Page struct {
	Number int
	Size   int
}

type ListResult struct {
	Records []domain.Record
	Total   int64
	Page    int
	Size    int
}

type RecordServiceConfig struct {
	DefaultPageSize  int
	MaxPageSize      int
	ExportMaxRecords int
	VerifyCacheTTL   time.Duration
}

// RecordService is the CRUD layer around the authenticity pipeline and the
// export codecs.
type RecordService struct {
	Records      RecordRepository
	Authenticity *Authenticity
	Exporter     RecordExporter
	Cache        VerificationCache

	Now   func() time.Time
	NewID func() string

	cfg RecordServiceConfig
}

func NewRecordService(records RecordRepository, auth *Authenticity, exporter RecordExporter, cache VerificationCache, cfg RecordServiceConfig) *RecordService {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = defaultPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = defaultMaxPageSize
	}
	if cfg.DefaultPageSize > cfg.MaxPageSize {
		cfg.DefaultPageSize = cfg.MaxPageSize
	}
	if cfg.ExportMaxRecords <= 0 {
		cfg.ExportMaxRecords = defaultExportMaxRecords
	}
	if cfg.VerifyCacheTTL <= 0 {
		cfg.VerifyCacheTTL = defaultVerifyCacheTTL
	}
	return &RecordService{
		Records:      records,
		Authenticity: auth,
		Exporter:     exporter,
		Cache:        cache,
		Now:          time.Now,
		NewID:        uuid.NewString,
		cfg:          cfg,
	}
}

func (s *RecordService) Create(ctx context.Context, in CreateRecordInput) (*domain.Record, error) {
	email := domain.NormalizeEmail(in.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	status := in.Status
	if status == "" {
		status = domain.StatusActive
	}
	if err := validateRoleStatus(role, status); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}

	digest, sig, err := s.Authenticity.Process(email)
	if err != nil {
		return nil, err
	}
	record := domain.Record{
		ID:        s.NewID(),
		Email:     email,
		Role:      role,
		Status:    status,
		CreatedAt: s.Now().UTC(),
		EmailHash: digest.Hex(),
		Signature: sig.Hex(),
	}
	if err := s.Records.Create(ctx, record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *RecordService) Get(ctx context.Context, id string) (*domain.Record, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrNotFound
	}
	return s.Records.GetByID(ctx, id)
}

func (s *RecordService) List(ctx context.Context, page Page) (ListResult, error) {
	number := page.Number
	if number < 1 {
		number = 1
	}
	size := page.Size
	if size <= 0 {
		size = s.cfg.DefaultPageSize
	}
	if size > s.cfg.MaxPageSize {
		size = s.cfg.MaxPageSize
	}
	records, total, err := s.Records.List(ctx, (number-1)*size, size)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Records: records, Total: total, Page: number, Size: size}, nil
}

// Update applies in to the record. The digest and signature are reissued
// only when the normalized email changes.
func (s *RecordService) Update(ctx context.Context, id string, in UpdateRecordInput) (*domain.Record, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := *record
	if in.Role != nil {
		updated.Role = *in.Role
	}
	if in.Status != nil {
		updated.Status = *in.Status
	}
	if err := validateRoleStatus(updated.Role, updated.Status); err != nil {
		return nil, err
	}
	if in.Email != nil {
		email := domain.NormalizeEmail(*in.Email)
		if email == "" {
			return nil, fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
		}
		if email != record.Email {
			if err := s.ensureEmailFree(ctx, email, record.ID); err != nil {
				return nil, err
			}
			digest, sig, err := s.Authenticity.Process(email)
			if err != nil {
				return nil, err
			}
			updated.Email = email
			updated.EmailHash = digest.Hex()
			updated.Signature = sig.Hex()
		}
	}
	if err := s.Records.Update(ctx, updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *RecordService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.Records.Delete(ctx, id)
}

// VerifyRecord recomputes the digest of the stored email and checks the
// stored signature. A failed check is reported in the result, not as an
// error.
func (s *RecordService) VerifyRecord(ctx context.Context, id string) (domain.VerificationResult, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return domain.VerificationResult{}, err
	}
	key := verificationCacheKey(*record)
	if s.Cache != nil {
		if cached, ok, err := s.Cache.Get(ctx, key); err == nil && ok && cached != nil {
			return *cached, nil
		}
	}

	result := domain.VerificationResult{
		RecordID:  record.ID,
		CheckedAt: s.Now().UTC(),
	}
	if digest, err := s.Authenticity.Hash(record.Email); err == nil {
		result.HashMatches = strings.EqualFold(digest.Hex(), record.EmailHash)
	}
	result.SignatureValid = s.Authenticity.Verify(record.Email, record.Signature)

	if s.Cache != nil {
		_ = s.Cache.Put(ctx, key, result, s.cfg.VerifyCacheTTL)
	}
	return result, nil
}

func (s *RecordService) ExportRecord(ctx context.Context, id string) ([]byte, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Exporter.EncodeRecord(*record)
}

// ExportResult is an encoded collection. Truncated reports that the store
// held more records than ExportMaxRecords let into Payload.
type ExportResult struct {
	Payload   []byte
	Count     int
	Truncated bool
}

// Export encodes records, oldest first, as one collection of at most
// ExportMaxRecords entries.
func (s *RecordService) Export(ctx context.Context) (ExportResult, error) {
	records, err := s.Records.ListAll(ctx, s.cfg.ExportMaxRecords+1)
	if err != nil {
		return ExportResult{}, err
	}
	truncated := len(records) > s.cfg.ExportMaxRecords
	if truncated {
		records = records[:s.cfg.ExportMaxRecords]
	}
	payload, err := s.Exporter.EncodeCollection(records)
	if err != nil {
		return ExportResult{}, err
	}
	return ExportResult{Payload: payload, Count: len(records), Truncated: truncated}, nil
}

func (s *RecordService) ensureEmailFree(ctx context.Context, email, selfID string) error {
	existing, err := s.Records.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if existing != nil && existing.ID != selfID {
		return fmt.Errorf("%w: email already registered", domain.ErrConflict)
	}
	return nil
}

func validateRoleStatus(role domain.Role, status domain.Status) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, role)
	}
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}
	return nil
}

func verificationCacheKey(record domain.Record) string {
	sum := sha256.Sum256([]byte(record.Email + "|" + record.EmailHash + "|" + record.Signature))
	return "verify:" + record.ID + ":" + hex.EncodeToString(sum[:8])
}
