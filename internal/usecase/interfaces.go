package usecase

import (
	"context"
	"time"

	"recordproof/internal/domain"
)

type RecordRepository interface {
	Create(ctx context.Context, record domain.Record) error
	GetByID(ctx context.Context, id string) (*domain.Record, error)
	GetByEmail(ctx context.Context, email string) (*domain.Record, error)
	List(ctx context.Context, offset, limit int) ([]domain.Record, int64, error)
	ListAll(ctx context.Context, limit int) ([]domain.Record, error)
	Update(ctx context.Context, record domain.Record) error
	Delete(ctx context.Context, id string) error
}

type DigestSigner interface {
	Sign(digest domain.Digest) (domain.Signature, error)
	Verify(digest domain.Digest, sig domain.Signature) bool
}

type RecordExporter interface {
	EncodeRecord(record domain.Record) ([]byte, error)
	EncodeCollection(records []domain.Record) ([]byte, error)
}

type VerificationCache interface {
	Get(ctx context.Context, key string) (*domain.VerificationResult, bool, error)
	Put(ctx context.Context, key string, value domain.VerificationResult, ttl time.Duration) error
}
