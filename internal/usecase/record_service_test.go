package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"recordproof/internal/domain"
	"recordproof/internal/infra/cachemem"
	"recordproof/internal/infra/codec"
	"recordproof/internal/infra/recordmem"
	"recordproof/internal/infra/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCache struct {
	*cachemem.Cache
	gets, hits, puts int
}

func (c *countingCache) Get(ctx context.Context, key string) (*domain.VerificationResult, bool, error) {
	c.gets++
	value, ok, err := c.Cache.Get(ctx, key)
	if ok {
		c.hits++
	}
	return value, ok, err
}

func (c *countingCache) Put(ctx context.Context, key string, value domain.VerificationResult, ttl time.Duration) error {
	c.puts++
	return c.Cache.Put(ctx, key, value, ttl)
}

type serviceFixture struct {
	svc   *RecordService
	store *recordmem.Store
	cache *countingCache
	reg   *schema.Registry
}

func newServiceFixture(t *testing.T, cfg RecordServiceConfig) serviceFixture {
	t.Helper()
	reg := schema.MustLoad()
	clock := &stepClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := recordmem.New()
	cache := &countingCache{Cache: cachemem.New()}
	svc := NewRecordService(store, newTestAuthenticity(t), codec.NewExporter(reg, clock.Now), cache, cfg)
	svc.Now = clock.Now
	ids := 0
	svc.NewID = func() string {
		ids++
		return fmt.Sprintf("id-%03d", ids)
	}
	return serviceFixture{svc: svc, store: store, cache: cache, reg: reg}
}

func TestRecordService_CreateSignsNormalizedEmail(t *testing.T) {
	f := newServiceFixture(t, RecordServiceConfig{})
	ctx := context.Background()

	rec, err := f.svc.Create(ctx, CreateRecordInput{Email: " Alice@Example.COM ", Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "id-001", rec.ID)
	assert.Equal(t, "alice@example.com", rec.Email)
	assert.Equal(t, domain.StatusActive, rec.Status)
	assert.Len(t, rec.EmailHash, 96)
	assert.Len(t, rec.Signature, 512)
	assert.True(t, f.svc.Authenticity.Verify(rec.Email, rec.Signature))

	stored, err := f.store.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, *rec, *stored)
}

func TestRecordService_CreateValidation(t *testing.T) {
	f := newServiceFixture(t, RecordServiceConfig{})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateRecordInput{Email: ""})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	_, err = f.svc.Create(ctx, CreateRecordInput{Email: "a@b.com", Role: "root"})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	_, err = f.svc.Create(ctx, CreateRecordInput{Email: "a@b.com", Status: "gone"})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = f.svc.Create(ctx, CreateRecordInput{Email: "a@b.com"})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, CreateRecordInput{Email: "A@B.com"})
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestRecordService_UpdateReissuesOnlyOnEmailChange(t *testing.T) {
	f := newServiceFixture(t, RecordServiceConfig{})
	ctx := context.Background()
	rec, err := f.svc.Create(ctx, CreateRecordInput{Email: "a@b.com"})
	require.NoError(t, err)

	status := domain.StatusInactive
	sameEmail := "  A@B.COM"
	updated, err := f.svc.Update(ctx, rec.ID, UpdateRecordInput{Email: &sameEmail, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, rec.Signature, updated.Signature)
	assert.Equal(t, domain.StatusInactive, updated.Status)

	newEmail := "c@d.com"
	moved, err := f.svc.Update(ctx, rec.ID, UpdateRecordInput{Email: &newEmail})
	require.NoError(t, err)
	assert.Equal(t, "c@d.com", moved.Email)
	assert.NotEqual(t, rec.EmailHash, moved.EmailHash)
	assert.NotEqual(t, rec.Signature, moved.Signature)
	assert.True(t, f.svc.Authenticity.Verify(moved.Email, moved.Signature))

	other, err := f.svc.Create(ctx, CreateRecordInput{Email: "e@f.com"})
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, other.ID, UpdateRecordInput{Email: &newEmail})
	assert.True(t, errors.Is(err, domain.ErrConflict))

	badRole := domain.Role("owner")
	_, err = f.svc.Update(ctx, other.ID, UpdateRecordInput{Role: &badRole})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = f.svc.Update(ctx, "missing", UpdateRecordInput{})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRecordService_ListPaginates(t *testing.T) {
	f := newServiceFixture(t, RecordServiceConfig{DefaultPageSize: 2, MaxPageSize: 3})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := f.svc.Create(ctx, CreateRecordInput{Email: fmt.Sprintf("u%d@example.com", i)})
		require.NoError(t, err)
	}

	first, err := f.svc.List(ctx, Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 5, first.Total)
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, 2, first.Size)
	require.Len(t, first.Records, 2)
	assert.Equal(t, "id-001", first.Records[0].ID)

	clamped, err := f.svc.List(ctx, Page{Number: 2, Size: 50})
	require.NoError(t, err)
	assert.Equal(t, 3, clamped.Size)
	require.Len(t, clamped.Records, 2)
	assert.Equal(t, "id-004", clamped.Records[0].ID)
}

func TestRecordService_VerifyRecord(t *testing.T) {
	f := newServiceFixture(t, RecordServiceConfig{})
	ctx := context.Background()
	rec, err := f.svc.Create(ctx, CreateRecordInput{Email: "a@b.com"})
	require.NoError(t, err)

	result, err := f.svc.VerifyRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, result.Valid())
	assert.Equal(t, 1, f.cache.puts)

	_, err = f.svc.VerifyRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)

	tampered := *rec
	tampered.Email = "mallory@b.com"
	require.NoError(t, f.store.Update(ctx, tampered))
	result, err = f.svc.VerifyRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, result.HashMatches)
	assert.False(t, result.SignatureValid)
	assert.False(t, result.Valid())

	garbled := *rec
	garbled.Signature = "not-hex"
	require.NoError(t, f.store.Update(ctx, garbled))
	result, err = f.svc.VerifyRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, result.HashMatches)
	assert.False(t, result.SignatureValid)

	_, err = f.svc.VerifyRecord(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRecordService_ExportDecodes(t *testing.T) {
	f := newServiceFixture(t, RecordServiceConfig{ExportMaxRecords: 3})
	ctx := context.Background()

	empty, err := f.svc.Export(ctx)
	require.NoError(t, err)
	assert.False(t, empty.Truncated)
	decodedEmpty, err := codec.NewCollectionCodec(f.reg, nil).Decode(empty.Payload)
	require.NoError(t, err)
	assert.Equal(t, 0, decodedEmpty.Metadata.TotalCount)
	assert.Empty(t, decodedEmpty.Records)

	var created []*domain.Record
	for i := 0; i < 4; i++ {
		rec, err := f.svc.Create(ctx, CreateRecordInput{Email: fmt.Sprintf("u%d@example.com", i)})
		require.NoError(t, err)
		created = append(created, rec)
	}

	exported, err := f.svc.Export(ctx)
	require.NoError(t, err)
	assert.True(t, exported.Truncated)
	assert.Equal(t, 3, exported.Count)
	decoded, err := codec.NewCollectionCodec(f.reg, nil).Decode(exported.Payload)
	require.NoError(t, err)
	assert.Equal(t, 3, decoded.Metadata.TotalCount)
	for i, wire := range decoded.Records {
		assert.Equal(t, codec.FromDomain(*created[i]), wire)
	}

	single, err := f.svc.ExportRecord(ctx, created[1].ID)
	require.NoError(t, err)
	wire, err := codec.NewRecordCodec(f.reg).Decode(single)
	require.NoError(t, err)
	back, err := wire.ToDomain()
	require.NoError(t, err)
	assert.Equal(t, *created[1], back)

	_, err = f.svc.ExportRecord(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRecordService_Delete(t *testing.T) {
	f := newServiceFixture(t, RecordServiceConfig{})
	ctx := context.Background()
	rec, err := f.svc.Create(ctx, CreateRecordInput{Email: "a@b.com"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, rec.ID))
	_, err = f.svc.Get(ctx, rec.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.True(t, errors.Is(f.svc.Delete(ctx, rec.ID), domain.ErrNotFound))
}
