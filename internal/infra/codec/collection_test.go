package codec

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"recordproof/internal/domain"
	"recordproof/internal/infra/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func sampleRecords(n int) []Record {
	out := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		r := sampleRecord()
		r.Identifier = fmt.Sprintf("u%d", i)
		r.Email = fmt.Sprintf("user%d@example.com", i)
		out = append(out, r)
	}
	return out
}

func TestCollectionCodec_TotalCountMatchesLength(t *testing.T) {
	c := NewCollectionCodec(schema.MustLoad(), nil)
	for _, n := range []int{0, 1, 3, 25} {
		encoded, err := c.Encode(sampleRecords(n))
		require.NoError(t, err)
		decoded, err := c.Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, n, decoded.Metadata.TotalCount)
		assert.Len(t, decoded.Records, n)
	}
}

func TestCollectionCodec_EmptyCollection(t *testing.T) {
	c := NewCollectionCodec(schema.MustLoad(), nil)
	encoded, err := c.Encode(nil)
	require.NoError(t, err)
	decoded, err := c.Decode(encoded)
	require.NoError(t, err)
	assert.Empty(t, decoded.Records)
	assert.Equal(t, 0, decoded.Metadata.TotalCount)
}

func TestCollectionCodec_Metadata(t *testing.T) {
	ts := time.Date(2025, 3, 4, 5, 6, 7, 890000000, time.UTC)
	c := NewCollectionCodec(schema.MustLoad(), fixedClock(ts))
	encoded, err := c.Encode(sampleRecords(2))
	require.NoError(t, err)
	decoded, err := c.Decode(encoded)
	require.NoError(t, err)

	assert.Equal(t, Metadata{
		TotalCount:    2,
		ExportedAt:    "2025-03-04T05:06:07.890Z",
		SignAlgorithm: "RSA-2048",
		HashAlgorithm: "SHA-384",
	}, decoded.Metadata)
	assert.Equal(t, sampleRecords(2), decoded.Records)
}

func TestCollectionCodec_ReencodeReproducesBytes(t *testing.T) {
	reg := schema.MustLoad()
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCollectionCodec(reg, fixedClock(ts))

	original, err := c.Encode(sampleRecords(4))
	require.NoError(t, err)
	decoded, err := c.Decode(original)
	require.NoError(t, err)
	again, err := c.Encode(decoded.Records)
	require.NoError(t, err)
	assert.Equal(t, original, again)

	later := NewCollectionCodec(reg, fixedClock(ts.Add(time.Hour)))
	reencoded, err := later.Encode(decoded.Records)
	require.NoError(t, err)
	assert.NotEqual(t, original, reencoded)
	redecoded, err := later.Decode(reencoded)
	require.NoError(t, err)
	assert.Equal(t, decoded.Records, redecoded.Records)
	assert.Equal(t, decoded.Metadata.TotalCount, redecoded.Metadata.TotalCount)
}

func TestCollectionCodec_PreservesOrder(t *testing.T) {
	c := NewCollectionCodec(schema.MustLoad(), nil)
	records := sampleRecords(5)
	records[0], records[4] = records[4], records[0]
	encoded, err := c.Encode(records)
	require.NoError(t, err)
	decoded, err := c.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, records, decoded.Records)
}

func TestCollectionCodec_DecodeMalformed(t *testing.T) {
	c := NewCollectionCodec(schema.MustLoad(), nil)
	for name, raw := range map[string][]byte{
		"garbage":       {0xff, 0xff, 0xff},
		"unknown field": {0x98, 0x06, 0x01},
		"bad record":    {0x0a, 0x03, 0x98, 0x06, 0x01, 0x10, 0x01},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := c.Decode(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrMalformedInput), "got %v", err)
		})
	}
}

func TestCollectionCodec_DecodeRejectsCountMismatch(t *testing.T) {
	reg := schema.MustLoad()
	msg := reg.Collection().New()
	msg.Set(msg.Descriptor().Fields().ByName(schema.FieldTotalCount), protoreflect.ValueOfInt32(3))
	raw, err := proto.Marshal(msg.Interface())
	require.NoError(t, err)

	_, err = NewCollectionCodec(reg, nil).Decode(raw)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMalformedInput))
}

func TestCollectionCodec_EncodeRejectsInvalidRecord(t *testing.T) {
	c := NewCollectionCodec(schema.MustLoad(), nil)
	records := sampleRecords(2)
	records[1].Role = string([]byte{0xff})
	_, err := c.Encode(records)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSchemaViolation))
}
