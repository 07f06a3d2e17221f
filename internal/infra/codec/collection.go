package codec

import (
	"fmt"
	"math"
	"time"

	"recordproof/internal/domain"
	"recordproof/internal/infra/schema"

	"google.golang.org/protobuf/reflect/protoreflect"
)

type Metadata struct {
	TotalCount    int    `json:"totalCount"`
	ExportedAt    string `json:"exportedAt"`
	SignAlgorithm string `json:"signAlgorithm"`
	HashAlgorithm string `json:"hashAlgorithm"`
}

type Collection struct {
	Records  []Record `json:"records"`
	Metadata Metadata `json:"metadata"`
}

type CollectionCodec struct {
	reg *schema.Registry
	now func() time.Time
}

func NewCollectionCodec(reg *schema.Registry, now func() time.Time) *CollectionCodec {
	if now == nil {
		now = time.Now
	}
	return &CollectionCodec{reg: reg, now: now}
}

// Encode writes records in order together with freshly generated export
// metadata. An empty slice yields a valid collection with totalCount 0.
func (c *CollectionCodec) Encode(records []Record) ([]byte, error) {
	if len(records) > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %d records exceed totalCount range", domain.ErrSchemaViolation, len(records))
	}
	msg := c.reg.Collection().New()
	fields := msg.Descriptor().Fields()

	recordsFD, err := collectionField(fields, schema.FieldRecords)
	if err != nil {
		return nil, err
	}
	list := msg.Mutable(recordsFD).List()
	for i, r := range records {
		elem := list.NewElement()
		if err := populateRecord(elem.Message(), r); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		list.Append(elem)
	}

	meta := map[string]protoreflect.Value{
		schema.FieldTotalCount:    protoreflect.ValueOfInt32(int32(len(records))),
		schema.FieldExportedAt:    protoreflect.ValueOfString(FormatTime(c.now())),
		schema.FieldSignAlgorithm: protoreflect.ValueOfString(domain.SignAlgorithm),
		schema.FieldHashAlgorithm: protoreflect.ValueOfString(domain.HashAlgorithm),
	}
	for name, value := range meta {
		fd, err := collectionField(fields, name)
		if err != nil {
			return nil, err
		}
		msg.Set(fd, value)
	}

	out, err := marshalOptions.Marshal(msg.Interface())
	if err != nil {
		return nil, fmt.Errorf("%w: encode collection: %v", domain.ErrSchemaViolation, err)
	}
	return out, nil
}

// Decode parses a collection and rejects one whose totalCount disagrees
// with the number of records it carries.
func (c *CollectionCodec) Decode(b []byte) (Collection, error) {
	msg := c.reg.Collection().New()
	if err := unmarshalOptions.Unmarshal(b, msg.Interface()); err != nil {
		return Collection{}, fmt.Errorf("%w: decode collection: %v", domain.ErrMalformedInput, err)
	}
	if len(msg.GetUnknown()) > 0 {
		return Collection{}, fmt.Errorf("%w: collection carries fields outside the schema", domain.ErrMalformedInput)
	}
	fields := msg.Descriptor().Fields()
	get := func(name string) protoreflect.Value {
		return msg.Get(fields.ByName(protoreflect.Name(name)))
	}

	list := get(schema.FieldRecords).List()
	records := make([]Record, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		r, err := extractRecord(list.Get(i).Message())
		if err != nil {
			return Collection{}, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, r)
	}

	meta := Metadata{
		TotalCount:    int(get(schema.FieldTotalCount).Int()),
		ExportedAt:    get(schema.FieldExportedAt).String(),
		SignAlgorithm: get(schema.FieldSignAlgorithm).String(),
		HashAlgorithm: get(schema.FieldHashAlgorithm).String(),
	}
	if meta.TotalCount != len(records) {
		return Collection{}, fmt.Errorf("%w: totalCount %d but %d records", domain.ErrMalformedInput, meta.TotalCount, len(records))
	}
	return Collection{Records: records, Metadata: meta}, nil
}

func collectionField(fields protoreflect.FieldDescriptors, name string) (protoreflect.FieldDescriptor, error) {
	fd := fields.ByName(protoreflect.Name(name))
	if fd == nil {
		return nil, fmt.Errorf("%w: %s has no field %s", domain.ErrSchemaViolation, schema.CollectionMessage, name)
	}
	return fd, nil
}
