// Package codec maps records onto the wire schema and encodes them as
// protobuf, one at a time or as an export collection.
package codec

import (
	"fmt"
	"time"
	"unicode/utf8"

	"recordproof/internal/domain"
	"recordproof/internal/infra/schema"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// TimeLayout is the ISO-8601 form used for createdAt and exportedAt.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	marshalOptions   = proto.MarshalOptions{Deterministic: true}
	unmarshalOptions = proto.UnmarshalOptions{}
)

// Record is the wire view of one entity: every field is a string and an
// absent value is the empty string.
type Record struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Status     string `json:"status"`
	CreatedAt  string `json:"createdAt"`
	EmailHash  string `json:"emailHash"`
	Signature  string `json:"signature"`
}

// FromDomain is the single mapping from the persisted shape to the wire shape.
func FromDomain(r domain.Record) Record {
	return Record{
		Identifier: r.ID,
		Email:      r.Email,
		Role:       string(r.Role),
		Status:     string(r.Status),
		CreatedAt:  FormatTime(r.CreatedAt),
		EmailHash:  r.EmailHash,
		Signature:  r.Signature,
	}
}

// ToDomain reverses FromDomain. An empty createdAt maps to the zero time.
func (r Record) ToDomain() (domain.Record, error) {
	var createdAt time.Time
	if r.CreatedAt != "" {
		parsed, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
		if err != nil {
			return domain.Record{}, fmt.Errorf("%w: createdAt: %v", domain.ErrMalformedInput, err)
		}
		createdAt = parsed.UTC()
	}
	return domain.Record{
		ID:        r.Identifier,
		Email:     r.Email,
		Role:      domain.Role(r.Role),
		Status:    domain.Status(r.Status),
		CreatedAt: createdAt,
		EmailHash: r.EmailHash,
		Signature: r.Signature,
	}, nil
}

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// values returns the record's fields keyed by wire name.
func (r Record) values() map[string]string {
	return map[string]string{
		schema.FieldIdentifier: r.Identifier,
		schema.FieldEmail:      r.Email,
		schema.FieldRole:       r.Role,
		schema.FieldStatus:     r.Status,
		schema.FieldCreatedAt:  r.CreatedAt,
		schema.FieldEmailHash:  r.EmailHash,
		schema.FieldSignature:  r.Signature,
	}
}

func recordFromValues(get func(name string) string) Record {
	return Record{
		Identifier: get(schema.FieldIdentifier),
		Email:      get(schema.FieldEmail),
		Role:       get(schema.FieldRole),
		Status:     get(schema.FieldStatus),
		CreatedAt:  get(schema.FieldCreatedAt),
		EmailHash:  get(schema.FieldEmailHash),
		Signature:  get(schema.FieldSignature),
	}
}

type RecordCodec struct {
	reg *schema.Registry
}

func NewRecordCodec(reg *schema.Registry) *RecordCodec {
	return &RecordCodec{reg: reg}
}

func (c *RecordCodec) Encode(r Record) ([]byte, error) {
	msg := c.reg.Record().New()
	if err := populateRecord(msg, r); err != nil {
		return nil, err
	}
	out, err := marshalOptions.Marshal(msg.Interface())
	if err != nil {
		return nil, fmt.Errorf("%w: encode record: %v", domain.ErrSchemaViolation, err)
	}
	return out, nil
}

func (c *RecordCodec) Decode(b []byte) (Record, error) {
	msg := c.reg.Record().New()
	if err := unmarshalOptions.Unmarshal(b, msg.Interface()); err != nil {
		return Record{}, fmt.Errorf("%w: decode record: %v", domain.ErrMalformedInput, err)
	}
	return extractRecord(msg)
}

// populateRecord writes r into msg, checking every mapped field against the
// message descriptor.
func populateRecord(msg protoreflect.Message, r Record) error {
	fields := msg.Descriptor().Fields()
	values := r.values()
	for _, name := range schema.RecordFields {
		value := values[name]
		fd := fields.ByName(protoreflect.Name(name))
		if fd == nil {
			return fmt.Errorf("%w: %s has no field %s", domain.ErrSchemaViolation, msg.Descriptor().FullName(), name)
		}
		if fd.Kind() != protoreflect.StringKind || fd.IsList() {
			return fmt.Errorf("%w: %s.%s is not a string field", domain.ErrSchemaViolation, msg.Descriptor().FullName(), name)
		}
		if !utf8.ValidString(value) {
			return fmt.Errorf("%w: %s is not valid UTF-8", domain.ErrSchemaViolation, name)
		}
		msg.Set(fd, protoreflect.ValueOfString(value))
	}
	return nil
}

func extractRecord(msg protoreflect.Message) (Record, error) {
	if len(msg.GetUnknown()) > 0 {
		return Record{}, fmt.Errorf("%w: record carries fields outside the schema", domain.ErrMalformedInput)
	}
	fields := msg.Descriptor().Fields()
	return recordFromValues(func(name string) string {
		fd := fields.ByName(protoreflect.Name(name))
		if fd == nil {
			return ""
		}
		return msg.Get(fd).String()
	}), nil
}
