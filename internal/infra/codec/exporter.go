package codec

import (
	"time"

	"recordproof/internal/domain"
	"recordproof/internal/infra/schema"
)

// Exporter encodes persisted records through FromDomain.
type Exporter struct {
	records     *RecordCodec
	collections *CollectionCodec
}

func NewExporter(reg *schema.Registry, now func() time.Time) *Exporter {
	return &Exporter{
		records:     NewRecordCodec(reg),
		collections: NewCollectionCodec(reg, now),
	}
}

func (e *Exporter) EncodeRecord(r domain.Record) ([]byte, error) {
	return e.records.Encode(FromDomain(r))
}

func (e *Exporter) EncodeCollection(records []domain.Record) ([]byte, error) {
	wire := make([]Record, 0, len(records))
	for _, r := range records {
		wire = append(wire, FromDomain(r))
	}
	return e.collections.Encode(wire)
}
