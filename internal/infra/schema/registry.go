// Package schema loads the wire schema shared by the record and collection
// codecs. The schema is a text-format FileDescriptorProto compiled into the
// binary; handles returned by a Registry are immutable.
package schema

import (
	_ "embed"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

//go:embed record.txtpb
var defaultSchema []byte

const (
	RecordMessage     protoreflect.FullName = "recordproof.v1.Record"
	CollectionMessage protoreflect.FullName = "recordproof.v1.RecordCollection"
)

// Record fields.
const (
	FieldIdentifier = "identifier"
	FieldEmail      = "email"
	FieldRole       = "role"
	FieldStatus     = "status"
	FieldCreatedAt  = "createdAt"
	FieldEmailHash  = "emailHash"
	FieldSignature  = "signature"
)

// RecordCollection fields.
const (
	FieldRecords       = "records"
	FieldTotalCount    = "totalCount"
	FieldExportedAt    = "exportedAt"
	FieldSignAlgorithm = "signAlgorithm"
	FieldHashAlgorithm = "hashAlgorithm"
)

// RecordFields lists the Record fields in wire order.
var RecordFields = []string{
	FieldIdentifier,
	FieldEmail,
	FieldRole,
	FieldStatus,
	FieldCreatedAt,
	FieldEmailHash,
	FieldSignature,
}

type fieldShape struct {
	name     string
	kind     protoreflect.Kind
	repeated bool
}

var (
	recordShape = func() []fieldShape {
		shape := make([]fieldShape, 0, len(RecordFields))
		for _, name := range RecordFields {
			shape = append(shape, fieldShape{name: name, kind: protoreflect.StringKind})
		}
		return shape
	}()
	collectionShape = []fieldShape{
		{name: FieldRecords, kind: protoreflect.MessageKind, repeated: true},
		{name: FieldTotalCount, kind: protoreflect.Int32Kind},
		{name: FieldExportedAt, kind: protoreflect.StringKind},
		{name: FieldSignAlgorithm, kind: protoreflect.StringKind},
		{name: FieldHashAlgorithm, kind: protoreflect.StringKind},
	}
)

type Registry struct {
	file       protoreflect.FileDescriptor
	record     protoreflect.MessageType
	collection protoreflect.MessageType
}

// Load reads the embedded schema.
func Load() (*Registry, error) {
	return LoadFrom(defaultSchema)
}

// LoadFrom parses a text-format FileDescriptorProto and checks that it
// declares the Record and RecordCollection shapes the codecs rely on.
func LoadFrom(raw []byte) (*Registry, error) {
	if len(raw) == 0 {
		return nil, errors.New("schema: empty description")
	}
	var fdp descriptorpb.FileDescriptorProto
	if err := prototext.Unmarshal(raw, &fdp); err != nil {
		return nil, fmt.Errorf("schema: parse description: %w", err)
	}
	file, err := protodesc.NewFile(&fdp, nil)
	if err != nil {
		return nil, fmt.Errorf("schema: build descriptor: %w", err)
	}

	recordDesc, err := lookupMessage(file, RecordMessage)
	if err != nil {
		return nil, err
	}
	collectionDesc, err := lookupMessage(file, CollectionMessage)
	if err != nil {
		return nil, err
	}
	if err := checkShape(recordDesc, recordShape); err != nil {
		return nil, err
	}
	if err := checkShape(collectionDesc, collectionShape); err != nil {
		return nil, err
	}
	if got := collectionDesc.Fields().ByName(FieldRecords).Message().FullName(); got != RecordMessage {
		return nil, fmt.Errorf("schema: %s.%s holds %s, want %s", CollectionMessage, FieldRecords, got, RecordMessage)
	}

	return &Registry{
		file:       file,
		record:     dynamicpb.NewMessageType(recordDesc),
		collection: dynamicpb.NewMessageType(collectionDesc),
	}, nil
}

// MustLoad is Load for process startup and tests.
func MustLoad() *Registry {
	reg, err := Load()
	if err != nil {
		panic(err)
	}
	return reg
}

func (r *Registry) Record() protoreflect.MessageType {
	return r.record
}

func (r *Registry) Collection() protoreflect.MessageType {
	return r.collection
}

// Version is the proto package of the loaded schema, e.g. "recordproof.v1".
func (r *Registry) Version() string {
	return string(r.file.Package())
}

func lookupMessage(file protoreflect.FileDescriptor, name protoreflect.FullName) (protoreflect.MessageDescriptor, error) {
	md := file.Messages().ByName(name.Name())
	if md == nil || md.FullName() != name {
		return nil, fmt.Errorf("schema: message %s not declared", name)
	}
	return md, nil
}

func checkShape(md protoreflect.MessageDescriptor, shape []fieldShape) error {
	fields := md.Fields()
	if fields.Len() != len(shape) {
		return fmt.Errorf("schema: %s declares %d fields, want %d", md.FullName(), fields.Len(), len(shape))
	}
	for _, want := range shape {
		fd := fields.ByName(protoreflect.Name(want.name))
		if fd == nil {
			return fmt.Errorf("schema: %s is missing field %s", md.FullName(), want.name)
		}
		if fd.Kind() != want.kind || fd.IsList() != want.repeated {
			return fmt.Errorf("schema: %s.%s has kind %s (list=%t), want %s (list=%t)",
				md.FullName(), want.name, fd.Kind(), fd.IsList(), want.kind, want.repeated)
		}
	}
	return nil
}
