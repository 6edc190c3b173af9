package proto

import (
	"fmt"

	"github.com/dmitrijs2005/commissionsync/internal/remote"
	"google.golang.org/protobuf/types/known/structpb"
)

// Message field names.
const (
	fieldCollection = "collection"
	fieldDocID      = "docId"
	fieldFilter     = "filter"
	fieldFilterName = "field"
	fieldValue      = "value"
	fieldFields     = "fields"
	fieldMerge      = "merge"
	fieldDocuments  = "documents"
	fieldData       = "data"
	fieldID         = "id"
)

// Empty is the response of calls that return nothing.
func Empty() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{}}
}

func encodeValue(v any) (any, error) {
	m, err := remote.EncodeFields(map[string]any{"v": v})
	if err != nil {
		return nil, err
	}
	return m["v"], nil
}

func decodeValue(v any) any {
	return remote.DecodeFields(map[string]any{"v": v})["v"]
}

// NewQueryRequest is used by Query and Subscribe.
func NewQueryRequest(collection string, filter remote.Filter) (*structpb.Struct, error) {
	m := map[string]any{fieldCollection: collection}
	if filter.Field != "" {
		v, err := encodeValue(filter.Value)
		if err != nil {
			return nil, err
		}
		m[fieldFilter] = map[string]any{fieldFilterName: filter.Field, fieldValue: v}
	}
	return structpb.NewStruct(m)
}

func ParseQueryRequest(s *structpb.Struct) (string, remote.Filter, error) {
	m := s.AsMap()
	collection, err := requiredString(m, fieldCollection)
	if err != nil {
		return "", remote.Filter{}, err
	}
	var filter remote.Filter
	if raw, ok := m[fieldFilter].(map[string]any); ok {
		name, _ := raw[fieldFilterName].(string)
		filter = remote.Where(name, decodeValue(raw[fieldValue]))
	}
	return collection, filter, nil
}

func NewSetFieldsRequest(collection, docID string, fields map[string]any, merge bool) (*structpb.Struct, error) {
	enc, err := remote.EncodeFields(fields)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{
		fieldCollection: collection,
		fieldDocID:      docID,
		fieldFields:     enc,
		fieldMerge:      merge,
	})
}

// SetFieldsRequest is the decoded form of a SetFields message.
type SetFieldsRequest struct {
	Collection string
	DocID      string
	Fields     map[string]any
	Merge      bool
}

func ParseSetFieldsRequest(s *structpb.Struct) (SetFieldsRequest, error) {
	m := s.AsMap()
	var req SetFieldsRequest
	var err error
	if req.Collection, err = requiredString(m, fieldCollection); err != nil {
		return req, err
	}
	if req.DocID, err = requiredString(m, fieldDocID); err != nil {
		return req, err
	}
	fields, _ := m[fieldFields].(map[string]any)
	req.Fields = remote.DecodeFields(fields)
	req.Merge, _ = m[fieldMerge].(bool)
	return req, nil
}

func NewDeleteRequest(collection, docID string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		fieldCollection: collection,
		fieldDocID:      docID,
	})
}

func ParseDeleteRequest(s *structpb.Struct) (collection, docID string, err error) {
	m := s.AsMap()
	if collection, err = requiredString(m, fieldCollection); err != nil {
		return "", "", err
	}
	if docID, err = requiredString(m, fieldDocID); err != nil {
		return "", "", err
	}
	return collection, docID, nil
}

func NewDocuments(docs []remote.Document) (*structpb.Struct, error) {
	list := make([]any, 0, len(docs))
	for _, d := range docs {
		enc, err := remote.EncodeFields(d.Data)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", d.ID, err)
		}
		list = append(list, map[string]any{fieldID: d.ID, fieldData: enc})
	}
	return structpb.NewStruct(map[string]any{fieldDocuments: list})
}

func ParseDocuments(s *structpb.Struct) ([]remote.Document, error) {
	list, _ := s.AsMap()[fieldDocuments].([]any)
	out := make([]remote.Document, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("document %d: not an object", i)
		}
		id, err := requiredString(m, fieldID)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		data, _ := m[fieldData].(map[string]any)
		out = append(out, remote.Document{ID: id, Data: remote.DecodeFields(data)})
	}
	return out, nil
}

func requiredString(m map[string]any, key string) (string, error) {
	v, _ := m[key].(string)
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", remote.ErrInvalidArgument, key)
	}
	return v, nil
}
