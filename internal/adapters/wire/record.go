// Package wire encodes store records for engines without a native document model.
package wire

import (
	"encoding/json"

	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/zerr"
)

type document struct {
	Version int64          `json:"v"`
	Payload domain.Payload `json:"p,omitempty"`
}

// EncodePayload serializes a payload as JSON.
func EncodePayload(p domain.Payload) ([]byte, error) {
	if p == nil {
		p = domain.Payload{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, zerr.Wrap(err, "encode payload")
	}
	return b, nil
}

// DecodePayload parses a payload produced by EncodePayload.
func DecodePayload(b []byte) (domain.Payload, error) {
	p := domain.Payload{}
	if len(b) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, zerr.Wrap(err, "decode payload")
	}
	return p, nil
}

// EncodeRecord serializes the version and payload of rec.
func EncodeRecord(rec domain.StoreRecord) ([]byte, error) {
	b, err := json.Marshal(document{Version: int64(rec.VersionSeen), Payload: rec.Payload})
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "encode record"), "key", rec.Key.String())
	}
	return b, nil
}

// DecodeRecord rebuilds the record of key held by role from b.
func DecodeRecord(key domain.Key, role domain.StoreRole, b []byte) (domain.StoreRecord, error) {
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return domain.StoreRecord{}, zerr.With(zerr.Wrap(err, "decode record"), "key", key.String())
	}
	if doc.Payload == nil {
		doc.Payload = domain.Payload{}
	}
	return domain.StoreRecord{
		Key:         key,
		Role:        role,
		VersionSeen: domain.Version(doc.Version),
		Payload:     doc.Payload,
	}, nil
}

// RecordVersion returns the version stored in an encoded record.
func RecordVersion(b []byte) (domain.Version, error) {
	var doc struct {
		Version int64 `json:"v"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return 0, zerr.Wrap(err, "decode record version")
	}
	return domain.Version(doc.Version), nil
}
