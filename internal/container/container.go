// Package container implements the legacy two-segment .mslay binary format:
// a 4-byte little-endian metadata length, the UTF-8 JSON metadata itself,
// and the raw bytes of the embedded source document.
package container

import (
	"encoding/binary"

	"github.com/goccy/go-json"

	"slayer/internal/services"
)

// headerSize is the fixed length prefix framing the metadata segment.
const headerSize = 4

// EmbeddedDocumentKey is the reserved metadata key under which older writers
// embedded the source document. Callers must strip it before encoding; the
// document travels in the trailing segment, never inside the JSON.
const EmbeddedDocumentKey = "sourceDocument"

// Encode frames metadata and document bytes into a single buffer. The
// metadata must not carry the embedded document and the document must be
// non-empty, since a container without its source document cannot be opened.
func Encode(metadata map[string]any, document []byte) ([]byte, error) {
	if metadata == nil {
		return nil, services.Wrap(services.ErrValidation, "container", "encode", "nil metadata", nil)
	}
	if _, ok := metadata[EmbeddedDocumentKey]; ok {
		return nil, services.Wrap(services.ErrValidation, "container", "encode",
			"metadata embeds the source document; strip "+EmbeddedDocumentKey+" before encoding", nil)
	}
	if len(document) == 0 {
		return nil, services.Wrap(services.ErrDocumentMissing, "container", "encode", "zero-length document", nil)
	}

	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "container", "encode", "marshal metadata", err)
	}

	out := make([]byte, headerSize+len(meta)+len(document))
	binary.LittleEndian.PutUint32(out[:headerSize], uint32(len(meta)))
	copy(out[headerSize:], meta)
	copy(out[headerSize+len(meta):], document)
	return out, nil
}

// Decode splits a container buffer into metadata and document bytes. The
// returned document is a fresh copy: one consumer detaching or consuming its
// buffer cannot corrupt another's view.
func Decode(buf []byte) (map[string]any, []byte, error) {
	if len(buf) < headerSize {
		return nil, nil, services.Wrap(services.ErrFormat, "container", "decode", "buffer shorter than length prefix", nil)
	}
	metaLen := int(binary.LittleEndian.Uint32(buf[:headerSize]))
	if metaLen < 0 || headerSize+metaLen > len(buf) {
		return nil, nil, services.Wrap(services.ErrFormat, "container", "decode", "metadata length exceeds buffer", nil)
	}

	var metadata map[string]any
	if err := json.Unmarshal(buf[headerSize:headerSize+metaLen], &metadata); err != nil {
		return nil, nil, services.Wrap(services.ErrFormat, "container", "decode", "metadata segment is not JSON", err)
	}

	tail := buf[headerSize+metaLen:]
	if len(tail) == 0 {
		return nil, nil, services.Wrap(services.ErrDocumentMissing, "container", "decode", "zero-length document", nil)
	}
	document := make([]byte, len(tail))
	copy(document, tail)
	return metadata, document, nil
}
