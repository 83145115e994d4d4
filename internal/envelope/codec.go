package envelope

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"slayer/internal/logging"
	"slayer/internal/project"
	"slayer/internal/services"
)

// DefaultCompressionThreshold is the serialized size above which envelopes
// are gzip-compressed.
const DefaultCompressionThreshold = 1 << 20

// Codec encodes and decodes portable project envelopes.
type Codec struct {
	threshold int64
	logger    *slog.Logger
	now       func() time.Time
}

// NewCodec builds a codec. A non-positive threshold selects the default.
func NewCodec(threshold int64, logger *slog.Logger) Codec {
	if threshold <= 0 {
		threshold = DefaultCompressionThreshold
	}
	return Codec{
		threshold: threshold,
		logger:    logging.NewComponentLogger(logger, "envelope"),
		now:       time.Now,
	}
}

// Encode serializes the project into envelope bytes. The project itself is
// never mutated: optimization happens on a deep copy. Output is raw UTF-8
// JSON, or gzip of that JSON once the serialized size crosses the threshold.
func (c Codec) Encode(p *project.Project) ([]byte, error) {
	if p == nil {
		return nil, services.Wrap(services.ErrValidation, "envelope", "encode", "nil project", nil)
	}
	optimized, err := optimize(p)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "envelope", "encode", "optimize project", err)
	}
	env := Envelope{
		FileType: FileType,
		Version:  project.FormatVersion,
		Created:  c.now().UTC(),
		Project:  optimized,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "envelope", "encode", "marshal envelope", err)
	}
	if int64(len(raw)) <= c.threshold {
		return raw, nil
	}
	compressed, err := compress(raw)
	if err != nil {
		// Compression failure has a defined fallback: ship raw JSON.
		c.logger.Warn("compression failed, writing uncompressed envelope",
			logging.Error(services.Wrap(services.ErrCompressionUnsupported, "envelope", "encode", "", err)),
			logging.Int("bytes", len(raw)))
		return raw, nil
	}
	return compressed, nil
}

// Decode parses envelope bytes: JSON fast path first, then gzip, then
// failure. Legacy suite envelopes are normalized into the modern shape and
// canvas-compression records are expanded back to their data URIs.
func (c Codec) Decode(data []byte) (*Envelope, error) {
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrFormat, "envelope", "decode", "empty payload", nil)
	}
	env, jsonErr := parse(data)
	if jsonErr == nil {
		return env, nil
	}
	raw, gzErr := decompress(data)
	if gzErr != nil {
		return nil, services.Wrap(services.ErrFormat, "envelope", "decode",
			"payload is neither JSON nor gzip-compressed JSON", errors.Join(jsonErr, gzErr))
	}
	env, err := parse(raw)
	if err != nil {
		return nil, services.Wrap(services.ErrFormat, "envelope", "decode",
			"decompressed payload is not a project envelope", err)
	}
	return env, nil
}

func parse(data []byte) (*Envelope, error) {
	var probe struct {
		FileType string `json:"fileType"`
		Type     string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	if probe.Type == LegacyType {
		var legacy legacyEnvelope
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, err
		}
		env := legacy.normalize()
		restoreCanvasData(env.Project)
		return env, nil
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	restoreCanvasData(env.Project)
	return &env, nil
}

func compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(raw); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
