package refengine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// Every artifact the reference engine writes is a zstd-compressed CBOR
// envelope tagging the payload with its kind and format version.

const formatVersion = 1

// Artifact kinds.
const (
	KindGrid       = "grid"
	KindVGrid      = "vgrid"
	KindRaster     = "raster"
	KindBathymetry = "bathymetry"
	KindForcing    = "forcing"
)

// ErrKind is returned when a file holds a different kind of artifact than
// the caller asked for.
var ErrKind = errors.New("unexpected artifact kind")

type envelope struct {
	Kind    string          `cbor:"kind"`
	Version int             `cbor:"version"`
	Payload cbor.RawMessage `cbor:"payload"`
}

var (
	encMode     cbor.EncMode
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("refengine: CBOR encoder initialization failed: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("refengine: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("refengine: zstd decoder initialization failed: " + err.Error())
	}
}

// Encode serializes v as an artifact of the given kind.
func Encode(kind string, v any) ([]byte, error) {
	payload, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", kind, err)
	}
	data, err := encMode.Marshal(envelope{Kind: kind, Version: formatVersion, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encoding %s envelope: %w", kind, err)
	}
	return zstdEncoder.EncodeAll(data, nil), nil
}

// Decode is the inverse of Encode.
func Decode(data []byte, kind string, v any) error {
	raw, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("zstd decompress: %w", err)
	}
	var env envelope
	if err := cbor.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Kind != kind {
		return fmt.Errorf("%w: want %q, got %q", ErrKind, kind, env.Kind)
	}
	if env.Version != formatVersion {
		return fmt.Errorf("unsupported %s format version %d", kind, env.Version)
	}
	if err := cbor.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", kind, err)
	}
	return nil
}

// WriteFile encodes v and writes it to path through a temporary file.
func WriteFile(path, kind string, v any) error {
	data, err := Encode(kind, v)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadFile reads and decodes an artifact of the given kind.
func ReadFile(path, kind string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := Decode(data, kind, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
