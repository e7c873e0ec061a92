package journal

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/annel0/mapcoord/internal/coord"
	"github.com/klauspost/compress/zstd"
)

// Размер одного кадра: 8 байт id предмета + 4 байта относительного слова
const frameSize = 12

// ErrTruncated - длина полезной нагрузки не кратна размеру кадра
var ErrTruncated = errors.New("journal: обрезанный кадр")

// Entry - одна дельта перемещения пункта назначения
type Entry struct {
	ItemID uint64         `json:"item_id"`
	Delta  coord.Position `json:"delta"`
}

// Codec кодирует/декодирует пачку дельт в компактный вид.
type Codec interface {
	Encode(entries []Entry) ([]byte, error)
	Decode(payload []byte) ([]Entry, error)
	Name() string
}

// NewCodec возвращает кодек по имени сжатия: none, gzip, zstd.
// strict включает отказ для дельт вне относительного домена.
func NewCodec(compression string, strict bool) (Codec, error) {
	base := &frameCodec{strict: strict}
	switch compression {
	case "", "none":
		return base, nil
	case "gzip":
		return &gzipCodec{frames: base}, nil
	case "zstd":
		return newZstdCodec(base)
	default:
		return nil, fmt.Errorf("неизвестное сжатие журнала: %q", compression)
	}
}

// frameCodec пишет кадры подряд без сжатия
type frameCodec struct {
	strict bool
}

func (f *frameCodec) Name() string { return "none" }

func (f *frameCodec) Encode(entries []Entry) ([]byte, error) {
	buf := make([]byte, 0, len(entries)*frameSize)
	for i, e := range entries {
		word := coord.PackRelative(e.Delta)
		if f.strict {
			var err error
			if word, err = coord.PackStrict(coord.Relative, e.Delta); err != nil {
				return nil, fmt.Errorf("дельта %d (item %d): %w", i, e.ItemID, err)
			}
		}
		buf = binary.BigEndian.AppendUint64(buf, e.ItemID)
		buf = binary.BigEndian.AppendUint32(buf, uint32(word))
	}
	return buf, nil
}

func (f *frameCodec) Decode(payload []byte) ([]Entry, error) {
	if len(payload)%frameSize != 0 {
		return nil, fmt.Errorf("%w: %d байт", ErrTruncated, len(payload))
	}
	res := make([]Entry, 0, len(payload)/frameSize)
	for i := 0; i < len(payload); i += frameSize {
		res = append(res, Entry{
			ItemID: binary.BigEndian.Uint64(payload[i:]),
			Delta:  coord.UnpackRelative(coord.Packed(binary.BigEndian.Uint32(payload[i+8:]))),
		})
	}
	return res, nil
}

// gzipCodec применяет gzip поверх кадров
type gzipCodec struct {
	frames *frameCodec
}

func (g *gzipCodec) Name() string { return "gzip" }

func (g *gzipCodec) Encode(entries []Entry) ([]byte, error) {
	raw, err := g.frames.Encode(entries)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *gzipCodec) Decode(payload []byte) ([]Entry, error) {
	gz, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, err
	}
	return g.frames.Decode(raw)
}

// zstdCodec сжимает кадры zstd; EncodeAll/DecodeAll безопасны для параллельных вызовов
type zstdCodec struct {
	frames *frameCodec
	enc    *zstd.Encoder
	dec    *zstd.Decoder
}

func newZstdCodec(frames *frameCodec) (*zstdCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &zstdCodec{frames: frames, enc: enc, dec: dec}, nil
}

func (z *zstdCodec) Name() string { return "zstd" }

func (z *zstdCodec) Encode(entries []Entry) ([]byte, error) {
	raw, err := z.frames.Encode(entries)
	if err != nil {
		return nil, err
	}
	return z.enc.EncodeAll(raw, nil), nil
}

func (z *zstdCodec) Decode(payload []byte) ([]Entry, error) {
	raw, err := z.dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	return z.frames.Decode(raw)
}
