package simdev

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"kalmap/internal/ir"
)

// imageMagic prefixes every simulated device image.
var imageMagic = []byte("KMSIM\x00")

const imageVersion = 1

// ErrBadImage means the bytes are not a simulated device image.
var ErrBadImage = errors.New("not a simulated device image")

// Image is the loadable form of a device module.
type Image struct {
	Version int        `msgpack:"version"`
	Kernels []string   `msgpack:"kernels"`
	Module  *ir.Module `msgpack:"module"`
}

// EncodeImage serializes m into an image.
func EncodeImage(m *ir.Module) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(imageMagic)
	enc := msgpack.NewEncoder(&buf)
	if err := enc.Encode(&Image{Version: imageVersion, Kernels: m.Kernels(), Module: m}); err != nil {
		return nil, fmt.Errorf("encode device image: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeImage parses an image produced by EncodeImage.
func DecodeImage(data []byte) (*Image, error) {
	if !bytes.HasPrefix(data, imageMagic) {
		return nil, ErrBadImage
	}
	var img Image
	if err := msgpack.Unmarshal(data[len(imageMagic):], &img); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadImage, err)
	}
	if img.Version != imageVersion {
		return nil, fmt.Errorf("%w: version %d", ErrBadImage, img.Version)
	}
	if img.Module == nil {
		return nil, fmt.Errorf("%w: no module", ErrBadImage)
	}
	img.Module.Reindex()
	return &img, nil
}
