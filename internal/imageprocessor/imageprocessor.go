package imageprocessor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register decoder
	"image/png"
	"mime"
	"strings"

	"github.com/nfnt/resize"
)

const (
	// InputSize is the square edge, in pixels, the model expects.
	InputSize = 224
	// Channels is the number of colour channels in the tensor.
	Channels = 3
	// MaxUploadSize is the largest accepted upload, in bytes.
	MaxUploadSize = 5 << 20
	// MaxDimension caps the decoded width and height of an upload.
	MaxDimension = 4096
)

var (
	ErrUnsupportedType = errors.New("imageprocessor: only JPEG and PNG images are supported")
	ErrTooLarge        = errors.New("imageprocessor: image exceeds the upload size limit")
	ErrEmpty           = errors.New("imageprocessor: image is empty")
)

var supportedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
}

// Image is an upload ready for inference.
type Image struct {
	// Tensor is HWC float32 data scaled to [0, 1], InputSize x InputSize x Channels.
	Tensor []float32
	// Encoded is the resized image as PNG.
	Encoded []byte
	// SourceWidth and SourceHeight are the dimensions before resizing.
	SourceWidth  int
	SourceHeight int
}

// Options tune preparation.
type Options struct {
	Enhance bool
}

// Validate checks the declared content type and size of an upload.
func Validate(contentType string, size int64) error {
	if size > MaxUploadSize {
		return ErrTooLarge
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ErrUnsupportedType
	}
	if _, ok := supportedTypes[strings.ToLower(mediaType)]; !ok {
		return ErrUnsupportedType
	}
	return nil
}

// Prepare validates, decodes and resizes an upload.
func Prepare(contentType string, data []byte, opts Options) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if err := Validate(contentType, int64(len(data))); err != nil {
		return nil, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imageprocessor: decode: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ErrEmpty
	}
	if cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return nil, fmt.Errorf("%w: %dx%d pixels", ErrTooLarge, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imageprocessor: decode: %w", err)
	}
	if opts.Enhance {
		src = Enhance(src)
	}

	bounds := src.Bounds()
	resized := resize.Resize(InputSize, InputSize, src, resize.NearestNeighbor)

	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return nil, fmt.Errorf("imageprocessor: encode: %w", err)
	}

	return &Image{
		Tensor:       Tensor(resized),
		Encoded:      buf.Bytes(),
		SourceWidth:  bounds.Dx(),
		SourceHeight: bounds.Dy(),
	}, nil
}

// Tensor flattens img row by row into RGB float32 values divided by 255.
func Tensor(img image.Image) []float32 {
	b := img.Bounds()
	out := make([]float32, 0, b.Dx()*b.Dy()*Channels)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out = append(out, float32(c.R)/255, float32(c.G)/255, float32(c.B)/255)
		}
	}
	return out
}
