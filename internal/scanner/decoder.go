package scanner

import (
	"errors"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ErrNoCode means the frame held nothing decodable. It is the normal result
// for most frames and is never surfaced.
var ErrNoCode = errors.New("no barcode in frame")

type Decoder interface {
	Decode(img image.Image) (string, error)
}

// ZXingDecoder tries the 1D retail symbologies (EAN/UPC, Code 128, Code 39,
// ITF) first and falls back to QR.
type ZXingDecoder struct {
	readers []gozxing.Reader
	hints   map[gozxing.DecodeHintType]interface{}
}

func NewZXingDecoder() *ZXingDecoder {
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	return &ZXingDecoder{
		readers: []gozxing.Reader{
			oned.NewMultiFormatUPCEANReader(hints),
			oned.NewCode128Reader(),
			oned.NewCode39Reader(),
			oned.NewITFReader(),
			qrcode.NewQRCodeReader(),
		},
		hints: hints,
	}
}

func (d *ZXingDecoder) Decode(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("binarize frame: %w", err)
	}
	for _, r := range d.readers {
		res, err := r.Decode(bmp, d.hints)
		if err == nil && res.GetText() != "" {
			return res.GetText(), nil
		}
		if err != nil && !IsDecodeNoise(err) {
			return "", err
		}
	}
	return "", ErrNoCode
}

// IsDecodeNoise reports whether err is one of the per-frame "nothing here"
// signals: ZXing's NotFound, Checksum and Format exceptions.
func IsDecodeNoise(err error) bool {
	if errors.Is(err, ErrNoCode) {
		return true
	}
	var nf gozxing.NotFoundException
	var ck gozxing.ChecksumException
	var fm gozxing.FormatException
	return errors.As(err, &nf) || errors.As(err, &ck) || errors.As(err, &fm)
}
