// Package pdfservice turns the first page of an uploaded PDF into an image the
// extraction model can read.
package pdfservice

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"

	"rental-application-engine/internal/utils"
)

// DefaultJPEGQuality is the encoding quality of the page image.
const DefaultJPEGQuality = 85

var (
	ErrEmptyPDF    = errors.New("empty PDF")
	ErrNoPageImage = errors.New("no image found on the first page")
)

// Rasterizer renders page one of a PDF as a JPEG data URI.
//
// Scanned documents carry the page as an embedded image, so the largest image
// of page one is used as the page rendering. Later pages are ignored.
type Rasterizer struct {
	quality int
	tempDir string
}

// NewRasterizer creates a rasterizer with the default JPEG quality.
func NewRasterizer() *Rasterizer {
	return &Rasterizer{quality: DefaultJPEGQuality}
}

// WithQuality sets the JPEG quality (1-100).
func (r *Rasterizer) WithQuality(q int) *Rasterizer {
	if q >= 1 && q <= 100 {
		r.quality = q
	}
	return r
}

// WithTempDir sets the parent directory for scratch files.
func (r *Rasterizer) WithTempDir(dir string) *Rasterizer {
	r.tempDir = dir
	return r
}

// FirstPageToImage returns page one of data as a "data:image/jpeg;base64,..." URI.
func (r *Rasterizer) FirstPageToImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyPDF
	}
	logger := utils.GetLogger()

	if pages, err := countPages(data); err != nil {
		logger.Debug("Could not count PDF pages", zap.Error(err))
	} else if pages > 1 {
		logger.Warn("PDF has several pages, only the first one is analyzed", zap.Int("pages", pages))
	}

	workDir, err := os.MkdirTemp(r.tempDir, "pdf-raster-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	pdfPath := filepath.Join(workDir, "document.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write pdf data: %w", err)
	}
	imagesDir := filepath.Join(workDir, "images")
	if err := os.Mkdir(imagesDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create image dir: %w", err)
	}

	if err := api.ExtractImagesFile(pdfPath, imagesDir, []string{"1"}, model.NewDefaultConfiguration()); err != nil {
		return "", fmt.Errorf("failed to extract images: %w", err)
	}

	img, err := largestImage(imagesDir)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flatten(img), &jpeg.Options{Quality: r.quality}); err != nil {
		return "", fmt.Errorf("failed to encode page image: %w", err)
	}

	logger.Debug("PDF page converted",
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()),
		zap.Int("jpeg_bytes", buf.Len()),
	)
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func countPages(data []byte) (int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	return reader.NumPage(), nil
}

func largestImage(dir string) (image.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read image dir: %w", err)
	}

	var best image.Image
	bestArea := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		f, err := os.Open(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			continue
		}
		if area := img.Bounds().Dx() * img.Bounds().Dy(); area > bestArea {
			best, bestArea = img, area
		}
	}
	if best == nil {
		return nil, ErrNoPageImage
	}
	return best, nil
}

// flatten draws img over a white background so transparent areas do not turn black.
func flatten(img image.Image) image.Image {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(out, bounds, img, bounds.Min, draw.Over)
	return out
}
