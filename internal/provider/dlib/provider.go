// Package dlib runs face detection and description in-process through dlib.
//
// The cgo binding lives behind the "dlib" build tag; without it New returns
// ErrNotCompiled and the rest of the package still builds.
package dlib

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"time"

	_ "golang.org/x/image/webp"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
	"github.com/saturnino-fabrica-de-software/facestream/internal/provider"
)

// Dimension is the length of a dlib ResNet face descriptor.
const Dimension = 128

var ErrNotCompiled = errors.New("dlib support not compiled in, rebuild with -tags dlib")

// Face is one face returned by an Engine.
type Face struct {
	Rectangle  image.Rectangle
	Descriptor [Dimension]float32
}

// Engine is the subset of go-face's Recognizer used here. Recognize accepts JPEG only.
type Engine interface {
	Recognize(jpegData []byte) ([]Face, error)
	Close()
}

// EngineFactory loads an Engine from a directory of dlib model files.
type EngineFactory func(modelsDir string) (Engine, error)

// DefaultTimeout bounds one Extract call, including the wait for the engine.
const DefaultTimeout = 10 * time.Second

// Provider implements provider.Embedder on top of a dlib Engine.
// dlib's recognizer is not safe for concurrent use, so calls hold slot while
// the engine runs. A cgo call cannot be interrupted: on timeout Extract
// returns, and the slot is released when the engine finishes.
type Provider struct {
	// slot holds one token while the engine is in use; it also guards engine.
	slot    chan struct{}
	engine  Engine
	timeout time.Duration
}

type recognition struct {
	faces []Face
	err   error
}

// New loads the models in modelsDir with the compiled-in engine.
func New(modelsDir string, timeout time.Duration) (*Provider, error) {
	return NewWithFactory(modelsDir, timeout, defaultFactory)
}

func NewWithFactory(modelsDir string, timeout time.Duration, factory EngineFactory) (*Provider, error) {
	engine, err := factory(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("load dlib models from %s: %w", modelsDir, err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Provider{
		slot:    make(chan struct{}, 1),
		engine:  engine,
		timeout: timeout,
	}, nil
}

// Extract re-encodes non-JPEG input and runs detection plus description.
// Waiting for the engine and the engine call share one deadline; running
// past it is reported as ErrProviderUnavailable.
func (p *Provider) Extract(ctx context.Context, img []byte) ([]provider.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := toJPEG(img)
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	select {
	case p.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, domain.ErrProviderUnavailable.WithError(fmt.Errorf("dlib busy: %w", ctx.Err()))
	}

	engine := p.engine
	if engine == nil {
		<-p.slot
		return nil, domain.ErrProviderUnavailable.WithError(errors.New("dlib engine closed"))
	}

	done := make(chan recognition, 1)
	go func() {
		defer func() { <-p.slot }()
		faces, err := engine.Recognize(data)
		done <- recognition{faces: faces, err: err}
	}()

	var faces []Face
	select {
	case r := <-done:
		if r.err != nil {
			return nil, domain.ErrProviderUnavailable.WithError(fmt.Errorf("dlib recognize: %w", r.err))
		}
		faces = r.faces
	case <-ctx.Done():
		return nil, domain.ErrProviderUnavailable.WithError(fmt.Errorf("dlib recognize: %w", ctx.Err()))
	}

	detections := make([]provider.Detection, 0, len(faces))
	for _, f := range faces {
		embedding := make([]float64, Dimension)
		for i, v := range f.Descriptor {
			embedding[i] = float64(v)
		}
		detections = append(detections, provider.Detection{
			Embedding: embedding,
			Box: provider.BoundingBox{
				X:      float64(f.Rectangle.Min.X),
				Y:      float64(f.Rectangle.Min.Y),
				Width:  float64(f.Rectangle.Dx()),
				Height: float64(f.Rectangle.Dy()),
			},
			// go-face doesn't provide confidence
			Confidence: 1.0,
		})
	}
	return detections, nil
}

// Close waits for a running call, then frees the engine. Later Extract calls
// fail with ErrProviderUnavailable.
func (p *Provider) Close() {
	p.slot <- struct{}{}
	defer func() { <-p.slot }()
	if p.engine != nil {
		p.engine.Close()
		p.engine = nil
	}
}

func toJPEG(data []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if format == "jpeg" {
		return data, nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

var _ provider.Embedder = (*Provider)(nil)
