package dlib

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

type fakeEngine struct {
	faces   []Face
	err     error
	gotJPEG bool
	closed  bool
	block   chan struct{}
}

func (f *fakeEngine) Recognize(data []byte) ([]Face, error) {
	if f.block != nil {
		<-f.block
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	f.gotJPEG = err == nil && format == "jpeg"
	return f.faces, f.err
}

func (f *fakeEngine) Close() { f.closed = true }

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newProvider(t *testing.T, engine *fakeEngine) *Provider {
	t.Helper()
	p, err := NewWithFactory("models", time.Second, func(string) (Engine, error) { return engine, nil })
	require.NoError(t, err)
	return p
}

func TestProvider_Extract(t *testing.T) {
	var descriptor [Dimension]float32
	descriptor[0] = 0.5
	descriptor[127] = -0.25

	engine := &fakeEngine{faces: []Face{{Rectangle: image.Rect(5, 10, 55, 70), Descriptor: descriptor}}}
	p := newProvider(t, engine)

	detections, err := p.Extract(context.Background(), encodePNG(t))

	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.True(t, engine.gotJPEG, "png input must be re-encoded as jpeg")
	assert.Len(t, detections[0].Embedding, Dimension)
	assert.InDelta(t, 0.5, detections[0].Embedding[0], 1e-6)
	assert.InDelta(t, -0.25, detections[0].Embedding[127], 1e-6)
	assert.Equal(t, domain.Box{Top: 10, Right: 55, Bottom: 70, Left: 5}, detections[0].Box.ToBox())
}

func TestProvider_ExtractKeepsJPEG(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))

	engine := &fakeEngine{}
	detections, err := newProvider(t, engine).Extract(context.Background(), buf.Bytes())

	require.NoError(t, err)
	assert.Empty(t, detections)
	assert.True(t, engine.gotJPEG)
}

func TestProvider_ExtractErrors(t *testing.T) {
	_, err := newProvider(t, &fakeEngine{}).Extract(context.Background(), []byte("not an image"))
	assert.ErrorIs(t, err, domain.ErrInvalidImage)

	_, err = newProvider(t, &fakeEngine{err: errors.New("boom")}).Extract(context.Background(), encodePNG(t))
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestProvider_Close(t *testing.T) {
	engine := &fakeEngine{}
	p := newProvider(t, engine)
	p.Close()
	p.Close()
	assert.True(t, engine.closed)
}

func TestProvider_ExtractAfterClose(t *testing.T) {
	p := newProvider(t, &fakeEngine{})
	p.Close()

	_, err := p.Extract(context.Background(), encodePNG(t))
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestProvider_ExtractTimesOut(t *testing.T) {
	engine := &fakeEngine{block: make(chan struct{})}
	p, err := NewWithFactory("models", 50*time.Millisecond, func(string) (Engine, error) { return engine, nil })
	require.NoError(t, err)

	start := time.Now()
	_, err = p.Extract(context.Background(), encodePNG(t))
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Less(t, time.Since(start), time.Second)

	// the engine is still busy, so the next call cannot get it either
	_, err = p.Extract(context.Background(), encodePNG(t))
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)

	close(engine.block)
	require.Eventually(t, func() bool {
		_, err := p.Extract(context.Background(), encodePNG(t))
		return err == nil
	}, time.Second, 10*time.Millisecond)
}

func TestNewWithFactory_Error(t *testing.T) {
	_, err := NewWithFactory("missing", 0, func(string) (Engine, error) { return nil, ErrNotCompiled })
	assert.ErrorIs(t, err, ErrNotCompiled)
}
