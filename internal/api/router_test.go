package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facestream/internal/matcher"
	"github.com/saturnino-fabrica-de-software/facestream/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/facestream/internal/registry"
	"github.com/saturnino-fabrica-de-software/facestream/internal/service"
	"github.com/saturnino-fabrica-de-software/facestream/internal/ws"
)

func newTestRouter(t *testing.T) (*Router, *registry.Registry) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := registry.New(0)
	m := matcher.New(matcher.Options{Threshold: matcher.DefaultThreshold}, logger)
	embedder := mock.New(0)
	svc := service.NewFaceService(embedder, reg, m, logger)

	r := NewRouter(logger, &Dependencies{
		FaceService:     svc,
		Registry:        reg,
		HealthChecker:   embedder,
		WSQueueSize:     8,
		RateLimitMax:    1000,
		RateLimitWindow: time.Minute,
	})
	r.Setup()
	t.Cleanup(func() { _ = r.Shutdown() })
	return r, reg
}

// pngImage renders a small image whose bytes depend on seed.
func pngImage(t *testing.T, seed int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for x := 0; x < 32; x++ {
		for y := 0; y < 32; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * seed), G: uint8(y * 7), B: uint8(x ^ y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func post(t *testing.T, r *Router, path string, body interface{}) (int, []byte) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.App().Test(req, -1)
	require.NoError(t, err)
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func TestRouter_HealthAndReady(t *testing.T) {
	r, _ := newTestRouter(t)

	resp, err := r.App().Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = r.App().Test(httptest.NewRequest("GET", "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestRouter_EncodeRegisterList(t *testing.T) {
	r, reg := newTestRouter(t)
	img := pngImage(t, 3)

	status, body := post(t, r, "/encode", map[string]string{"image": img})
	require.Equal(t, 200, status, string(body))
	var encoded struct {
		Success  bool      `json:"success"`
		Encoding []float64 `json:"encoding"`
	}
	require.NoError(t, json.Unmarshal(body, &encoded))
	assert.True(t, encoded.Success)
	assert.Len(t, encoded.Encoding, mock.DefaultDimension)

	status, body = post(t, r, "/v1/identities", map[string]string{"name": "Alice", "image": img})
	require.Equal(t, 201, status, string(body))
	assert.Equal(t, 1, reg.Snapshot().Len())

	resp, err := r.App().Test(httptest.NewRequest("GET", "/v1/identities", nil))
	require.NoError(t, err)
	list, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(list), `"name":"Alice"`)
}

func TestRouter_EncodeInvalidImage(t *testing.T) {
	r, _ := newTestRouter(t)

	status, body := post(t, r, "/encode", map[string]string{"image": "data:image/png;base64,AAAA"})
	assert.Equal(t, 400, status)
	assert.JSONEq(t, `{"error":"invalid_image"}`, string(body))
}

func TestRouter_Recognize(t *testing.T) {
	r, _ := newTestRouter(t)
	alice := pngImage(t, 3)

	status, body := post(t, r, "/v1/recognize", map[string]string{"image": alice})
	require.Equal(t, 200, status, string(body))
	var results []struct {
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
	}
	require.NoError(t, json.Unmarshal(body, &results))
	require.Len(t, results, 1)
	assert.Equal(t, "Unknown", results[0].Name)

	status, body = post(t, r, "/v1/identities", map[string]string{"name": "Alice", "image": alice})
	require.Equal(t, 201, status, string(body))

	status, body = post(t, r, "/v1/recognize", map[string]string{"image": alice})
	require.Equal(t, 200, status, string(body))
	require.NoError(t, json.Unmarshal(body, &results))
	require.Len(t, results, 1)
	assert.Equal(t, "Alice", results[0].Name)
	assert.InDelta(t, 1, results[0].Confidence, 1e-9)

	status, body = post(t, r, "/v1/recognize", map[string]string{"image": "data:image/png;base64,AAAA"})
	assert.Equal(t, 400, status)
	assert.Contains(t, string(body), "INVALID_IMAGE")
}

func TestRouter_SyncWithoutSource(t *testing.T) {
	r, _ := newTestRouter(t)

	status, _ := post(t, r, "/v1/registry/sync", map[string]string{})
	assert.Equal(t, 409, status)
}

func TestRouter_WebSocketSession(t *testing.T) {
	r, _ := newTestRouter(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = r.App().Listener(ln) }()

	url := fmt.Sprintf("ws://%s/v1/ws", ln.Addr().String())
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() (ws.EventType, json.RawMessage) {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var e struct {
			Event ws.EventType    `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&e))
		return e.Event, e.Data
	}
	send := func(event ws.EventType, data interface{}) {
		t.Helper()
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		require.NoError(t, conn.WriteJSON(ws.Envelope{Event: event, Data: raw}))
	}

	event, _ := read()
	assert.Equal(t, ws.EventConnected, event)
	assert.Eventually(t, func() bool { return r.Hub().Count() == 1 }, time.Second, 10*time.Millisecond)

	alice := pngImage(t, 5)
	send(ws.EventRegister, ws.RegisterPayload{Name: "Alice", Image: alice})
	event, data := read()
	assert.Equal(t, ws.EventRegistrationResult, event)
	var reply ws.RegistrationReply
	require.NoError(t, json.Unmarshal(data, &reply))
	assert.True(t, reply.Success)
	assert.NotNil(t, reply.Timestamp)

	send(ws.EventFrame, ws.FramePayload{Image: alice})
	event, data = read()
	assert.Equal(t, ws.EventRecognitionResult, event)
	assert.True(t, strings.Contains(string(data), `"name":"Alice"`), string(data))

	send(ws.EventFrame, ws.FramePayload{Image: pngImage(t, 9)})
	event, data = read()
	assert.Equal(t, ws.EventRecognitionResult, event)
	assert.Contains(t, string(data), `"name":"Unknown"`)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	event, _ = read()
	assert.Equal(t, ws.EventError, event)
}
