package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facestream/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
	"github.com/saturnino-fabrica-de-software/facestream/internal/service"
)

type MockFaceService struct {
	mock.Mock
}

func (m *MockFaceService) Register(ctx context.Context, name, image string) (service.RegistrationResult, error) {
	args := m.Called(ctx, name, image)
	return args.Get(0).(service.RegistrationResult), args.Error(1)
}

func (m *MockFaceService) Encode(ctx context.Context, image string) (service.EncodeResult, error) {
	args := m.Called(ctx, image)
	return args.Get(0).(service.EncodeResult), args.Error(1)
}

func (m *MockFaceService) Recognize(ctx context.Context, image string) ([]domain.MatchResult, error) {
	args := m.Called(ctx, image)
	return args.Get(0).([]domain.MatchResult), args.Error(1)
}

func (m *MockFaceService) Identities() []domain.IdentitySummary {
	args := m.Called()
	return args.Get(0).([]domain.IdentitySummary)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFaceApp(svc FaceService) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(discardLogger())})
	h := NewFaceHandler(svc, discardLogger())
	app.Post("/encode", h.Encode)
	app.Post("/v1/identities", h.Register)
	app.Post("/v1/recognize", h.Recognize)
	app.Get("/v1/identities", h.ListIdentities)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func TestFaceHandler_Encode(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setupMock  func(*MockFaceService)
		wantStatus int
		wantBody   string
	}{
		{
			name: "single face",
			body: `{"image":"abc"}`,
			setupMock: func(m *MockFaceService) {
				m.On("Encode", mock.Anything, "abc").Return(service.EncodeResult{
					Status:    service.StatusOK,
					Embedding: []float64{0.1, 0.2},
				}, nil)
			},
			wantStatus: 200,
			wantBody:   `{"success":true,"encoding":[0.1,0.2]}`,
		},
		{
			name: "no face",
			body: `{"image":"abc"}`,
			setupMock: func(m *MockFaceService) {
				m.On("Encode", mock.Anything, "abc").Return(service.EncodeResult{Status: service.StatusNoFace}, nil)
			},
			wantStatus: 400,
			wantBody:   `{"error":"no_face"}`,
		},
		{
			name: "multiple faces",
			body: `{"image":"abc"}`,
			setupMock: func(m *MockFaceService) {
				m.On("Encode", mock.Anything, "abc").Return(service.EncodeResult{Status: service.StatusMultipleFaces}, nil)
			},
			wantStatus: 400,
			wantBody:   `{"error":"multiple_faces"}`,
		},
		{
			name:       "missing image",
			body:       `{}`,
			setupMock:  func(m *MockFaceService) {},
			wantStatus: 400,
			wantBody:   `{"error":"missing_image"}`,
		},
		{
			name: "invalid image",
			body: `{"image":"abc"}`,
			setupMock: func(m *MockFaceService) {
				m.On("Encode", mock.Anything, "abc").Return(service.EncodeResult{}, domain.ErrInvalidImage.WithError(errors.New("bad")))
			},
			wantStatus: 400,
			wantBody:   `{"error":"invalid_image"}`,
		},
		{
			name: "provider unavailable",
			body: `{"image":"abc"}`,
			setupMock: func(m *MockFaceService) {
				m.On("Encode", mock.Anything, "abc").Return(service.EncodeResult{}, domain.ErrProviderUnavailable)
			},
			wantStatus: 500,
			wantBody:   `{"error":"Embedding provider unavailable"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockFaceService)
			tt.setupMock(svc)

			status, body := doJSON(t, newFaceApp(svc), "POST", "/encode", tt.body)

			assert.Equal(t, tt.wantStatus, status)
			assert.JSONEq(t, tt.wantBody, body)
			svc.AssertExpectations(t)
		})
	}
}

func TestFaceHandler_Register(t *testing.T) {
	registeredAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		body       string
		setupMock  func(*MockFaceService)
		wantStatus int
		wantCode   string
	}{
		{
			name: "registered",
			body: `{"name":"Alice","image":"abc"}`,
			setupMock: func(m *MockFaceService) {
				m.On("Register", mock.Anything, "Alice", "abc").Return(service.RegistrationResult{
					Status:   service.StatusOK,
					Identity: domain.Identity{ID: "id-1", Name: "Alice", RegisteredAt: registeredAt},
				}, nil)
			},
			wantStatus: 201,
		},
		{
			name:       "missing name",
			body:       `{"image":"abc"}`,
			setupMock:  func(m *MockFaceService) {},
			wantStatus: 422,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name: "no face",
			body: `{"name":"Alice","image":"abc"}`,
			setupMock: func(m *MockFaceService) {
				m.On("Register", mock.Anything, "Alice", "abc").Return(service.RegistrationResult{Status: service.StatusNoFace}, nil)
			},
			wantStatus: 422,
			wantCode:   "NO_FACE_DETECTED",
		},
		{
			name: "multiple faces",
			body: `{"name":"Alice","image":"abc"}`,
			setupMock: func(m *MockFaceService) {
				m.On("Register", mock.Anything, "Alice", "abc").Return(service.RegistrationResult{Status: service.StatusMultipleFaces}, nil)
			},
			wantStatus: 422,
			wantCode:   "MULTIPLE_FACES",
		},
		{
			name: "provider unavailable",
			body: `{"name":"Alice","image":"abc"}`,
			setupMock: func(m *MockFaceService) {
				m.On("Register", mock.Anything, "Alice", "abc").Return(service.RegistrationResult{}, domain.ErrProviderUnavailable)
			},
			wantStatus: 503,
			wantCode:   "PROVIDER_UNAVAILABLE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockFaceService)
			tt.setupMock(svc)

			status, body := doJSON(t, newFaceApp(svc), "POST", "/v1/identities", tt.body)
			assert.Equal(t, tt.wantStatus, status)

			if tt.wantCode != "" {
				var errBody struct {
					Error struct {
						Code string `json:"code"`
					} `json:"error"`
				}
				require.NoError(t, json.Unmarshal([]byte(body), &errBody))
				assert.Equal(t, tt.wantCode, errBody.Error.Code)
				return
			}

			var resp RegisterResponse
			require.NoError(t, json.Unmarshal([]byte(body), &resp))
			assert.True(t, resp.Success)
			assert.Equal(t, "Face registered for Alice", resp.Message)
			assert.Equal(t, "id-1", resp.Identity.ID)
			svc.AssertExpectations(t)
		})
	}
}

func TestFaceHandler_ListIdentities(t *testing.T) {
	svc := new(MockFaceService)
	svc.On("Identities").Return([]domain.IdentitySummary{
		{Name: "Bob", Templates: 1, RegisteredAt: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)},
		{Name: "Alice", Templates: 2, RegisteredAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
	})

	status, body := doJSON(t, newFaceApp(svc), "GET", "/v1/identities", "")

	assert.Equal(t, 200, status)
	assert.JSONEq(t, `[
		{"name":"Bob","templates":1,"registered_at":"2024-05-02T00:00:00Z"},
		{"name":"Alice","templates":2,"registered_at":"2024-05-01T00:00:00Z"}
	]`, body)
}

func TestFaceHandler_Recognize(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setupMock  func(*MockFaceService)
		wantStatus int
		wantBody   string
		wantCode   string
	}{
		{
			name: "known and unknown faces",
			body: `{"image":"abc"}`,
			setupMock: func(m *MockFaceService) {
				m.On("Recognize", mock.Anything, "abc").Return([]domain.MatchResult{
					{Name: "Alice", Box: domain.Box{Top: 10, Right: 110, Bottom: 110, Left: 10}, Distance: 0.1, Confidence: 0.9},
					{Name: domain.UnknownName, Box: domain.Box{Top: 5, Right: 50, Bottom: 50, Left: 5}, Distance: 0.8},
				}, nil)
			},
			wantStatus: 200,
			wantBody: `[
				{"name":"Alice","box":{"top":10,"right":110,"bottom":110,"left":10},"distance":0.1,"confidence":0.9},
				{"name":"Unknown","box":{"top":5,"right":50,"bottom":50,"left":5},"distance":0.8,"confidence":0}
			]`,
		},
		{
			name: "no faces",
			body: `{"image":"abc"}`,
			setupMock: func(m *MockFaceService) {
				m.On("Recognize", mock.Anything, "abc").Return([]domain.MatchResult{}, nil)
			},
			wantStatus: 200,
			wantBody:   `[]`,
		},
		{
			name:       "missing image",
			body:       `{}`,
			setupMock:  func(m *MockFaceService) {},
			wantStatus: 422,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name: "invalid image",
			body: `{"image":"abc"}`,
			setupMock: func(m *MockFaceService) {
				m.On("Recognize", mock.Anything, "abc").Return([]domain.MatchResult(nil), domain.ErrInvalidImage.WithError(errors.New("bad")))
			},
			wantStatus: 400,
			wantCode:   "INVALID_IMAGE",
		},
		{
			name: "provider unavailable",
			body: `{"image":"abc"}`,
			setupMock: func(m *MockFaceService) {
				m.On("Recognize", mock.Anything, "abc").Return([]domain.MatchResult(nil), domain.ErrProviderUnavailable)
			},
			wantStatus: 503,
			wantCode:   "PROVIDER_UNAVAILABLE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockFaceService)
			tt.setupMock(svc)

			status, body := doJSON(t, newFaceApp(svc), "POST", "/v1/recognize", tt.body)
			assert.Equal(t, tt.wantStatus, status)
			svc.AssertExpectations(t)

			if tt.wantCode != "" {
				var errBody struct {
					Error struct {
						Code string `json:"code"`
					} `json:"error"`
				}
				require.NoError(t, json.Unmarshal([]byte(body), &errBody))
				assert.Equal(t, tt.wantCode, errBody.Error.Code)
				return
			}
			assert.JSONEq(t, tt.wantBody, body)
		})
	}
}
