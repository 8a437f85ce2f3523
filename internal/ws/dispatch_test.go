package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
	"github.com/saturnino-fabrica-de-software/facestream/internal/service"
)

// dispatchOnce runs a single envelope through the dispatcher and returns
// what was emitted.
func dispatchOnce(t *testing.T, svc FaceService, env Envelope) Event {
	t.Helper()
	client := NewClient(NewHub(discardLogger()), newFakeConn(), nil, 4, discardLogger())
	NewDispatcher(svc, discardLogger()).Dispatch(context.Background(), client, env)

	select {
	case raw := <-client.send:
		var e struct {
			Type EventType       `json:"event"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &e))
		return Event{Type: e.Type, Data: e.Data}
	case <-time.After(time.Second):
		t.Fatal("nothing emitted")
		return Event{}
	}
}

func envelope(t *testing.T, event EventType, data interface{}) Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return Envelope{Event: event, Data: raw}
}

func TestDispatcher_Register(t *testing.T) {
	tests := []struct {
		name        string
		payload     interface{}
		result      service.RegistrationResult
		err         error
		wantSuccess bool
		wantError   string
	}{
		{
			name:        "registered",
			payload:     RegisterPayload{Name: "Alice", Image: "img"},
			result:      service.RegistrationResult{Status: service.StatusOK, Identity: domain.Identity{Name: "Alice"}},
			wantSuccess: true,
		},
		{
			name:      "no face",
			payload:   RegisterPayload{Name: "Alice", Image: "img"},
			result:    service.RegistrationResult{Status: service.StatusNoFace},
			wantError: "no_face",
		},
		{
			name:      "multiple faces",
			payload:   RegisterPayload{Name: "Alice", Image: "img"},
			result:    service.RegistrationResult{Status: service.StatusMultipleFaces},
			wantError: "multiple_faces",
		},
		{
			name:      "missing name",
			payload:   RegisterPayload{Image: "img"},
			wantError: "validation_failed",
		},
		{
			name:      "malformed data",
			payload:   []int{1, 2},
			wantError: "validation_failed",
		},
		{
			name:      "invalid image",
			payload:   RegisterPayload{Name: "Alice", Image: "img"},
			err:       domain.ErrInvalidImage.WithError(errors.New("bad header")),
			wantError: "invalid_image",
		},
		{
			name:      "provider down",
			payload:   RegisterPayload{Name: "Alice", Image: "img"},
			err:       domain.ErrProviderUnavailable,
			wantError: "provider_unavailable",
		},
		{
			name:      "unexpected failure",
			payload:   RegisterPayload{Name: "Alice", Image: "img"},
			err:       errors.New("boom"),
			wantError: "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{
				register: func(name, image string) (service.RegistrationResult, error) {
					return tt.result, tt.err
				},
			}

			event := dispatchOnce(t, svc, envelope(t, EventRegister, tt.payload))
			assert.Equal(t, EventRegistrationResult, event.Type)

			var reply RegistrationReply
			require.NoError(t, json.Unmarshal(event.Data.(json.RawMessage), &reply))
			assert.Equal(t, tt.wantSuccess, reply.Success)
			assert.Equal(t, tt.wantError, reply.Error)
			if tt.wantSuccess {
				assert.NotNil(t, reply.Timestamp)
				assert.Equal(t, "Face registered for Alice", reply.Message)
			} else {
				assert.Nil(t, reply.Timestamp)
			}
		})
	}
}

func TestDispatcher_Frame(t *testing.T) {
	t.Run("empty result list", func(t *testing.T) {
		svc := &fakeService{
			recognize: func(image string) ([]domain.MatchResult, error) {
				return []domain.MatchResult{}, nil
			},
		}
		event := dispatchOnce(t, svc, envelope(t, EventFrame, FramePayload{Image: "img"}))
		assert.Equal(t, EventRecognitionResult, event.Type)
		assert.JSONEq(t, `[]`, string(event.Data.(json.RawMessage)))
	})

	t.Run("match results", func(t *testing.T) {
		svc := &fakeService{
			recognize: func(image string) ([]domain.MatchResult, error) {
				return []domain.MatchResult{{
					Box:        domain.Box{Top: 1, Right: 2, Bottom: 3, Left: 4},
					Name:       "Alice",
					Distance:   0.25,
					Confidence: 0.75,
				}}, nil
			},
		}
		event := dispatchOnce(t, svc, envelope(t, EventFrame, FramePayload{Image: "img"}))
		assert.JSONEq(t,
			`[{"box":{"top":1,"right":2,"bottom":3,"left":4},"name":"Alice","distance":0.25,"confidence":0.75}]`,
			string(event.Data.(json.RawMessage)))
	})

	t.Run("recognition error", func(t *testing.T) {
		svc := &fakeService{
			recognize: func(image string) ([]domain.MatchResult, error) {
				return nil, domain.ErrInvalidImage
			},
		}
		event := dispatchOnce(t, svc, envelope(t, EventFrame, FramePayload{Image: "img"}))
		assert.Equal(t, EventRecognitionError, event.Type)

		var payload ErrorPayload
		require.NoError(t, json.Unmarshal(event.Data.(json.RawMessage), &payload))
		assert.Equal(t, "invalid_image", payload.Code)
	})

	t.Run("missing image", func(t *testing.T) {
		event := dispatchOnce(t, &fakeService{}, envelope(t, EventFrame, map[string]string{}))
		assert.Equal(t, EventRecognitionError, event.Type)
	})
}

func TestDispatcher_UnknownEvent(t *testing.T) {
	event := dispatchOnce(t, &fakeService{}, envelope(t, "chat", map[string]string{"message": "hi"}))
	assert.Equal(t, EventError, event.Type)

	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(event.Data.(json.RawMessage), &payload))
	assert.Equal(t, "unknown_event", payload.Code)
}
