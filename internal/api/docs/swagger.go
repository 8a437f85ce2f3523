package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
)

// ImageRequest is the body of the encode and recognize endpoints
type ImageRequest struct {
	Image string `json:"image" example:"data:image/jpeg;base64,/9j/4AAQSkZJRgABAQ..."`
}

// RegisterIdentityRequest is the body of the registration endpoint
type RegisterIdentityRequest struct {
	Name  string `json:"name" example:"Alice"`
	Image string `json:"image" example:"data:image/jpeg;base64,/9j/4AAQSkZJRgABAQ..."`
}

// EncodeResponse carries the embedding of the single detected face
type EncodeResponse struct {
	Success  bool      `json:"success" example:"true"`
	Encoding []float64 `json:"encoding"`
}

// EncodeErrorResponse is the flat error body of the encode endpoint
type EncodeErrorResponse struct {
	Error string `json:"error" example:"no_face"`
}

// BoxData is a face rectangle in pixels
type BoxData struct {
	Top    int `json:"top" example:"10"`
	Right  int `json:"right" example:"110"`
	Bottom int `json:"bottom" example:"110"`
	Left   int `json:"left" example:"10"`
}

// MatchData is the outcome for one detected face
type MatchData struct {
	Name       string  `json:"name" example:"Alice"`
	Box        BoxData `json:"box"`
	Distance   float64 `json:"distance" example:"0.12"`
	Confidence float64 `json:"confidence" example:"0.88"`
}

// IdentityData describes one stored template
type IdentityData struct {
	ID           string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Name         string `json:"name" example:"Alice"`
	RegisteredAt string `json:"registered_at" example:"2024-01-01T00:00:00Z"`
}

// RegisterIdentityResponse represents the response for a successful registration
type RegisterIdentityResponse struct {
	Success  bool         `json:"success" example:"true"`
	Message  string       `json:"message" example:"Face registered for Alice"`
	Identity IdentityData `json:"identity"`
}

// IdentitySummaryData groups the templates stored under one name
type IdentitySummaryData struct {
	Name         string `json:"name" example:"Alice"`
	Templates    int    `json:"templates" example:"2"`
	RegisteredAt string `json:"registered_at" example:"2024-01-01T00:00:00Z"`
}

// SyncResponse describes a registry sync
type SyncResponse struct {
	Success  bool   `json:"success" example:"true"`
	Fetched  int    `json:"fetched" example:"42"`
	Accepted int    `json:"accepted" example:"42"`
	Version  uint64 `json:"version" example:"7"`
}

// HealthResponse is the liveness probe body
type HealthResponse struct {
	Status  string `json:"status" example:"ok"`
	Version string `json:"version" example:"0.1.0"`
}

// ReadyResponse is the readiness probe body
type ReadyResponse struct {
	Status          string `json:"status" example:"ready"`
	RegistryVersion uint64 `json:"registry_version" example:"7"`
	Identities      int    `json:"identities" example:"42"`
	Connections     int    `json:"connections" example:"3"`
	Provider        string `json:"provider" example:"ok"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message" example:"Request validation failed"`
}

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Facestream API",
		Version:     "v1.0.0",
		Description: "Real-time face identity matching. Frames and registrations stream over the WebSocket at /v1/ws; the HTTP endpoints cover single-shot encoding, enrolment and registry management.",
		Host:        "localhost:3000",
		Path:        "/",
	})

	endpoints := []*endpoint.EndPoint{
		// POST /encode - single-shot embedding extraction
		endpoint.New(
			endpoint.POST,
			"/encode",
			endpoint.WithTags("Faces"),
			endpoint.WithSummary("Extract the embedding of a single face"),
			endpoint.WithDescription("Accepts raw base64 or a data URL. Fails with no_face or multiple_faces unless exactly one face is found."),
			endpoint.WithBody(ImageRequest{}),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EncodeResponse{}, "200", "Embedding extracted"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(EncodeErrorResponse{Error: "no_face"}, "400", "No face, several faces, missing or invalid image"),
				response.New(EncodeErrorResponse{Error: "Embedding provider unavailable"}, "500", "Internal Server Error"),
			}),
		),

		// POST /v1/identities - register an identity
		endpoint.New(
			endpoint.POST,
			"/v1/identities",
			endpoint.WithTags("Identities"),
			endpoint.WithSummary("Register a face under a name"),
			endpoint.WithDescription("Registering an existing name adds another template for it; earlier templates are kept."),
			endpoint.WithBody(RegisterIdentityRequest{}),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(RegisterIdentityResponse{}, "201", "Face registered successfully"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "INVALID_IMAGE", Message: "Invalid image format or corrupted file"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "NO_FACE_DETECTED", Message: "No face detected in the image"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "MULTIPLE_FACES", Message: "Multiple faces detected"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Message: "Rate limit exceeded, please try again later"}, "429", "Too Many Requests"),
				response.New(ErrorResponse{Code: "PROVIDER_UNAVAILABLE", Message: "Embedding provider unavailable"}, "503", "Service Unavailable"),
			}),
		),

		// POST /v1/recognize - match one frame
		endpoint.New(
			endpoint.POST,
			"/v1/recognize",
			endpoint.WithTags("Faces"),
			endpoint.WithSummary("Identify every face in one image"),
			endpoint.WithDescription("Returns one result per detected face, Unknown when no identity clears the threshold. An image without faces yields an empty list."),
			endpoint.WithBody(ImageRequest{}),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New([]MatchData{}, "200", "Faces matched"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "INVALID_IMAGE", Message: "Invalid image format or corrupted file"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "Request validation failed"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Message: "Rate limit exceeded, please try again later"}, "429", "Too Many Requests"),
				response.New(ErrorResponse{Code: "PROVIDER_UNAVAILABLE", Message: "Embedding provider unavailable"}, "503", "Service Unavailable"),
			}),
		),

		// GET /v1/identities - list identities
		endpoint.New(
			endpoint.GET,
			"/v1/identities",
			endpoint.WithTags("Identities"),
			endpoint.WithSummary("List registered identities"),
			endpoint.WithDescription("One entry per name with its template count, newest registration first."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New([]IdentitySummaryData{}, "200", "Identities listed"),
			}),
		),

		// POST /v1/registry/sync - pull the registry now
		endpoint.New(
			endpoint.POST,
			"/v1/registry/sync",
			endpoint.WithTags("Registry"),
			endpoint.WithSummary("Synchronize the registry from its source"),
			endpoint.WithDescription("Replaces the in-memory registry with the configured source's identity list. On failure the current registry keeps serving."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SyncResponse{}, "200", "Registry synchronized"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "SYNC_NOT_CONFIGURED", Message: "No registry source is configured"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "REGISTRY_SYNC_FAILED", Message: "Registry synchronization failed"}, "502", "Bad Gateway"),
			}),
		),

		// GET /health
		endpoint.New(
			endpoint.GET,
			"/health",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Liveness probe"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthResponse{}, "200", "Service is alive"),
			}),
		),

		// GET /ready
		endpoint.New(
			endpoint.GET,
			"/ready",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Readiness probe"),
			endpoint.WithDescription("Reports registry version and size, live connections and embedding provider reachability."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ReadyResponse{}, "200", "Service is ready"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ReadyResponse{Status: "unavailable", Provider: "unreachable"}, "503", "Embedding provider unreachable"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
