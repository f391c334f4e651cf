package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// ResultResponse represents the accumulated violations of one candidate
type ResultResponse struct {
	SessionKey     string `json:"session_key" example:"exam-42"`
	CandidateEmail string `json:"candidate_email" example:"ana@example.com"`
	CandidateName  string `json:"candidate_name" example:"Ana Souza"`
	CandidateID    string `json:"candidate_id,omitempty" example:"cand-7"`
	Mode           string `json:"mode" example:"candidate"`
	TabSwitches    int    `json:"tab_switches" example:"3"`
	Inactivities   int    `json:"inactivities" example:"1"`
	TextSelections int    `json:"text_selections" example:"0"`
	Copies         int    `json:"copies" example:"2"`
	Pastes         int    `json:"pastes" example:"0"`
	RightClicks    int    `json:"right_clicks" example:"0"`
	FaceNotVisible int    `json:"face_not_visible" example:"4"`
	FirstSeenAt    string `json:"first_seen_at" example:"2024-05-01T10:00:00Z"`
	LastSeenAt     string `json:"last_seen_at" example:"2024-05-01T10:42:13Z"`
}

// SessionResultsResponse represents every candidate of one session
type SessionResultsResponse struct {
	SessionKey string           `json:"session_key" example:"exam-42"`
	Results    []ResultResponse `json:"results"`
	Total      int              `json:"total" example:"1"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message" example:"Request validation failed"`
}

// NewSwagger documents the collector's REST surface. The websocket routes
// (/ws for agents, /ws/watch/:session_key for dashboards) are not
// expressible in Swagger 2.0.
func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Proctor Collector API",
		Version:     "v1.0.0",
		Description: "Read API over the violation totals recorded from proctoring agents",
		Host:        "localhost:3000",
		Path:        "/v1",
	})

	endpoints := []*endpoint.EndPoint{
		// GET /v1/results/{session_key}/{candidate_email}
		endpoint.New(
			endpoint.GET,
			"/results/{session_key}/{candidate_email}",
			endpoint.WithTags("Results"),
			endpoint.WithSummary("Get a candidate's violation totals"),
			endpoint.WithDescription("Returns the per-type counters recorded for one candidate. The session key is the exam_id or the question_set_id."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("session_key", parameter.Path, parameter.WithDescription("exam_id or question_set_id")),
				parameter.StrParam("candidate_email", parameter.Path, parameter.WithDescription("Candidate email, percent-encoded")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ResultResponse{}, "200", "Totals found"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "RESULT_NOT_FOUND", Message: "No violations recorded for this candidate"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "Request validation failed"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Message: "Too many requests"}, "429", "Too Many Requests"),
				response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error"),
			}),
		),

		// GET /v1/results/{session_key}
		endpoint.New(
			endpoint.GET,
			"/results/{session_key}",
			endpoint.WithTags("Results"),
			endpoint.WithSummary("List a session's violation totals"),
			endpoint.WithDescription("Returns every candidate recorded for the session, ordered by email. An unknown session yields an empty list."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("session_key", parameter.Path, parameter.WithDescription("exam_id or question_set_id")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SessionResultsResponse{}, "200", "Totals listed"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "Request validation failed"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Message: "Too many requests"}, "429", "Too Many Requests"),
				response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
