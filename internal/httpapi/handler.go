// Package httpapi exposes the decision processor over HTTP.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"verdict/internal/logger"
	"verdict/internal/processor"
	apperrors "verdict/pkg/errors"
	"verdict/pkg/inbound"
	"verdict/pkg/result"
	"verdict/pkg/violation"
)

// Processor renders a decision for one envelope.
type Processor interface {
	Process(ctx context.Context, env inbound.Envelope[processor.Payload]) result.Result[violation.Violations, processor.Outcome]
}

type Handler struct {
	processor Processor
	logger    logger.Logger
}

func NewHandler(p Processor, log logger.Logger) *Handler {
	return &Handler{processor: p, logger: log}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/api/v1")
	v1.POST("/decisions", h.Decide)
}

// ViolationView is the wire form of one violation.
type ViolationView struct {
	Name     string   `json:"name"`
	Step     string   `json:"step,omitempty"`
	Messages []string `json:"messages"`
	Severity string   `json:"severity"`
	Field    string   `json:"field,omitempty"`
}

type DecisionResponse struct {
	SourceID string                 `json:"source_id"`
	Route    string                 `json:"route,omitempty"`
	Decision inbound.DecisionRecord `json:"decision"`
	Failures []inbound.Failure      `json:"failures,omitempty"`
	Warnings []ViolationView        `json:"warnings,omitempty"`
}

type RejectionResponse struct {
	Error      string          `json:"error"`
	ErrorCode  string          `json:"error_code"`
	Violations []ViolationView `json:"violations"`
}

const ErrorCodeRejected = "MESSAGE_REJECTED"

// Decide evaluates the posted envelope. 200 carries the decision; 422 means
// the message could not be evaluated and lists the violations.
//
// @Summary      Evaluate one message envelope
// @Description  Validates the envelope, routes it and renders a control decision
// @Tags         decisions
// @Accept       json
// @Produce      json
// @Param        envelope  body      inbound.EnvelopeJSON  true  "Inbound envelope"
// @Success      200       {object}  DecisionResponse
// @Failure      400       {object}  errors.ErrorResponse
// @Failure      413       {object}  errors.ErrorResponse
// @Failure      422       {object}  RejectionResponse
// @Failure      429       {object}  errors.ErrorResponse
// @Router       /decisions [post]
func (h *Handler) Decide(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, apperrors.ToErrorResponse(
				apperrors.ErrBadRequest.WithMessage("request body too large")))
			return
		}
		c.JSON(http.StatusBadRequest, apperrors.ToErrorResponse(apperrors.Wrap(err, apperrors.ErrBadRequest)))
		return
	}

	env, err := inbound.DecodeEnvelope(body)
	if err != nil {
		h.logger.WarnwCtx(c.Request.Context(), "Invalid envelope", "error", err)
		c.JSON(apperrors.ToHTTPStatus(err), apperrors.ToErrorResponse(err))
		return
	}

	out := h.processor.Process(c.Request.Context(), env)
	if out.IsFailure() {
		c.JSON(http.StatusUnprocessableEntity, RejectionResponse{
			Error:      "message rejected",
			ErrorCode:  ErrorCodeRejected,
			Violations: Views(out.Err()),
		})
		return
	}

	o := out.Value()
	c.JSON(http.StatusOK, DecisionResponse{
		SourceID: env.SourceID(),
		Route:    o.Route,
		Decision: o.Record(),
		Failures: o.Failures,
		Warnings: Views(o.Violations),
	})
}

// Views converts violations to their wire form.
func Views(v violation.Violations) []ViolationView {
	all := v.All()
	out := make([]ViolationView, 0, len(all))
	for _, item := range all {
		view := ViolationView{
			Name:     item.ValidationName,
			Step:     item.StepName,
			Messages: item.Messages,
			Severity: item.Severity().String(),
		}
		if field, ok := item.Options[violation.OptionField].(string); ok {
			view.Field = field
		}
		out = append(out, view)
	}
	return out
}
