// Package axon is the request-serving endpoint of the miner: it exposes
// forward and backward calls over HTTP, gated by the admission controller
// and backed by the nucleus engine.
package axon

import (
	"errors"
	"net/http"
	"time"

	"neurond/logging"
	"neurond/nucleus"
	"neurond/synapse"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// HotkeyHeader names the caller on every request.
const HotkeyHeader = "X-Hotkey"

var errHotkeyRequired = echo.NewHTTPError(http.StatusUnauthorized, "caller hotkey is required")

// EpochStatus reports the training loop's position for the status endpoint.
// Satisfied by *scheduler.PhaseTracker.
type EpochStatus interface {
	Status() (phase string, block int64, epochs int64)
}

type Server struct {
	e         *echo.Echo
	engine    *nucleus.Engine
	admission *AdmissionController
	epochs    EpochStatus
}

func NewServer(engine *nucleus.Engine, admission *AdmissionController, epochs EpochStatus) *Server {
	e := echo.New()
	e.HideBanner = true
	s := &Server{
		e:         e,
		engine:    engine,
		admission: admission,
		epochs:    epochs,
	}

	e.Use(requestLoggingMiddleware)
	g := e.Group("/v1/")

	g.GET("status", s.getStatus)
	g.POST("forward/:kind", s.postForward)
	g.POST("backward", s.postBackward)

	return s
}

func (s *Server) Start(addr string) {
	go func() {
		if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("axon server stopped", logging.Axon, "error", err)
		}
	}()
}

func (s *Server) Shutdown() error {
	return s.e.Close()
}

// Handler exposes the underlying HTTP handler for tests.
func (s *Server) Handler() http.Handler {
	return s.e
}

type statusResponse struct {
	Status          string `json:"status"`
	Phase           string `json:"phase,omitempty"`
	Block           int64  `json:"block,omitempty"`
	EpochsCompleted int64  `json:"epochs_completed,omitempty"`
}

func (s *Server) getStatus(ctx echo.Context) error {
	resp := statusResponse{Status: "ok"}
	if s.epochs != nil {
		resp.Phase, resp.Block, resp.EpochsCompleted = s.epochs.Status()
	}
	return ctx.JSON(http.StatusOK, resp)
}

// postForward serves one inference request. Admission rejections drop the
// request before any compute; per-call failures are reported inside the
// envelope with a non-success return code.
func (s *Server) postForward(ctx echo.Context) error {
	hotkey := ctx.Request().Header.Get(HotkeyHeader)
	if hotkey == "" {
		return errHotkeyRequired
	}

	kind, err := synapse.ParseKind(ctx.Param("kind"))
	if err != nil {
		return ctx.JSON(http.StatusOK, synapse.FailureResponse(synapse.CodeNotImplemented, err))
	}

	if s.admission.IsBlacklisted(hotkey, kind) {
		return ctx.JSON(http.StatusForbidden, synapse.FailureResponse(synapse.CodeBlacklisted, nil))
	}

	var req synapse.WireRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	codec, err := synapse.CodecFor(req.InputCodec)
	if err != nil {
		return ctx.JSON(http.StatusOK, synapse.FailureResponse(synapse.CodeUnknownException, err))
	}
	input, err := codec.Deserialize(req.SerializedInput)
	if err != nil {
		return ctx.JSON(http.StatusOK, synapse.FailureResponse(synapse.CodeUnknownException, err))
	}

	output, err := s.engine.Forward(input, nucleus.CallSpec{Kind: kind, Generate: req.Generate})
	if err != nil {
		code := synapse.CodeUnknownException
		if errors.Is(err, synapse.ErrNotImplemented) {
			code = synapse.CodeNotImplemented
		}
		return ctx.JSON(http.StatusOK, synapse.FailureResponse(code, err))
	}

	resp, err := synapse.SuccessResponse(output, req.OutputCodec)
	if err != nil {
		return ctx.JSON(http.StatusOK, synapse.FailureResponse(synapse.CodeUnknownException, err))
	}
	return ctx.JSON(http.StatusOK, resp)
}

// postBackward applies remote gradients through the dispatcher and reports
// per-item outcomes in batch order.
func (s *Server) postBackward(ctx echo.Context) error {
	hotkey := ctx.Request().Header.Get(HotkeyHeader)
	if hotkey == "" {
		return errHotkeyRequired
	}

	var req synapse.BackwardWireRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Inputs) != len(req.Requests) || len(req.Gradients) != len(req.Requests) {
		return echo.NewHTTPError(http.StatusBadRequest, "inputs, gradients and requests must have equal length")
	}

	for _, item := range req.Requests {
		if s.admission.IsBlacklisted(hotkey, item.Kind) {
			return ctx.JSON(http.StatusForbidden, synapse.FailureResponse(synapse.CodeBlacklisted, nil))
		}
	}

	codec, err := synapse.CodecFor(req.InputCodec)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	inputs := make([]*synapse.Tensor, len(req.Inputs))
	grads := make([]*synapse.Tensor, len(req.Gradients))
	specs := make([]nucleus.CallSpec, len(req.Requests))
	for i := range req.Requests {
		if inputs[i], err = codec.Deserialize(req.Inputs[i]); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if grads[i], err = codec.Deserialize(req.Gradients[i]); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		specs[i] = nucleus.CallSpec{Kind: req.Requests[i].Kind, Generate: req.Requests[i].Generate}
	}

	results := s.engine.Dispatch(inputs, grads, specs)
	resp := synapse.BackwardWireResponse{
		Codes:    make([]synapse.ReturnCode, len(results)),
		Messages: make([]string, len(results)),
	}
	for i, r := range results {
		resp.Codes[i] = r.Code
		resp.Messages[i] = r.Message
	}
	return ctx.JSON(http.StatusOK, resp)
}

// requestLoggingMiddleware tags each request with an id and logs its
// outcome.
func requestLoggingMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		requestId := ctx.Request().Header.Get(echo.HeaderXRequestID)
		if requestId == "" {
			requestId = uuid.NewString()
		}
		ctx.Response().Header().Set(echo.HeaderXRequestID, requestId)

		start := time.Now()
		err := next(ctx)
		logging.Debug("request served", logging.Axon,
			"request_id", requestId,
			"method", ctx.Request().Method,
			"path", ctx.Request().URL.Path,
			"status", ctx.Response().Status,
			"duration", time.Since(start).String())
		return err
	}
}
