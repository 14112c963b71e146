package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"meeting-insights-go/internal/apierror"
	"meeting-insights-go/internal/diarization"
	"meeting-insights-go/internal/language"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/processor"
	"meeting-insights-go/internal/report"
	"meeting-insights-go/internal/storage"
	"meeting-insights-go/internal/types"
)

type Processor interface {
	Process(ctx context.Context, in processor.Input) (types.PipelineOutcome, error)
	Diarize(ctx context.Context, in processor.Input) (types.DiarizationOutcome, error)
}

type Store interface {
	Get(ctx context.Context, requestID string) (types.PipelineOutcome, error)
	List(ctx context.Context, limit int) ([]storage.OutcomeSummary, error)
}

// Health describes which upstreams are configured.
type Health struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

type Deps struct {
	Processor       Processor
	Store           Store
	SpeakerServices []diarization.SpeakerService
	Health          Health
	Log             *logger.Logger
}

type Handler struct {
	deps Deps
}

func New(deps Deps) *Handler {
	if deps.SpeakerServices == nil {
		deps.SpeakerServices = []diarization.SpeakerService{}
	}
	return &Handler{deps: deps}
}

func (h *Handler) Register(app *fiber.App) {
	api := app.Group("/api", Tag)
	api.Post("/process-audio", h.processAudio(false))
	api.Post("/process-audio-with-speakers", h.processAudio(true))
	api.Post("/speaker-diarization", h.speakerDiarization)
	api.Get("/health", h.health)
	api.Get("/supported-languages", h.supportedLanguages)
	api.Get("/supported-audio-formats", h.supportedFormats)
	api.Get("/supported-speaker-services", h.supportedSpeakerServices)
	api.Get("/outcomes", h.listOutcomes)
	api.Get("/outcomes/:id", h.getOutcome)
	api.Get("/outcomes/:id/report.xlsx", h.outcomeReport)
}

// jsonRequest is the JSON body accepted by the processing routes.
type jsonRequest struct {
	AudioData          string `json:"audioData"`
	AudioFormat        string `json:"audioFormat"`
	SourceLanguage     string `json:"sourceLanguage"`
	TargetLanguage     string `json:"targetLanguage"`
	Context            string `json:"context"`
	IncludeDiarization bool   `json:"includeDiarization"`
	SpeakerServiceID   string `json:"speakerServiceId"`
}

func (h *Handler) processAudio(forceSpeakers bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		log := h.deps.Log.WithRequest(c, requestID(c)).WithField("handler", "process-audio")
		in, err := parseInput(c)
		if err != nil {
			log.WithField("error", err.Error()).Warn("invalid request")
			return fail(c, err)
		}
		if forceSpeakers {
			in.IncludeDiarization = true
		}
		log.WithField("diarization", in.IncludeDiarization).Info("process request received")

		out, err := h.deps.Processor.Process(c.UserContext(), in)
		if err != nil {
			log.WithField("error", err.Error()).Error("process request failed")
			return fail(c, err)
		}
		return ok(c, out)
	}
}

func (h *Handler) speakerDiarization(c *fiber.Ctx) error {
	log := h.deps.Log.WithRequest(c, requestID(c)).WithField("handler", "speaker-diarization")
	in, err := parseInput(c)
	if err != nil {
		log.WithField("error", err.Error()).Warn("invalid request")
		return fail(c, err)
	}
	out, err := h.deps.Processor.Diarize(c.UserContext(), in)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, out)
}

func (h *Handler) health(c *fiber.Ctx) error {
	return ok(c, h.deps.Health)
}

func (h *Handler) supportedLanguages(c *fiber.Ctx) error {
	return ok(c, language.Supported())
}

func (h *Handler) supportedFormats(c *fiber.Ctx) error {
	return ok(c, language.Formats())
}

func (h *Handler) supportedSpeakerServices(c *fiber.Ctx) error {
	return ok(c, h.deps.SpeakerServices)
}

func (h *Handler) listOutcomes(c *fiber.Ctx) error {
	if h.deps.Store == nil {
		return fail(c, apierror.New(apierror.KindNotFound, "storage", "outcome storage disabled"))
	}
	limit := c.QueryInt("limit", 50)
	list, err := h.deps.Store.List(c.UserContext(), limit)
	if err != nil {
		return fail(c, apierror.Wrap(apierror.KindInternal, "storage", err))
	}
	return ok(c, list)
}

func (h *Handler) getOutcome(c *fiber.Ctx) error {
	out, err := h.lookup(c)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, out)
}

func (h *Handler) outcomeReport(c *fiber.Ctx) error {
	out, err := h.lookup(c)
	if err != nil {
		return fail(c, err)
	}
	var buf bytes.Buffer
	if err := report.Write(&buf, out); err != nil {
		return fail(c, apierror.Wrap(apierror.KindInternal, "report", err))
	}
	c.Set(fiber.HeaderContentType, report.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="meeting-%s.xlsx"`, out.RequestID))
	return c.Send(buf.Bytes())
}

func (h *Handler) lookup(c *fiber.Ctx) (types.PipelineOutcome, error) {
	if h.deps.Store == nil {
		return types.PipelineOutcome{}, apierror.New(apierror.KindNotFound, "storage", "outcome storage disabled")
	}
	id := c.Params("id")
	out, err := h.deps.Store.Get(c.UserContext(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return types.PipelineOutcome{}, apierror.New(apierror.KindNotFound, "storage", "no outcome for request "+id)
	}
	if err != nil {
		return types.PipelineOutcome{}, apierror.Wrap(apierror.KindInternal, "storage", err)
	}
	return out, nil
}

// parseInput reads either a multipart upload (field "audio") or a JSON body.
func parseInput(c *fiber.Ctx) (processor.Input, error) {
	in := processor.Input{RequestID: requestID(c)}
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		file, err := c.FormFile("audio")
		if err != nil {
			return in, apierror.Validation("no audio file provided")
		}
		f, err := file.Open()
		if err != nil {
			return in, apierror.Validation("audio file unreadable")
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return in, apierror.Validation("audio file unreadable")
		}
		in.Audio = data
		in.Format = c.FormValue("audioFormat", strings.TrimPrefix(filepath.Ext(file.Filename), "."))
		in.SourceLanguage = c.FormValue("sourceLanguage")
		in.TargetLanguage = c.FormValue("targetLanguage")
		in.Context = c.FormValue("context")
		in.IncludeDiarization, _ = strconv.ParseBool(c.FormValue("includeDiarization"))
		in.SpeakerServiceID = c.FormValue("speakerServiceId")
		return in, nil
	}

	var req jsonRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return in, apierror.Validation("invalid JSON")
	}
	if strings.TrimSpace(req.AudioData) == "" {
		return in, apierror.Validation("no audioData provided")
	}
	in.AudioBase64 = req.AudioData
	in.Format = req.AudioFormat
	in.SourceLanguage = req.SourceLanguage
	in.TargetLanguage = req.TargetLanguage
	in.Context = req.Context
	in.IncludeDiarization = req.IncludeDiarization
	in.SpeakerServiceID = req.SpeakerServiceID
	return in, nil
}
