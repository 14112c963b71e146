package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"meeting-insights-go/internal/apierror"
	"meeting-insights-go/internal/logger"
)

type Meta struct {
	LatencyMs int64  `json:"latency_ms"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	RequestID string `json:"request_id"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
	Meta    Meta       `json:"meta"`
}

const (
	localRequestID = "request_id"
	localStart     = "request_start"
)

// Tag stores the request id and start time for the envelope helpers.
func Tag(c *fiber.Ctx) error {
	id := logger.RequestID(c)
	c.Locals(localRequestID, id)
	c.Locals(localStart, time.Now())
	c.Set(logger.RequestIDHeader, id)
	return c.Next()
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(localRequestID).(string); ok {
		return id
	}
	return logger.RequestID(c)
}

func meta(c *fiber.Ctx) Meta {
	m := Meta{Method: c.Method(), Path: c.Path(), RequestID: requestID(c)}
	if start, ok := c.Locals(localStart).(time.Time); ok {
		m.LatencyMs = time.Since(start).Milliseconds()
	}
	return m
}

func ok(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusOK).JSON(Envelope{Success: true, Data: data, Meta: meta(c)})
}

func fail(c *fiber.Ctx, err error) error {
	status := apierror.StatusOf(err)
	code := string(apierror.KindOf(err))
	msg := err.Error()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status, code, msg = fe.Code, "http", fe.Message
	}
	return c.Status(status).JSON(Envelope{
		Success: false,
		Error:   &ErrorBody{Code: code, Message: msg},
		Meta:    meta(c),
	})
}

// ErrorHandler renders errors that escape a route, such as unknown paths or
// an oversized body, in the standard envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return fail(c, err)
}
