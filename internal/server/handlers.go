// Package server exposes the agent over HTTP. Requests are stateless: the
// client sends the conversation so far and gets back what was appended.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/reinhart/taskAgent/internal/assistant"
	"github.com/reinhart/taskAgent/internal/logger"
)

// Handler runs one agent per request against a shared provider and tool set.
type Handler struct {
	provider assistant.LLMProvider
	registry *assistant.ToolRegistry
	system   string
	opts     assistant.Options
	timeout  time.Duration
}

func NewHandler(provider assistant.LLMProvider, registry *assistant.ToolRegistry, systemPrompt string, opts assistant.Options, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Handler{
		provider: provider,
		registry: registry,
		system:   systemPrompt,
		opts:     opts,
		timeout:  timeout,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.health)
	v1 := router.Group("/v1")
	v1.POST("/chat", h.chat)
	v1.POST("/chat/stream", h.chatStream)
}

type chatRequest struct {
	Messages []assistant.Message `json:"messages"`
	Input    string              `json:"input" binding:"required"`
}

type chatResponse struct {
	Output   string              `json:"output,omitempty"`
	Messages []assistant.Message `json:"messages"`
	Error    string              `json:"error,omitempty"`
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "tools": h.registry.Len()})
}

// transcript rebuilds the client's conversation, seeding the system prompt
// when the client did not send one.
func (h *Handler) transcript(prior []assistant.Message) *assistant.Transcript {
	if len(prior) == 0 || prior[0].Role != assistant.RoleSystem {
		t := assistant.NewTranscript(h.system)
		for _, m := range prior {
			t.Append(m)
		}
		return t
	}
	return assistant.TranscriptFrom(prior)
}

func (h *Handler) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: input is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	t := h.transcript(req.Messages)
	start := t.Len()
	agent := assistant.NewAgent(h.provider, h.registry, h.system, h.opts)

	output, err := agent.RunTurn(ctx, t, req.Input)
	resp := chatResponse{Output: output, Messages: t.Since(start)}
	if err != nil {
		logger.Error("chat request failed: %v", err)
		resp.Error = err.Error()
		c.JSON(statusFor(err), resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type doneEvent struct {
	Output   string              `json:"output"`
	Messages []assistant.Message `json:"messages"`
}

type errorEvent struct {
	Message  string              `json:"message"`
	Messages []assistant.Message `json:"messages"`
}

// chatStream runs the turn and reports it as server-sent events:
// fragment, status, then done or error.
func (h *Handler) chatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: input is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	t := h.transcript(req.Messages)
	start := t.Len()
	opts := h.opts
	opts.Streaming = true
	agent := assistant.NewAgent(h.provider, h.registry, h.system, opts)

	type event struct {
		name string
		data interface{}
	}
	// One channel keeps fragments ahead of the final event.
	events := make(chan event, 64)
	agent.OnFragment = func(f assistant.Fragment) {
		select {
		case events <- event{"fragment", f}:
		case <-ctx.Done():
		}
	}

	go func() {
		output, err := agent.RunTurn(ctx, t, req.Input)
		if err != nil {
			logger.Error("stream request failed: %v", err)
			events <- event{"error", errorEvent{Message: err.Error(), Messages: t.Since(start)}}
		} else {
			events <- event{"done", doneEvent{Output: output, Messages: t.Since(start)}}
		}
		close(events)
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	updates := agent.Updates()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent(ev.name, ev.data)
			c.Writer.Flush()
		case u := <-updates:
			c.SSEvent("status", gin.H{"message": u.Message})
			c.Writer.Flush()
		}
	}
}

func statusFor(err error) int {
	var (
		cfgErr      *assistant.ConfigurationError
		runawayErr  *assistant.RunawayError
		providerErr *assistant.ProviderError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError
	case errors.As(err, &runawayErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &providerErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
