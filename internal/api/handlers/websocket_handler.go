package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/examgen/backend/internal/exam"
	"github.com/examgen/backend/pkg/logger"
)

// WebSocketHandler streams paper-generation progress: one event per
// question as it lands or fails, then the assembled paper.
type WebSocketHandler struct {
	service *exam.Service
}

func NewWebSocketHandler(service *exam.Service) *WebSocketHandler {
	return &WebSocketHandler{service: service}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("websocket connection established")
	defer func() {
		c.Close()
		logger.Info("websocket connection closed")
	}()

	for {
		var msg struct {
			Type    string            `json:"type"`
			Request exam.PaperRequest `json:"request"`
		}
		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("websocket read ended", zap.Error(err))
			return
		}
		if msg.Type != "generate" {
			continue
		}

		h.streamGeneration(c, msg.Request)
	}
}

func (h *WebSocketHandler) streamGeneration(c *websocket.Conn, req exam.PaperRequest) {
	// Progress callbacks arrive from concurrent question generations;
	// gorilla-style conns require a single writer, so funnel through a
	// channel drained here.
	events := make(chan exam.ProgressEvent, 16)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for ev := range events {
			if err := c.WriteJSON(map[string]interface{}{"type": "progress", "event": ev}); err != nil {
				logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}()

	paper, err := h.service.GeneratePaperWithProgress(context.Background(), req, func(ev exam.ProgressEvent) {
		select {
		case events <- ev:
		default:
		}
	})
	close(events)
	<-done

	if err != nil {
		c.WriteJSON(map[string]interface{}{"type": "error", "error": err.Error()})
		return
	}
	c.WriteJSON(map[string]interface{}{"type": "complete", "paper": paper})
}
