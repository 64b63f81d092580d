package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"

	"github.com/microlens/microlens-backend/internal/providers"
	"github.com/microlens/microlens-backend/internal/services"
)

// assistantRequest is one inbound websocket message. The client keeps its
// own history and resends it; the server holds no chat state.
type assistantRequest struct {
	Message        string               `json:"message"`
	History        []providers.ChatTurn `json:"history,omitempty"`
	TargetLanguage string               `json:"target_language,omitempty"`
}

// assistantChunk is one outbound websocket frame.
type assistantChunk struct {
	Delta string `json:"delta,omitempty"`
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

// AssistantStream is the free-form assistant chat over websocket. It never
// touches the scan quota: no media is analyzed and nothing is persisted.
func AssistantStream(svc *services.Services) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		defer conn.Close()

		provider, err := svc.Providers.Default()
		if err != nil {
			conn.WriteJSON(assistantChunk{Error: "assistant unavailable"})
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		for {
			var req assistantRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if req.Message == "" {
				conn.WriteJSON(assistantChunk{Error: "empty message"})
				continue
			}

			chunks, err := provider.StreamChat(ctx, providers.ChatInput{
				History:        req.History,
				Message:        req.Message,
				TargetLanguage: req.TargetLanguage,
			})
			if err != nil {
				svc.Log.WithError(err).Warn("assistant stream failed to start")
				conn.WriteJSON(assistantChunk{Error: "assistant unavailable"})
				continue
			}

			for chunk := range chunks {
				if chunk.Error != "" {
					conn.WriteJSON(assistantChunk{Error: chunk.Error})
					break
				}
				if chunk.Delta != "" {
					if err := conn.WriteJSON(assistantChunk{Delta: chunk.Delta}); err != nil {
						return
					}
				}
				if chunk.FinishReason != "" {
					conn.WriteJSON(assistantChunk{Done: true})
				}
			}
		}
	}
}
