package ws

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Handler upgrades the request and serves one connection until it closes.
func Handler(ctx context.Context, hub *Hub, dispatcher *Dispatcher, queueSize int, logger *slog.Logger) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		Serve(ctx, hub, conn, dispatcher, queueSize, logger)
	})
}

// Serve runs a connection's pumps and blocks until it closes.
func Serve(ctx context.Context, hub *Hub, conn Conn, dispatcher *Dispatcher, queueSize int, logger *slog.Logger) {
	client := NewClient(hub, conn, dispatcher, queueSize, logger)
	if !hub.Register(client) {
		_ = conn.Close()
		return
	}

	go client.WritePump()
	go client.Work(ctx)

	client.Emit(EventConnected, ConnectedPayload{ConnectionID: client.id.String()})
	client.ReadPump()
}

func UpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}
