package notify

import (
	"context"
	"log/slog"
	"time"
)

// ChatSender es la porción del cliente del gateway usada para el chat de admins.
type ChatSender interface {
	SendChatMessage(ctx context.Context, userID, message string) error
}

// Chat reparte los mensajes de operador a la lista de admins configurada
// vía chat del gateway. La entrega corre en su propia goroutine con una
// cola con buffer, así un gateway lento o caído nunca frena el motor de
// rondas; si el buffer se llena, los mensajes se descartan (con warning).
type Chat struct {
	sender  ChatSender
	admins  []string
	queue   chan string
	timeout time.Duration
}

// NewChat crea el notificador de chat. Llamar a Run para arrancar la entrega.
func NewChat(sender ChatSender, admins []string) *Chat {
	return &Chat{
		sender:  sender,
		admins:  admins,
		queue:   make(chan string, 64),
		timeout: 10 * time.Second,
	}
}

// Notify encola un mensaje sin bloquear.
func (c *Chat) Notify(_ context.Context, msg string) error {
	select {
	case c.queue <- msg:
	default:
		slog.Warn("admin chat queue full, dropping message", "msg", msg)
	}
	return nil
}

// Run entrega los mensajes encolados hasta que el contexto se cancela.
func (c *Chat) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.queue:
			c.deliver(ctx, msg)
		}
	}
}

func (c *Chat) deliver(ctx context.Context, msg string) {
	for _, admin := range c.admins {
		sctx, cancel := context.WithTimeout(ctx, c.timeout)
		if err := c.sender.SendChatMessage(sctx, admin, msg); err != nil {
			slog.Warn("admin chat delivery failed", "admin", admin, "err", err)
		}
		cancel()
	}
}
