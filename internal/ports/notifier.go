package ports

import "context"

// Notifier es el sink unidireccional de notificaciones al operador. Las
// implementaciones nunca deben bloquear el avance de la ronda; bajo
// backpressure los mensajes pueden descartarse.
type Notifier interface {
	Notify(ctx context.Context, msg string) error
}
