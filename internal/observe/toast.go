package observe

import "log/slog"

type ToastLevel string

const (
	ToastInfo    ToastLevel = "info"
	ToastWarning ToastLevel = "warning"
)

// Toast is a transient user-facing notification.
type Toast struct {
	Level   ToastLevel `json:"level"`
	Message string     `json:"message"`
}

// Toasts publishes notifications to whoever displays them.
type Toasts struct {
	b      *Broadcaster[Toast]
	logger *slog.Logger
}

func NewToasts(logger *slog.Logger) *Toasts {
	if logger == nil {
		logger = slog.Default()
	}
	return &Toasts{b: NewBroadcaster[Toast](32), logger: logger}
}

func (t *Toasts) Info(message string) {
	t.logger.Info("toast", slog.String("message", message))
	t.b.Publish(Toast{Level: ToastInfo, Message: message})
}

func (t *Toasts) Warn(message string) {
	t.logger.Warn("toast", slog.String("message", message))
	t.b.Publish(Toast{Level: ToastWarning, Message: message})
}

func (t *Toasts) Subscribe() (<-chan Toast, func()) {
	return t.b.Subscribe(false)
}

func (t *Toasts) Close() {
	t.b.Close()
}
