package authclient

import "context"

// LogNotifier writes notifications to a Logger, the CLI uses it in place of toasts.
type LogNotifier struct {
	Logger Logger
}

// NewLogNotifier returns a Notifier backed by logger
func NewLogNotifier(logger Logger) *LogNotifier {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogNotifier{Logger: logger}
}

func (n *LogNotifier) Success(_ context.Context, message string) {
	if message == "" {
		return
	}
	n.Logger.Info(message)
}

func (n *LogNotifier) Error(_ context.Context, message string) {
	if message == "" {
		return
	}
	n.Logger.Error(message)
}

type nopNotifier struct{}

func (nopNotifier) Success(context.Context, string) {}
func (nopNotifier) Error(context.Context, string)   {}

type nopNavigator struct{}

func (nopNavigator) Push(context.Context, string) error         { return nil }
func (nopNavigator) HardNavigate(context.Context, string) error { return nil }
