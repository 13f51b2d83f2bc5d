package action

// Handler performs the real-world effect of a switch.
// Each method reports whether the effect succeeded.
type Handler interface {
	TurnOn() bool
	TurnOff() bool
}

// Setter turns a switch on or off on behalf of a named trigger source.
type Setter interface {
	Set(on bool, source string) bool
}

// Logger is the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

func orNoop(l Logger) Logger {
	if l == nil {
		return noopLogger{}
	}
	return l
}

// Static reports fixed results without side effects.
type Static struct {
	On  bool
	Off bool
}

// TurnOn returns s.On.
func (s Static) TurnOn() bool { return s.On }

// TurnOff returns s.Off.
func (s Static) TurnOff() bool { return s.Off }
