package core

// Logger logs messages with optional extra args (errors, maps, a Person).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies who triggered a logged event.
type Person struct {
	ID    string
	Name  string
	Email string
}

// NopLogger discards everything except Fatal, which panics.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(msg string, _ ...interface{}) {
	panic(msg)
}
