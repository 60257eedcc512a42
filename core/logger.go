package core

// Person identifies the acting user in log entries.
type Person struct {
	ID       string
	Username string
	Email    string
}

// Logger is any service that can log messages with optional structured
// arguments (maps, errors, a Person...).
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
