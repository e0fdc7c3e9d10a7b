package identity

// LoggerProvider hands out named loggers so host applications can route
// component logs through their own logging stack.
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// LoggerProviderFunc adapts a function to the LoggerProvider interface.
type LoggerProviderFunc func(name string) Logger

// GetLogger implements LoggerProvider.
func (f LoggerProviderFunc) GetLogger(name string) Logger {
	if f == nil {
		return defLogger{}
	}
	return f(name)
}

// ResolveLogger picks the effective logger for a component. An explicit
// logger wins over the provider; missing both falls back to the default
// stdout logger.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) (LoggerProvider, Logger) {
	if logger != nil {
		return provider, logger
	}

	if provider != nil {
		if l := provider.GetLogger(name); l != nil {
			return provider, l
		}
	}

	return provider, defLogger{}
}
