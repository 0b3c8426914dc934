package logging

import (
	"sync"
)

// ComponentLogger prefixes every message with its owning component
// name and writes through the single process-wide Logger.
type ComponentLogger struct {
	component string
}

func (c *ComponentLogger) Trace(format string, args ...interface{}) {
	logMessage(TRACE, c.component+": "+format, args...)
}
func (c *ComponentLogger) Debug(format string, args ...interface{}) {
	logMessage(DEBUG, c.component+": "+format, args...)
}
func (c *ComponentLogger) Info(format string, args ...interface{}) {
	logMessage(INFO, c.component+": "+format, args...)
}
func (c *ComponentLogger) Warn(format string, args ...interface{}) {
	logMessage(WARN, c.component+": "+format, args...)
}
func (c *ComponentLogger) Error(format string, args ...interface{}) {
	logMessage(ERROR, c.component+": "+format, args...)
}

// LoggerManager hands out one ComponentLogger per named component,
// all backed by the same process-wide file/console sinks.
type LoggerManager struct {
	mu      sync.RWMutex
	loggers map[string]*ComponentLogger
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = &LoggerManager{
			loggers: make(map[string]*ComponentLogger),
		}
	})
	return globalManager
}

// GetLogger returns the named component's logger, creating it on
// first use.
func (lm *LoggerManager) GetLogger(component string) (*ComponentLogger, error) {
	lm.mu.RLock()
	if logger, exists := lm.loggers[component]; exists {
		lm.mu.RUnlock()
		return logger, nil
	}
	lm.mu.RUnlock()

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if logger, exists := lm.loggers[component]; exists {
		return logger, nil
	}
	logger := &ComponentLogger{component: component}
	lm.loggers[component] = logger
	return logger, nil
}

// MustGetLogger returns the named component's logger; GetLogger never
// actually fails, this exists for call sites that prefer to ignore the
// error return.
func (lm *LoggerManager) MustGetLogger(component string) *ComponentLogger {
	logger, err := lm.GetLogger(component)
	if err != nil {
		return &ComponentLogger{component: component}
	}
	return logger
}

// ListComponents возвращает список всех зарегистрированных компонентов
func (lm *LoggerManager) ListComponents() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	components := make([]string, 0, len(lm.loggers))
	for component := range lm.loggers {
		components = append(components, component)
	}
	return components
}

// Удобные функции для получения логгеров
func GetComponentLogger(component string) *ComponentLogger {
	return GetLoggerManager().MustGetLogger(component)
}

func GetNetworkLogger() *ComponentLogger  { return GetComponentLogger("network") }
func GetServerLogger() *ComponentLogger   { return GetComponentLogger("server") }
func GetGameLogger() *ComponentLogger     { return GetComponentLogger("game") }
func GetRegionalLogger() *ComponentLogger { return GetComponentLogger("regional") }
func GetSyncLogger() *ComponentLogger     { return GetComponentLogger("sync") }
