package mysql

import (
	"fmt"
	"log/slog"
)

// gormLogWriter forwards gorm's printf-style warnings to slog.
type gormLogWriter struct{}

func (gormLogWriter) Printf(format string, args ...any) {
	slog.Warn(fmt.Sprintf(format, args...), "component", "gorm")
}
