// logutil.go - slog-Hilfsfunktionen
//
// Dieses Modul enthaelt:
// - LevelTrace: Log-Level unterhalb von Debug
// - NewLogger: Erstellt einen slog.Logger mit gekuerzter Source-Angabe
// - Trace/TraceContext: Logging auf Trace-Level
package logutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
)

// LevelTrace ist ein Log-Level unterhalb von slog.LevelDebug
const LevelTrace slog.Level = slog.LevelDebug - 4

// NewLogger erstellt einen Text-Logger mit Source-Angabe,
// wobei der Dateipfad auf den Basisnamen gekuerzt wird
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.SourceKey {
				source := attr.Value.Any().(*slog.Source)
				source.File = filepath.Base(source.File)
			}

			return attr
		},
	}))
}

// Trace loggt auf Trace-Level
func Trace(msg string, args ...any) {
	slog.Log(context.TODO(), LevelTrace, msg, args...)
}

// TraceContext loggt auf Trace-Level mit Context
func TraceContext(ctx context.Context, msg string, args ...any) {
	slog.Log(ctx, LevelTrace, msg, args...)
}
