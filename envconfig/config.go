// config.go - Haupt-Konfigurationsfunktionen fuer Textembed
//
// Dieses Modul enthaelt:
// - Models: Gibt das Model-Verzeichnis zurueck (TEXTEMBED_MODELS)
// - LogLevel: Gibt das Log-Level zurueck (TEXTEMBED_DEBUG)
// - Var: Liest eine Environment-Variable
//
// Weitere Konfigurationen sind ausgelagert:
// - config_features.go: Feature-Flags
// - config_utils.go: Utility-Funktionen und AsMap
package envconfig

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Models gibt das Model-Verzeichnis zurueck
// Konfigurierbar via TEXTEMBED_MODELS
// Default: $HOME/.textembed/models
func Models() string {
	if s := Var("TEXTEMBED_MODELS"); s != "" {
		return s
	}

	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}

	return filepath.Join(home, ".textembed", "models")
}

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via TEXTEMBED_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("TEXTEMBED_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
