// Copyright (c) 2025 The Quazaa Development Team.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"

	"github.com/quazaa-development-team/g2hostcache/g2addr"
	"github.com/quazaa-development-team/g2hostcache/hostcache"
	"github.com/quazaa-development-team/g2hostcache/security"
)

// logWriter fans out to both stdout and a rotated log file, the same shape
// dcrd's own log.go backs its slog.Backend with.
type logWriter struct {
	rotator *rotator.Rotator
}

func (w logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	return w.rotator.Write(p)
}

var (
	backendLog *slog.Backend
	logRotator *rotator.Rotator
)

// initLogRotator opens a rotating log file at logFile and installs a
// backend that writes to it and to stdout. It must be called before any
// package logger is used.
func initLogRotator(logFile string) error {
	r, err := rotator.New(logFile, 5000, false, 0)
	if err != nil {
		return fmt.Errorf("g2hostcached: failed to create log rotator: %w", err)
	}
	logRotator = r
	backendLog = slog.NewBackend(logWriter{rotator: r})
	return nil
}

// packageLogger returns a leveled logger for subsystem, defaulting to
// info level until setLogLevels adjusts it.
func packageLogger(subsystem string) slog.Logger {
	l := backendLog.Logger(subsystem)
	l.SetLevel(slog.LevelInfo)
	return l
}

// log is this daemon's own logger, for messages that don't belong to any
// of the library packages it wires together.
var log = slog.Disabled

// setLogLevels parses debugLevel and applies it to every package logger
// this daemon wires (its own, plus g2addr, security, and hostcache),
// mirroring dcrd's own setLogLevels.
func setLogLevels(debugLevel string) error {
	level, ok := slog.LevelFromString(debugLevel)
	if !ok {
		return fmt.Errorf("g2hostcached: unknown log level %q", debugLevel)
	}

	loggers := map[string]slog.Logger{}
	for name, setter := range map[string]func(slog.Logger){
		"MAIN": func(l slog.Logger) { log = l },
		"ADDR": g2addr.UseLogger,
		"SECU": security.UseLogger,
		"HSTC": hostcache.UseLogger,
	} {
		l := packageLogger(name)
		loggers[name] = l
		setter(l)
	}
	for _, l := range loggers {
		l.SetLevel(level)
	}
	return nil
}

// closeLogRotator flushes and closes the rotating log file. It should be
// called once, on daemon shutdown.
func closeLogRotator() {
	if logRotator != nil {
		logRotator.Close()
	}
}
