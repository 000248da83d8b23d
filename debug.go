package dcp

import (
	"context"
	"log/slog"
)

// levelTrace sits below slog.LevelDebug and is used for register-level
// chatter: channel arming, semaphore increments, packet addresses.
const levelTrace = slog.LevelDebug - 1

func (d *DCP) logerr(msg string, attrs ...slog.Attr) {
	d.logattrs(slog.LevelError, msg, attrs...)
}

func (d *DCP) warn(msg string, attrs ...slog.Attr) {
	d.logattrs(slog.LevelWarn, msg, attrs...)
}

func (d *DCP) info(msg string, attrs ...slog.Attr) {
	d.logattrs(slog.LevelInfo, msg, attrs...)
}

func (d *DCP) debug(msg string, attrs ...slog.Attr) {
	d.logattrs(slog.LevelDebug, msg, attrs...)
}

func (d *DCP) trace(msg string, attrs ...slog.Attr) {
	d.logattrs(levelTrace, msg, attrs...)
}

func (d *DCP) logattrs(level slog.Level, msg string, attrs ...slog.Attr) {
	if d.hw == nil || d.hw.logger == nil {
		return
	}
	d.hw.logger.LogAttrs(context.Background(), level, msg, attrs...)
}
