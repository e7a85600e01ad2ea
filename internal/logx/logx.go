// Package logx is the equalizer's diagnostic logger: a thin wrapper over the
// standard library logger with a mutable level gate, adapted from the
// teacher's internal/logx.Logger. The teacher stamps lines with a simulated
// clock and mutes INFO globally while a gossip node is down; there is no
// simulated clock here, so timestamps come from log.LstdFlags, and the mute
// gate is per-instance rather than global, serving spec.md §4.5's `frozen`
// state instead: INFO is muted while a given equalizer is Frozen, since
// "rotate history only" is routine and not worth a line every frame.
package logx

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
)

// Logger prefixes every line with an instance id and level.
type Logger struct {
	id       string
	infoMute atomic.Bool
	out      *log.Logger
}

// New returns a Logger identifying itself as id in every line.
func New(id string) *Logger {
	return &Logger{id: id, out: log.New(os.Stderr, "", log.LstdFlags)}
}

// MuteInfo suppresses Infof output; used while the owning equalizer is Frozen.
func (l *Logger) MuteInfo() { l.infoMute.Store(true) }

// UnmuteInfo restores Infof output.
func (l *Logger) UnmuteInfo() { l.infoMute.Store(false) }

func (l *Logger) with(level, msg string) string {
	return fmt.Sprintf("[%s] [%s] %s", l.id, level, msg)
}

// Infof logs routine progress; muted while the owning equalizer is Frozen.
func (l *Logger) Infof(f string, a ...any) {
	if l.infoMute.Load() {
		return
	}
	l.out.Println(l.with("INFO", fmt.Sprintf(f, a...)))
}

// Warnf logs a recoverable anomaly (spec.md §7: degrade, don't fail).
func (l *Logger) Warnf(f string, a ...any) {
	l.out.Println(l.with("WARN", fmt.Sprintf(f, a...)))
}

// Errorf logs a configuration or setup error a caller rejected.
func (l *Logger) Errorf(f string, a ...any) {
	l.out.Println(l.with("ERROR", fmt.Sprintf(f, a...)))
}
