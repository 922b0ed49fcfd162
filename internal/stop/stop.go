package stop

import (
	"errors"
	"io/fs"
	"os"

	"go.uber.org/zap"
)

// Signal reports an operator request to halt trading.
type Signal interface {
	Stopped() bool
}

// Sentinel stops the bot when a marker file appears next to the process.
// Touching the file is the out-of-band kill switch; it is checked at the
// start of every cycle.
type Sentinel struct {
	path string
	log  *zap.Logger

	warned bool
}

func NewSentinel(path string, log *zap.Logger) *Sentinel {
	return &Sentinel{path: path, log: log}
}

func (s *Sentinel) Stopped() bool {
	_, err := os.Stat(s.path)
	if err == nil {
		return true
	}
	if !errors.Is(err, fs.ErrNotExist) && !s.warned {
		s.warned = true
		s.log.Warn("sentinel check failed", zap.String("path", s.path), zap.Error(err))
	}
	return false
}

// Manual is an in-process stop flag, flipped by operator commands.
type Manual struct {
	ch chan struct{}
}

func NewManual() *Manual {
	return &Manual{ch: make(chan struct{})}
}

func (m *Manual) Stop() {
	select {
	case <-m.ch:
	default:
		close(m.ch)
	}
}

func (m *Manual) Stopped() bool {
	select {
	case <-m.ch:
		return true
	default:
		return false
	}
}

// Any combines several signals; the bot halts when any one fires.
type Any []Signal

func (a Any) Stopped() bool {
	for _, s := range a {
		if s != nil && s.Stopped() {
			return true
		}
	}
	return false
}
