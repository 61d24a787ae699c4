package logutil

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// LevelSampler drops events below Level. plogdump --quiet uses it to keep
// load diagnostics out of table output while still reporting failures.
type LevelSampler struct {
	Level zerolog.Level
}

func (l LevelSampler) Sample(lvl zerolog.Level) bool {
	return lvl >= l.Level
}

// FrameSampler thins out per-frame diagnostics of a single plog load. Events
// at Level or above always pass. Below it the first event passes and then
// one in Every. A FrameSampler must not be copied after first use.
type FrameSampler struct {
	Level zerolog.Level
	Every uint32

	seen uint32
}

func (s *FrameSampler) Sample(lvl zerolog.Level) bool {
	if lvl >= s.Level || s.Every <= 1 {
		return true
	}
	n := atomic.AddUint32(&s.seen, 1)
	return n%s.Every == 1
}
