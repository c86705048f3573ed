package main

import (
	"log/slog"
	"os"
	"runtime/pprof"
	"sync"
	"time"
)

// cpuProfile writes a CPU profile for as long as the camera auto-orbits.
type cpuProfile struct {
	path   string
	f      *os.File
	log    *slog.Logger
	start  time.Time
	frames func() uint64
	first  uint64
	once   sync.Once
}

// startCPUProfile begins writing a CPU profile to path. frames reports the
// caster's frame counter so Stop can log how many frames were sampled.
func startCPUProfile(path string, frames func() uint64, log *slog.Logger) (*cpuProfile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	log.Info("recording CPU profile", "path", path)
	return &cpuProfile{path: path, f: f, log: log, start: time.Now(), frames: frames, first: frames()}, nil
}

// Stop flushes the profile. Only the first call does anything.
func (p *cpuProfile) Stop() {
	p.once.Do(func() {
		pprof.StopCPUProfile()
		if err := p.f.Close(); err != nil {
			p.log.Error("CPU profile not closed", "path", p.path, "err", err)
			return
		}
		p.log.Info("CPU profile written",
			"path", p.path,
			"duration", time.Since(p.start).Round(time.Millisecond),
			"frames", p.frames()-p.first)
	})
}
