// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package device

import (
	"sync"
	"time"
)

// Null is a Backend that drives callbacks on a timer instead of real
// hardware: output streams pull silence (or whatever the caller's callback
// returns) and input streams deliver silence frames. Useful in tests and
// for running the reference client headless.
type Null struct{}

func NewNull() *Null { return &Null{} }

func (n *Null) OpenOutput(spec StreamSpec) (OutputStream, error) {
	return newNullOutputStream(spec), nil
}

func (n *Null) OpenInput(spec StreamSpec) (InputStream, error) {
	return newNullInputStream(spec), nil
}

func (n *Null) Close() error { return nil }

type nullOutputStream struct {
	spec StreamSpec

	mu     sync.Mutex
	cb     OutputCallback
	stopCh chan struct{}
}

func newNullOutputStream(spec StreamSpec) *nullOutputStream {
	s := &nullOutputStream{spec: spec, stopCh: make(chan struct{})}
	go s.run()
	return s
}

func (s *nullOutputStream) SetCallback(cb OutputCallback) {
	s.mu.Lock()
	s.cb = cb
	s.mu.Unlock()
}

func (s *nullOutputStream) run() {
	period := framePeriod(s.spec)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			cb := s.cb
			s.mu.Unlock()
			if cb == nil {
				continue
			}
			if _, keepGoing := cb(); !keepGoing {
				return
			}
		}
	}
}

func (s *nullOutputStream) Close() error {
	close(s.stopCh)
	return nil
}

type nullInputStream struct {
	spec StreamSpec

	mu     sync.Mutex
	cb     InputCallback
	stopCh chan struct{}
}

func newNullInputStream(spec StreamSpec) *nullInputStream {
	s := &nullInputStream{spec: spec, stopCh: make(chan struct{})}
	go s.run()
	return s
}

func (s *nullInputStream) SetCallback(cb InputCallback) {
	s.mu.Lock()
	s.cb = cb
	s.mu.Unlock()
}

func (s *nullInputStream) run() {
	period := framePeriod(s.spec)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	silence := make([]byte, s.spec.FrameBytes)
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			cb := s.cb
			s.mu.Unlock()
			if cb != nil {
				cb(silence)
			}
		}
	}
}

func (s *nullInputStream) Close() error {
	close(s.stopCh)
	return nil
}

func framePeriod(spec StreamSpec) time.Duration {
	if spec.SampleRate == 0 || spec.FrameBytes == 0 {
		return 20 * time.Millisecond
	}
	// Assumes 16-bit mono framing for the period estimate; exact for PCM,
	// an approximation (1 byte/sample) for G.711 is close enough for a
	// headless timer source.
	samplesPerFrame := spec.FrameBytes / 2
	if samplesPerFrame == 0 {
		samplesPerFrame = spec.FrameBytes
	}
	seconds := float64(samplesPerFrame) / float64(spec.SampleRate)
	return time.Duration(seconds * float64(time.Second))
}
