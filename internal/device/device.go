// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package device models the host audio backend as a small contract so the
// audio player and mic streamer can be exercised without a real sound
// card. Building a native PortAudio/WebRTC-track binding is out of scope;
// device.Null exists for tests and headless operation.
package device

// StreamSpec describes the stream the caller wants opened.
type StreamSpec struct {
	SampleRate  int
	FrameBytes  int // page size in bytes; one callback fires per frame
	DeviceIndex int
}

// OutputCallback is invoked once per frame period on the device's output
// thread. It must return a buffer of exactly FrameBytes and whether the
// stream should keep running.
type OutputCallback func() (data []byte, keepGoing bool)

// InputCallback is invoked once per frame period on the device's input
// thread with the captured raw bytes.
type InputCallback func(data []byte)

// OutputStream is a single opened output device stream.
type OutputStream interface {
	SetCallback(cb OutputCallback)
	Close() error
}

// InputStream is a single opened input device stream.
type InputStream interface {
	SetCallback(cb InputCallback)
	Close() error
}

// Backend opens input/output streams against the host audio system.
type Backend interface {
	OpenOutput(spec StreamSpec) (OutputStream, error)
	OpenInput(spec StreamSpec) (InputStream, error)
	Close() error
}
