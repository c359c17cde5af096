// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package audio resolves the wire audio format into a concrete paging plan
// and provides the FIFO page buffer the audio player and mic streamer pop
// and append against.
package audio

import (
	"math"

	"github.com/rapidaai/realtime-client/internal/rterr"
)

// NChannels is fixed: the realtime protocol this client speaks is
// monophonic only, undocumented on the wire but asserted here.
const NChannels = 1

// Format names the wire encoding. Mono in every case.
type Format string

const (
	FormatPCM16 Format = "pcm16" // linear 16-bit PCM, configurable rate (default 24kHz)
	FormatPCMA  Format = "g711_alaw"
	FormatPCMU  Format = "g711_ulaw"
)

// FormatInfo derives the fixed per-format constants: sample rate,
// bytes-per-sample, silence-fill sample, and the byte/ms conversion factors
// that follow from them.
type FormatInfo struct {
	Format Format
	// Rate overrides the default sample rate for FormatPCM16; zero means
	// "use the default" (24000 Hz, matching the protocol's undocumented
	// default).
	Rate int
}

func (fi FormatInfo) SampleRate() int {
	switch fi.Format {
	case FormatPCM16:
		if fi.Rate != 0 {
			return fi.Rate
		}
		return 24000
	case FormatPCMA, FormatPCMU:
		return 8000
	default:
		return 0
	}
}

func (fi FormatInfo) BytesPerSample() int {
	switch fi.Format {
	case FormatPCM16:
		return 2
	case FormatPCMA, FormatPCMU:
		return 1
	default:
		return 0
	}
}

// SilenceSample returns the fixed fill byte(s) for one sample of silence.
// Only PCM16 silence is meaningful to actually play; A-law/u-law silence
// fill exists for buffer bookkeeping only, per spec.
func (fi FormatInfo) SilenceSample() []byte {
	switch fi.Format {
	case FormatPCM16:
		return []byte{0x00, 0x00}
	case FormatPCMA:
		return []byte{0xD5}
	case FormatPCMU:
		return []byte{0xFF}
	default:
		return nil
	}
}

func (fi FormatInfo) BytesPerSecond() int {
	return fi.SampleRate() * NChannels * fi.BytesPerSample()
}

func (fi FormatInfo) MsPerByte() float64 {
	return 1000.0 / float64(fi.BytesPerSecond())
}

// LatencyWindow is an inclusive (min, max) millisecond target; used instead
// of a single target latency when the caller wants the solver to pick a
// page size and assert it lands in-window.
type LatencyWindow struct {
	MinMs float64
	MaxMs float64
}

// Spec is the caller-declared paging specification. Exactly one of
// NSamplesPerPage or a latency target (TargetLatencyMs or LatencyWindow)
// must pin down the page size; supplying both an explicit sample count and
// a single target latency is over-specified.
type Spec struct {
	Format Format
	// Rate overrides the default sample rate, PCM16 only. Zero means default.
	Rate int

	NSamplesPerPage int // 0 means unset

	// At most one of these may be set alongside NSamplesPerPage == 0, or
	// LatencyWindow may additionally assert against an explicit
	// NSamplesPerPage.
	TargetLatencyMs float64 // 0 means unset
	LatencyWindow   *LatencyWindow
}

// Info is the fully resolved paging plan.
type Info struct {
	FormatInfo      FormatInfo
	NSamplesPerPage int
}

func (ci Info) NBytesPerPage() int {
	return NChannels * ci.FormatInfo.BytesPerSample() * ci.NSamplesPerPage
}

func (ci Info) SilencePage() []byte {
	sample := ci.FormatInfo.SilenceSample()
	page := make([]byte, 0, ci.NBytesPerPage())
	for len(page) < ci.NBytesPerPage() {
		page = append(page, sample...)
	}
	return page[:ci.NBytesPerPage()]
}

func (ci Info) MsPerPage() float64 {
	return float64(ci.NSamplesPerPage) / float64(ci.FormatInfo.SampleRate()) * 1000.0
}

// Resolve derives an Info from the spec and whatever format the server
// proposed (nil if the server hasn't said yet). It is the sole place
// UnderSpecifiedAudio / OverSpecifiedAudio are raised.
func (s Spec) Resolve(serverProposed *Format) (Info, error) {
	hasExplicitCount := s.NSamplesPerPage != 0
	hasSingleLatency := s.TargetLatencyMs != 0
	hasWindow := s.LatencyWindow != nil

	if !hasExplicitCount && !hasSingleLatency && !hasWindow {
		return Info{}, &rterr.UnderSpecifiedAudio{Reason: "page (buffer) length not specified"}
	}
	if hasExplicitCount && hasSingleLatency {
		return Info{}, &rterr.OverSpecifiedAudio{
			Reason: "n_samples_per_page set alongside a single target latency; latency must be either unset or a (min,max) window",
		}
	}

	format := s.Format
	if format == "" {
		if serverProposed == nil {
			return Info{}, &rterr.UnderSpecifiedAudio{Reason: "audio format not specified by client or server"}
		}
		format = *serverProposed
	}
	fi := FormatInfo{Format: format, Rate: s.Rate}

	if hasExplicitCount {
		info := Info{FormatInfo: fi, NSamplesPerPage: s.NSamplesPerPage}
		if hasWindow {
			ms := info.MsPerPage()
			if ms < s.LatencyWindow.MinMs || ms > s.LatencyWindow.MaxMs {
				return Info{}, &rterr.OverSpecifiedAudio{
					Reason: "explicit n_samples_per_page falls outside the asserted latency window",
				}
			}
		}
		return info, nil
	}

	var targetMs float64
	if hasWindow {
		targetMs = (s.LatencyWindow.MinMs + s.LatencyWindow.MaxMs) / 2.0
	} else {
		targetMs = s.TargetLatencyMs
	}
	nSamples := int(math.Round(targetMs / 1000.0 * float64(fi.SampleRate())))
	info := Info{FormatInfo: fi, NSamplesPerPage: nSamples}
	if hasWindow {
		ms := info.MsPerPage()
		if ms < s.LatencyWindow.MinMs || ms > s.LatencyWindow.MaxMs {
			return Info{}, &rterr.OverSpecifiedAudio{
				Reason: "sample count nearest the window midpoint falls outside the latency window",
			}
		}
	}
	return info, nil
}
