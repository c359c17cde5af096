// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package audioplayer

// raiseNicenessOnce runs on the first entry of the device callback. It does
// not change the calling thread's scheduling priority: it logs once, at
// debug level, that no priority raise was made, and later calls do nothing.
// The callback runs at whatever priority the host audio backend gives it.
func (p *Player) raiseNicenessOnce() {
	p.mu.Lock()
	already := p.niceSet
	p.niceSet = true
	p.mu.Unlock()
	if already {
		return
	}
	p.logger.Debugf("audio output callback thread priority raise skipped: no platform binding wired")
}
