// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package audio

import "sync"

// Buffer is a FIFO byte queue paged to a fixed size. Append splits
// incoming bytes into full pages plus a short tail; Pop drains a full page
// if one is queued, else pads the tail with silence, else returns a full
// silence page. The concatenation of popped pages, truncated to the number
// of bytes ever appended, always equals the appended bytes in order.
type Buffer struct {
	info Info

	mu    sync.Mutex
	pages [][]byte
	tail  []byte
}

func NewBuffer(info Info) *Buffer {
	return &Buffer{info: info}
}

// Append splits data into pages of info.NBytesPerPage(), completing any
// short tail first.
func (b *Buffer) Append(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appendLocked(data)
}

func (b *Buffer) appendLocked(data []byte) {
	pageSize := b.info.NBytesPerPage()
	if len(b.tail) > 0 {
		need := pageSize - len(b.tail)
		if need > len(data) {
			b.tail = append(b.tail, data...)
			return
		}
		page := append(b.tail, data[:need]...)
		b.pages = append(b.pages, page)
		b.tail = nil
		data = data[need:]
	}
	for len(data) >= pageSize {
		page := make([]byte, pageSize)
		copy(page, data[:pageSize])
		b.pages = append(b.pages, page)
		data = data[pageSize:]
	}
	if len(data) > 0 {
		b.tail = append([]byte(nil), data...)
	}
}

// Pop returns one full-size page and the number of bytes in it that are
// real content (as opposed to silence padding). It never returns an empty
// page: if nothing is queued, it returns a full page of silence with zero
// content bytes.
func (b *Buffer) Pop() (page []byte, nContentBytes int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pages) > 0 {
		page = b.pages[0]
		b.pages = b.pages[1:]
		return page, len(page)
	}
	if len(b.tail) > 0 {
		n := len(b.tail)
		page = make([]byte, b.info.NBytesPerPage())
		copy(page, b.tail)
		copy(page[n:], b.info.SilencePage()[n:])
		b.tail = nil
		return page, n
	}
	return b.info.SilencePage(), 0
}

// IsEmpty reports whether there is no queued content left to drain: no full
// pages and no tail.
func (b *Buffer) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pages) == 0 && len(b.tail) == 0
}
