// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package audio

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallPageInfo mirrors the Python test fixture: an 8-byte page keeps the
// edge cases (partial tail, empty buffer, multi-page drains) dense relative
// to the random chunk sizes exercised below.
func smallPageInfo() Info {
	return Info{FormatInfo: FormatInfo{Format: FormatPCM16}, NSamplesPerPage: 4}
}

// runOnce drives a randomized interleaving of Append (1-64 random bytes) and
// Pop (whenever at least one full page is queued) and asserts the FIFO
// well-orderedness invariant: the assembled output, truncated to the number
// of bytes actually appended, equals the appended bytes in order.
func runOnce(t *testing.T, seed int64, totalLen int) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	info := smallPageInfo()
	buf := NewBuffer(info)
	pageSize := info.NBytesPerPage()

	data := make([]byte, totalLen)
	rng.Read(data)

	var appended, assembled []byte
	for len(appended) < totalLen {
		chunkLen := rng.Intn(64) + 1
		if chunkLen > totalLen-len(appended) {
			chunkLen = totalLen - len(appended)
		}
		chunk := data[len(appended) : len(appended)+chunkLen]
		buf.Append(chunk)
		appended = append(appended, chunk...)

		for rng.Intn(2) == 0 && hasFullPage(buf, pageSize) {
			page, n := buf.Pop()
			assembled = append(assembled, page[:n]...)
		}
	}
	for !buf.IsEmpty() {
		page, n := buf.Pop()
		assembled = append(assembled, page[:n]...)
	}

	require.GreaterOrEqual(t, len(assembled), totalLen)
	assert.Equal(t, data, assembled[:totalLen])
}

func hasFullPage(b *Buffer, pageSize int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pages) > 0
}

func TestBufferFIFOWellOrderedness(t *testing.T) {
	cases := []struct {
		name string
		seed int64
		n    int
	}{
		{"seed-A11CE-len1", 0xA11CE, 1},
		{"seed-BEEF-len17", 0xBEEF, 17},
		{"seed-C0FFEE-len257", 0xC0FFEE, 257},
		{"seed-DEADBEEF-len4093", 0xDEADBEEF, 4093},
		{"seed-123456789-len8191", 123456789, 8191},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			runOnce(t, c.seed, c.n)
		})
	}
}

func TestBufferFIFOWellOrderednessRandomLengths(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		n := rng.Intn(4000) + 1
		runOnce(t, int64(i*7919+1), n)
	}
}

func TestBufferPopPadsShortTailWithSilence(t *testing.T) {
	info := smallPageInfo()
	buf := NewBuffer(info)
	buf.Append([]byte{1, 2, 3})

	page, n := buf.Pop()
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{1, 2, 3}, page[:3])
	assert.Equal(t, info.FormatInfo.SilenceSample()[0], page[3])
	assert.True(t, buf.IsEmpty())
}

func TestBufferPopEmptyReturnsFullSilencePage(t *testing.T) {
	info := smallPageInfo()
	buf := NewBuffer(info)

	page, n := buf.Pop()
	assert.Equal(t, 0, n)
	assert.Equal(t, info.SilencePage(), page)
}

func TestBufferAppendAcrossMultiplePages(t *testing.T) {
	info := smallPageInfo()
	buf := NewBuffer(info)
	pageSize := info.NBytesPerPage()

	data := make([]byte, pageSize*3+2)
	for i := range data {
		data[i] = byte(i)
	}
	buf.Append(data)

	var assembled []byte
	for !buf.IsEmpty() {
		page, n := buf.Pop()
		assembled = append(assembled, page[:n]...)
	}
	assert.Equal(t, data, assembled)
}
