// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package pipeline

import "encoding/base64"

// AudioDeltaCacheKey is the Metadata.Values slot a response.audio.delta's
// decoded bytes are cached under for the lifetime of one dispatch. More
// than one middleware in the server chain (the conversation state engine,
// the audio player) needs the same delta decoded; caching it once per
// event avoids paying for the base64 decode twice on every audio frame.
const AudioDeltaCacheKey = "pipeline.audio_delta_decoded"

type audioDeltaDecode struct {
	bytes []byte
	err   error
}

// CachedDecodeAudioDelta decodes b64 on first call for this event and
// serves every subsequent call from meta.Values.
func CachedDecodeAudioDelta(meta *Metadata, b64 string) ([]byte, error) {
	if cached, ok := meta.Values[AudioDeltaCacheKey].(audioDeltaDecode); ok {
		return cached.bytes, cached.err
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	meta.Values[AudioDeltaCacheKey] = audioDeltaDecode{bytes: raw, err: err}
	return raw, err
}
