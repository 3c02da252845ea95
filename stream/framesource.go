// Copyright 2026 The Playbridge Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4/pkg/media"
)

// FrameSource produces the captured render surface as a sequence of
// encoded video samples. The streamer pulls one frame per tick of the
// configured frame rate; a source that has no new frame should return
// the previous one rather than block past the next tick.
//
// NextFrame must honor ctx cancellation: the frame pump's context is
// cancelled at teardown and a source blocked in NextFrame must return
// promptly (the returned error is discarded in that case).
type FrameSource interface {
	NextFrame(ctx context.Context) (media.Sample, error)
}

// TestPattern is a FrameSource producing deterministic synthetic frames:
// a frame counter followed by a fixed fill byte. The payloads exercise
// the media path end to end but are not decodable video; deployments
// supply an encoder-backed source.
type TestPattern struct {
	frameDuration time.Duration
	frameSize     int
	counter       atomic.Uint64
}

// testPatternFrameSize keeps synthetic frames small enough to never
// fragment in tests.
const testPatternFrameSize = 256

// NewTestPattern creates a test-pattern source paced for the given frame
// rate.
func NewTestPattern(frameRate int) *TestPattern {
	if frameRate <= 0 {
		frameRate = 30
	}
	return &TestPattern{
		frameDuration: time.Second / time.Duration(frameRate),
		frameSize:     testPatternFrameSize,
	}
}

// NextFrame returns the next synthetic frame.
func (p *TestPattern) NextFrame(ctx context.Context) (media.Sample, error) {
	if err := ctx.Err(); err != nil {
		return media.Sample{}, err
	}
	frame := make([]byte, p.frameSize)
	binary.BigEndian.PutUint64(frame, p.counter.Add(1))
	for i := 8; i < len(frame); i++ {
		frame[i] = 0xA5
	}
	return media.Sample{Data: frame, Duration: p.frameDuration}, nil
}
