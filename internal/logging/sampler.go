// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package logging

import (
	"math/rand"
	"sync"

	"github.com/rs/zerolog"
)

// SampleGate decides whether a hot-path log line is emitted. It lets through
// roughly rate of the calls; rate >= 1 lets everything through and rate <= 0
// nothing. The seed makes the decision sequence reproducible in tests.
//
// SampleGate satisfies zerolog.Sampler so it can be attached with Logger.Sample.
type SampleGate struct {
	mu   sync.Mutex
	rate float64
	rng  *rand.Rand
}

var _ zerolog.Sampler = (*SampleGate)(nil)

// NewSampleGate creates a gate with the given rate and seed.
func NewSampleGate(rate float64, seed int64) *SampleGate {
	return &SampleGate{
		rate: rate,
		//nolint:gosec // sampling does not need a cryptographic source
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Allow reports whether the next line should be emitted.
func (g *SampleGate) Allow() bool {
	if g == nil {
		return true
	}
	if g.rate >= 1 {
		return true
	}
	if g.rate <= 0 {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64() < g.rate
}

// Sample implements zerolog.Sampler. Fatal and panic always pass.
func (g *SampleGate) Sample(lvl zerolog.Level) bool {
	if lvl >= zerolog.FatalLevel {
		return true
	}
	return g.Allow()
}

// Rate returns the configured rate.
func (g *SampleGate) Rate() float64 {
	if g == nil {
		return 1
	}
	return g.rate
}
