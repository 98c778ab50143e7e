package observe

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// StageLatency is the per-stage timing of one completed pipeline generation.
// Recorded once per generation that reached playback without being superseded.
type StageLatency struct {
	STT   time.Duration
	Reply time.Duration
	TTS   time.Duration
	Total time.Duration
}

// StatsRecorder collects pipeline latency samples and counter values for
// dashboard display. It maintains a bounded ring buffer of recent latency
// observations from which percentiles are computed on demand.
//
// The current-volume snapshot is held in an atomic so the sampling loop can
// publish it every tick without contending with readers; everything else is
// guarded by a mutex held only for short, bounded sections.
type StatsRecorder struct {
	mu sync.Mutex

	stt   latencyBuffer
	reply latencyBuffer
	tts   latencyBuffer
	total latencyBuffer

	utterances    int64
	interruptions int64
	errors        int64

	// volume holds math.Float64bits of the latest sampled volume.
	volume atomic.Uint64
}

// NewStatsRecorder creates a StatsRecorder with the given window size
// (maximum number of latency samples retained per stage).
func NewStatsRecorder(windowSize int) *StatsRecorder {
	if windowSize <= 0 {
		windowSize = 100
	}
	return &StatsRecorder{
		stt:   newLatencyBuffer(windowSize),
		reply: newLatencyBuffer(windowSize),
		tts:   newLatencyBuffer(windowSize),
		total: newLatencyBuffer(windowSize),
	}
}

// Record adds one completed generation's stage latencies and bumps the
// utterance counter.
func (sr *StatsRecorder) Record(l StageLatency) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.stt.add(l.STT)
	sr.reply.add(l.Reply)
	sr.tts.add(l.TTS)
	sr.total.add(l.Total)
	sr.utterances++
}

// RecordInterruption increments the barge-in counter.
func (sr *StatsRecorder) RecordInterruption() {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.interruptions++
}

// RecordError increments the failed-generation counter.
func (sr *StatsRecorder) RecordError() {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.errors++
}

// SetVolume publishes the latest sampled volume. Lock-free; called from the
// sampling loop on every tick.
func (sr *StatsRecorder) SetVolume(v float64) {
	sr.volume.Store(math.Float64bits(v))
}

// Volume returns the most recently published volume sample. Lock-free.
func (sr *StatsRecorder) Volume() float64 {
	return math.Float64frombits(sr.volume.Load())
}

// LatencyPercentiles holds p50 and p95 values for a latency stage. Durations
// serialize as nanoseconds in the JSON state endpoint.
type LatencyPercentiles struct {
	P50 time.Duration `json:"p50"`
	P95 time.Duration `json:"p95"`
}

// StatsSnapshot captures a point-in-time view of all pipeline statistics.
type StatsSnapshot struct {
	STT           LatencyPercentiles `json:"stt"`
	Reply         LatencyPercentiles `json:"reply"`
	TTS           LatencyPercentiles `json:"tts"`
	Total         LatencyPercentiles `json:"total"`
	Utterances    int64              `json:"utterances"`
	Interruptions int64              `json:"interruptions"`
	Errors        int64              `json:"errors"`
	Volume        float64            `json:"volume"`
}

// Snapshot returns a point-in-time view of all pipeline statistics.
func (sr *StatsRecorder) Snapshot() StatsSnapshot {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	return StatsSnapshot{
		STT:           sr.stt.percentiles(),
		Reply:         sr.reply.percentiles(),
		TTS:           sr.tts.percentiles(),
		Total:         sr.total.percentiles(),
		Utterances:    sr.utterances,
		Interruptions: sr.interruptions,
		Errors:        sr.errors,
		Volume:        sr.Volume(),
	}
}

// latencyBuffer is a bounded ring buffer of duration samples.
type latencyBuffer struct {
	data []time.Duration
	size int
	pos  int
	full bool
}

func newLatencyBuffer(size int) latencyBuffer {
	return latencyBuffer{
		data: make([]time.Duration, size),
		size: size,
	}
}

func (lb *latencyBuffer) add(d time.Duration) {
	lb.data[lb.pos] = d
	lb.pos++
	if lb.pos >= lb.size {
		lb.pos = 0
		lb.full = true
	}
}

func (lb *latencyBuffer) percentiles() LatencyPercentiles {
	n := lb.pos
	if lb.full {
		n = lb.size
	}
	if n == 0 {
		return LatencyPercentiles{}
	}

	// Copy and sort the valid samples.
	sorted := make([]time.Duration, n)
	if lb.full {
		copy(sorted, lb.data)
	} else {
		copy(sorted, lb.data[:n])
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return LatencyPercentiles{
		P50: percentile(sorted, 0.50),
		P95: percentile(sorted, 0.95),
	}
}

// percentile returns the value at the given percentile (0.0-1.0) from a
// sorted slice of durations using nearest-rank.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
