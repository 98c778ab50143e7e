package observe

import (
	"testing"
	"time"
)

func TestNewStatsRecorder_DefaultWindowSize(t *testing.T) {
	t.Parallel()

	sr := NewStatsRecorder(0)
	// Should use default window size (100), not panic.
	sr.Record(StageLatency{STT: 10 * time.Millisecond})

	snap := sr.Snapshot()
	if snap.STT.P50 != 10*time.Millisecond {
		t.Errorf("STT P50 = %v, want 10ms", snap.STT.P50)
	}
}

func TestStatsRecorder_RecordAndSnapshot(t *testing.T) {
	t.Parallel()

	sr := NewStatsRecorder(100)

	for i := 1; i <= 100; i++ {
		sr.Record(StageLatency{
			STT:   time.Duration(i) * time.Millisecond,
			Reply: 500 * time.Millisecond,
			TTS:   200 * time.Millisecond,
			Total: 1000 * time.Millisecond,
		})
	}
	sr.RecordInterruption()
	sr.RecordInterruption()
	sr.RecordError()

	snap := sr.Snapshot()

	if snap.Utterances != 100 {
		t.Errorf("Utterances = %d, want 100", snap.Utterances)
	}
	if snap.Interruptions != 2 {
		t.Errorf("Interruptions = %d, want 2", snap.Interruptions)
	}
	if snap.Errors != 1 {
		t.Errorf("Errors = %d, want 1", snap.Errors)
	}

	// STT: 100 samples from 1ms to 100ms.
	if snap.STT.P50 != 50*time.Millisecond {
		t.Errorf("STT P50 = %v, want 50ms", snap.STT.P50)
	}
	if snap.STT.P95 != 95*time.Millisecond {
		t.Errorf("STT P95 = %v, want 95ms", snap.STT.P95)
	}

	// Reply: constant 500ms samples.
	if snap.Reply.P50 != 500*time.Millisecond {
		t.Errorf("Reply P50 = %v, want 500ms", snap.Reply.P50)
	}
	if snap.Total.P95 != 1000*time.Millisecond {
		t.Errorf("Total P95 = %v, want 1000ms", snap.Total.P95)
	}
}

func TestStatsRecorder_RingBufferEvictsOldest(t *testing.T) {
	t.Parallel()

	sr := NewStatsRecorder(4)

	// Six samples into a window of four: the first two fall out.
	for _, d := range []time.Duration{1, 2, 100, 100, 100, 100} {
		sr.Record(StageLatency{STT: d * time.Millisecond})
	}

	snap := sr.Snapshot()
	if snap.STT.P50 != 100*time.Millisecond {
		t.Errorf("STT P50 = %v, want 100ms after eviction", snap.STT.P50)
	}
	if snap.Utterances != 6 {
		t.Errorf("Utterances = %d, want 6 (counter is not windowed)", snap.Utterances)
	}
}

func TestStatsRecorder_EmptyPercentiles(t *testing.T) {
	t.Parallel()

	sr := NewStatsRecorder(10)
	snap := sr.Snapshot()
	if snap.STT.P50 != 0 || snap.Total.P95 != 0 {
		t.Errorf("empty recorder percentiles = %+v, want zeros", snap)
	}
}

func TestStatsRecorder_VolumeSnapshot(t *testing.T) {
	t.Parallel()

	sr := NewStatsRecorder(10)
	if v := sr.Volume(); v != 0 {
		t.Errorf("initial Volume = %f, want 0", v)
	}

	sr.SetVolume(0.42)
	if v := sr.Volume(); v != 0.42 {
		t.Errorf("Volume = %f, want 0.42", v)
	}

	snap := sr.Snapshot()
	if snap.Volume != 0.42 {
		t.Errorf("Snapshot.Volume = %f, want 0.42", snap.Volume)
	}
}
