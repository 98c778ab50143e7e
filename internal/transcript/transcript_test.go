package transcript_test

import (
	"testing"

	"github.com/duplexvoice/duplex/internal/transcript"
)

var vocabulary = []string{"Eldrinax", "Grimjaw", "Tower of Whispers"}

func TestCorrector_PhoneticSpanMatch(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector(vocabulary)

	// "elder nacks" is the typical STT rendering of "Eldrinax": two tokens
	// whose concatenation is phonetically close to the single-word term.
	got, corrections := c.Correct("elder nacks")
	if got != "Eldrinax" {
		t.Errorf("Correct(%q) = %q, want %q", "elder nacks", got, "Eldrinax")
	}
	if len(corrections) != 1 {
		t.Fatalf("corrections = %d, want 1", len(corrections))
	}
	if corrections[0].Original != "elder nacks" || corrections[0].Corrected != "Eldrinax" {
		t.Errorf("correction = %+v, want elder nacks -> Eldrinax", corrections[0])
	}
	if corrections[0].Score < 0.7 {
		t.Errorf("score = %f, want >= 0.7", corrections[0].Score)
	}
}

func TestCorrector_MultiWordTerm(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector(vocabulary)

	got, corrections := c.Correct("tower of wispers is dangerous.")
	if got != "Tower of Whispers is dangerous." {
		t.Errorf("Correct = %q, want %q", got, "Tower of Whispers is dangerous.")
	}
	if len(corrections) != 1 {
		t.Fatalf("corrections = %d, want 1", len(corrections))
	}
	if corrections[0].Corrected != "Tower of Whispers" {
		t.Errorf("corrected = %q, want %q", corrections[0].Corrected, "Tower of Whispers")
	}
}

func TestCorrector_NoMatchLeavesTextAlone(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector([]string{"Eldrinax", "Grimjaw"})

	got, corrections := c.Correct("hello")
	if got != "hello" {
		t.Errorf("Correct(%q) = %q, want unchanged", "hello", got)
	}
	if len(corrections) != 0 {
		t.Errorf("corrections = %d, want 0", len(corrections))
	}
}

func TestCorrector_ExactTermKeepsSpeakerCasing(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector([]string{"Eldrinax"})

	got, corrections := c.Correct("ELDRINAX")
	if got != "ELDRINAX" {
		t.Errorf("Correct(%q) = %q, want casing preserved", "ELDRINAX", got)
	}
	if len(corrections) != 0 {
		t.Errorf("corrections = %d, want 0 for an already-correct term", len(corrections))
	}
}

func TestCorrector_PunctuationSurvivesReplacement(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector([]string{"Eldrinax"})

	got, corrections := c.Correct("eldrinaks?")
	if got != "Eldrinax?" {
		t.Errorf("Correct(%q) = %q, want %q", "eldrinaks?", got, "Eldrinax?")
	}
	if len(corrections) != 1 {
		t.Fatalf("corrections = %d, want 1", len(corrections))
	}
	if corrections[0].Original != "eldrinaks" {
		t.Errorf("Original = %q, want punctuation stripped", corrections[0].Original)
	}
}

func TestCorrector_EmptyVocabulary(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector(nil)

	got, corrections := c.Correct("anything at all")
	if got != "anything at all" {
		t.Errorf("Correct = %q, want unchanged", got)
	}
	if corrections != nil {
		t.Errorf("corrections = %v, want nil", corrections)
	}
}

func TestCorrector_StricterThresholdRejectsLooseMatch(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector(
		[]string{"Eldrinax"},
		transcript.WithPhoneticThreshold(0.99),
		transcript.WithFuzzyThreshold(0.999),
	)

	got, corrections := c.Correct("elder nacks")
	if got != "elder nacks" {
		t.Errorf("Correct = %q, want unchanged at 0.99 threshold", got)
	}
	if len(corrections) != 0 {
		t.Errorf("corrections = %d, want 0", len(corrections))
	}
}
