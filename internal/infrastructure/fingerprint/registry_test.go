package fingerprint

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/corpustools/dedup/internal/core/domain"
)

func TestSumStableForEqualText(t *testing.T) {
	a := Sum("the cat sat on the mat")
	b := Sum("the cat sat on the mat")
	if a != b {
		t.Fatalf("equal text produced different fingerprints")
	}
}

func TestSumDiffersForDifferentText(t *testing.T) {
	a := Sum("the cat sat")
	b := Sum("the cat sat on the mat")
	if a.Sum == b.Sum {
		t.Fatalf("different text produced identical membership digest")
	}
	if a.Check == b.Check {
		t.Fatalf("different text produced identical verification digest")
	}
}

func TestAdmitFirstAcceptedThenDuplicate(t *testing.T) {
	reg := NewRegistry()
	fp := Sum("hello world")

	got, err := reg.Admit(fp)
	if err != nil {
		t.Fatalf("Admit() error = %v", err)
	}
	if got != domain.Accepted {
		t.Fatalf("first Admit() = %v, want Accepted", got)
	}

	got, err = reg.Admit(fp)
	if err != nil {
		t.Fatalf("Admit() error = %v", err)
	}
	if got != domain.Duplicate {
		t.Fatalf("second Admit() = %v, want Duplicate", got)
	}
	if reg.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", reg.Len())
	}
}

func TestAdmitDetectsVerificationMismatch(t *testing.T) {
	reg := NewRegistry()
	fp := Sum("some document")
	if _, err := reg.Admit(fp); err != nil {
		t.Fatalf("Admit() error = %v", err)
	}

	// Same membership digest, corrupted verification digest: models a
	// primary-hash collision over different normalized text.
	forged := fp
	forged.Check[0] ^= 0xff

	_, err := reg.Admit(forged)
	if err == nil {
		t.Fatalf("expected invariant violation")
	}
	if !domain.IsKind(err, domain.ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}
}

func TestAdmitConcurrentSingleWinner(t *testing.T) {
	reg := NewRegistry()
	fp := Sum("contended document")

	const workers = 32
	var accepted atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			got, err := reg.Admit(fp)
			if err != nil {
				t.Errorf("Admit() error = %v", err)
				return
			}
			if got == domain.Accepted {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	if accepted.Load() != 1 {
		t.Fatalf("accepted = %d, want exactly 1", accepted.Load())
	}
}
