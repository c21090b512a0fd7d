package internaldefs

import (
	"strings"
	"testing"
)

func TestCounterDefsUnique(t *testing.T) {
	seenID := map[uint16]string{}
	seenName := map[string]bool{}
	for _, def := range CounterDefs {
		if prev, ok := seenID[uint16(def.ID)]; ok {
			t.Fatalf("metric id %d mapped twice (%s, %s)", def.ID, prev, def.Name)
		}
		seenID[uint16(def.ID)] = def.Name
		if seenName[def.Name] {
			t.Fatalf("duplicate metric name %s", def.Name)
		}
		seenName[def.Name] = true
		if !strings.HasPrefix(def.Name, "authcore_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("counter %s breaks naming convention", def.Name)
		}
	}
}

func TestBucketTablesAligned(t *testing.T) {
	if len(HistogramBounds) != 8 {
		t.Fatal("bucket label tables must have 8 entries")
	}
	if len(HistogramUpperBounds) != len(HistogramBounds)-1 {
		t.Fatal("upper bounds must exclude +Inf")
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 0, 3}))
	want := [8]uint64{1, 3, 3, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
