package comparator

import (
	"testing"

	"github.com/fulldump/memscan/scanresult"
)

func TestForExactValue(t *testing.T) {
	cmp := For[int32](scanresult.ExactValue)
	if !cmp(42, 42, 0) {
		t.Fatal("expected 42 == 42 to match")
	}
	if cmp(42, 43, 0) {
		t.Fatal("expected 42 == 43 to not match")
	}
}

func TestForChangedUnchanged(t *testing.T) {
	changed := For[int32](scanresult.Changed)
	unchanged := For[int32](scanresult.Unchanged)

	if !changed(5, 4, 0) {
		t.Fatal("5 != 4 should be changed")
	}
	if changed(5, 5, 0) {
		t.Fatal("5 != 5 should not be changed")
	}
	if !unchanged(5, 5, 0) {
		t.Fatal("5 == 5 should be unchanged")
	}
}

func TestForValueBetween(t *testing.T) {
	cmp := For[int32](scanresult.ValueBetween)
	if !cmp(5, 1, 10) {
		t.Fatal("5 should be between 1 and 10")
	}
	if cmp(15, 1, 10) {
		t.Fatal("15 should not be between 1 and 10")
	}
	if cmp(1, 1, 10) {
		t.Fatal("bounds are exclusive: 1 should not match (1,10)")
	}
}

func TestBiggerSmallerThanIntegers(t *testing.T) {
	bigger := For[int32](scanresult.BiggerThan)
	smaller := For[int32](scanresult.SmallerThan)

	if !bigger(10, 5, 0) {
		t.Fatal("10 > 5")
	}
	if bigger(5, 5, 0) {
		t.Fatal("5 is not > 5")
	}
	if !smaller(1, 5, 0) {
		t.Fatal("1 < 5")
	}
}

func TestBiggerThanFloat64Epsilon(t *testing.T) {
	bigger := For[float64](scanresult.BiggerThan)

	// within epsilon of the reference: should not count as bigger.
	if bigger(5.0+Float64Epsilon/2, 5.0, 0) {
		t.Fatal("value within epsilon of reference should not be bigger_than")
	}
	// comfortably past epsilon: should match.
	if !bigger(5.0+Float64Epsilon*10, 5.0, 0) {
		t.Fatal("value well past epsilon should be bigger_than")
	}
}

func TestBiggerThanFloat32Epsilon(t *testing.T) {
	bigger := For[float32](scanresult.BiggerThan)

	if bigger(float32(5.0)+Float32Epsilon/2, 5.0, 0) {
		t.Fatal("value within float32 epsilon should not be bigger_than")
	}
	if !bigger(float32(5.0)+Float32Epsilon*10, 5.0, 0) {
		t.Fatal("value well past float32 epsilon should be bigger_than")
	}
}

func TestDeltaIncreasedDecreasedBy(t *testing.T) {
	incBy := Delta[int32](scanresult.IncreasedBy)
	decBy := Delta[int32](scanresult.DecreasedBy)

	if !incBy(15, 10, 5) {
		t.Fatal("15 - 10 == 5")
	}
	if incBy(16, 10, 5) {
		t.Fatal("16 - 10 != 5")
	}
	if !decBy(5, 10, 5) {
		t.Fatal("10 - 5 == 5")
	}
}

func TestIsRelative(t *testing.T) {
	relative := []scanresult.ScanType{
		scanresult.Changed, scanresult.Unchanged,
		scanresult.IncreasedValue, scanresult.DecreasedValue,
		scanresult.IncreasedBy, scanresult.DecreasedBy,
	}
	for _, rt := range relative {
		if !IsRelative(rt) {
			t.Fatalf("scan type %d should be relative", rt)
		}
	}

	absolute := []scanresult.ScanType{
		scanresult.ExactValue, scanresult.BiggerThan, scanresult.SmallerThan,
		scanresult.ValueBetween, scanresult.UnknownValue,
	}
	for _, at := range absolute {
		if IsRelative(at) {
			t.Fatalf("scan type %d should not be relative", at)
		}
	}
}

func TestUnknownValueAlwaysMatches(t *testing.T) {
	cmp := For[int32](scanresult.UnknownValue)
	if !cmp(0, 0, 0) {
		t.Fatal("unknown_value comparator should accept everything")
	}
}
