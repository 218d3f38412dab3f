package meter

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestDeriveUsage_Example(t *testing.T) {
	table := Build("dev1", []Point{
		{Time: utc(0, 0), Value: 10.5},
		{Time: utc(1, 0), Value: 12.0},
	})

	got := DeriveUsage(table)

	var cnt []float64
	for _, r := range got.Readings {
		cnt = append(cnt, r.Usage)
	}
	want := []float64{math.NaN(), 1.5}
	if diff := cmp.Diff(want, cnt, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("DeriveUsage() cnt mismatch (-want +got):\n%s", diff)
	}
	if !got.HasUsage {
		t.Error("DeriveUsage() HasUsage = false, want true")
	}
}

func TestDeriveUsage_Differences(t *testing.T) {
	values := []float64{100, 100.25, 101, 100.5, 130}
	var points []Point
	for i, v := range values {
		points = append(points, Point{Time: utc(i, 0), Value: v})
	}

	got := DeriveUsage(Build("dev1", points))

	if got.Len() != len(values) {
		t.Fatalf("Len() = %d, want %d", got.Len(), len(values))
	}
	if !math.IsNaN(got.Readings[0].Usage) {
		t.Errorf("row 0 usage = %v, want NaN", got.Readings[0].Usage)
	}
	for i := 1; i < len(values); i++ {
		want := values[i] - values[i-1]
		if got.Readings[i].Usage != want {
			t.Errorf("row %d usage = %v, want %v", i, got.Readings[i].Usage, want)
		}
	}
}

func TestDeriveUsage_DoesNotModifyInput(t *testing.T) {
	table := Build("dev1", []Point{
		{Time: utc(0, 0), Value: 1},
		{Time: utc(1, 0), Value: 3},
	})

	_ = DeriveUsage(table)

	if !math.IsNaN(table.Readings[1].Usage) {
		t.Errorf("input row 1 usage = %v, want NaN (input must not change)", table.Readings[1].Usage)
	}
	if table.HasUsage {
		t.Error("input HasUsage changed")
	}
}

func TestDeriveUsage_Empty(t *testing.T) {
	got := DeriveUsage(Table{})

	if got.Len() != 0 {
		t.Errorf("Len() = %d, want 0", got.Len())
	}
}
