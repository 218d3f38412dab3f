package meter

import (
	"math"
	"math/rand"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func utc(hour, minute int) time.Time {
	return time.Date(2023, 1, 1, hour, minute, 0, 0, time.UTC)
}

func TestBuild_Example(t *testing.T) {
	points := []Point{
		{Time: utc(0, 0), Value: 10.5},
		{Time: utc(1, 0), Value: 12.0},
	}

	got := Build("dev1", points)

	want := Table{Readings: []Reading{
		{Time: utc(0, 0), Watermeter: 10.5, DevID: "dev1", Usage: math.NaN()},
		{Time: utc(1, 0), Watermeter: 12.0, DevID: "dev1", Usage: math.NaN()},
	}}
	if diff := cmp.Diff(want, got, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("Build() mismatch (-want +got):\n%s", diff)
	}
	if got.HasUsage {
		t.Error("Build() HasUsage = true, want false")
	}
}

func TestBuild_SortsAnyPermutation(t *testing.T) {
	var points []Point
	for i := 0; i < 24; i++ {
		points = append(points, Point{Time: utc(i, 0), Value: float64(100 + i)})
	}

	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 20; round++ {
		shuffled := slices.Clone(points)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		table := Build("dev1", shuffled)

		if table.Len() != len(points) {
			t.Fatalf("round %d: Len() = %d, want %d", round, table.Len(), len(points))
		}
		for i, r := range table.Readings {
			if !r.Time.Equal(points[i].Time) || r.Watermeter != points[i].Value {
				t.Fatalf("round %d: row %d = (%v, %v), want (%v, %v)",
					round, i, r.Time, r.Watermeter, points[i].Time, points[i].Value)
			}
		}
	}
}

func TestBuild_StableOnEqualTimestamps(t *testing.T) {
	points := []Point{
		{Time: utc(2, 0), Value: 3},
		{Time: utc(1, 0), Value: 1},
		{Time: utc(1, 0), Value: 2},
		{Time: utc(0, 0), Value: 0},
		{Time: utc(1, 0), Value: 1.5},
	}

	table := Build("dev1", points)

	var got []float64
	for _, r := range table.Readings {
		got = append(got, r.Watermeter)
	}
	want := []float64{0, 1, 2, 1.5, 3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Build() order mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_Empty(t *testing.T) {
	table := Build("dev1", nil)

	if table.Len() != 0 {
		t.Errorf("Len() = %d, want 0", table.Len())
	}
	if _, ok := table.Latest(); ok {
		t.Error("Latest() ok = true for empty table")
	}
}

func TestTable_Columns(t *testing.T) {
	table := Build("dev1", []Point{{Time: utc(0, 0), Value: 1}})

	if diff := cmp.Diff([]string{"watermeter", "dev-id"}, table.Columns()); diff != "" {
		t.Errorf("Columns() before usage mismatch (-want +got):\n%s", diff)
	}

	derived := DeriveUsage(table)
	if diff := cmp.Diff([]string{"watermeter", "dev-id", "cnt"}, derived.Columns()); diff != "" {
		t.Errorf("Columns() after usage mismatch (-want +got):\n%s", diff)
	}
}

func TestReading_TagsAndFields(t *testing.T) {
	r := Reading{Time: utc(0, 0), Watermeter: 12, DevID: "dev1", Usage: math.NaN()}

	if diff := cmp.Diff(map[string]string{"dev-id": "dev1"}, r.Tags([]string{"dev-id", "unknown"})); diff != "" {
		t.Errorf("Tags() mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(map[string]interface{}{"watermeter": 12.0}, r.Fields()); diff != "" {
		t.Errorf("Fields() with NaN usage mismatch (-want +got):\n%s", diff)
	}

	r.Usage = 1.5
	want := map[string]interface{}{"watermeter": 12.0, "cnt": 1.5}
	if diff := cmp.Diff(want, r.Fields()); diff != "" {
		t.Errorf("Fields() mismatch (-want +got):\n%s", diff)
	}
}
