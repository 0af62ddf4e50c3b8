package revision_test

import (
	"math"
	"testing"

	"github.com/okian/prepline/internal/domain/revision"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRetention(t *testing.T) {
	cases := []struct {
		name      string
		stability float64
		elapsed   float64
		want      float64
	}{
		{"one time constant", 5, 5, math.Exp(-1)},
		{"two time constants", 5, 10, math.Exp(-2)},
		{"no elapsed time", 5, 0, 1},
		{"negative elapsed clamps to now", 5, -3, 1},
		{"zero stability has nothing retained", 0, 1, 0},
	}

	for _, tc := range cases {
		if got := revision.Retention(tc.stability, tc.elapsed); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: Retention(%v, %v) = %v, want %v", tc.name, tc.stability, tc.elapsed, got, tc.want)
		}
	}
}

func TestReschedule(t *testing.T) {
	Convey("Given a topic with 5-day stability revised after 5 days", t, func() {
		out := revision.Reschedule(5, 5, true)

		Convey("Then retention has decayed to e^-1", func() {
			So(out.Retention, ShouldAlmostEqual, 0.3679, 0.0001)
		})

		Convey("Then a successful revision grows stability by the retained share", func() {
			// 5 * 1.3 * (2 - (1 - e^-1))
			So(out.NewStabilityDays, ShouldAlmostEqual, 8.8914, 0.001)
		})

		Convey("Then the next interval targets the 90% retention point", func() {
			So(out.IntervalDays, ShouldAlmostEqual, -math.Log(0.9)*out.NewStabilityDays, 1e-9)
		})
	})

	Convey("Given a failed revision", t, func() {
		out := revision.Reschedule(5, 5, false)

		Convey("Then stability halves", func() {
			So(out.NewStabilityDays, ShouldEqual, 2.5)
		})
	})
}

func TestRescheduleClamps(t *testing.T) {
	cases := []struct {
		name       string
		stability  float64
		elapsed    float64
		successful bool
		want       float64
	}{
		{"failure at the floor stays at the floor", 1, 10, false, 1},
		{"failure below the floor clamps up", 1.5, 1, false, 1},
		{"success near the ceiling clamps down", 30, 0, true, 30},
		{"large stability never exceeds the ceiling", 25, 1, true, 30},
	}

	for _, tc := range cases {
		out := revision.Reschedule(tc.stability, tc.elapsed, tc.successful)
		if math.Abs(out.NewStabilityDays-tc.want) > 1e-9 {
			t.Errorf("%s: got %v, want %v", tc.name, out.NewStabilityDays, tc.want)
		}
	}
}

func TestRescheduleSuccessGrowsWithRetention(t *testing.T) {
	// Reviewing while more is still retained earns a larger stability boost.
	early := revision.Reschedule(10, 1, true)
	late := revision.Reschedule(10, 9, true)
	if early.NewStabilityDays <= late.NewStabilityDays {
		t.Errorf("early review %v should beat late review %v", early.NewStabilityDays, late.NewStabilityDays)
	}
}
