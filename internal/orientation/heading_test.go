package orientation

import (
	"testing"

	"go.viam.com/test"
)

func TestHeadingFromField(t *testing.T) {
	test.That(t, HeadingFromField(10, 0), test.ShouldAlmostEqual, 0)
	test.That(t, HeadingFromField(0, 10), test.ShouldAlmostEqual, 90)
	test.That(t, HeadingFromField(-10, 0), test.ShouldAlmostEqual, 180)
	test.That(t, HeadingFromField(0, -10), test.ShouldAlmostEqual, 270)
	test.That(t, HeadingFromField(5, -5), test.ShouldAlmostEqual, 315)
	test.That(t, HeadingFromField(0, 0), test.ShouldEqual, 0.0)

	// a vanishing negative angle rounds to 360 before folding
	test.That(t, HeadingFromField(1, -1e-300), test.ShouldEqual, 0.0)
	test.That(t, HeadingFromField(1, -1e-300), test.ShouldBeLessThan, 360.0)
}

func TestCardinal(t *testing.T) {
	for heading, want := range map[float64]string{
		0:   "N",
		22:  "N",
		23:  "NE",
		90:  "E",
		180: "S",
		270: "W",
		338: "N",
		-45: "NW",
		405: "NE",
	} {
		test.That(t, Cardinal(heading), test.ShouldEqual, want)
	}
}
