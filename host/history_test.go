package host

import (
	"testing"

	"go.viam.com/test"
)

func TestHistory(t *testing.T) {
	hist := history{}
	for i := 1; i <= historyLength+10; i++ {
		hist.add(map[string]float64{"lux": float64(i), "detection": float64(i % 2)})
	}

	summary := hist.summary()
	test.That(t, summary, test.ShouldHaveLength, 2)
	lux := summary["lux"]
	test.That(t, lux.Count, test.ShouldEqual, historyLength)
	test.That(t, lux.Min, test.ShouldEqual, 11.0)
	test.That(t, lux.Max, test.ShouldEqual, float64(historyLength+10))
	test.That(t, lux.Mean, test.ShouldEqual, 40.5)
	test.That(t, lux.Median, test.ShouldEqual, 40.5)
	test.That(t, summary["detection"].Mean, test.ShouldEqual, 0.5)
}
