package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPricingTargetImpressions(t *testing.T) {
	p := DefaultPricingModel()
	assert.InDelta(t, 100000.0, p.TargetImpressions(), 1e-9)
}

func TestPerformanceScoreWeights(t *testing.T) {
	p := DefaultPricingModel()
	assert.InDelta(t, 0.014, p.PerformanceScore(p.DefaultCTR, p.DefaultCVR), 1e-12)
	assert.InDelta(t, 0.0, p.PerformanceScore(0, 0), 1e-12)
}
