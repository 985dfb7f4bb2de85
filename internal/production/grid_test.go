package production

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeGridLimit(t *testing.T) {
	c := newTestContext(boundaryFrame(), Options{GridCapacityKW: capacity(1000)})
	AnalyzeGridLimit(c)

	res := c.Results.GridLimit
	require.True(t, res.HasData())
	s := res.Summary
	assert.InDelta(t, 200.0, float64(s.LostKWh), 1e-9)
	assert.InDelta(t, 1800.0, float64(s.InjectedKWh), 1e-9)
	assert.InDelta(t, 2000.0, float64(s.PotentialKWh), 1e-9)
	assert.InDelta(t, 10.0, float64(s.LostPct), 1e-9)
	assert.InDelta(t, 2.0, float64(s.HoursLimited), 1e-12)
	assert.InDelta(t, 8.0, float64(s.TotalHours), 1e-12)
	require.NotNil(t, s.GridCapacityKW)
	assert.Equal(t, 1000.0, *s.GridCapacityKW)
	require.NotNil(t, s.AnnualLoadFactor)
	assert.InDelta(t, 0.225, float64(*s.AnnualLoadFactor), 1e-12)

	require.Len(t, res.Monthly, 2)
	jan, feb := res.Monthly[0], res.Monthly[1]
	assert.Equal(t, "January", jan.MonthName)
	assert.InDelta(t, 0.0, float64(jan.LostKWh), 1e-12)
	assert.InDelta(t, 100.0, float64(jan.InjectedKWh), 1e-9)
	assert.InDelta(t, 200.0, float64(feb.LostKWh), 1e-9)
	assert.InDelta(t, 200.0/1900.0*100, float64(feb.LostPct), 1e-9)
	assert.InDelta(t, 2.0, float64(feb.HoursLimited), 1e-12)

	require.Len(t, res.MonthlyLoadFactor, 2)
	assert.InDelta(t, 0.025, float64(res.MonthlyLoadFactor[0].LoadFactor), 1e-12)
	assert.InDelta(t, 0.425, float64(res.MonthlyLoadFactor[1].LoadFactor), 1e-12)
	assert.InDelta(t, 1700.0, float64(res.MonthlyLoadFactor[1].EnergyKWh), 1e-9)
}

func TestAnalyzeGridLimitWithoutCapacity(t *testing.T) {
	for _, cap := range []*float64{nil, capacity(0), capacity(-5)} {
		c := newTestContext(boundaryFrame(), Options{GridCapacityKW: cap})
		AnalyzeGridLimit(c)

		s := c.Results.GridLimit.Summary
		assert.Nil(t, s.GridCapacityKW)
		assert.Nil(t, s.AnnualLoadFactor)
		assert.Nil(t, c.Results.GridLimit.MonthlyLoadFactor)
	}
}

func TestAnalyzeGridLimitNaNAsZero(t *testing.T) {
	f := boundaryFrame()
	f.MustSet("EGrdLim", []float64{0, 0, 0, 0, 50, math.NaN(), 0, 0})
	c := newTestContext(f, Options{})
	AnalyzeGridLimit(c)
	assert.InDelta(t, 50.0, float64(c.Results.GridLimit.Summary.LostKWh), 1e-9)
	assert.InDelta(t, 1.0, float64(c.Results.GridLimit.Summary.HoursLimited), 1e-12)
}

func TestAnalyzeGridLimitMissing(t *testing.T) {
	f := boundaryFrame()
	f.Drop("EGrdLim")
	c := newTestContext(f, Options{})
	AnalyzeGridLimit(c)

	res := c.Results.GridLimit
	assert.False(t, res.Available)
	assert.Equal(t, []string{"EGrdLim"}, res.MissingColumns)
	assert.Contains(t, res.Suggestions, "EGrdLim")
}

func TestAnalyzeLoadFactor(t *testing.T) {
	c := newTestContext(boundaryFrame(), Options{GridCapacityKW: capacity(1000)})
	AnalyzeLoadFactor(c)

	res := c.Results.LoadFactor
	require.True(t, res.HasData())
	s := res.Summary
	assert.InDelta(t, 1930.0, float64(s.SKWh), 1e-9)
	assert.InDelta(t, 280.0, float64(s.QKWh), 1e-9)
	require.NotNil(t, s.PKWh)
	assert.InDelta(t, 1800.0, float64(*s.PKWh), 1e-9)
	require.NotNil(t, s.CosPhi)
	assert.InDelta(t, 1800.0/1930.0, float64(*s.CosPhi), 1e-12)
	require.NotNil(t, s.QShare)
	assert.InDelta(t, 280.0/1930.0, float64(*s.QShare), 1e-12)
	assert.Equal(t, 850.0, float64(s.SMax))
	require.NotNil(t, s.AnnualLoadFactor)
	assert.InDelta(t, 0.225, float64(*s.AnnualLoadFactor), 1e-12)

	require.Len(t, res.Saturation, 4)
	steps := []int{res.Saturation[0].Steps, res.Saturation[1].Steps, res.Saturation[2].Steps, res.Saturation[3].Steps}
	assert.Equal(t, []int{2, 0, 1, 1}, steps)
	assert.InDelta(t, 50.0, float64(res.Saturation[0].PctTime), 1e-12)

	require.Len(t, res.Monthly, 2)
	feb := res.Monthly[1]
	assert.InDelta(t, 1820.0, float64(feb.SKWh), 1e-9)
	require.NotNil(t, feb.CosPhi)
	assert.InDelta(t, 1700.0/1820.0, float64(*feb.CosPhi), 1e-12)
	require.Len(t, res.MonthlyLoadFactor, 2)
}

func TestAnalyzeLoadFactorWithoutActivePower(t *testing.T) {
	f := boundaryFrame()
	f.Drop("E_Grid")
	c := newTestContext(f, Options{GridCapacityKW: capacity(1000)})
	AnalyzeLoadFactor(c)

	res := c.Results.LoadFactor
	require.True(t, res.Available)
	assert.Nil(t, res.Summary.PKWh)
	assert.Nil(t, res.Summary.CosPhi)
	assert.Nil(t, res.Summary.AnnualLoadFactor)
	assert.Nil(t, res.MonthlyLoadFactor)
	for _, m := range res.Monthly {
		assert.Nil(t, m.PKWh)
		assert.Nil(t, m.CosPhi)
	}
}

func TestAnalyzeLoadFactorNoApparentEnergy(t *testing.T) {
	f := boundaryFrame()
	f.MustSet("EApGrid", make([]float64, 8))
	c := newTestContext(f, Options{})
	AnalyzeLoadFactor(c)

	res := c.Results.LoadFactor
	assert.Nil(t, res.Summary.CosPhi)
	assert.Nil(t, res.Summary.QShare)
	assert.NotNil(t, res.Saturation)
	assert.Empty(t, res.Saturation)
}
