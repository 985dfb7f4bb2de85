package meteo

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "pvinsight/internal/errors"
)

func metricByVariable(t *testing.T, metrics []Metric, v string) Metric {
	t.Helper()
	for _, m := range metrics {
		if m.Variable == v {
			return m
		}
	}
	t.Fatalf("no metric for %s", v)
	return Metric{}
}

func TestCompareTMYIdentical(t *testing.T) {
	data := pvsystTMY(2001, 6, 1)
	c, err := CompareTMY(context.Background(), data, "a.csv", data, "b.csv", CompareOptions{})
	require.NoError(t, err)

	assert.Equal(t, AlignCommonPeriod, c.Alignment)
	assert.Equal(t, 6, c.AlignedRows)
	assert.Equal(t, 60, c.UsedStep)
	assert.Equal(t, 60, c.NativeStepA)
	assert.Equal(t, DefaultAlertThresholdPct, c.AlertThresholdPct)
	assert.Equal(t, jan1, c.CommonStart)
	assert.Equal(t, jan1.Add(5*time.Hour), c.CommonEnd)
	assert.False(t, c.Alert)

	vars := make([]string, len(c.Metrics))
	for i, m := range c.Metrics {
		vars[i] = m.Variable
		assert.Zero(t, float64(m.MAE), m.Variable)
		assert.Zero(t, float64(m.RMSE), m.Variable)
		assert.Zero(t, float64(m.BiasMean), m.Variable)
	}
	assert.Equal(t, []string{"dhi", "dni", "ghi", "temp", "wind_speed"}, vars)

	require.NotNil(t, c.EnergyA.AnnualGHI)
	require.NotNil(t, c.EnergyBCommon.AnnualGHI)
	assert.InDelta(t, 1.5, float64(*c.EnergyA.AnnualGHI), 1e-9)
	assert.InDelta(t, 1.5, float64(*c.EnergyBCommon.AnnualGHI), 1e-9)
}

func TestCompareTMYAlert(t *testing.T) {
	c, err := CompareTMY(context.Background(),
		pvsystTMY(2001, 6, 1.1), "a.csv",
		pvsystTMY(2001, 6, 1), "b.csv",
		DefaultCompareOptions())
	require.NoError(t, err)

	assert.True(t, c.Alert)
	ghi := metricByVariable(t, c.Metrics, "ghi")
	assert.Equal(t, 6, ghi.N)
	assert.InDelta(t, 10.0, float64(ghi.MeanPct), 1e-6)
	assert.InDelta(t, 10.0, float64(ghi.MaxPct), 1e-6)
	assert.InDelta(t, 0.05, float64(ghi.MaxAbs), 1e-9)
	assert.Greater(t, float64(ghi.BiasMean), 0.0)

	temp := metricByVariable(t, c.Metrics, "temp")
	assert.Zero(t, float64(temp.MeanPct))
}

func TestCompareTMYClimatology(t *testing.T) {
	c, err := CompareTMY(context.Background(),
		pvsystTMY(2001, 4, 1), "a.csv",
		pvsystTMY(2005, 4, 1), "b.csv",
		DefaultCompareOptions())
	require.NoError(t, err)

	assert.Equal(t, AlignClimatology, c.Alignment)
	assert.Equal(t, 4, c.AlignedRows)
	assert.Equal(t, jan1, c.CommonStart)
	assert.Equal(t, jan1, c.AlignedA.Index[0])
	assert.False(t, c.Alert)
}

func TestCompareTMYNoCommonTimestamps(t *testing.T) {
	b := []byte("#Time Step;h\nYEAR;MONTH;DAY;HOUR;GHI\n;;;;W/m2\n2005;2;1;0;0\n2005;2;1;1;100\n")
	_, err := CompareTMY(context.Background(), pvsystTMY(2001, 3, 1), "a.csv", b, "b.csv", DefaultCompareOptions())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	assert.Contains(t, apperrors.Message(err), "No common timestamps found")
}

func TestCompareTMYUnreadable(t *testing.T) {
	_, err := CompareTMY(context.Background(), []byte("junk\n"), "a.csv", pvsystTMY(2001, 3, 1), "b.csv", DefaultCompareOptions())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
}

func TestAlignByPeriod(t *testing.T) {
	nan := math.NaN()
	a := hourlyFrame(jan1, map[string][]float64{
		"ghi":  {1, 2, 3, 4},
		"temp": {10, 11, 12, 13},
	})
	b := hourlyFrame(jan1.Add(time.Hour), map[string][]float64{
		"ghi": {nan, 3, 4, 5},
	})

	alA, alB, start, end := AlignByPeriod(a, b, CompareVariables)
	assert.Equal(t, jan1.Add(time.Hour), start)
	assert.Equal(t, jan1.Add(3*time.Hour), end)
	// temp is absent from b and 01:00 is all-NaN in b
	assert.Equal(t, []string{"ghi"}, alA.Columns())
	assert.Equal(t, []float64{3, 4}, alA.Column("ghi"))
	assert.Equal(t, []float64{3, 4}, alB.Column("ghi"))
	assert.Equal(t, alA.Index, alB.Index)
}

func TestAlignByPeriodNoCommonVariables(t *testing.T) {
	a := hourlyFrame(jan1, map[string][]float64{"ghi": {1}})
	b := hourlyFrame(jan1, map[string][]float64{"temp": {1}})
	alA, _, _, _ := AlignByPeriod(a, b, CompareVariables)
	assert.True(t, alA.Empty())
}

func TestAlignByClimatology(t *testing.T) {
	leap := time.Date(2004, 2, 28, 23, 0, 0, 0, time.UTC)
	a := hourlyFrame(leap, map[string][]float64{"ghi": {1, 2, 3}})
	b := hourlyFrame(time.Date(2005, 2, 28, 23, 0, 0, 0, time.UTC), map[string][]float64{"ghi": {10, 20, 30}})

	alA, alB, start, end := AlignByClimatology(a, b, CompareVariables)
	// a: 28/02 23h, 29/02 00h, 29/02 01h; b: 28/02 23h, 01/03 00h, 01/03 01h
	require.Equal(t, 1, alA.Len())
	assert.Equal(t, []float64{1}, alA.Column("ghi"))
	assert.Equal(t, []float64{10}, alB.Column("ghi"))
	assert.Equal(t, time.Date(ClimatologyYear, 2, 28, 23, 0, 0, 0, time.UTC), start)
	assert.Equal(t, start, end)
}

func TestComputeMetrics(t *testing.T) {
	nan := math.NaN()
	a := hourlyFrame(jan1, map[string][]float64{
		"ghi":  {0, 110, 220, nan},
		"temp": {nan, nan, nan, nan},
	})
	b := hourlyFrame(jan1, map[string][]float64{
		"ghi":  {0, 100, 200, 300},
		"temp": {1, 2, 3, 4},
	})

	metrics, alert := ComputeMetrics(a, b, []string{"temp", "ghi"}, 12)
	require.Len(t, metrics, 2)
	assert.False(t, alert)

	ghi := metrics[0]
	assert.Equal(t, "ghi", ghi.Variable)
	assert.Equal(t, 3, ghi.N)
	assert.InDelta(t, 10.0, float64(ghi.MeanPct), 1e-9)
	assert.InDelta(t, 10.0, float64(ghi.BiasMean), 1e-9)
	assert.InDelta(t, math.Sqrt(500.0/3), float64(ghi.RMSE), 1e-9)

	temp := metrics[1]
	assert.Equal(t, 0, temp.N)
	assert.True(t, temp.MeanA.IsNaN())

	_, alert = ComputeMetrics(a, b, []string{"ghi"}, 5)
	assert.True(t, alert)
}
