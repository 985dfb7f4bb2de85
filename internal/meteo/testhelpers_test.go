package meteo

import (
	"fmt"
	"strings"
	"time"

	"pvinsight/internal/timeseries"
)

// pvsystTMY renders a PVSyst TMY export covering the first hours of
// 1 January. GHI at hour h is h*100 W/m² times ghiScale.
func pvsystTMY(year, hours int, ghiScale float64) []byte {
	var b strings.Builder
	b.WriteString("#Meteo data;Test site\n#Time Step;h\n")
	b.WriteString("YEAR;MONTH;DAY;HOUR;GHI;DNI;DHI;Tamb;WindVel\n")
	b.WriteString(";;;;W/m2;W/m2;W/m2;deg_C;m/s\n")
	for h := 0; h < hours; h++ {
		fmt.Fprintf(&b, "%d;1;1;%d;%g;%d;%d;%d;2\n", year, h, float64(h*100)*ghiScale, h*150, h*40, 10+h)
	}
	return []byte(b.String())
}

func hourlyFrame(start time.Time, cols map[string][]float64) *timeseries.Frame {
	n := 0
	for _, v := range cols {
		n = len(v)
	}
	idx := make([]time.Time, n)
	for i := range idx {
		idx[i] = start.Add(time.Duration(i) * time.Hour)
	}
	f := timeseries.NewFrame(idx)
	for _, name := range []string{"ghi", "dni", "dhi", "temp", "wind_speed"} {
		if v, ok := cols[name]; ok {
			f.MustSet(name, v)
		}
	}
	return f
}

var jan1 = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
