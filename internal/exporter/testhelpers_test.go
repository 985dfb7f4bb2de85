package exporter

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pvinsight/internal/config"
	"pvinsight/internal/infrastructure"
	"pvinsight/internal/meteo"
	"pvinsight/internal/production"
)

var fixedNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

const hourlyExport = `PVSYST V7.4.0
Simulation date;;15/03/24 10:00
Projet;Demo.PRJ
Variante de simulation;;;VC0

date;E_Grid;EOutInv;IL_Pmax;EGrdLim
;kW;kW;kW;kW
01/06/90 10:00;100;100;0;0
01/06/90 11:00;600;500;100;0
01/06/90 12:00;800;500;300;50
01/06/90 13:00;-2;0;0;0
`

func useFixedClock(t *testing.T) {
	t.Helper()
	t.Cleanup(infrastructure.SetClock(clockwork.NewFakeClockAt(fixedNow)))
}

func hourlyContext(t *testing.T) *production.Context {
	t.Helper()
	c, err := production.AnalyzeHourly(context.Background(), []byte(hourlyExport), "uploads/demo.csv",
		production.Options{ThresholdValue: 500, NightDisconnection: true})
	require.NoError(t, err)
	return c
}

func tmyFile(year int, ghiScale float64) []byte {
	var b strings.Builder
	b.WriteString("#Meteo data;Test site\n#Time Step;h\n")
	b.WriteString("YEAR;MONTH;DAY;HOUR;GHI;DNI;DHI;Tamb;WindVel\n")
	b.WriteString(";;;;W/m2;W/m2;W/m2;deg_C;m/s\n")
	for h := 0; h < 6; h++ {
		fmt.Fprintf(&b, "%d;1;1;%d;%g;%d;%d;%d;2\n", year, h, float64(h*100)*ghiScale, h*150, h*40, 10+h)
	}
	return []byte(b.String())
}

func tmyAnalysis(t *testing.T) *meteo.Analysis {
	t.Helper()
	a, err := meteo.AnalyzeTMY(context.Background(), tmyFile(2001, 1), "site.csv", meteo.DefaultOptions())
	require.NoError(t, err)
	return a
}

func comparison(t *testing.T, scale float64) *meteo.Comparison {
	t.Helper()
	c, err := meteo.CompareTMY(context.Background(),
		tmyFile(2001, scale), "site_a.csv",
		tmyFile(2001, 1), "site_b.csv",
		meteo.DefaultCompareOptions())
	require.NoError(t, err)
	return c
}

func runPaths(t *testing.T, tool string) config.RunPaths {
	t.Helper()
	dir := t.TempDir()
	paths := &config.Paths{BaseDir: dir, OutputsDir: dir, OutputMode: config.OutputModeLatest}
	rp, err := paths.ToolDirs(tool)
	require.NoError(t, err)
	return rp
}

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) PrintPDF(ctx context.Context, doc Document) ([]byte, error) {
	args := m.Called(ctx, doc)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}
