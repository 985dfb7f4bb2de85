package readers

import (
	"math"
	"sort"
	"strings"
	"time"

	apperrors "pvinsight/internal/errors"
	"pvinsight/internal/timeseries"
	"pvinsight/internal/units"
)

// pvsystMeteoNames maps PVSyst TMY column names to canonical names.
var pvsystMeteoNames = map[string]string{
	"GHI":     "ghi",
	"DNI":     "dni",
	"DHI":     "dhi",
	"Tamb":    "temp",
	"WindVel": "wind_speed",
	"WindDir": "wind_direction",
	"GPI":     "gpi",
}

// headerSearchLines bounds the search for the YEAR header row.
const headerSearchLines = 50

// PVSystTMYReader reads PVSyst TMY CSV exports: "#key;value" header lines, a
// YEAR;MONTH;DAY;HOUR;... table header and a units row.
type PVSystTMYReader struct{}

// Name implements TMYReader.
func (PVSystTMYReader) Name() string { return ReaderPVSyst }

// Read implements TMYReader.
func (PVSystTMYReader) Read(data []byte, sourceName string, opts TMYOptions) (*TMYDataset, error) {
	opts = opts.withDefaults()
	if sourceName == "" {
		sourceName = "uploaded_tmy.csv"
	}

	headerLines, body := splitHashHeader(ReadLines(data))
	headerInfo := pvsystHeaderInfo(headerLines)

	sep := ";"
	if len(body) > 0 && strings.Count(body[0], ",") > strings.Count(body[0], ";") {
		sep = ","
	}

	hdr := -1
	for i, line := range body {
		if i >= headerSearchLines {
			break
		}
		up := strings.ToUpper(strings.TrimSpace(line))
		if strings.HasPrefix(up, "YEAR"+sep) || up == "YEAR" {
			hdr = i
			break
		}
	}
	if hdr < 0 {
		return nil, apperrors.NewParsingError("Could not find the TMY table header row starting with 'YEAR'.", nil)
	}

	rawCols := splitTrim(body[hdr], sep)
	var rawUnits []string
	if hdr+1 < len(body) {
		rawUnits = splitTrim(body[hdr+1], sep)
	}

	unitsByCol := make(map[string]string)
	for j, col := range rawCols {
		if col == "" {
			continue
		}
		u := ""
		if j < len(rawUnits) {
			u = rawUnits[j]
		}
		if canonical, ok := pvsystMeteoNames[col]; ok {
			col = canonical
		}
		unitsByCol[col] = units.NormalizeUnit(u)
	}

	colIdx := make(map[string]int, len(rawCols))
	for j, c := range rawCols {
		if _, dup := colIdx[c]; !dup && c != "" {
			colIdx[c] = j
		}
	}
	for _, req := range []string{"YEAR", "MONTH", "DAY", "HOUR"} {
		if _, ok := colIdx[req]; !ok {
			return nil, apperrors.NewParsingError("PVSyst TMY: missing '"+req+"' column.", nil)
		}
	}

	type row struct {
		key    [4]int
		stamp  time.Time
		fields []string
	}
	var (
		rows    []row
		dropped int
	)
	for _, line := range body[hdr+1:] {
		fields := splitTrim(line, sep)
		for len(fields) < len(rawCols) {
			fields = append(fields, "")
		}
		year := parseNumber(fields[colIdx["YEAR"]])
		if math.IsNaN(year) {
			// units row and any other non-data line
			continue
		}
		var key [4]int
		ok := true
		for k, name := range []string{"YEAR", "MONTH", "DAY", "HOUR"} {
			v := parseNumber(fields[colIdx[name]])
			if math.IsNaN(v) {
				ok = false
				break
			}
			key[k] = int(v)
		}
		stamp, valid := civilTime(key[0], key[1], key[2], key[3], 0)
		if !ok || !valid {
			dropped++
			continue
		}
		rows = append(rows, row{key: key, stamp: stamp, fields: fields})
	}

	sort.SliceStable(rows, func(a, b int) bool { return rows[a].stamp.Before(rows[b].stamp) })

	stamps := make([]time.Time, len(rows))
	for i, r := range rows {
		stamps[i] = r.stamp
	}

	var warnings []string
	step := timeseries.ParseTimeStepHeader(headerInfo)
	if !step.Known() {
		step = timeseries.DetectTimeStep(stamps)
		if !step.Known() {
			warnings = append(warnings, "[timestep] Could not detect timestep from header or datetime; assuming 60 min.")
			step = timeseries.StepInfo{Minutes: 60, Source: timeseries.StepUnknown}
		}
	}

	if step.Minutes < 60 {
		seen := make(map[[4]int]int, len(rows))
		for i, r := range rows {
			n := seen[r.key]
			seen[r.key] = n + 1
			stamps[i] = r.stamp.Add(time.Duration(n*step.Minutes) * time.Minute)
		}
	}

	frame := timeseries.NewFrame(stamps)
	for _, col := range rawCols {
		switch col {
		case "", "YEAR", "MONTH", "DAY", "HOUR":
			continue
		}
		name := col
		if canonical, ok := pvsystMeteoNames[col]; ok {
			name = canonical
		}
		if frame.Has(name) {
			continue
		}
		j := colIdx[col]
		values := make([]float64, len(rows))
		for i, r := range rows {
			values[i] = parseNumber(r.fields[j])
		}
		frame.MustSet(name, values)
	}

	ds := &TMYDataset{
		Frame:           keepMeteo(frame),
		HeaderInfo:      headerInfo,
		Units:           unitsByCol,
		TimeStepMinutes: step.Minutes,
		SourceName:      sourceName,
		Reader:          ReaderPVSyst,
		Warnings:        warnings,
	}
	return finishTMY(ds, opts, "[resample] Sub-hourly data resampled to 1H (sum irradiance / mean temp+wind).", dropped)
}

// splitHashHeader separates the leading "#" lines from the body. Blank body
// lines are dropped.
func splitHashHeader(lines []string) ([]string, []string) {
	var header, body []string
	inHeader := true
	for _, line := range lines {
		if inHeader && strings.HasPrefix(line, "#") {
			header = append(header, line)
			continue
		}
		inHeader = false
		if strings.TrimSpace(line) != "" {
			body = append(body, line)
		}
	}
	return header, body
}

func pvsystHeaderInfo(header []string) map[string]string {
	info := make(map[string]string)
	for _, line := range header {
		s := strings.TrimSpace(strings.TrimLeft(line, "#"))
		if s == "" {
			continue
		}
		parts := splitTrim(s, ";")
		if len(parts) >= 2 && parts[0] != "" {
			info[parts[0]] = parts[1]
		}
	}
	return info
}

// civilTime builds a UTC timestamp and rejects out-of-range components
// instead of normalising them.
func civilTime(year, month, day, hour, minute int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
