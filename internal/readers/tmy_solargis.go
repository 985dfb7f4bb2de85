package readers

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "pvinsight/internal/errors"
	"pvinsight/internal/timeseries"
	"pvinsight/internal/units"
)

// Time component synonyms, compared after canon().
var timeSynonyms = map[string][]string{
	"datetime": {"datetime", "date_time", "date time", "timestamp", "time_stamp", "datehour", "datehourutc"},
	"year":     {"year", "yyyy", "yr", "annee"},
	"month":    {"month", "mon", "mm", "mois"},
	"day":      {"day", "dd", "jour"},
	"doy":      {"doy", "dayofyear", "day_of_year", "dayofyearutc"},
	"hour":     {"hour", "hr", "hh"},
	"minute":   {"minute", "min", "mn"},
	"time":     {"time", "hhmm", "hourminute", "hour_minute"},
}

// Variable synonyms mapped to canonical column names.
var varSynonyms = map[string][]string{
	"ghi": {"ghi", "global_horizontal", "globalhorizontal", "global_hor", "globhor",
		"globalhorizontalirradiation", "globalhorizontalirradiance"},
	"dni": {"dni", "direct_normal", "directnormal", "beam_normal", "beamnormal",
		"directnormalirradiation", "directnormalirradiance"},
	"dhi": {"dhi", "dif", "diffuse_horizontal", "diffusehorizontal", "diffuse_hor",
		"diffusehorizontalirradiation", "diffusehorizontalirradiance"},
	"gpi": {"gpi", "global_inclined", "globalinclined", "global_tilted", "globaltilted",
		"gti", "poa", "plane_of_array", "planeofarray"},
	"temp": {"temp", "temperature", "tair", "ta", "tamb", "ambient_temperature",
		"ambienttemperature", "air_temperature", "airtemperature"},
	"wind_speed": {"ws", "wind_speed", "windspeed", "windvel", "wind_vel", "windvelocity",
		"wind_velocity", "windvel10m"},
	"wind_direction": {"wd", "wind_direction", "winddirection", "winddir", "wind_dir",
		"winddir10m", "winddirection10m"},
	"relative_humidity":   {"relative_humidity", "rh", "humidity", "humid", "relhumidity"},
	"total_precipitation": {"total_precipitation", "precipitation", "precip", "prcp"},
	"snowfall":            {"snowfall", "snow", "snow_depth", "snowdepth"},
}

// solargisShortCodes are the upper-case column codes Solargis uses.
var solargisShortCodes = map[string]string{
	"GHI":     "ghi",
	"DNI":     "dni",
	"DIF":     "dhi",
	"DHI":     "dhi",
	"GTI":     "gpi",
	"POA":     "gpi",
	"TEMP":    "temp",
	"TAMB":    "temp",
	"WS":      "wind_speed",
	"WINDVEL": "wind_speed",
	"WD":      "wind_direction",
	"WINDDIR": "wind_direction",
	"RH":      "relative_humidity",
	"PRECIP":  "total_precipitation",
	"SNOW":    "snowfall",
}

var (
	reUnitBrackets = regexp.MustCompile(`\[([^\]]+)\]`)
	reUnitParens   = regexp.MustCompile(`\(([^\)]+)\)`)
	reCanonSep     = regexp.MustCompile(`[ \t.\-/]+`)
	reCanonStrip   = regexp.MustCompile(`[^a-z0-9_]`)
	reCanonDup     = regexp.MustCompile(`_+`)

	canonToVar     = buildCanonIndex(varSynonyms)
	timeVocabulary = buildCanonIndex(timeSynonyms)

	unitHints = []string{"wh", "kwh", "w", "kw", "m2", "m²", "deg", "c", "m/s", "msec", "m_sec", "m/sec", "%", "pa"}

	solargisDatetimeLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"02/01/2006 15:04",
		"02.01.2006 15:04",
	}
)

func buildCanonIndex(m map[string][]string) map[string]string {
	out := make(map[string]string)
	for key, syns := range m {
		for _, s := range syns {
			out[canon(s)] = key
		}
	}
	return out
}

// canon lower-cases a column name and reduces it to [a-z0-9_].
func canon(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, bom, "")
	s = strings.ReplaceAll(s, "°", "deg")
	s = reCanonSep.ReplaceAllString(s, "_")
	s = reCanonStrip.ReplaceAllString(s, "")
	s = reCanonDup.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// SolargisTMYReader reads Solargis TMY exports. Their layout varies: comment
// header, optional units row, inline units in column names and several ways
// of encoding time.
type SolargisTMYReader struct{}

// Name implements TMYReader.
func (SolargisTMYReader) Name() string { return ReaderSolargis }

type solargisTable struct {
	header  []string
	sep     string
	columns string
	units   string
	data    []string
}

// Read implements TMYReader.
func (SolargisTMYReader) Read(data []byte, sourceName string, opts TMYOptions) (*TMYDataset, error) {
	opts = opts.withDefaults()
	if sourceName == "" {
		sourceName = "uploaded_tmy_solargis.csv"
	}

	var warnings []string

	tbl, err := findSolargisTable(ReadLines(data))
	if err != nil {
		return nil, err
	}

	headerInfo := solargisHeaderInfo(tbl.header)
	unitsFromHeader := solargisHeaderUnits(tbl.header)

	rawCols := splitTrim(tbl.columns, tbl.sep)
	unitsFromRow := make(map[string]string)
	if tbl.units != "" {
		unitToks := splitTrim(tbl.units, tbl.sep)
		if len(unitToks) == len(rawCols) {
			for i, c := range rawCols {
				if unitToks[i] != "" {
					unitsFromRow[c] = units.NormalizeUnit(unitToks[i])
				}
			}
		}
	}

	// column name -> position, first occurrence wins
	var dups []string
	seen := make(map[string]bool, len(rawCols))
	type column struct {
		raw, clean, name string
		pos              int
	}
	var cols []column
	unitsByCol := make(map[string]string)
	for i, raw := range rawCols {
		if seen[raw] {
			dups = append(dups, raw)
			continue
		}
		seen[raw] = true

		clean, inline := unitFromColumnName(raw)
		name := clean
		if internal := lookupVariable(clean); internal != "" {
			name = internal
			u := firstNonEmpty(unitsFromRow[clean], unitsFromRow[raw], unitsFromHeader[clean], inline)
			if u == "" {
				for k, v := range unitsFromHeader {
					if canon(k) == canon(clean) {
						u = v
						break
					}
				}
			}
			if u != "" && unitsByCol[name] == "" {
				unitsByCol[name] = units.NormalizeUnit(u)
			}
		}
		cols = append(cols, column{raw: raw, clean: clean, name: name, pos: i})
	}
	if len(dups) > 0 {
		warnings = append(warnings, fmt.Sprintf("[columns] Duplicate columns detected; keeping first occurrence: %v", dups))
	}

	rows := make([][]string, 0, len(tbl.data))
	for _, line := range tbl.data {
		fields := splitTrim(line, tbl.sep)
		for len(fields) < len(rawCols) {
			fields = append(fields, "")
		}
		rows = append(rows, fields)
	}

	table := make(map[string][]string, len(cols))
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		if _, taken := table[c.name]; taken {
			continue
		}
		cells := make([]string, len(rows))
		for r, fields := range rows {
			cells[r] = fields[c.pos]
		}
		table[c.name] = cells
		names = append(names, c.name)
	}

	stamps, valid, err := buildSolargisDatetime(table, names, opts.AssumedYear, &warnings)
	if err != nil {
		return nil, err
	}

	order := make([]int, 0, len(rows))
	for r := range rows {
		if valid[r] {
			order = append(order, r)
		}
	}
	dropped := len(rows) - len(order)
	sort.SliceStable(order, func(a, b int) bool { return stamps[order[a]].Before(stamps[order[b]]) })

	index := make([]time.Time, len(order))
	for i, r := range order {
		index[i] = stamps[r]
	}
	frame := timeseries.NewFrame(index)
	for _, name := range MeteoColumns {
		cells, ok := table[name]
		if !ok {
			continue
		}
		values := make([]float64, len(order))
		for i, r := range order {
			values[i] = parseNumber(cells[r])
		}
		frame.MustSet(name, values)
	}

	step := timeseries.DetectTimeStep(index)
	if !step.Known() {
		step = timeseries.StepInfo{Minutes: 60, Source: timeseries.StepUnknown}
		warnings = append(warnings, "[timestep] Could not detect timestep from datetime; assuming 60 min (TMY60).")
	}

	energyToPower(frame, unitsByCol, opts.TargetIrradianceUnit, step.Minutes)

	ds := &TMYDataset{
		Frame:           frame,
		HeaderInfo:      headerInfo,
		Units:           unitsByCol,
		TimeStepMinutes: step.Minutes,
		SourceName:      sourceName,
		Reader:          ReaderSolargis,
		Warnings:        warnings,
	}
	return finishTMY(ds, opts, "[resample] Sub-hourly data resampled to 1H (sum irradiation / mean temp+wind).", dropped)
}

func findSolargisTable(lines []string) (solargisTable, error) {
	var header, body []string
	for _, l := range lines {
		t := strings.TrimSpace(l)
		switch {
		case strings.HasPrefix(t, "#"):
			header = append(header, l)
		case t != "":
			body = append(body, l)
		}
	}
	if len(body) == 0 {
		return solargisTable{}, apperrors.NewParsingError("Solargis TMY: no table found (file contains only header lines).", nil)
	}

	sep := guessSeparator(body)

	colIdx := -1
	for i, l := range body {
		if looksLikeColumnsRow(l, sep) {
			colIdx = i
			break
		}
	}
	if colIdx < 0 {
		for i, l := range body {
			if !strings.Contains(l, sep) {
				continue
			}
			for _, tok := range strings.Split(l, sep) {
				switch canon(tok) {
				case "day", "doy", "time", "year", "month", "hour":
					colIdx = i
				}
			}
			if colIdx >= 0 {
				break
			}
		}
	}
	if colIdx < 0 {
		return solargisTable{}, apperrors.NewParsingError("Solargis TMY: could not identify the columns header row.", nil)
	}

	tbl := solargisTable{header: header, sep: sep, columns: strings.TrimSpace(body[colIdx])}
	dataStart := colIdx + 1
	if dataStart < len(body) {
		cand := strings.TrimSpace(body[dataStart])
		toks := splitTrim(cand, sep)
		if len(toks) == len(splitTrim(tbl.columns, sep)) && looksLikeUnitsRow(toks) {
			tbl.units = cand
			dataStart++
		}
	}
	tbl.data = body[dataStart:]
	if len(tbl.data) == 0 {
		return solargisTable{}, apperrors.NewParsingError("Solargis TMY: columns row found, but no data lines afterwards.", nil)
	}
	return tbl, nil
}

func guessSeparator(lines []string) string {
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		if strings.Count(t, ";") >= 2 {
			return ";"
		}
		if strings.Count(t, ",") >= 2 {
			return ","
		}
	}
	return ";"
}

func looksLikeColumnsRow(line, sep string) bool {
	toks := splitTrim(line, sep)
	if len(toks) < 3 {
		return false
	}
	nonNum := 0
	for _, t := range toks {
		if t != "" && !isNumberish(t) {
			nonNum++
		}
	}
	if nonNum < max(2, int(0.6*float64(len(toks)))) {
		return false
	}
	for _, t := range toks {
		if _, ok := timeVocabulary[canon(t)]; ok {
			return true
		}
	}
	return false
}

func looksLikeUnitsRow(toks []string) bool {
	if len(toks) == 0 {
		return false
	}
	empties, unitHits, valueHits := 0, 0, 0
	for _, t := range toks {
		x := strings.ToLower(strings.TrimSpace(t))
		if x == "" {
			empties++
			continue
		}
		if isNumberish(x) {
			valueHits++
			continue
		}
		for _, k := range unitHints {
			if strings.Contains(x, k) {
				unitHits++
				break
			}
		}
	}
	return empties >= max(1, len(toks)/3) && unitHits >= 2 && valueHits <= 1
}

func solargisHeaderInfo(lines []string) map[string]string {
	info := make(map[string]string)
	for _, raw := range lines {
		s := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(raw), "#"))
		if s == "" {
			continue
		}
		sep := ""
		switch {
		case strings.Contains(s, ":"):
			sep = ":"
		case strings.Contains(s, ";"):
			sep = ";"
		default:
			continue
		}
		k, v, _ := strings.Cut(s, sep)
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			info[k] = v
		}
	}
	return info
}

// solargisHeaderUnits reads "#GHI - description [Wh/m2]" style lines.
func solargisHeaderUnits(lines []string) map[string]string {
	out := make(map[string]string)
	for _, raw := range lines {
		s := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(raw), "#"))
		if s == "" {
			continue
		}
		code, _, _ := strings.Cut(s, "-")
		code, _, _ = strings.Cut(strings.TrimSpace(code), " ")
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		m := reUnitBrackets.FindStringSubmatch(s)
		if m == nil {
			m = reUnitParens.FindStringSubmatch(s)
		}
		if m == nil {
			continue
		}
		if u := strings.TrimSpace(m[1]); u != "" {
			out[code] = units.NormalizeUnit(u)
		}
	}
	return out
}

// unitFromColumnName splits "GHI [Wh/m2]" into ("GHI", "Wh/m²").
func unitFromColumnName(col string) (string, string) {
	s := strings.TrimSpace(col)
	m := reUnitBrackets.FindStringSubmatch(s)
	if m == nil {
		m = reUnitParens.FindStringSubmatch(s)
	}
	if m == nil {
		return s, ""
	}
	s = reUnitBrackets.ReplaceAllString(s, "")
	s = reUnitParens.ReplaceAllString(s, "")
	return strings.TrimSpace(s), units.NormalizeUnit(strings.TrimSpace(m[1]))
}

func lookupVariable(name string) string {
	if name == "" {
		return ""
	}
	if internal, ok := solargisShortCodes[strings.ToUpper(name)]; ok {
		return internal
	}
	return canonToVar[canon(name)]
}

func lookupTimeColumn(names []string, component string) string {
	byCanon := make(map[string]string, len(names))
	for _, n := range names {
		c := canon(n)
		if _, ok := byCanon[c]; !ok {
			byCanon[c] = n
		}
	}
	for _, s := range timeSynonyms[component] {
		if n, ok := byCanon[canon(s)]; ok {
			return n
		}
	}
	return ""
}

// buildSolargisDatetime derives timestamps from whichever time columns the
// file has. It returns the stamps and a mask of usable rows.
func buildSolargisDatetime(table map[string][]string, names []string, assumedYear int, warnings *[]string) ([]time.Time, []bool, error) {
	n := 0
	for _, cells := range table {
		n = len(cells)
		break
	}
	stamps := make([]time.Time, n)
	valid := make([]bool, n)

	if c := lookupTimeColumn(names, "datetime"); c != "" {
		var bad []string
		for i, s := range table[c] {
			t, ok := parseAnyDatetime(cleanCell(s))
			if !ok {
				bad = append(bad, s)
				continue
			}
			stamps[i], valid[i] = t, true
		}
		if len(bad) > 0 {
			return nil, nil, apperrors.NewParsingError(fmt.Sprintf("Could not parse some datetime values (examples): %q", head(bad, 5)), nil)
		}
		return stamps, valid, nil
	}

	cYear := lookupTimeColumn(names, "year")
	cMonth := lookupTimeColumn(names, "month")
	cDay := lookupTimeColumn(names, "day")
	cDOY := lookupTimeColumn(names, "doy")
	cHour := lookupTimeColumn(names, "hour")
	cMin := lookupTimeColumn(names, "minute")
	cTime := lookupTimeColumn(names, "time")

	num := func(col string, i int) float64 {
		if col == "" {
			return 0
		}
		return parseNumber(table[col][i])
	}

	if cYear != "" && cMonth != "" && cDay != "" && cHour != "" {
		var bad []string
		for i := 0; i < n; i++ {
			y, mo, d, h, mi := num(cYear, i), num(cMonth, i), num(cDay, i), num(cHour, i), num(cMin, i)
			var (
				t  time.Time
				ok bool
			)
			if !anyNaN(y, mo, d, h, mi) {
				t, ok = civilTime(int(y), int(mo), int(d), int(h), int(mi))
			}
			if !ok {
				bad = append(bad, fmt.Sprintf("%s/%s/%s %s:%s", table[cYear][i], table[cMonth][i], table[cDay][i], table[cHour][i], cell(table, cMin, i)))
				continue
			}
			stamps[i], valid[i] = t, true
		}
		if len(bad) > 0 {
			return nil, nil, apperrors.NewParsingError(fmt.Sprintf("Could not build datetime from Y/M/D/H/M (examples): %q", head(bad, 5)), nil)
		}
		return stamps, valid, nil
	}

	if cDOY == "" && cDay != "" && cMonth == "" {
		cDOY = cDay
	}
	base := time.Date(assumedYear, 1, 1, 0, 0, 0, 0, time.UTC)

	if cDOY != "" && cTime != "" {
		var bad []string
		missing := false
		for i := 0; i < n; i++ {
			doy := num(cDOY, i)
			if math.IsNaN(doy) {
				missing = true
				continue
			}
			offset, ok := parseTimeOfDay(table[cTime][i])
			if !ok {
				bad = append(bad, table[cTime][i])
				continue
			}
			stamps[i] = base.AddDate(0, 0, int(doy)-1).Add(offset)
			valid[i] = true
		}
		if len(bad) > 0 {
			return nil, nil, apperrors.NewParsingError(fmt.Sprintf("Could not parse some Time values (examples): %q", head(bad, 5)), nil)
		}
		if missing {
			*warnings = append(*warnings, "[datetime] Some datetime values could not be built; rows kept as NaT.")
		}
		return stamps, valid, nil
	}

	if cDOY != "" && cHour != "" {
		var bad []string
		for i := 0; i < n; i++ {
			doy, h, mi := num(cDOY, i), num(cHour, i), num(cMin, i)
			if anyNaN(doy, h, mi) {
				bad = append(bad, fmt.Sprintf("%s %s:%s", table[cDOY][i], table[cHour][i], cell(table, cMin, i)))
				continue
			}
			offset := time.Duration((doy-1)*24*float64(time.Hour)) +
				time.Duration(h*float64(time.Hour)) +
				time.Duration(mi*float64(time.Minute))
			stamps[i], valid[i] = base.Add(offset), true
		}
		if len(bad) > 0 {
			return nil, nil, apperrors.NewParsingError(fmt.Sprintf("Could not build datetime from DOY/H/M (examples): %q", head(bad, 5)), nil)
		}
		return stamps, valid, nil
	}

	return nil, nil, apperrors.NewParsingError(fmt.Sprintf(
		"Solargis TMY: could not build datetime (missing time columns). Found columns: %v", names), nil)
}

func parseAnyDatetime(s string) (time.Time, bool) {
	for _, layout := range solargisDatetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseTimeOfDay reads "HH:MM", "HH:MM:SS" or decimal hours.
func parseTimeOfDay(s string) (time.Duration, bool) {
	s = cleanCell(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, true
		}
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	h := math.Trunc(v)
	m := math.Round((v - h) * 60)
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, true
}

// energyToPower converts per-step irradiation (Wh/m², kWh/m²) to irradiance
// in the target unit using the step length.
func energyToPower(f *timeseries.Frame, unitsByCol map[string]string, target string, stepMinutes int) {
	tgt := units.NormalizeUnit(target)
	if !units.IsIrradianceUnit(tgt) {
		return
	}
	if stepMinutes <= 0 {
		stepMinutes = 60
	}
	dtHours := float64(stepMinutes) / 60.0

	for _, c := range irradianceSumColumns {
		values := f.Column(c)
		if values == nil {
			continue
		}
		src := units.NormalizeUnit(unitsByCol[c])
		if !units.IsIrradiationUnit(src) {
			continue
		}

		factor := 1.0 / dtHours
		switch {
		case src == units.WattHourPerM2 && tgt == units.KiloWattPerM2:
			factor /= 1000.0
		case src == units.KiloWattHourPerM2 && tgt == units.WattPerM2:
			factor *= 1000.0
		}
		for i := range values {
			values[i] *= factor
		}
		unitsByCol[c] = tgt
	}
}

func anyNaN(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func cell(table map[string][]string, col string, i int) string {
	if col == "" {
		return "0"
	}
	return table[col][i]
}

func head(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
