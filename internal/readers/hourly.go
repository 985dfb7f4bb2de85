package readers

import (
	"math"
	"strings"
	"time"

	apperrors "pvinsight/internal/errors"
	"pvinsight/internal/timeseries"
)

// GeneralInfo keys extracted from the Hourly Results preamble.
const (
	InfoPVSystVersion  = "PVSyst_version"
	InfoSimulationDate = "Simulation_date"
	InfoProjectFile    = "Project_file"
	InfoProjectCode    = "Project_code"
	InfoSiteName       = "Site_name"
	InfoMeteoName      = "Meteo_name"
	InfoVariantName    = "Variant_name"
)

// MandatoryHourlyColumn must be present in every Hourly Results table.
const MandatoryHourlyColumn = "E_Grid"

// HourlyResult is a parsed PVSyst Hourly Results export.
type HourlyResult struct {
	GeneralInfo map[string]string
	Frame       *timeseries.Frame
	Units       map[string]string
}

// ProjectName returns the project code, falling back to the project file.
func (h *HourlyResult) ProjectName() string {
	if v := h.GeneralInfo[InfoProjectCode]; v != "" {
		return v
	}
	return h.GeneralInfo[InfoProjectFile]
}

// hourlyDateLayouts are tried in order; the first one that parses at least
// 98% of the rows wins.
var hourlyDateLayouts = []string{
	"2/1/2006 15:04",
	"2/1/06 15:04",
	"2/1/06 15:04:05",
	"2/1/2006 15:04:05",
	"2.1.06 15:04",
	"2.1.2006 15:04",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

const (
	layoutWinShare     = 0.98
	minNumericRowShare = 0.5
)

// ParseGeneralInfo extracts project metadata from the lines preceding the
// table. The first line is the PVSyst version banner.
func ParseGeneralInfo(lines []string) map[string]string {
	info := make(map[string]string)
	if len(lines) > 0 {
		info[InfoPVSystVersion] = strings.TrimSpace(strings.ReplaceAll(lines[0], bom, ""))
	}

	field := func(parts []string, i int) (string, bool) {
		if len(parts) > i {
			return strings.TrimSpace(parts[i]), true
		}
		return "", false
	}

	for _, line := range lines {
		parts := strings.Split(line, ";")
		switch {
		case strings.HasPrefix(line, "Simulation date"):
			if v, ok := field(parts, 2); ok {
				info[InfoSimulationDate] = v
			}
		case strings.HasPrefix(line, "Projet;"):
			if v, ok := field(parts, 1); ok {
				info[InfoProjectFile] = v
				code, _, _ := strings.Cut(v, ".")
				info[InfoProjectCode] = strings.TrimSpace(code)
			}
		case strings.HasPrefix(line, "Site géographique;"):
			if v, ok := field(parts, 3); ok {
				info[InfoSiteName] = v
			}
		case strings.HasPrefix(line, "Données météo;"):
			if v, ok := field(parts, 3); ok {
				info[InfoMeteoName] = v
			}
		case strings.HasPrefix(line, "Variante de simulation;"):
			if v, ok := field(parts, 3); ok {
				info[InfoVariantName] = v
			}
		}
	}
	return info
}

// TableLayout locates the hourly table inside the export.
type TableLayout struct {
	DateColumn string
	Headers    []string
	Units      []string
	DataStart  int
}

// DetectTable finds the "date;..." header line and the units row below it.
func DetectTable(lines []string) (TableLayout, error) {
	for i, raw := range lines {
		line := strings.ReplaceAll(strings.TrimLeft(raw, " \t"), bom, "")
		if !strings.HasPrefix(strings.ToLower(line), "date;") {
			continue
		}
		headers := splitTrim(line, ";")
		if i+1 >= len(lines) {
			return TableLayout{}, apperrors.NewParsingError("Missing units row after header line.", nil)
		}
		unitsLine := strings.ReplaceAll(strings.TrimLeft(lines[i+1], " \t"), bom, "")
		return TableLayout{
			DateColumn: headers[0],
			Headers:    headers,
			Units:      splitTrim(unitsLine, ";"),
			DataStart:  i + 2,
		}, nil
	}
	return TableLayout{}, apperrors.NewParsingError("Hourly table not found (missing 'date;...' header line).", nil)
}

// ReadHourly parses a PVSyst Hourly Results export.
func ReadHourly(data []byte) (*HourlyResult, error) {
	lines := ReadLines(data)
	info := ParseGeneralInfo(lines)

	frame, unitsMap, err := loadHourlyFrame(lines)
	if err != nil {
		return nil, err
	}
	return &HourlyResult{GeneralInfo: info, Frame: frame, Units: unitsMap}, nil
}

func loadHourlyFrame(lines []string) (*timeseries.Frame, map[string]string, error) {
	layout, err := DetectTable(lines)
	if err != nil {
		return nil, nil, err
	}

	headers := layout.Headers
	if !contains(headers, MandatoryHourlyColumn) {
		return nil, nil, apperrors.NewParsingError("Missing mandatory column 'E_Grid'.", nil)
	}

	unitRow := make([]string, len(headers))
	copy(unitRow, layout.Units)

	var rows [][]string
	for _, raw := range lines[layout.DataStart:] {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		parts := strings.Split(raw, ";")
		if len(parts) < len(headers) {
			continue
		}
		rows = append(rows, parts[:len(headers)])
	}

	unitsMap := make(map[string]string, len(headers))
	for i, h := range headers {
		unitsMap[h] = unitRow[i]
	}
	if layout.DateColumn != "date" {
		unitsMap["date"] = unitsMap[layout.DateColumn]
		delete(unitsMap, layout.DateColumn)
	}

	if len(rows) == 0 {
		f := timeseries.NewFrame(nil)
		for _, h := range headers[1:] {
			f.MustSet(h, []float64{})
		}
		return f, unitsMap, nil
	}

	raw := make([]string, len(rows))
	for i, r := range rows {
		raw[i] = r[0]
	}
	stamps, ok := parseHourlyDates(raw)

	var (
		index []time.Time
		kept  []int
	)
	for i := range rows {
		if ok[i] {
			index = append(index, stamps[i])
			kept = append(kept, i)
		}
	}
	if len(index) == 0 {
		return nil, nil, apperrors.NewParsingError("No valid timestamps could be parsed from the date column.", nil)
	}

	frame := timeseries.NewFrame(index)
	anyValid := make([]bool, len(kept))
	seen := make(map[string]bool, len(headers))
	for c := 1; c < len(headers); c++ {
		name := headers[c]
		if seen[name] {
			continue
		}
		seen[name] = true
		values := make([]float64, len(kept))
		for j, r := range kept {
			values[j] = parseNumber(rows[r][c])
			if !math.IsNaN(values[j]) {
				anyValid[j] = true
			}
		}
		frame.MustSet(name, values)
	}

	valid := 0
	for _, v := range anyValid {
		if v {
			valid++
		}
	}
	if float64(valid)/float64(len(kept)) < minNumericRowShare {
		return nil, nil, apperrors.NewParsingError(
			"Less than 50% of rows contain valid numeric values. Check decimal separator / file integrity.", nil)
	}

	frame.Sort()
	return frame, unitsMap, nil
}

// parseHourlyDates returns the timestamps of raw parsed with the winning
// layout and a mask of the rows that parsed.
func parseHourlyDates(raw []string) ([]time.Time, []bool) {
	cleaned := make([]string, len(raw))
	for i, s := range raw {
		cleaned[i] = cleanCell(s)
	}

	var (
		bestStamps []time.Time
		bestOK     []bool
		bestValid  = -1
	)
	for _, layout := range hourlyDateLayouts {
		stamps := make([]time.Time, len(cleaned))
		ok := make([]bool, len(cleaned))
		valid := 0
		for i, s := range cleaned {
			t, err := time.Parse(layout, s)
			if err == nil {
				stamps[i], ok[i] = t, true
				valid++
			}
		}
		if valid > bestValid {
			bestStamps, bestOK, bestValid = stamps, ok, valid
		}
		if valid > 0 && float64(valid) >= layoutWinShare*float64(len(cleaned)) {
			return stamps, ok
		}
	}
	return bestStamps, bestOK
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
