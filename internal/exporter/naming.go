package exporter

import (
	"path/filepath"
	"strings"
	"time"

	"pvinsight/internal/config"
	"pvinsight/internal/infrastructure"
)

// Tool names written in run logs and used as output folder names.
const (
	ToolHourly     = "hourly_results_analysis"
	ToolTMY        = "TMY_Analysis"
	ToolTMYCompare = "TMY_Compare"
)

// Stem returns the base name of a source file without its extension.
func Stem(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == "/" {
		return "input"
	}
	return stem
}

// Namer builds output file names. Timestamps come from the process clock.
type Namer struct {
	Timestamp bool
	now       time.Time
}

// NewNamer freezes the current time so every file of a run shares it.
func NewNamer(timestamp bool) Namer {
	return Namer{Timestamp: timestamp, now: infrastructure.Now()}
}

// Time is the frozen generation time.
func (n Namer) Time() time.Time { return n.now }

// hourlySuffix is "_20060102_150405" or empty.
func (n Namer) hourlySuffix() string {
	if !n.Timestamp {
		return ""
	}
	return "_" + n.now.Format(infrastructure.CompactTimestampLayout)
}

// tmySuffix is "__2006-01-02_15-04-05" or empty.
func (n Namer) tmySuffix() string {
	if !n.Timestamp {
		return ""
	}
	return "__" + n.now.Format(infrastructure.FileTimestampLayout)
}

// Hourly returns hourly_results_analysis{_ts}{ext}.
func (n Namer) Hourly(ext string) string {
	return ToolHourly + n.hourlySuffix() + ext
}

// TMYReport returns {stem}__TMY_Report{__ts}.pdf.
func (n Namer) TMYReport(source string) string {
	return Stem(source) + "__TMY_Report" + n.tmySuffix() + ".pdf"
}

// TMYLog returns {stem}__TMY_Analysis{__ts}.log.
func (n Namer) TMYLog(source string) string {
	return Stem(source) + "__TMY_Analysis" + n.tmySuffix() + ".log"
}

// TMYFile returns {stem}__TMY_{kind}{__ts}{ext} for side artefacts.
func (n Namer) TMYFile(source, kind, ext string) string {
	return Stem(source) + "__TMY_" + kind + n.tmySuffix() + ext
}

// The comparison always carries its timestamp.
func (n Namer) compareSuffix() string {
	return "__" + n.now.Format(infrastructure.FileTimestampLayout)
}

// CompareReport returns TMY_Comparison__{a}__VS__{b}__{ts}.pdf.
func (n Namer) CompareReport(a, b string) string {
	return "TMY_Comparison__" + Stem(a) + "__VS__" + Stem(b) + n.compareSuffix() + ".pdf"
}

// CompareLog returns TMY_Compare__{a}__VS__{b}__{ts}.log.
func (n Namer) CompareLog(a, b string) string {
	return "TMY_Compare__" + Stem(a) + "__VS__" + Stem(b) + n.compareSuffix() + ".log"
}

// CompareFile returns TMY_Compare_{kind}__{a}__VS__{b}__{ts}{ext}.
func (n Namer) CompareFile(a, b, kind, ext string) string {
	return "TMY_Compare_" + kind + "__" + Stem(a) + "__VS__" + Stem(b) + n.compareSuffix() + ext
}

// Figure returns a slugged figure file name.
func Figure(prefix, name string) string {
	return config.SafeSlug(prefix+"_"+name) + ".svg"
}
