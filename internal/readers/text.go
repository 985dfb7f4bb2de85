package readers

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const (
	bom  = "\ufeff"
	nbsp = "\u00a0"
)

// DecodeText returns data as a string. Valid UTF-8 is kept as is, anything
// else is decoded as ISO-8859-1, which is what PVSyst writes on Windows.
func DecodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "")
	}
	return string(out)
}

// SplitLines splits text on \n, \r\n and \r without keeping terminators.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// ReadLines decodes data and splits it into lines.
func ReadLines(data []byte) []string {
	return SplitLines(DecodeText(data))
}

// ReadFile loads a file and returns its bytes with its base name.
func ReadFile(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	return data, filepath.Base(path), nil
}

// cleanCell strips BOM, quotes and non-breaking spaces from a cell.
func cleanCell(s string) string {
	s = strings.ReplaceAll(s, bom, "")
	s = strings.ReplaceAll(s, nbsp, " ")
	s = strings.ReplaceAll(s, `"`, "")
	return strings.TrimSpace(s)
}

// parseNumber reads a cell as float64, accepting a comma decimal separator.
// Anything unparseable is NaN.
func parseNumber(s string) float64 {
	s = strings.ReplaceAll(cleanCell(s), ",", ".")
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// ParseOptionalFloat parses user input such as "1 250,5". Empty, invalid and
// non-positive values yield nil.
func ParseOptionalFloat(s string) *float64 {
	s = strings.ReplaceAll(cleanCell(s), " ", "")
	v := parseNumber(s)
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return nil
	}
	return &v
}

var numberPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

func isNumberish(tok string) bool {
	return numberPattern.MatchString(strings.TrimSpace(tok))
}

func splitTrim(line, sep string) []string {
	parts := strings.Split(line, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
