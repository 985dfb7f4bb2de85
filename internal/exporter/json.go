package exporter

import (
	"io"

	"github.com/goccy/go-json"
)

// EncodeJSON writes v as indented JSON. timeseries.Float values encode NaN
// as null.
func EncodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// WriteJSON writes v as indented JSON to path.
func WriteJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeText(path, string(b)+"\n")
}
