package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
	"github.com/ohler55/ojg/oj"
)

var jsonOptions = &oj.Options{Indent: 2, Sort: true}

// printValue writes v in format. Text prints strings as they are and any
// other value as compact JSON.
func printValue(w io.Writer, format string, v any) error {
	switch format {
	case jsonFormat:
		_, err := fmt.Fprintln(w, oj.JSON(v, jsonOptions))
		return err
	case yamlFormat:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		_, err := fmt.Fprintln(w, text(v))
		return err
	}
}

// printChunk writes one stream chunk on its own line. YAML chunks are
// written as documents.
func printChunk(w io.Writer, format string, chunk any) error {
	switch format {
	case jsonFormat:
		_, err := fmt.Fprintln(w, oj.JSON(chunk, &oj.Options{Sort: true}))
		return err
	case yamlFormat:
		if _, err := fmt.Fprintln(w, "---"); err != nil {
			return err
		}
		return printValue(w, yamlFormat, chunk)
	default:
		_, err := fmt.Fprintln(w, text(chunk))
		return err
	}
}

func text(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case error:
		return "error: " + x.Error()
	default:
		return oj.JSON(v, &oj.Options{Sort: true})
	}
}
