package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
)

// OutputFormatter handles three output modes: JSON, quiet, and human-readable
type OutputFormatter struct {
	JSON  bool
	Quiet bool

	// Out and Err default to os.Stdout and os.Stderr
	Out io.Writer
	Err io.Writer
}

func (f *OutputFormatter) out() io.Writer {
	if f.Out != nil {
		return f.Out
	}
	return os.Stdout
}

func (f *OutputFormatter) err() io.Writer {
	if f.Err != nil {
		return f.Err
	}
	return os.Stderr
}

type idGetter interface{ GetID() int }

// Success outputs successful operation result
func (f *OutputFormatter) Success(data any) error {
	return f.Render(data, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%+v\n", data)
		return err
	})
}

// Render outputs data as JSON, as IDs only, or through human
func (f *OutputFormatter) Render(data any, human func(w io.Writer) error) error {
	if f.Quiet {
		if ids, ok := collectIDs(data); ok {
			for _, id := range ids {
				if _, err := fmt.Fprintf(f.out(), "%d\n", id); err != nil {
					return err
				}
			}
			return nil
		}
	}

	if f.JSON {
		return json.NewEncoder(f.out()).Encode(map[string]any{
			"success": true,
			"data":    data,
		})
	}

	// Human-readable format
	return human(f.out())
}

// collectIDs extracts IDs from a value or a slice of values
func collectIDs(data any) ([]int, bool) {
	if g, ok := data.(idGetter); ok {
		return []int{g.GetID()}, true
	}
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Slice {
		return nil, false
	}
	ids := make([]int, 0, v.Len())
	for i := range v.Len() {
		g, ok := v.Index(i).Interface().(idGetter)
		if !ok {
			return nil, false
		}
		ids = append(ids, g.GetID())
	}
	return ids, true
}

// Error outputs error information
func (f *OutputFormatter) Error(code string, message string) error {
	return f.ErrorWithSuggestion(code, message, "")
}

// ErrorWithSuggestion outputs error information with an optional suggestion
func (f *OutputFormatter) ErrorWithSuggestion(code string, message string, suggestion string) error {
	if f.JSON {
		errData := map[string]any{
			"code":    code,
			"message": message,
		}
		if suggestion != "" {
			errData["suggestion"] = suggestion
		}
		return json.NewEncoder(f.out()).Encode(map[string]any{
			"success": false,
			"error":   errData,
		})
	}

	// Human-readable error
	if _, err := fmt.Fprintf(f.err(), "Error: %s\n", message); err != nil {
		return err
	}
	if suggestion != "" {
		_, err := fmt.Fprintf(f.err(), "Suggestion: %s\n", suggestion)
		return err
	}
	return nil
}
