// Package output renders command results as JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/authcenter/authctl/internal/cli/client"
)

// Format is an output encoding
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// ParseFormat validates a --output flag value
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", JSON:
		return JSON, nil
	case YAML, "yml":
		return YAML, nil
	}
	return "", fmt.Errorf("invalid output format '%s', must be json or yaml", s)
}

// Print writes v in the given format. Values are encoded through their JSON
// tags in both formats so field names match.
func Print(w io.Writer, format Format, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	if format != YAML {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("failed to convert output: %w", err)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("failed to write yaml: %w", err)
	}
	return enc.Close()
}

// PrintResponse writes a call result as {status, data}
func PrintResponse(w io.Writer, format Format, resp *client.Response) error {
	return Print(w, format, resp)
}
