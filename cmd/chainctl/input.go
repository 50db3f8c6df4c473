package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/asakaida/modelchain/internal/services/chain"
	"gopkg.in/yaml.v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// readLevels returns the chain given inline or in a file; exactly one source is required
func readLevels(inline, file string, stdin io.Reader) (chain.Levels, error) {
	var data []byte
	switch {
	case inline != "" && file != "":
		return nil, errors.New("--chain and --file are mutually exclusive")
	case inline != "":
		data = []byte(inline)
	case file == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read chain from stdin: %w", err)
		}
		data = b
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read chain file: %w", err)
		}
		data = b
	default:
		return nil, errors.New("a chain is required (--chain or --file)")
	}
	return chain.ParseLevels(data)
}

// parseArgs decodes each argument as a YAML scalar so "10" becomes an integer
func parseArgs(args []string) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		var v interface{}
		if err := yaml.Unmarshal([]byte(a), &v); err != nil || v == nil {
			out[i] = a
			continue
		}
		switch v.(type) {
		case map[string]interface{}, []interface{}:
			out[i] = a
		default:
			out[i] = v
		}
	}
	return out
}

func write(w io.Writer, format string, v interface{}) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q (want %s or %s)", format, formatJSON, formatYAML)
	}
}
