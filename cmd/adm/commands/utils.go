package commands

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// AddOutputFlags registers the persistent --format and --output flags
func AddOutputFlags(cmd *cobra.Command, env *Environment) {
	cmd.PersistentFlags().StringVar(&env.Format, "format", formatJSON, "Report format: json or yaml")
	cmd.PersistentFlags().StringVarP(&env.Output, "output", "o", "", "Write the report to this file instead of stdout")
}

// isTerminal reports whether w is an interactive terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// openOutput returns the writer for the report and a function that closes it
func openOutput(cmd *cobra.Command, env *Environment) (io.Writer, func() error, error) {
	if env.Output == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(env.Output)
	if err != nil {
		return nil, nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "cannot create output file %s: %v", env.Output, err)
	}
	return f, f.Close, nil
}

// encodeReport writes v to w in the requested format. JSON is indented
// unless it is piped somewhere other than a terminal.
func encodeReport(w io.Writer, format string, v interface{}, pretty bool) error {
	switch strings.ToLower(format) {
	case formatJSON, "":
		enc := json.NewEncoder(w)
		if pretty {
			enc.SetIndent("", "  ")
		}
		if err := enc.Encode(v); err != nil {
			return contextutils.WrapError(err, "failed to encode JSON report")
		}
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return contextutils.WrapError(err, "failed to encode YAML report")
		}
		return enc.Close()
	default:
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unsupported format %q (use json or yaml)", format)
	}
	return nil
}

// writeReport encodes v to the configured destination
func writeReport(cmd *cobra.Command, env *Environment, v interface{}) error {
	w, closeFn, err := openOutput(cmd, env)
	if err != nil {
		return err
	}
	pretty := env.Output != "" || isTerminal(w)
	if err := encodeReport(w, env.Format, v, pretty); err != nil {
		_ = closeFn()
		return err
	}
	return closeFn()
}

// ValidateFormat rejects unknown report formats before any work is done
func ValidateFormat(format string) error {
	switch strings.ToLower(format) {
	case formatJSON, formatYAML:
		return nil
	}
	return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unsupported format %q (use json or yaml)", format)
}
