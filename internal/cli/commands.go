package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/dshills/sandboxctl/internal/security"
	"github.com/dshills/sandboxctl/internal/validation"
)

func (e *env) validateCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a configuration file or the stored settings",
		Long: `Validate a SecurityConfig document against the host platform.

With a file argument (or - for stdin) the file is validated; it may be a bare
SecurityConfig or an exported configuration. Without one the configuration
generated from the store is validated. The command fails when errors are
found; warnings alone do not fail it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var doc security.Document
			if len(args) == 1 {
				data, err := e.readInput(args[0])
				if err != nil {
					return err
				}
				if doc, err = parsePartial(data); err != nil {
					return err
				}
			} else {
				var err error
				if doc, err = e.manager.GenerateServerConfig(); err != nil {
					return err
				}
			}

			res, err := e.manager.ValidateConfiguration(doc)
			if err != nil {
				return err
			}
			if asJSON {
				if err := writeJSON(e.out, res); err != nil {
					return err
				}
			} else {
				printResult(e.out, res)
			}
			return res.Err()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func (e *env) generateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Print the SecurityConfig generated from the stored settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := e.manager.GenerateServerConfig()
			if err != nil {
				return err
			}
			return writeJSON(e.out, doc)
		},
	}
}

func (e *env) exportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := e.manager.ExportConfiguration(cmd.Context())
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err := io.WriteString(e.out, out)
				return err
			}
			if err := os.WriteFile(output, []byte(out), 0o600); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}
			fmt.Fprintf(e.errOut, "Exported configuration to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	return cmd
}

func (e *env) importCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import an exported configuration",
		Long: `Import a configuration produced by export (or - for stdin).

The file is validated before anything is written. When it raises warnings or
comes from another platform you are asked to confirm; --yes skips the
question. Without a terminal the import is declined unless --yes is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := e.readInput(args[0])
			if err != nil {
				return err
			}
			res, err := e.manager.ImportConfiguration(cmd.Context(), string(data), yes)
			if err != nil {
				return err
			}

			fmt.Fprintf(e.out, "Imported %d settings\n", len(res.Written))
			if res.CrossPlatform {
				fmt.Fprintf(e.out, "Source platform: %s\n", res.SourcePlatform)
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(e.out, "warning: %s: %s\n", w.Setting, w.Message)
			}
			for _, key := range res.Skipped {
				fmt.Fprintf(e.out, "skipped unknown key %s\n", key)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Import without asking for confirmation")
	return cmd
}

func (e *env) capabilitiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "Show the sandboxing features this platform supports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caps, err := e.manager.GetPlatformCapabilities()
			if err != nil {
				return err
			}
			return writeJSON(e.out, caps)
		},
	}
}

// readInput reads a file, or stdin for "-".
func (e *env) readInput(name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(e.in)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

// parsePartial decodes a SecurityConfig, or the security section of an
// exported configuration.
func parsePartial(data []byte) (security.Document, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid JSON")
	}
	if section := gjson.GetBytes(data, "security"); section.IsObject() && gjson.GetBytes(data, "version").Exists() {
		data = []byte(section.Raw)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc security.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	if doc == nil {
		return nil, errors.New("configuration must be a JSON object")
	}
	return doc.Normalized(), nil
}

func printResult(w io.Writer, res validation.Result) {
	for _, issue := range res.Errors {
		fmt.Fprintf(w, "error: %s: %s\n", issue.Setting, issue.Message)
		if issue.Suggestion != "" {
			fmt.Fprintf(w, "  suggestion: %s\n", issue.Suggestion)
		}
	}
	for _, issue := range res.Warnings {
		fmt.Fprintf(w, "warning [%s]: %s: %s\n", issue.Severity, issue.Setting, issue.Message)
		if issue.Suggestion != "" {
			fmt.Fprintf(w, "  suggestion: %s\n", issue.Suggestion)
		}
	}
	if res.Valid {
		fmt.Fprintf(w, "Configuration is valid (%d warnings)\n", len(res.Warnings))
	}
}

func writeJSON(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	_, err = w.Write(pretty.Pretty(raw))
	return err
}
