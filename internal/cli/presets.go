package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (e *env) presetsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List, compare and apply security presets",
	}
	cmd.AddCommand(e.presetsListCommand(), e.presetsDiffCommand(), e.presetsApplyCommand())
	return cmd
}

func (e *env) presetsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the built-in presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			presets, err := e.manager.Presets()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tLEVEL\tDESCRIPTION")
			for _, p := range presets {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.SecurityLevel, p.Description)
			}
			return tw.Flush()
		},
	}
}

func (e *env) presetsDiffCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <name>",
		Short: "Show the settings a preset would change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			diffs, err := e.manager.DiffPreset(args[0])
			if err != nil {
				return err
			}
			if len(diffs) == 0 {
				fmt.Fprintf(e.out, "Settings already match preset %q\n", args[0])
				return nil
			}
			tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FIELD\tCURRENT\tPRESET")
			for _, d := range diffs {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Field, compact(d.Current), compact(d.Desired))
			}
			return tw.Flush()
		},
	}
}

func (e *env) presetsApplyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <name>",
		Short: "Validate and write a preset to the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.manager.ApplyPreset(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Applied preset %q\n", args[0])
			return nil
		},
	}
}

// compact renders a value as one-line JSON.
func compact(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}
