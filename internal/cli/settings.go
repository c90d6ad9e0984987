package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/sandboxctl/internal/config/loader"
	"github.com/dshills/sandboxctl/internal/config/registry"
	"github.com/dshills/sandboxctl/internal/config/store"
)

func (e *env) settingsCommand() *cobra.Command {
	var long, explicit bool

	cmd := &cobra.Command{
		Use:   "settings [query]",
		Short: "List the declared settings with their current values",
		Long: `List every declared setting, or those whose path, field, description or
tags contain query. Each row shows the effective value, the default and the
environment variable that overrides it. With --explicit only settings that
hold a stored value at --scope are listed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var query string
			if len(args) == 1 {
				query = args[0]
			}

			var stored map[string]bool
			if explicit {
				var err error
				if stored, err = e.storedKeys(cmd.Context()); err != nil {
					return err
				}
			}

			tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tTYPE\tVALUE\tDEFAULT\tENV")
			for _, s := range registry.Builtin().Search(query) {
				if stored != nil && !stored[s.Path] {
					continue
				}
				value, ok := e.store.Lookup(s.Path)
				if !ok || value == nil {
					value = s.Default
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					s.Path, s.Type, compact(value), compact(s.Default), loader.PathToEnv(loader.DefaultEnvPrefix, s.Path))
				if long && s.Description != "" {
					fmt.Fprintf(tw, "\t%s\t\t\t\n", s.Description)
				}
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVarP(&long, "long", "l", false, "Show descriptions")
	cmd.Flags().BoolVar(&explicit, "explicit", false, "Show only settings stored at --scope")
	return cmd
}

// storedKeys returns the paths the store holds a value for at --scope.
func (e *env) storedKeys(ctx context.Context) (map[string]bool, error) {
	scope, err := store.ParseScope(e.opts.scope)
	if err != nil {
		return nil, err
	}
	lister, ok := e.store.(store.Lister)
	if !ok {
		return nil, errNoKeys
	}
	keys, err := lister.Keys(ctx, scope)
	if err != nil {
		return nil, err
	}
	stored := make(map[string]bool, len(keys))
	for _, k := range keys {
		stored[k] = true
	}
	return stored, nil
}
