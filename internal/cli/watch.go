package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/dshills/sandboxctl/internal/config/notify"
)

func (e *env) watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [path]",
		Short: "Print settings changes until interrupted",
		Long: `Follow the store and print one line per change. With path, only changes at
or below it are shown. When another program edits the settings file the
regenerated configuration is validated and the outcome is printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var mu sync.Mutex
			observer := func(c notify.Change) {
				mu.Lock()
				defer mu.Unlock()
				e.printChange(e.out, c)
			}

			var (
				sub *notify.Subscription
				err error
			)
			if len(args) == 1 {
				sub, err = e.manager.OnPathChange(args[0], observer)
			} else {
				sub, err = e.manager.OnChange(observer)
			}
			if err != nil {
				return err
			}
			defer sub.Unsubscribe()

			mu.Lock()
			fmt.Fprintln(e.out, "Watching for settings changes")
			mu.Unlock()

			<-cmd.Context().Done()
			return nil
		},
	}
}

func (e *env) printChange(w io.Writer, c notify.Change) {
	switch c.Type {
	case notify.ChangeSet:
		fmt.Fprintf(w, "set %s = %s (%s)\n", c.Path, compact(c.NewValue), c.Scope)
	case notify.ChangeDelete:
		fmt.Fprintf(w, "reset %s (%s)\n", c.Path, c.Scope)
	case notify.ChangeReload:
		doc, err := e.manager.GenerateServerConfig()
		if err != nil {
			fmt.Fprintf(w, "reload %s: %v\n", c.Source, err)
			return
		}
		res, err := e.manager.ValidateConfiguration(doc)
		if err != nil {
			fmt.Fprintf(w, "reload %s: %v\n", c.Source, err)
			return
		}
		status := "valid"
		if !res.Valid {
			status = "invalid"
		}
		fmt.Fprintf(w, "reload %s: %s, %d errors, %d warnings\n", c.Source, status, len(res.Errors), len(res.Warnings))
	}
}
