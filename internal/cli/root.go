// Package cli implements the usercerts command line interface.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vocdoni/gofirma/usercerts/internal/app"
	"github.com/vocdoni/gofirma/usercerts/internal/config"
)

// state is shared by the commands of one invocation.
type state struct {
	app    *app.App
	output string
	logOut io.Writer
}

// NewRootCommand returns the usercerts command tree. Logs are written to logOut.
func NewRootCommand(logOut io.Writer) *cobra.Command {
	st := &state{logOut: logOut}

	root := &cobra.Command{
		Use:   "usercerts",
		Short: "List the signing certificates of the current user",
		Long: `usercerts lists the certificates the current user can sign with: valid
today and backed by a private key. Certificates come from one backend:

  - pkcs12: a local vault of imported PKCS#12 files
  - os:     the operating system store (macOS Keychain, Windows)
  - nss:    an NSS database (Firefox profile or ~/.pki/nssdb)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.New(), cmd.Flags())
			if err != nil {
				return err
			}
			a, err := app.New(cfg, st.logOut)
			if err != nil {
				return err
			}
			st.app = a
			return nil
		},
	}

	flags := root.PersistentFlags()
	config.RegisterFlags(flags)
	flags.StringVarP(&st.output, "output", "o", "text", "output format (text, json, table, yaml)")

	root.AddCommand(
		newListCommand(st),
		newShowCommand(st),
		newImportCommand(st),
		newDeleteCommand(st),
		newBackendsCommand(st),
		newVersionCommand(st),
	)
	return root
}

func (st *state) printer(cmd *cobra.Command) *Printer {
	return NewPrinter(st.output, cmd.OutOrStdout())
}

// Execute runs the command line with os.Args.
func Execute() error {
	root := NewRootCommand(os.Stderr)
	if err := root.Execute(); err != nil {
		format := "text"
		if f := root.PersistentFlags().Lookup("output"); f != nil {
			format = f.Value.String()
		}
		if perr := NewPrinter(format, os.Stderr).PrintError(err); perr != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		return err
	}
	return nil
}
