package cli

import (
	"bufio"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vocdoni/gofirma/usercerts/internal/app"
	"github.com/vocdoni/gofirma/usercerts/internal/crypto/pkcs12store"
	"github.com/vocdoni/gofirma/usercerts/internal/version"
)

func newListCommand(st *state) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the certificates usable for signing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := st.app.Certificates(cmd.Context(), refresh)
			if err != nil {
				return err
			}
			return st.printer(cmd).PrintCertificateList(list)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "query the backend even when a list is cached")
	return cmd
}

func newShowCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "show <thumbprint>",
		Short: "Show one certificate by its SHA-1 thumbprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := st.app.Certificate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return st.printer(cmd).PrintCertificate(c)
		},
	}
}

func newImportCommand(st *state) *cobra.Command {
	var (
		name          string
		password      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a PKCS#12 file or a PEM/DER certificate into the pkcs12 vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if passwordStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password from stdin: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			id, err := st.app.Import(cmd.Context(), args[0], name, []byte(password))
			if err != nil {
				return fmt.Errorf("%s: %w", pkcs12store.FriendlyImportError(err), err)
			}
			return st.printer(cmd).PrintIdentity(id)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "friendly name (default is the subject common name)")
	cmd.Flags().StringVar(&password, "password", "", "PKCS#12 password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the PKCS#12 password from stdin")
	return cmd
}

func newDeleteCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <thumbprint>",
		Short: "Delete a certificate from the pkcs12 vault by its SHA-1 thumbprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := st.app.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return st.printer(cmd).PrintDeleted(id)
		},
	}
}

func newBackendsCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List certificate backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.printer(cmd).PrintBackendList(app.Backends(), st.app.Config.Backend)
		},
	}
}

func newVersionCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.printer(cmd).PrintVersion(map[string]string{
				"version": version.Version,
				"go":      runtime.Version(),
				"os":      runtime.GOOS,
				"arch":    runtime.GOARCH,
			})
		},
	}
}
