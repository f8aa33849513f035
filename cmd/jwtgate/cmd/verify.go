package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gatekeep/go-jwt-gate/core"
)

// errRejected is returned after a rejection has already been printed.
var errRejected = errors.New("token rejected")

func newVerifyCmd(a *app) *cobra.Command {
	var permission string

	cmd := &cobra.Command{
		Use:   "verify [--permission PERMISSION] TOKEN",
		Short: "Verify a token and print its claims",
		Long: `Run a token through the gate: signature, issuer, audience, lifetime,
revocation and, when --permission is given, the permission check.

The token may be given bare or as a full "Bearer ..." header value.
On success the claims are printed as JSON. On rejection the error code is
printed and the command exits non-zero.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.buildStack()
			if err != nil {
				return err
			}
			defer s.Close()

			header := strings.TrimSpace(args[0])
			if !strings.Contains(header, " ") {
				header = "Bearer " + header
			}

			claims, err := s.core.CheckAuthorization(cmd.Context(), header, permission)
			if err != nil {
				return a.printRejection(err)
			}

			out, err := json.MarshalIndent(claims, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode claims: %w", err)
			}
			fmt.Fprintf(a.out, "%s token accepted for %s\n", okFmt("✓"), claims.Subject)
			fmt.Fprintln(a.out, string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&permission, "permission", "p", "", "Permission the token must carry")
	return cmd
}

func (a *app) printRejection(err error) error {
	var authErr *core.AuthError
	if !errors.As(err, &authErr) {
		return err
	}
	fmt.Fprintf(a.out, "%s %s (%d): %s\n",
		errFmt("✗"), codeFmt(string(authErr.Kind)), authErr.Kind.StatusCode(), authErr.Message)
	if authErr.Details != nil {
		fmt.Fprintf(a.out, "  %s\n", dimFmt(authErr.Details.Error()))
	}
	return errRejected
}
