package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newKeysCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Fetch the issuer's key set and list its keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.buildStack()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.keys.Refresh(cmd.Context()); err != nil {
				return a.printRejection(err)
			}

			keys := s.keys.Keys()
			if len(keys) == 0 {
				fmt.Fprintln(a.out, "The key set is empty.")
				return nil
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KID\tKTY\tUSE\tALG")
			for _, k := range keys {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", k.KeyID, k.KeyType, orDash(k.Use), orDash(k.Algorithm))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(a.out, "\n%s\n", dimFmt(fmt.Sprintf("%d key(s) fetched at %s",
				len(keys), s.keys.FetchedAt().Format(time.RFC3339))))
			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
