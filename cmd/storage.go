package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func NewURLCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "url <object-key>...",
		Short: "Print access URLs",
		Long:  "Exchange object keys for short-lived access URLs.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if len(args) == 1 {
				u, err := s.lib.Resolver.Resolve(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				fmt.Fprintln(s.out, u)
				return nil
			}

			urls, err := s.lib.Resolver.ResolveMany(cmd.Context(), args)
			if err != nil {
				return err
			}

			for _, k := range args {
				u, ok := urls[k]
				if !ok {
					u = "(preview unavailable)"
				}
				fmt.Fprintf(s.out, "%s\t%s\n", k, u)
			}

			return nil
		},
	}

	return cmd
}

func NewQuotaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Show storage usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			q, err := s.lib.Backend.Quota(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(s.out, "%s of %s used, %s free\n",
				humanize.IBytes(uint64(q.Used)),
				humanize.IBytes(uint64(q.Total)),
				humanize.IBytes(uint64(q.Free())),
			)

			return nil
		},
	}

	return cmd
}
