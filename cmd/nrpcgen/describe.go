package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shhac/nrpc/internal/source"
)

func newDescribeCmd(root *rootOptions) *cobra.Command {
	var (
		includes []string
		target   source.Connection
	)

	cmd := &cobra.Command{
		Use:   "describe [file.proto...]",
		Short: "List services and their methods",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.config
			if len(args) > 0 {
				cfg.Files = args
			}
			if cmd.Flags().Changed("include") {
				cfg.Includes = includes
			}

			a, err := root.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var conn *source.Connection
			if target.Address != "" {
				conn = &target
			}
			services, err := a.Describe(cmd.Context(), conn)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, svc := range services {
				fmt.Fprintf(w, "%s\t(%s)\n", svc.FullName, svc.File)
				for _, m := range svc.Methods {
					fmt.Fprintf(w, "  %s\t%s\t%s -> %s\n", m.Name, m.Cardinality, m.Input, m.Output)
				}
			}
			return w.Flush()
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&includes, "include", "I", nil, "include directory (repeatable)")
	f.StringVar(&target.Address, "server", "", "describe the services of this server via reflection")
	f.BoolVar(&target.TLS, "tls", false, "use TLS")
	f.BoolVar(&target.Insecure, "insecure", false, "skip TLS certificate verification")
	return cmd
}
