package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shhac/nrpc/internal/source"
)

type generateOptions struct {
	out          string
	includes     []string
	noServer     bool
	noClient     bool
	messages     bool
	importPrefix string
	templates    []string
	watch        bool
	server       string
	tls          bool
	insecure     bool
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate [file.proto...]",
		Short: "Generate Go bindings",
		Long: `Generate typed nrpc clients and servers for every service in the given
.proto files. File names are relative to an include directory.

With --from-server the schema is fetched from a running server through gRPC
reflection instead.`,
		Example: `  nrpcgen generate -I protos -o gen helloworld/helloworld.proto
  nrpcgen generate --from-server localhost:50051 -o gen
  nrpcgen generate -I protos --watch helloworld/helloworld.proto`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.config
			flags := cmd.Flags()
			if len(args) > 0 {
				cfg.Files = args
			}
			if flags.Changed("out") {
				cfg.OutDir = opts.out
			}
			if flags.Changed("include") {
				cfg.Includes = opts.includes
			}
			if opts.noServer {
				cfg.Server = false
			}
			if opts.noClient {
				cfg.Client = false
			}
			if flags.Changed("messages") {
				cfg.Messages = opts.messages
			}
			if flags.Changed("import-prefix") {
				cfg.ImportPrefix = opts.importPrefix
			}
			cfg.Templates = append(cfg.Templates, opts.templates...)

			a, err := root.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if opts.server != "" {
				res, err := a.GenerateFromServer(ctx, source.Connection{Address: opts.server, TLS: opts.tls, Insecure: opts.insecure})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d file(s), %d unchanged\n", len(res.Written), res.Unchanged)
				return nil
			}
			if opts.watch {
				return a.Watch(ctx, nil)
			}
			res, err := a.Generate(ctx)
			if err != nil {
				return err
			}
			for _, f := range res.Written {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.out, "out", "o", ".", "output directory")
	f.StringSliceVarP(&opts.includes, "include", "I", nil, "include directory (repeatable)")
	f.BoolVar(&opts.noServer, "no-server", false, "skip server bindings")
	f.BoolVar(&opts.noClient, "no-client", false, "skip client bindings")
	f.BoolVar(&opts.messages, "messages", false, "also generate message types")
	f.StringVar(&opts.importPrefix, "import-prefix", "", "Go import path root for files without go_package")
	f.StringSliceVar(&opts.templates, "template", nil, "extra text/template generator (repeatable)")
	f.BoolVarP(&opts.watch, "watch", "w", false, "regenerate when .proto files change")
	f.StringVar(&opts.server, "from-server", "", "fetch the schema from this server via reflection")
	f.BoolVar(&opts.tls, "tls", false, "use TLS with --from-server")
	f.BoolVar(&opts.insecure, "insecure", false, "skip TLS certificate verification")
	cmd.MarkFlagsMutuallyExclusive("from-server", "watch")
	return cmd
}
