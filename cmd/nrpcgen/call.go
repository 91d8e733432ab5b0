package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shhac/nrpc/internal/app"
	"github.com/shhac/nrpc/internal/invoke"
)

func newCallCmd(root *rootOptions) *cobra.Command {
	var (
		req      app.CallRequest
		protos   []string
		includes []string
		data     string
	)

	cmd := &cobra.Command{
		Use:   "call package.Service/method",
		Short: "Call a method with JSON requests",
		Long: `Call a method of a running server. Requests are JSON objects, one per
input message, read from --data or standard input. Each response is printed
as one JSON object.

Without --proto the schema is fetched from the server through reflection.
Servers at ws:// or wss:// addresses are called over WebSocket.`,
		Example: `  nrpcgen call --server localhost:50051 helloworld.Greeter/say_hello -d '{"name":"World"}'
  printf '{"name":"a"}\n{"name":"b"}' | nrpcgen call --server localhost:50051 helloworld.Greeter/say_hello_many_to_one`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.config
			if len(protos) > 0 {
				cfg.Files = protos
			}
			if cmd.Flags().Changed("include") {
				cfg.Includes = includes
			}

			in, err := requestInput(cmd, data)
			if err != nil {
				return err
			}
			if req.Requests, err = invoke.SplitRequests(in); err != nil {
				return err
			}
			req.Method = args[0]

			a, err := root.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			return a.Call(cmd.Context(), req, func(resp json.RawMessage) error {
				var buf bytes.Buffer
				if err := json.Indent(&buf, resp, "", "  "); err != nil {
					return err
				}
				buf.WriteByte('\n')
				_, err := buf.WriteTo(out)
				return err
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Target.Address, "server", "", "server address, host:port or ws(s)://host[:port]")
	f.BoolVar(&req.Target.TLS, "tls", false, "use TLS")
	f.BoolVar(&req.Target.Insecure, "insecure", false, "skip TLS certificate verification")
	f.StringSliceVar(&protos, "proto", nil, "resolve the method from these .proto files")
	f.StringSliceVarP(&includes, "include", "I", nil, "include directory (repeatable)")
	f.StringVarP(&data, "data", "d", "", "request JSON; @file reads a file, - reads stdin (default)")
	f.StringArrayVarP(&req.Headers, "header", "H", nil, "header as 'key: value' (repeatable)")
	f.BoolVar(&req.Zstd, "zstd", false, "compress frames with zstd")
	f.BoolVar(&req.ProtoWire, "proto-wire", false, "use the standard gRPC proto content type")
	_ = cmd.MarkFlagRequired("server")
	return cmd
}

// requestInput resolves --data to a reader.
func requestInput(cmd *cobra.Command, data string) (io.Reader, error) {
	switch {
	case data == "" || data == "-":
		return cmd.InOrStdin(), nil
	case strings.HasPrefix(data, "@"):
		b, err := os.ReadFile(strings.TrimPrefix(data, "@"))
		if err != nil {
			return nil, fmt.Errorf("read request file: %w", err)
		}
		return bytes.NewReader(b), nil
	default:
		return strings.NewReader(data), nil
	}
}
