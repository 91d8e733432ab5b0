// Command protoc-gen-go-nrpc is a protoc plugin generating nrpc bindings.
//
//	protoc --go_out=. --go-nrpc_out=. --go-nrpc_opt=client=false foo.proto
//
// Parameters:
//
//	server=false    skip the server surface
//	client=false    skip the client surface
//	manifest=true   also write nrpc_manifest.toml
//	debug=true      log to stderr
package main

import (
	"flag"
	"os"

	"google.golang.org/protobuf/compiler/protogen"

	"github.com/shhac/nrpc/gen"
	"github.com/shhac/nrpc/internal/logging"
)

func main() {
	var flags flag.FlagSet
	server := flags.Bool("server", true, "generate the server surface")
	client := flags.Bool("client", true, "generate the client surface")
	manifest := flags.Bool("manifest", false, "write "+gen.ManifestFile)
	debug := flags.Bool("debug", false, "log to stderr")

	protogen.Options{ParamFunc: flags.Set}.Run(func(p *protogen.Plugin) error {
		logger := logging.NewNopLogger()
		if *debug {
			logger = logging.NewCLILogger(os.Stderr, true)
		}
		p.SupportedFeatures = gen.SupportedFeatures
		return gen.Generate(p, gen.Options{
			Server:   *server,
			Client:   *client,
			Manifest: *manifest,
			Logger:   logger,
		})
	})
}
