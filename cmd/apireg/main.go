// Command apireg serves, lists and exports the endpoints of the bundled
// controllers.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"github.com/broady/apireg"
	"github.com/broady/apireg/config"
	"github.com/broady/apireg/internal/demo"
	"github.com/broady/apireg/internal/sink"
	"github.com/broady/apireg/router"
	"github.com/broady/apireg/serverfx"
	"go.uber.org/fx"
)

type CLI struct {
	Version VersionCmd `cmd:"" help:"Print version information."`
	Serve   ServeCmd   `cmd:"" help:"Serve the endpoints over HTTP."`
	Routes  RoutesCmd  `cmd:"" help:"List every endpoint with its verb and parameter count."`
	Client  ClientCmd  `cmd:"" help:"Write the client bundle and manifest to a directory."`
}

// env is what every command runs against.
type env struct {
	out         io.Writer
	controllers []apireg.Controller
}

type VersionCmd struct{}

func (c *VersionCmd) Run(e *env) error {
	_, err := fmt.Fprintln(e.out, Version())
	return err
}

type ServeCmd struct {
	Config string `help:"TOML configuration file." type:"existingfile" short:"c" env:"APIREG_CONFIG"`
}

func (c *ServeCmd) Run(e *env) error {
	app := fx.New(serverfx.Module(serverfx.Options{
		ConfigPath:  c.Config,
		Controllers: e.controllers,
	}))
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

type RoutesCmd struct{}

func (c *RoutesCmd) Run(e *env) error {
	r := router.New(config.Default(), nil)
	if err := r.Mount(e.controllers...); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERB\tPATH\tPARAMS")
	for _, rt := range r.Routes() {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", rt.Verb, rt.Path, rt.Endpoint.ParameterCount())
	}
	return tw.Flush()
}

type ClientCmd struct {
	Out       string `arg:"" help:"Output directory for the generated files."`
	NoClobber bool   `help:"Fail instead of replacing existing files." name:"no-clobber"`
}

func (c *ClientCmd) Run(e *env) error {
	regs := make([]*apireg.Registry, 0, len(e.controllers))
	for _, ctrl := range e.controllers {
		regs = append(regs, ctrl.Endpoints())
	}
	if err := sink.WriteClient(context.Background(), &sink.Dir{Root: c.Out, NoClobber: c.NoClobber}, regs...); err != nil {
		return err
	}
	_, err := fmt.Fprintf(e.out, "wrote %s and %s to %s\n", sink.BundleFile, sink.ManifestFile, c.Out)
	return err
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	return kong.New(cli, append([]kong.Option{
		kong.Name("apireg"),
		kong.Description("Declarative RPC endpoints: serve them, list them, export their client bundle."),
		kong.UsageOnError(),
	}, options...)...)
}

func main() {
	cli := &CLI{}
	parser, err := newParser(cli)
	if err != nil {
		panic(err)
	}
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)
	err = ctx.Run(&env{out: os.Stdout, controllers: demo.Controllers()})
	ctx.FatalIfErrorf(err)
}
