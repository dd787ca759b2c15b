package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"gocart/emu/log"
)

type mode byte

const (
	runMode     mode = iota // Run a cartridge
	infosMode               // Show cartridge infos
	versionMode             // Show gocart version
)

type (
	CLI struct {
		Run     Run     `cmd:"" help:"Run a cartridge in the console." default:"withargs"`
		Infos   Infos   `cmd:"" help:"Show cartridge exports as JSON."`
		Version Version `cmd:"" help:"Show gocart version."`

		Log logModMask `help:"${log_help}" placeholder:"mod0,mod1,..."`

		mode mode
	}

	Run struct {
		CartPath string `arg:"" name:"/path/to/cart.wasm" help:"${cartpath_help}" required:"true" type:"existingfile"`

		Width        int  `name:"width" help:"Framebuffer width in pixels." default:"160"`
		Height       int  `name:"height" help:"Framebuffer height in pixels." default:"144"`
		Scale        int  `name:"scale" short:"s" help:"Window scale factor (pixel-perfect)." default:"0"`
		DisableAudio bool `name:"disable-audio" help:"Run without sound output."`
	}

	Infos struct {
		CartPath string `arg:"" name:"/path/to/cart.wasm" type:"existingfile"`
	}

	Version struct{}
)

var vars = kong.Vars{
	"cartpath_help": "Path to the cartridge, a WebAssembly module exporting the console ABI.",
	"log_help":      "Enable debug logging for specified modules.",
}

func parseArgs(args []string) CLI {
	var cfg CLI
	parser, err := kong.New(&cfg,
		kong.Name("gocart"),
		kong.Description("Fantasy game console for WebAssembly cartridges."),
		kong.UsageOnError(),
		kong.Help(printHelp),
		vars)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	checkf(err, "failed to parse command line")
	checkf(ctx.Error, "failed to parse command line")

	switch ctx.Command() {
	case "infos </path/to/cart.wasm>":
		cfg.mode = infosMode
	case "version":
		cfg.mode = versionMode
	default:
		cfg.mode = runMode
	}
	return cfg
}

func printHelp(options kong.HelpOptions, ctx *kong.Context) error {
	if err := kong.DefaultHelpPrinter(options, ctx); err != nil {
		return err
	}
	if strings.HasPrefix(ctx.Command(), "run") {
		loggingHelp := `
Log modules:
  The --log flag accepts a comma-separated list of modules.

  Valid log modules are:
%s

  As a special case, the following values are accepted:
    - no                     Disable all logging.
    - all                    Enable all logs.
`
		var strs []string
		for _, m := range log.ModuleNames() {
			strs = append(strs, "    - "+m)
		}

		fmt.Fprintf(os.Stderr, loggingHelp, strings.Join(strs, "\n"))
	}

	return nil
}

type logModMask log.ModuleMask

// Decode decodes a comma-separated list of module names into a module mask.
//
// Implements kong.MapperValue interface.
func (lm logModMask) Decode(ctx *kong.DecodeContext) error {
	nolog := false
	allLogs := false

	tok := ctx.Scan.Pop()
	for _, v := range strings.Split(tok.Value.(string), ",") {
		switch v {
		case "all":
			allLogs = true
		case "no":
			nolog = true
		default:
			mod, ok := log.ModuleByName(v)
			if !ok {
				return fmt.Errorf("unknown log module %s", v)
			}
			lm |= logModMask(mod.Mask())
		}
	}

	if nolog {
		if allLogs {
			return fmt.Errorf("cannot use 'all' and 'no' together")
		}
		if lm != 0 {
			return fmt.Errorf("cannot combine 'no' with other log modules")
		}
		log.Disable()
		return nil
	}

	if allLogs {
		lm = logModMask(log.ModuleMaskAll)
	}

	log.EnableDebugModules(log.ModuleMask(lm))
	return nil
}

func checkf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	fatalf(format+".\n"+err.Error(), args...)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal error:")
	fmt.Fprintf(os.Stderr, "\n\t%s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
