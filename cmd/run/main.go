package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/jsvm/engine"
	"github.com/wippyai/jsvm/runtime"
)

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to the QuickJS wasm reactor (overrides config)")
		expr        = flag.String("e", "", "Evaluate source and print the result")
		configFile  = flag.String("config", "", "YAML config file")
		schema      = flag.Bool("schema", false, "Print the config JSON schema and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Debug logging")
	)
	flag.Parse()

	if *schema {
		out, err := configSchema()
		if err != nil {
			fatal(err)
		}
		fmt.Println(string(out))
		return
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fatal(err)
	}
	if *wasmFile != "" {
		cfg.Wasm = *wasmFile
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if cfg.Wasm == "" {
		fmt.Fprintln(os.Stderr, "Usage: run -wasm <quickjs.wasm> [-e source] [file.js]")
		fmt.Fprintln(os.Stderr, "       run -wasm <quickjs.wasm> -i  (interactive mode)")
		fmt.Fprintln(os.Stderr, "       run -config <config.yaml> [file.js]")
		fmt.Fprintln(os.Stderr, "       run -schema")
		os.Exit(1)
	}

	if err := run(cfg, *expr, flag.Args(), *interactive); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func run(cfg *config, expr string, args []string, interactive bool) error {
	ctx := context.Background()

	log, err := cfg.logger()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	engine.SetLogger(log.Named("engine"))
	runtime.SetLogger(log.Named("runtime"))

	data, err := os.ReadFile(cfg.Wasm)
	if err != nil {
		return fmt.Errorf("read wasm: %w", err)
	}
	eng, err := engine.Load(ctx, data, &cfg.Engine)
	if err != nil {
		return fmt.Errorf("load engine: %w", err)
	}
	defer eng.Close(ctx)

	if interactive || (expr == "" && len(args) == 0 && term.IsTerminal(int(os.Stdin.Fd()))) {
		return runInteractive(ctx, eng, cfg.Wasm, log)
	}

	source, name, err := readSource(expr, args)
	if err != nil {
		return err
	}

	sess, err := newSession(ctx, eng, os.Stdout, log)
	if err != nil {
		return err
	}
	defer sess.close()

	log.Debug("evaluating", zap.String("source", name), zap.Int("size", len(source)))
	out, err := sess.eval(ctx, source)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

// readSource picks -e, then the first positional file, then stdin.
func readSource(expr string, args []string) (source, name string, err error) {
	switch {
	case expr != "":
		return expr, "-e", nil
	case len(args) > 0:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", fmt.Errorf("read source: %w", err)
		}
		return string(data), args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), "stdin", nil
}
