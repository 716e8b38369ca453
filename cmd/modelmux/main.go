// modelmux is the client: a one-shot generation CLI and an interactive
// console UI, both talking to a running modelmuxd.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/modelmux/modelmux/client"
	mmlogger "github.com/modelmux/modelmux/logger"
	"github.com/modelmux/modelmux/ui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		addr       = flag.String("addr", client.DefaultAddr, "Daemon address")
		prompt     = flag.String("prompt", "", "Prompt to generate from. Reads stdin when \"-\"")
		system     = flag.String("system", "", "Optional system prompt")
		provider   = flag.String("provider", "", "Pin the request to one provider")
		language   = flag.String("language", "", "Generate code in this language instead of text")
		noFallback = flag.Bool("no-fallback", false, "Fail instead of trying other providers")
		maxTokens  = flag.Int64("max-tokens", 0, "Maximum tokens to generate")
		tui        = flag.Bool("tui", false, "Launch the interactive console UI")
		notify     = flag.Bool("notify", false, "Desktop notification when a generation finishes")
		logFile    = flag.String("logfile", "", "Path to log file. If not set, logs to stdout/stderr")
		pretty     = flag.Bool("pretty", false, "Use pretty console output (only valid when logfile is not set)")
	)
	flag.Parse()

	if *logFile != "" && *pretty {
		return fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}
	logger, err := mmlogger.InitWithOptions(*logFile, *pretty)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	c := client.New(*addr)

	if *tui {
		app := ui.NewApp(logger, c, *notify)
		if *language != "" {
			app.SetLanguage(*language)
		}
		return app.Run()
	}

	text := *prompt
	if text == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = strings.TrimSpace(string(data))
	}
	if text == "" {
		flag.Usage()
		return fmt.Errorf("a prompt is required (or use -tui)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := c.Health(ctx); err != nil {
		return fmt.Errorf("cannot reach modelmuxd at %s (is the daemon running?): %w", *addr, err)
	}

	req := &client.GenerateRequest{
		Prompt:    text,
		System:    *system,
		Provider:  *provider,
		Language:  *language,
		MaxTokens: *maxTokens,
	}
	if *noFallback {
		fallback := false
		req.Fallback = &fallback
	}

	var res *client.GenerateResult
	if *language != "" {
		res, err = c.GenerateCode(ctx, req)
	} else {
		res, err = c.Generate(ctx, req)
	}
	if err != nil {
		if *notify {
			beeep.Notify("modelmux", "Generation failed", "") //nolint:errcheck
		}
		return err
	}

	fmt.Println(res.Text)
	fmt.Fprintf(os.Stderr, "(provider: %s)\n", res.Provider)
	if *notify {
		beeep.Notify("modelmux", "Generation finished", "") //nolint:errcheck
	}
	return nil
}
