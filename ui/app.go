// Package ui is the interactive console client: pick a provider, type a
// prompt, read the result.
package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gen2brain/beeep"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"

	"github.com/modelmux/modelmux/client"
	"github.com/modelmux/modelmux/ui/themes"
)

const anyProviderLabel = "auto (with fallback)"

// App is the tview console application.
type App struct {
	app       *tview.Application
	providers *tview.List
	prompt    *tview.TextArea
	output    *tview.TextView
	footer    *tview.TextView

	client *client.Client
	notify bool // desktop notification when a generation finishes

	selectedProvider string // empty means automatic selection
	language         string
	generating       bool

	logger zerolog.Logger
}

// NewApp creates the console UI. Theme comes from MODELMUX_THEME, defaulting
// to solarized.
func NewApp(logger zerolog.Logger, c *client.Client, notify bool) *App {
	themeName := os.Getenv("MODELMUX_THEME")
	if themeName == "" {
		themeName = string(themes.ThemeSolarized)
	}

	logger = logger.With().Str("component", "ui").Logger()
	tviewApp := tview.NewApplication()
	if err := themes.ApplyByName(tviewApp, themeName); err != nil {
		logger.Error().Err(err).Msg("Failed to apply theme. Continuing with no theme.")
	}

	return &App{
		app:    tviewApp,
		client: c,
		notify: notify,
		logger: logger,
	}
}

// SetLanguage switches the app into code generation mode for the given
// language.
func (a *App) SetLanguage(language string) {
	a.language = language
}

func (a *App) setupUI() {
	a.providers = tview.NewList().ShowSecondaryText(true)
	a.providers.SetBorder(true).SetTitle("Providers")
	a.providers.AddItem(anyProviderLabel, "Let the daemon pick", 'a', func() {
		a.selectedProvider = ""
		a.updateFooter()
		a.app.SetFocus(a.prompt)
	})
	a.loadProviders()

	a.prompt = tview.NewTextArea()
	a.prompt.SetBorder(true).SetTitle("Prompt (Ctrl+G to generate)")

	a.output = tview.NewTextView()
	a.output.SetDynamicColors(true).
		SetWordWrap(true).
		SetBorder(true).
		SetTitle("Output")
	a.output.SetScrollable(true)
	a.output.SetText("Welcome to modelmux.\n\nPick a provider, type a prompt and press Ctrl+G.")

	a.footer = tview.NewTextView().SetTextAlign(tview.AlignCenter)
	a.updateFooter()

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tview.NewFlex().SetDirection(tview.FlexColumn).
			AddItem(a.providers, 32, 0, true).
			AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
				AddItem(a.prompt, 7, 0, false).
				AddItem(a.output, 0, 1, false), 0, 1, false), 0, 1, true).
		AddItem(a.footer, 1, 0, false)

	a.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch ev.Key() {
		case tcell.KeyCtrlC:
			a.app.Stop()
			return nil
		case tcell.KeyCtrlG:
			a.startGeneration()
			return nil
		case tcell.KeyTab:
			a.cycleFocus()
			return nil
		}
		return ev
	})

	a.app.SetRoot(layout, true).SetFocus(a.providers)
}

func (a *App) cycleFocus() {
	switch {
	case a.providers.HasFocus():
		a.app.SetFocus(a.prompt)
	case a.prompt.HasFocus():
		a.app.SetFocus(a.output)
	default:
		a.app.SetFocus(a.providers)
	}
}

// loadProviders fills the sidebar from the daemon's provider list.
func (a *App) loadProviders() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	descriptors, err := a.client.Providers(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to list providers")
		return
	}
	for i, d := range descriptors {
		d := d
		label := d.Name
		if d.Default {
			label += " (default)"
		}
		second := "model " + d.Model
		if !d.Available {
			second += " [unavailable]"
		}
		shortcut := rune('1' + i)
		if i > 8 {
			shortcut = 0
		}
		a.providers.AddItem(label, second, shortcut, func() {
			a.selectedProvider = d.Name
			a.updateFooter()
			a.app.SetFocus(a.prompt)
		})
	}
}

func (a *App) updateFooter() {
	provider := a.selectedProvider
	if provider == "" {
		provider = "auto"
	}
	mode := "text"
	if a.language != "" {
		mode = "code (" + a.language + ")"
	}
	a.footer.SetText(fmt.Sprintf("provider: %s | mode: %s | Ctrl+G: generate | Tab: focus | Ctrl+C: quit", provider, mode))
}

// startGeneration sends the prompt to the daemon on a worker goroutine and
// paints the result back through QueueUpdateDraw.
func (a *App) startGeneration() {
	if a.generating {
		return
	}
	prompt := strings.TrimSpace(a.prompt.GetText())
	if prompt == "" {
		a.output.SetText("Nothing to do: the prompt is empty.")
		return
	}

	a.generating = true
	a.output.SetTitle("Output (generating...)")
	a.output.SetText("")

	req := &client.GenerateRequest{
		Prompt:   prompt,
		Provider: a.selectedProvider,
		Language: a.language,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		var (
			res *client.GenerateResult
			err error
		)
		if a.language != "" {
			res, err = a.client.GenerateCode(ctx, req)
		} else {
			res, err = a.client.Generate(ctx, req)
		}

		a.app.QueueUpdateDraw(func() {
			a.generating = false
			if err != nil {
				a.output.SetTitle("Output (failed)")
				a.output.SetText(formatError(err))
				return
			}
			a.output.SetTitle(fmt.Sprintf("Output (%s)", res.Provider))
			a.output.SetText(res.Text)
			a.output.ScrollToBeginning()
		})

		if a.notify {
			title := "modelmux"
			message := "Generation finished"
			if err != nil {
				message = "Generation failed: " + err.Error()
			}
			if nerr := beeep.Notify(title, message, ""); nerr != nil {
				a.logger.Debug().Err(nerr).Msg("Desktop notification failed")
			}
		}
	}()
}

// formatError renders a daemon error, listing per-provider failures when the
// whole chain was exhausted.
func formatError(err error) string {
	var sb strings.Builder
	sb.WriteString("Error: ")
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	var apiErr *client.APIError
	if errors.As(err, &apiErr) && len(apiErr.Failures) > 0 {
		sb.WriteString("\nProvider failures:\n")
		for _, f := range apiErr.Failures {
			sb.WriteString(fmt.Sprintf("  • %s: %s\n", f.Provider, f.Message))
		}
	}
	return sb.String()
}

// Run starts the application and blocks until the user quits.
func (a *App) Run() error {
	a.setupUI()
	return a.app.Run()
}
