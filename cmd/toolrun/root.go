package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/evanmarch/toolrun/llmgateway"
	"github.com/evanmarch/toolrun/runloop"
	"github.com/evanmarch/toolrun/toolbox"
)

const settingsTTL = 30 * time.Second

var (
	cyan   = color.New(color.FgCyan).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// NewRootCommand builds the toolrun CLI.
func NewRootCommand() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "toolrun [prompt]",
		Short: "Run an LLM tool-calling loop against a prompt",
		Long: `toolrun drives an iterative tool-calling loop: the model is offered a
set of tools, its invocations are executed locally, and the feedback is
fed back until the model finishes or the iteration ceiling fires.

Provider credentials come from OPENAI_API_KEY or ANTHROPIC_API_KEY.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrompt(cmd, v, strings.Join(args, " "))
		},
	}

	flags := root.Flags()
	flags.Int("max-iterations", 10, "maximum number of model turns")
	flags.Float64("temperature", 0.7, "sampling temperature")
	flags.String("profile", runloop.ProfilePlain, "wire profile (plain or openai)")
	flags.String("model", "", "model to use (defaults to the provider's default)")
	flags.Bool("ask-before-continue", false, "prompt instead of force-finishing at the iteration limit")
	flags.Bool("continue", false, "treat this run as a continuation (doubles the iteration budget)")
	flags.String("workdir", "", "working directory for file and shell tools")
	flags.Bool("quiet", false, "print only the final answer")

	for _, name := range []string{"max-iterations", "temperature", "profile", "model", "ask-before-continue", "workdir", "quiet"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}
	v.SetEnvPrefix("TOOLRUN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return root
}

func loadSettings(v *viper.Viper) (runloop.Settings, error) {
	return runloop.Settings{
		MaxIterations:     v.GetInt("max-iterations"),
		Temperature:       v.GetFloat64("temperature"),
		Profile:           v.GetString("profile"),
		Model:             v.GetString("model"),
		AskBeforeContinue: v.GetBool("ask-before-continue"),
	}, nil
}

func runPrompt(cmd *cobra.Command, v *viper.Viper, prompt string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache := runloop.NewSettingsCache(func() (runloop.Settings, error) { return loadSettings(v) })
	settings, err := cache.Get(settingsTTL)
	if err != nil {
		return err
	}
	cfg := settings.RunConfig()
	cfg.Continue, _ = cmd.Flags().GetBool("continue")
	quiet := v.GetBool("quiet")

	gateway := llmgateway.NewClientFromEnv()
	defer gateway.Close()

	registry := toolbox.NewRegistry(toolbox.NewLocalEnvironment(v.GetString("workdir")))
	toolbox.RegisterCoreTools(registry)
	toolbox.RegisterControlTools(registry, nil)

	var log runloop.Logger = runloop.NopLogger()
	if !quiet {
		log = &stderrLogger{}
	}
	coord := runloop.New(gateway, registry, runloop.WithConfig(cfg), runloop.WithLogger(log))
	messages := []llmgateway.Message{llmgateway.UserMessage(prompt)}

	var answer string
	for ev := range coord.Run(ctx, messages, registry.Schemas()) {
		if !quiet {
			renderEvent(cmd, ev)
		}
		if ev.Kind == runloop.EventResponseComplete {
			answer = ev.Answer
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if answer == "" {
		return fmt.Errorf("run produced no answer")
	}

	if quiet {
		fmt.Fprintln(cmd.OutOrStdout(), answer)
	}
	return nil
}

// stderrLogger prints coordinator diagnostics to stderr, colored by level.
type stderrLogger struct{}

func (stderrLogger) Debug(format string, args ...any) {
	fmt.Fprintln(os.Stderr, gray(fmt.Sprintf(format, args...)))
}

func (stderrLogger) Info(format string, args ...any) {
	fmt.Fprintln(os.Stderr, fmt.Sprintf(format, args...))
}

func (stderrLogger) Warn(format string, args ...any) {
	fmt.Fprintln(os.Stderr, yellow(fmt.Sprintf(format, args...)))
}

func (stderrLogger) Error(format string, args ...any) {
	fmt.Fprintln(os.Stderr, red(fmt.Sprintf(format, args...)))
}

func renderEvent(cmd *cobra.Command, ev runloop.ProgressEvent) {
	out := cmd.OutOrStdout()
	switch ev.Kind {
	case runloop.EventIterationStart:
		fmt.Fprintln(out, gray(fmt.Sprintf("-- iteration %v/%v", ev.Data["iteration"], ev.Data["max"])))
	case runloop.EventToolStart:
		fmt.Fprintln(out, cyan(fmt.Sprintf("-> %v", ev.Data["tool"])))
	case runloop.EventToolEnd:
		if ok, _ := ev.Data["success"].(bool); ok {
			fmt.Fprintln(out, green(fmt.Sprintf("<- %v", ev.Data["tool"])))
		} else {
			fmt.Fprintln(out, red(fmt.Sprintf("<- %v (failed)", ev.Data["tool"])))
		}
	case runloop.EventToken:
		if text, ok := ev.Data["text"].(string); ok {
			fmt.Fprintln(out, yellow(text))
		}
	case runloop.EventError:
		fmt.Fprintln(out, red(fmt.Sprintf("error: %v", ev.Data["error"])))
	case runloop.EventIterationLimit:
		fmt.Fprintln(out, yellow("iteration limit reached"))
	case runloop.EventResponseComplete:
		fmt.Fprintln(out)
		fmt.Fprintln(out, bold(ev.Answer))
		if ev.Stats != nil {
			fmt.Fprintln(out, gray(fmt.Sprintf("(%d iterations, tools: %s)",
				ev.Stats.Iterations, strings.Join(ev.Stats.ToolsUsed, ", "))))
		}
	}
}
