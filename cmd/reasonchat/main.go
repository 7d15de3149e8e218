package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/reasonchat/reasonchat/internal/chat"
	"github.com/reasonchat/reasonchat/internal/config"
	"github.com/reasonchat/reasonchat/internal/session"
)

// version is the CLI build version.
const version = "0.1.0"

// options holds all CLI flags.
type options struct {
	// ConfigPath overrides ~/.reasonchat/config.json.
	ConfigPath string
	// Continue resumes the most recent session in the current project.
	Continue bool
	// Debug lowers the log level to debug.
	Debug bool
	// DebugFile writes JSON debug logs to a file path.
	DebugFile string
	// FallbackModel is tried once when the primary model cannot be reached.
	FallbackModel string
	// MaxTokens overrides max_tokens from the config file.
	MaxTokens int
	// Model overrides the default model selection.
	Model string
	// NoSessionPersistence disables saving session history to disk.
	NoSessionPersistence bool
	// NoTUI forces the line-mode loop even on a terminal.
	NoTUI bool
	// OutputFormat controls print mode output encoding.
	OutputFormat string
	// Preset picks one of the built-in models.
	Preset string
	// Print enables non-interactive mode.
	Print bool
	// Resume resumes a specific session id or the interactive picker.
	Resume string
	// SessionID sets a fixed session id.
	SessionID string
	// SystemPrompt overrides the configured system prompt.
	SystemPrompt string
	// Temperature and TopP are applied only when the flag was given.
	Temperature float64
	TopP        float64
	// Version prints the CLI version.
	Version bool
}

// main wires Cobra and executes the CLI.
func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:          "reasonchat [prompt]",
		Short:        "reasonchat - chat with reasoning models over OpenAI-compatible APIs",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Version {
				fmt.Fprintln(cmd.OutOrStdout(), version)
				return nil
			}
			return runRoot(cmd, opts, args)
		},
	}
	rootCmd.Args = cobra.ArbitraryArgs

	applyFlags(rootCmd.Flags(), opts)

	rootCmd.AddCommand(doctorCommand(opts))
	rootCmd.AddCommand(modelsCommand(opts))
	return rootCmd
}

// applyFlags defines all CLI flags.
func applyFlags(flags *pflag.FlagSet, opts *options) {
	flags.SetNormalizeFunc(normalizeFlagName)

	flags.StringVar(&opts.ConfigPath, "config", "", "Provider config file (JSON or YAML)")
	flags.BoolVarP(&opts.Continue, "continue", "c", false, "Continue the most recent conversation")
	flags.BoolVar(&opts.Debug, "debug", false, "Enable debug logging")
	flags.StringVar(&opts.DebugFile, "debug-file", "", "Write debug logs to a file")
	flags.StringVar(&opts.FallbackModel, "fallback-model", "", "Model to try when the primary one is unreachable")
	flags.IntVar(&opts.MaxTokens, "max-tokens", 0, "Maximum tokens per answer")
	flags.StringVar(&opts.Model, "model", "", "Model for the current session")
	flags.BoolVar(&opts.NoSessionPersistence, "no-session-persistence", false, "Disable session persistence")
	flags.BoolVar(&opts.NoTUI, "no-tui", false, "Use the line-mode interface")
	flags.StringVar(&opts.OutputFormat, "output-format", "text", "Output format (text|json|stream-json)")
	flags.StringVar(&opts.Preset, "preset", "", "Built-in model preset")
	flags.BoolVarP(&opts.Print, "print", "p", false, "Print response and exit")
	flags.StringVarP(&opts.Resume, "resume", "r", "", "Resume a conversation by session ID")
	flags.Lookup("resume").NoOptDefVal = "picker"
	flags.StringVar(&opts.SessionID, "session-id", "", "Use a specific session ID")
	flags.StringVar(&opts.SystemPrompt, "system-prompt", "", "System prompt")
	flags.Float64Var(&opts.Temperature, "temperature", 0, "Sampling temperature")
	flags.Float64Var(&opts.TopP, "top-p", 0, "Nucleus sampling probability")
	flags.BoolVarP(&opts.Version, "version", "v", false, "Output the version number")
}

// normalizeFlagName maps underscore and camel-case spellings to the dashed names.
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	switch name {
	case "maxTokens", "max_tokens":
		return "max-tokens"
	case "topP", "top_p":
		return "top-p"
	case "systemPrompt", "system_prompt":
		return "system-prompt"
	case "outputFormat", "output_format":
		return "output-format"
	default:
		return pflag.NormalizedName(name)
	}
}

// doctorCommand validates provider configuration and permissions.
func doctorCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check reasonchat configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := providerPath(opts)
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("provider config missing at %s", path)
			}
			mode := info.Mode().Perm()
			if mode&0o077 != 0 {
				return fmt.Errorf("provider config permissions too open: %s", mode)
			}
			cfg, err := config.LoadProviderConfig(path)
			if err != nil {
				return fmt.Errorf("provider config invalid: %w", err)
			}
			if err := cfg.RequestConfig("").Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: provider config %s (model %s, %s)\n", path, cfg.DefaultModel, cfg.APIBaseURL)
			return nil
		},
	}
}

// modelsCommand lists presets and configured aliases.
func modelsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List model presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, preset := range config.Presets {
				fmt.Fprintf(out, "%-20s %s\n", preset.Name, preset.Description)
			}
			cfg, err := config.LoadProviderConfig(opts.ConfigPath)
			if err != nil {
				// Presets are still useful without a config file.
				return nil
			}
			for alias, target := range cfg.ModelAliases {
				fmt.Fprintf(out, "%-20s alias for %s\n", alias, target)
			}
			return nil
		},
	}
}

// validateFormatOptions rejects flag combinations that cannot work.
func validateFormatOptions(opts *options) error {
	switch opts.OutputFormat {
	case "", "text", "json", "stream-json":
	default:
		return fmt.Errorf("unsupported output format: %s", opts.OutputFormat)
	}
	if !opts.Print && opts.OutputFormat != "" && opts.OutputFormat != "text" {
		return errors.New("--output-format only works with --print")
	}
	if opts.Preset != "" && !config.IsPreset(opts.Preset) {
		return fmt.Errorf("unknown preset %q; run `reasonchat models`", opts.Preset)
	}
	if opts.SessionID != "" {
		if _, err := uuid.Parse(opts.SessionID); err != nil {
			return fmt.Errorf("--session-id must be a valid UUID: %w", err)
		}
	}
	return nil
}

// runRoot orchestrates config loading, session handling, and mode dispatch.
func runRoot(cmd *cobra.Command, opts *options, args []string) error {
	if err := validateFormatOptions(opts); err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get cwd: %w", err)
	}

	providerCfg, err := config.LoadProviderConfig(opts.ConfigPath)
	if err != nil {
		if errors.Is(err, config.ErrProviderConfigMissing) {
			return fmt.Errorf("provider config missing; create %s or set %s", providerPath(opts), config.EnvAPIKey)
		}
		return fmt.Errorf("load provider config: %w", err)
	}

	useTUI := !opts.Print && !opts.NoTUI && isTerminal()
	logger, closer, err := newLogger(opts, useTUI)
	if err != nil {
		return err
	}
	defer closer.Close()

	requestCfg := buildRequestConfig(cmd.Flags(), opts, providerCfg)
	client := chat.New(requestCfg,
		chat.WithHTTPClient(&http.Client{Timeout: providerCfg.Timeout()}),
		chat.WithRetryPolicy(providerCfg.RetryPolicy()),
		chat.WithLogger(logger),
	)

	store, err := session.NewStore()
	if err != nil {
		return err
	}
	sessionID, history, err := resolveSession(store, cwd, opts)
	if err != nil {
		return err
	}

	systemPrompt := opts.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = providerCfg.SystemPrompt
	}

	conv := &conversation{
		client:        client,
		sessionID:     sessionID,
		systemPrompt:  systemPrompt,
		fallbackModel: opts.FallbackModel,
		history:       history,
		logger:        logger,
	}
	if !opts.NoSessionPersistence {
		conv.store = store
		conv.projectHash = session.ProjectHash(cwd)
	}
	logger.Debug("session ready", "session_id", sessionID, "model", conv.Model(), "history", len(history))

	if opts.Print {
		prompt, err := readPrompt(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}
		ctx, stop := withInterrupt(context.Background(), nil)
		defer stop()
		return runPrintMode(ctx, conv, prompt, opts.OutputFormat, cmd.OutOrStdout(), cmd.ErrOrStderr())
	}
	if useTUI {
		return runInteractiveTUI(conv, strings.Join(args, " "))
	}
	return runInteractive(conv, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), strings.Join(args, " "))
}

// buildRequestConfig applies flag overrides to the file configuration.
func buildRequestConfig(flags *pflag.FlagSet, opts *options, providerCfg *config.ProviderConfig) chat.RequestConfig {
	requestCfg := providerCfg.RequestConfig(config.ResolveModel(providerCfg, opts.Model, opts.Preset))
	if opts.MaxTokens > 0 {
		requestCfg.MaxTokens = opts.MaxTokens
	}
	if flags.Changed("temperature") {
		requestCfg = requestCfg.WithTemperature(opts.Temperature)
	}
	if flags.Changed("top-p") {
		topP := opts.TopP
		requestCfg.TopP = &topP
	}
	return requestCfg
}

// providerPath returns the config path in use or a fallback placeholder.
func providerPath(opts *options) string {
	if opts != nil && opts.ConfigPath != "" {
		return opts.ConfigPath
	}
	path, err := config.ProviderConfigPath()
	if err != nil {
		return "~/.reasonchat/config.json"
	}
	return path
}

// resolveSession determines session id and loads history, if any.
func resolveSession(store *session.Store, cwd string, opts *options) (string, []chat.Message, error) {
	if opts.SessionID != "" {
		messages, err := loadSessionMessages(store, opts.SessionID)
		return opts.SessionID, messages, err
	}

	projectHash := session.ProjectHash(cwd)
	if opts.Continue {
		lastID, err := store.LoadLastSession(projectHash)
		if err == nil && lastID != "" {
			messages, err := loadSessionMessages(store, lastID)
			return lastID, messages, err
		}
	}

	if opts.Resume != "" {
		if opts.Resume == "picker" {
			picked, err := pickSession(store, os.Stdin, os.Stdout)
			if err != nil {
				return "", nil, err
			}
			if picked == "" {
				return "", nil, errors.New("no session selected")
			}
			messages, err := loadSessionMessages(store, picked)
			return picked, messages, err
		}
		messages, err := loadSessionMessages(store, opts.Resume)
		return opts.Resume, messages, err
	}

	return uuid.New().String(), nil, nil
}

// loadSessionMessages treats a session without a file as empty.
func loadSessionMessages(store *session.Store, sessionID string) ([]chat.Message, error) {
	messages, err := store.LoadMessages(sessionID)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return messages, err
}

// pickSession shows a small interactive chooser for recent sessions.
func pickSession(store *session.Store, in io.Reader, out io.Writer) (string, error) {
	ids, err := store.ListSessions(10)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", errors.New("no sessions available")
	}
	fmt.Fprintln(out, "Select a session:")
	for i, id := range ids {
		fmt.Fprintf(out, "%d) %s\n", i+1, id)
	}
	fmt.Fprint(out, "Enter number: ")
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil
	}
	var index int
	if _, err := fmt.Sscanf(line, "%d", &index); err != nil {
		return "", fmt.Errorf("invalid selection")
	}
	if index < 1 || index > len(ids) {
		return "", fmt.Errorf("selection out of range")
	}
	return ids[index-1], nil
}

// readPrompt joins positional args, or reads stdin when there are none.
func readPrompt(in io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	raw, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(raw))
	if prompt == "" {
		return "", errors.New("no prompt given; pass it as an argument or on stdin")
	}
	return prompt, nil
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
