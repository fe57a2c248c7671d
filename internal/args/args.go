package args

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/markis/gh-slides/internal/config"
	"github.com/markis/gh-slides/internal/images"
	"github.com/markis/gh-slides/internal/render"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// Commands selected by ParseArgs.
const (
	CommandGenerate = "generate"
	CommandOutline  = "outline"
	CommandParse    = "parse"
)

const maxStdinLine = 1024 * 1024

// Arguments represents the command-line arguments structure.
type Arguments struct {
	Command  string
	Topic    string
	Stdin    string
	Model    string
	Slides   int
	Language string
	Tone     string
	URL      string
	File     string
	Images   string
	Search   bool

	// Input is the markup file for the parse command; "-" reads stdin.
	Input     string
	ChunkSize int

	Format       string
	Out          string
	LogLevel     string
	UsePlainText bool
}

// ParseArgs parses argv and piped stdin, returning an Arguments struct.
// It uses Cobra to handle commands and flags; a bare topic runs generate and
// every configured prompt preset becomes its own command.
func ParseArgs(ctx context.Context, cfg config.Config, argv []string, stdin io.Reader) (Arguments, error) {
	args := Arguments{}

	rootCmd := &cobra.Command{
		Use:   "gh-slides [command] [flags] [topic]",
		Short: "Generate presentations from a topic with an AI model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			args.Command = CommandGenerate
			args.Topic = firstArg(cmdArgs)
			return nil
		},
		SilenceErrors: true, // We'll handle error reporting
		SilenceUsage:  true, // We'll handle usage display
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&args.Model, "model", cfg.Provider.Model, "The AI model to use")
	rootCmd.PersistentFlags().StringVar(&args.Format, "format", cfg.Render.Format, "Output format: "+strings.Join(render.Formats, ", "))
	rootCmd.PersistentFlags().StringVarP(&args.Out, "out", "o", "", "Write the deck to a file instead of stdout")
	rootCmd.PersistentFlags().StringVar(&args.LogLevel, "log-level", cfg.Log.Level, "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&args.UsePlainText, "plain", shouldUsePlainText(cfg), "Disable markdown rendering")

	addGenerationFlags(rootCmd, &args, cfg)

	generateCmd := &cobra.Command{
		Use:   "generate [topic]",
		Short: "Generate an outline and then the slides for a topic",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			args.Command = CommandGenerate
			args.Topic = firstArg(cmdArgs)
			return nil
		},
	}
	addGenerationFlags(generateCmd, &args, cfg)

	outlineCmd := &cobra.Command{
		Use:   "outline [topic]",
		Short: "Generate only the outline for a topic",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			args.Command = CommandOutline
			args.Topic = firstArg(cmdArgs)
			return nil
		},
	}
	addGenerationFlags(outlineCmd, &args, cfg)

	parseCmd := &cobra.Command{
		Use:   "parse [file|-]",
		Short: "Parse slide markup from a file or stdin without calling a model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			args.Command = CommandParse
			args.Input = firstArg(cmdArgs)
			if args.Input == "" {
				args.Input = "-"
			}
			return nil
		},
	}
	parseCmd.Flags().IntVar(&args.ChunkSize, "chunk-size", 0, "Feed the parser in chunks of this many bytes (0 feeds it at once)")

	rootCmd.AddCommand(generateCmd, outlineCmd, parseCmd)

	// Add predefined commands
	for name, prompt := range cfg.Prompts {
		cmdPrompt := prompt // Create a local copy for the closure
		cmd := &cobra.Command{
			Use:   name + " [topic]",
			Short: summarizePrompt(cmdPrompt.Prompt),
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, cmdArgs []string) error {
				args.Command = CommandGenerate
				args.Topic = strings.TrimSpace(firstArg(cmdArgs) + "\n\n" + cmdPrompt.Prompt)
				if cmdPrompt.Model != "" && !cmd.Flags().Changed("model") {
					args.Model = cmdPrompt.Model
				}
				return nil
			},
		}
		addGenerationFlags(cmd, &args, cfg)
		rootCmd.AddCommand(cmd)
	}

	// Read from stdin if available
	if stdin != nil {
		text, err := readAll(stdin)
		if err != nil {
			return Arguments{}, err
		}
		args.Stdin = text
	}

	// Execute the command
	rootCmd.SetArgs(argv)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return Arguments{}, err
	}
	if args.Command == "" {
		// help or completion output only
		return args, nil
	}

	return args, validate(args)
}

func addGenerationFlags(cmd *cobra.Command, args *Arguments, cfg config.Config) {
	cmd.Flags().IntVarP(&args.Slides, "slides", "n", cfg.Generation.Slides, "Number of slides")
	cmd.Flags().StringVar(&args.Language, "language", cfg.Generation.Language, "Presentation language")
	cmd.Flags().StringVar(&args.Tone, "tone", cfg.Generation.Tone, "Presentation tone")
	cmd.Flags().StringVar(&args.URL, "url", "", "Import source material from a web page")
	cmd.Flags().StringVar(&args.File, "file", "", "Import source material from a PDF, XLSX or text file")
	cmd.Flags().StringVar(&args.Images, "images", cfg.Images.Source, "Image source: ai, stock or none")
	cmd.Flags().BoolVar(&args.Search, "search", false, "Research the topic on the web before writing the outline")
}

func validate(args Arguments) error {
	if args.Format != render.FormatPlain && !slices.Contains(render.Formats, args.Format) {
		return fmt.Errorf("unknown output format %q", args.Format)
	}
	if args.Command == CommandParse {
		if args.ChunkSize < 0 {
			return errors.New("chunk size must not be negative")
		}
		return nil
	}

	switch args.Images {
	case images.SourceAI, images.SourceStock, images.SourceNone:
	default:
		return fmt.Errorf("unknown image source %q", args.Images)
	}
	if args.Slides < 1 {
		return errors.New("at least one slide is required")
	}
	if args.Topic == "" && args.Stdin == "" && args.URL == "" && args.File == "" {
		return errors.New("no topic provided")
	}
	return nil
}

func firstArg(cmdArgs []string) string {
	if len(cmdArgs) == 0 {
		return ""
	}
	return strings.TrimSpace(cmdArgs[0])
}

func readAll(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStdinLine)
	var buf strings.Builder
	for scanner.Scan() {
		buf.WriteString(scanner.Text())
		buf.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// PipedStdin returns os.Stdin when it is not a terminal, nil otherwise.
func PipedStdin() io.Reader {
	if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return nil
	}
	if stat, err := os.Stdin.Stat(); err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
		return nil
	}
	return os.Stdin
}

// shouldUsePlainText determines if plain text output should be used based on environment and terminal settings.
func shouldUsePlainText(cfg config.Config) bool {
	// Check if the rendering format is set to plain
	if cfg.Render.Format == render.FormatPlain {
		return true
	}

	// Check if output is being redirected
	if fd := os.Stdout.Fd(); !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return true
	}

	// Check for NO_COLOR environment variable
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return true
	}

	// Check for TERM=dumb
	if term := os.Getenv("TERM"); term == "dumb" {
		return true
	}

	return false
}

func summarizePrompt(prompt string) string {
	// Trim and limit the length of the prompt summary
	summary := strings.TrimSpace(prompt)
	if len(summary) > 60 {
		summary = summary[:57] + "..."
	}
	return summary
}
