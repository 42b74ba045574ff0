package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/PentesterFlow/LoadScope/internal/classify"
	"github.com/PentesterFlow/LoadScope/internal/logger"
	"github.com/PentesterFlow/LoadScope/internal/output"
	"github.com/PentesterFlow/LoadScope/internal/progress"
	"github.com/PentesterFlow/LoadScope/internal/shutdown"
	"github.com/PentesterFlow/LoadScope/pkg/loadscope"
)

var (
	version = "1.0.0"

	// Global flags
	configFile string
	verbose    bool

	// Find flags
	cookies      string
	cookieDomain string
	outputFile   string
	format       string
	stream       bool
	types        []string
	browserPath  string
	timeout      int
	logFile      string
	noProgress   bool

	// Config flags
	force bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "loadscope",
		Short: "LoadScope - page load request discovery",
		Long: `LoadScope loads a page in headless Chrome and lists every URL the page
requested while loading, classified as script, resource, html or other.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Find command
	findCmd := &cobra.Command{
		Use:   "find [url]",
		Short: "Load a URL and list the requests it made",
		Args:  cobra.ExactArgs(1),
		RunE:  runFind,
	}

	// Classify command
	classifyCmd := &cobra.Command{
		Use:   "classify [url...]",
		Short: "Classify URLs without a browser",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runClassify,
	}

	// Config command
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}
	configInitCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration (YAML, or JSON for .json)",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfigInit,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	// Find flags
	findCmd.Flags().StringVar(&cookies, "cookies", "", `Cookies to inject ("k1=v1; k2=v2")`)
	findCmd.Flags().StringVar(&cookieDomain, "cookie-domain", "", "Cookie domain (default: derived from the URL)")
	findCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	findCmd.Flags().StringVarP(&format, "format", "f", "", "Output format (json, text)")
	findCmd.Flags().BoolVar(&stream, "stream", false, "Write JSON lines: one event per URL, then a summary")
	findCmd.Flags().StringSliceVar(&types, "type", nil, "Only list these URL types (script, resource, html, other)")
	findCmd.Flags().StringVar(&browserPath, "browser-path", "", "Browser binary used when none is found automatically")
	findCmd.Flags().IntVarP(&timeout, "timeout", "t", 30, "Navigation timeout in seconds")
	findCmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to a rotated file")
	findCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the status line")

	// Config flags
	configInitCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	// Add commands
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(configCmd)

	return rootCmd
}

// loadConfig builds the configuration: defaults, then the config file, then
// LOADSCOPE_* variables, then command line flags.
func loadConfig(cmd *cobra.Command) (*loadscope.Config, error) {
	config := loadscope.DefaultConfig()
	if configFile != "" {
		fileConfig, err := loadscope.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		config = fileConfig
	}

	if err := config.ApplyEnv(nil); err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("cookie-domain") {
		config.CookieDomain = cookieDomain
	}
	if cmd.Flags().Changed("format") {
		config.Output.Format = format
	}
	if cmd.Flags().Changed("stream") {
		config.Output.Stream = stream
	}
	if cmd.Flags().Changed("type") {
		config.Output.Types = types
	}
	if cmd.Flags().Changed("output") {
		config.Output.FilePath = outputFile
	}
	if cmd.Flags().Changed("browser-path") {
		config.Browser.FallbackBinPath = browserPath
	}
	if cmd.Flags().Changed("timeout") {
		config.Browser.Timeout = time.Duration(timeout) * time.Second
	}
	if cmd.Flags().Changed("log-file") {
		config.Log.File = logFile
	}
	if verbose {
		config.Log.Level = "debug"
	}

	return config, config.Validate()
}

func runFind(cmd *cobra.Command, args []string) error {
	target := args[0]

	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out, err := openOutput(config.Output.FilePath)
	if err != nil {
		return err
	}

	writer := output.NewWriter(out, outputConfig(config))
	defer writer.Close()

	opts := []loadscope.Option{loadscope.WithConfig(config)}

	var display *progress.Display
	var zl *logger.Logger
	switch {
	case verbose || config.Log.File != "":
		lc := config.LoggerConfig()
		lc.Output = os.Stderr
		lc.Component = "discover"
		zl = logger.New(lc)
		opts = append(opts, loadscope.WithLogger(zl))
	case !noProgress:
		display = progress.New(os.Stderr)
		display.Start(target)
		opts = append(opts, loadscope.WithLogger(display))
	default:
		opts = append(opts, loadscope.WithLogger(logger.Nop()))
	}

	d, err := loadscope.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create discoverer: %w", err)
	}

	// Setup signal handling
	h := shutdown.New(context.Background(), shutdown.Config{
		OnSignal: func(sig os.Signal) {
			fmt.Fprintf(os.Stderr, "\nReceived %s, stopping...\n", sig)
		},
		OnDone: func(errs []error) {
			for _, err := range errs {
				fmt.Fprintf(os.Stderr, "Shutdown: %v\n", err)
			}
		},
	})
	h.Register("output", func(ctx context.Context) error {
		return writer.Flush()
	})
	go h.Listen()
	defer h.Stop()

	result := d.Run(h.Context(), target, cookies)
	report := result.Report()

	if display != nil {
		display.Stop()
	}
	if zl != nil {
		zl.Event(logger.DebugLevel).Fields(d.Metrics().Summary()).Msg("Run metrics")
	}
	if err := writer.WriteReport(report); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	if display != nil && config.Output.FilePath != "" {
		display.PrintSummary(report)
	}

	if result.Failed() {
		return fmt.Errorf("discovery failed: %w", result.Err())
	}
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, raw := range args {
		urlType, normalized, ok := classify.Classify(raw)
		if !ok {
			fmt.Fprintf(out, "skip\t%s\n", raw)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", urlType, normalized)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := args[0]
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := loadscope.DefaultConfig().SaveToFile(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
	return nil
}

// openOutput returns stdout for an empty path.
func openOutput(path string) (io.Writer, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// nopCloser keeps writer.Close from closing stdout.
type nopCloser struct {
	io.Writer
}

func outputConfig(config *loadscope.Config) output.Config {
	return output.Config{
		Format: config.Output.Format,
		Pretty: config.Output.Pretty,
		Stream: config.Output.Stream,
		Types:  outputTypes(config.Output.Types),
	}
}

func outputTypes(names []string) []classify.URLType {
	result := make([]classify.URLType, 0, len(names))
	for _, name := range names {
		if t, ok := classify.ParseType(strings.TrimSpace(name)); ok {
			result = append(result, t)
		}
	}
	return result
}
