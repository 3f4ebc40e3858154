package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dspinellis/ax-178-logger/internal/reader"
	"github.com/dspinellis/ax-178-logger/internal/serialport"
	"github.com/dspinellis/ax-178-logger/pkg/ax178"
)

var (
	rootCmd = &cobra.Command{
		Use:   "ax178-logger PORT",
		Short: "Log measurements from an AXIOMET AX-178 multimeter",
		Long: "ax178-logger reads the AX-178 serial stream and prints one scaled,\n" +
			"optionally timestamped measurement per frame.",
		Args: cobra.ExactArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(level)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogger(cmd.Context(), args[0])
		},
	}

	analyzeCmd = &cobra.Command{
		Use:   "analyze [hex]",
		Short: "Decode a single captured frame from a hex dump",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runInteractive()
			}
			return runAnalyze(args[0])
		},
	}

	csvOutput bool
	isoTime   bool
	unixTime  bool
	rawOutput bool
	logLevel  string
)

func init() {
	rootCmd.Flags().BoolVarP(&csvOutput, "csv", "c", false, "separate output fields with commas instead of tabs")
	rootCmd.Flags().BoolVarP(&isoTime, "iso-time", "i", false, "prefix each measurement with an ISO timestamp")
	rootCmd.Flags().BoolVarP(&unixTime, "unix-time", "u", false, "prefix each measurement with a Unix epoch timestamp")
	rootCmd.Flags().BoolVarP(&rawOutput, "raw", "r", false, "print raw frame contents instead of measurements")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warning, error)")
	rootCmd.AddCommand(analyzeCmd)
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logrus.Fatal(err)
	}
}

func runLogger(ctx context.Context, path string) error {
	port, err := serialport.Open(path)
	if err != nil {
		return err
	}
	defer port.Close()

	logrus.WithField("port", path).Info("reading AX-178 frames")
	sink := newConsoleSink(os.Stdout, os.Stderr, csvOutput, isoTime, unixTime)
	r := reader.New(port, sink, reader.Config{Raw: rawOutput})
	if err := r.Run(ctx); err != nil {
		return err
	}
	logrus.WithField("resyncs", r.Resyncs()).Info("stopped")
	return nil
}

func runInteractive() error {
	scanner := bufio.NewScanner(os.Stdin)
	logrus.Info("ax178 analyze mode. Paste a hex frame and press Enter (Ctrl+D to exit).")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := runAnalyze(line); err != nil {
			logrus.WithError(err).Error("failed to decode frame")
		}
	}
	return scanner.Err()
}

func runAnalyze(hex string) error {
	result, err := ax178.AnalyzeHex(hex)
	if err != nil {
		return err
	}
	fmt.Println(result.String())
	return nil
}
