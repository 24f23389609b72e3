// Command cddump is the CLI consumer of the CD dump core. It is
// deliberately thin: option handling and logging surface only, the same
// division aiSzzPL-retroio's cmd package and sargunv-screenscraper-go's
// internal/cli package draw between "CLI glue" and "the engine underneath".
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	cdcore "github.com/rabidaudio/cdimage"
	"github.com/rabidaudio/cdimage/progress"
	"github.com/rabidaudio/cdimage/sink"
)

var flags struct {
	device       string
	retryPasses  int
	stopOnError  bool
	persistent   bool
	dumpRaw      bool
	dumpLeadIn   bool
	force        bool
	skip         int
	noMetadata   bool
	noTrim       bool
	encoding     string
	outputPrefix string
	output       string
	resumeFile   string
	timeout      time.Duration
}

var rootCmd = &cobra.Command{
	Use:   "cddump DEVICE",
	Short: "Dump a CD to a sector-level image",
	Long:  `cddump reads a CD through low-level device commands and produces a faithful sector-level image.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags.device = args[0]
		return runDump()
	},
}

func init() {
	f := rootCmd.Flags()
	f.IntVar(&flags.retryPasses, "retry-passes", 2, "number of alternating-direction retry passes")
	f.BoolVar(&flags.stopOnError, "stop-on-error", false, "abort the whole dump on the first sector failure")
	f.BoolVar(&flags.persistent, "persistent", false, "reconfigure the drive for persistent error recovery")
	f.BoolVar(&flags.dumpRaw, "dump-raw", false, "request the highest-fidelity subchannel framing the drive offers")
	f.BoolVar(&flags.dumpLeadIn, "dump-lead-in", false, "capture the 150-sector lead-in region")
	f.BoolVar(&flags.force, "force", false, "tolerate capability/tag mismatches instead of failing")
	f.IntVar(&flags.skip, "skip", cdcore.DefaultSkipBlocks, "placeholder length written on a failed read")
	f.BoolVar(&flags.noMetadata, "no-metadata", false, "skip sidecar metadata generation")
	f.BoolVar(&flags.noTrim, "no-trim", false, "skip the Error-Recovery State Machine entirely")
	f.StringVar(&flags.encoding, "encoding", "", "text encoding label, carried into the core configuration but not used by the dump")
	f.StringVar(&flags.outputPrefix, "output-prefix", "", "output image is <prefix>.img when --output is not given")
	f.StringVar(&flags.output, "output", "", "output image path")
	f.StringVar(&flags.resumeFile, "resume-file", "", "resume record path (defaults next to --output)")
	f.DurationVar(&flags.timeout, "timeout", 20*time.Second, "per-command device timeout")
}

func runDump() error {
	output := flags.output
	if output == "" {
		output = flags.outputPrefix + ".img"
	}
	resumePath := flags.resumeFile
	if resumePath == "" {
		resumePath = output + ".resume"
	}

	cfg := cdcore.Config{
		Device:         flags.device,
		RetryPasses:    flags.retryPasses,
		StopOnError:    flags.stopOnError,
		Persistent:     flags.persistent,
		DumpRaw:        flags.dumpRaw,
		DumpLeadIn:     flags.dumpLeadIn,
		Force:          flags.force,
		SkipBlocks:     flags.skip,
		NoMetadata:     flags.noMetadata,
		NoTrim:         flags.noTrim,
		Encoding:       flags.encoding,
		OutputPrefix:   flags.outputPrefix,
		OutputPath:     output,
		ResumePath:     resumePath,
		CommandTimeout: flags.timeout,
	}

	drv, err := openDrive(cfg.Device)
	if err != nil {
		return fmt.Errorf("cddump: %w", err)
	}

	img := sink.NewMemImage() // placeholder sink until a real image-format plugin is wired

	logger := log.New(os.Stderr, "cddump: ", log.LstdFlags)
	reporter := progress.NewReporter(64, progress.NewLogWriter(logger))
	defer reporter.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	summary, err := cdcore.Dump(ctx, cfg, drv, img, nil, reporter, cdcore.Logs{})
	if err != nil {
		return fmt.Errorf("cddump: %w", err)
	}

	logger.Printf("done in %s, %d bad blocks, %.2f-%.2f MiB/s", summary.TotalTime, summary.BadBlockCount, summary.MinSpeedMiBs, summary.MaxSpeedMiBs)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
