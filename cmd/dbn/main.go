package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/peter-kozarec/dbnfeed/internal/dbg"
)

var Version = "dev"

type logFlags struct {
	level string
	dev   bool
}

func (f *logFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.level, "log-level", "info", "log level (debug, info, warn, error)")
	fs.BoolVar(&f.dev, "dev", false, "human readable console logs")
}

func (f *logFlags) logger() (*zap.Logger, error) {
	return dbg.NewLogger(f.level, f.dev, dbg.FileOptions{})
}

func newRootCommand() *cobra.Command {
	var logs logFlags

	root := &cobra.Command{
		Use:           "dbn",
		Short:         "Read and stream DBN market data",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	logs.register(root.PersistentFlags())

	root.AddCommand(newDumpCommand(&logs), newLiveCommand(&logs), newSynthCommand(&logs))
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "dbn:", err)
		cancel()
		os.Exit(1)
	}
}
