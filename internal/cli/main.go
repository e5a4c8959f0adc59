package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "scenegif",
		Short:        "Pick a random dynamic scene from a video library and save it as a GIF",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run,
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	// Visible flags
	root.Flags().String("config", "", "Config file (default ./scenegif.yaml or ~/.scenegif/config.yaml)")
	root.Flags().String("videos", "", "Directory with source videos")
	root.Flags().String("out", "", "Output directory")
	root.Flags().BoolP("verbose", "v", false, "Debug logging")
	root.Flags().String("metrics-file", "", "Write Prometheus textfile metrics here")

	// Hidden tuning flag (internal)
	root.Flags().Uint64("seed", 0, "Random seed, 0 for time based")
	_ = root.Flags().MarkHidden("seed")

	return root
}
