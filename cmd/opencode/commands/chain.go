package commands

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	chainTimeout time.Duration
	chainFormat  string
	chainBatch   bool
)

var chainCmd = &cobra.Command{
	Use:   "chain <file>",
	Short: "Run a sequence of tools from a YAML or JSON file",
	Long: `Run the steps of a chain file in one session. Each step sees the
effects of the steps before it. After a failed step the remaining steps are
skipped unless the failed step sets continueOnError.

Example file:

  steps:
    - tool: write
      parameters: {filePath: notes.txt, content: "hello\n"}
    - tool: edit
      parameters: {filePath: notes.txt, oldString: hello, newString: goodbye}
    - tool: read
      parameters: {filePath: notes.txt}`,
	Args: cobra.ExactArgs(1),
	RunE: runChain,
}

func init() {
	chainCmd.Flags().DurationVar(&chainTimeout, "timeout", 0, "Deadline for the whole chain")
	chainCmd.Flags().StringVar(&chainFormat, "format", "text", "Output format (text|json)")
	chainCmd.Flags().BoolVar(&chainBatch, "batch", false, "Run read-only steps concurrently instead of sequentially")
}

func runChain(cmd *cobra.Command, args []string) error {
	steps, err := loadChainFile(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := withTimeout(ctx, chainTimeout)
	defer cancel()

	dir, _, rt, err := newRuntime(ctx, true)
	if err != nil {
		return err
	}
	session, err := rt.CreateSession(ctx, dir, "")
	if err != nil {
		return err
	}

	if chainBatch {
		return printResults(cmd.OutOrStdout(), chainFormat, rt.InvokeBatch(ctx, session.ID, steps)...)
	}
	return printResults(cmd.OutOrStdout(), chainFormat, rt.InvokeChain(ctx, session.ID, steps)...)
}
