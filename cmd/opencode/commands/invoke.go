package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/toolrun/pkg/types"
)

var (
	invokeParams  []string
	invokeTimeout time.Duration
	invokeFormat  string
)

var invokeCmd = &cobra.Command{
	Use:   "invoke <tool>",
	Short: "Run one tool in a new session",
	Long: `Run one tool in a fresh session rooted at the working directory.

Examples:
  opencode invoke read --param filePath=main.go
  opencode invoke edit --param filePath=a.txt --param oldString=foo --param newString=bar
  opencode invoke glob --param pattern='**/*.go' --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runInvoke,
}

func init() {
	invokeCmd.Flags().StringArrayVarP(&invokeParams, "param", "p", nil, "Tool parameter as name=value (repeatable)")
	invokeCmd.Flags().DurationVar(&invokeTimeout, "timeout", 0, "Deadline for the invocation (0 uses the configured default)")
	invokeCmd.Flags().StringVar(&invokeFormat, "format", "text", "Output format (text|json)")
}

func runInvoke(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir, _, rt, err := newRuntime(ctx, true)
	if err != nil {
		return err
	}

	toolName := args[0]
	desc, ok := rt.Executor().Registry().Descriptor(toolName)
	if !ok {
		return types.NewError(types.KindUnknownTool, "unknown tool %q", toolName)
	}
	params, err := parseParams(desc, invokeParams)
	if err != nil {
		return err
	}

	session, err := rt.CreateSession(ctx, dir, "")
	if err != nil {
		return err
	}

	var deadline *time.Time
	if invokeTimeout > 0 {
		d := time.Now().Add(invokeTimeout)
		deadline = &d
	}

	result, err := rt.Invoke(ctx, session.ID, toolName, params, deadline)
	if err != nil {
		return err
	}
	return printResults(cmd.OutOrStdout(), invokeFormat, result)
}

// printResults writes results and returns an error when any did not
// succeed, so the process exits non-zero.
func printResults(w io.Writer, format string, results ...types.ToolResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		var err error
		if len(results) == 1 {
			err = enc.Encode(results[0])
		} else {
			err = enc.Encode(results)
		}
		if err != nil {
			return err
		}
	} else {
		for i, r := range results {
			if len(results) > 1 {
				fmt.Fprintf(w, "[%d] %s: %s\n", i+1, r.Tool, r.Outcome)
			}
			if r.Output != "" {
				fmt.Fprintln(w, r.Output)
			} else if r.Title != "" {
				fmt.Fprintln(w, r.Title)
			}
			if r.Error != nil {
				fmt.Fprintf(w, "error: %s: %s\n", r.Error.Kind, r.Error.Reason)
			}
		}
	}

	for _, r := range results {
		if r.Outcome == types.OutcomeFailure || r.Outcome == types.OutcomeCancelled {
			return fmt.Errorf("%s: %s", r.Tool, r.Outcome)
		}
	}
	return nil
}

// withTimeout bounds ctx when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
