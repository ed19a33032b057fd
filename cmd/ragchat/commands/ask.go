package commands

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/rag"
	"github.com/54b3r/ragchat-go/internal/stream"
)

// errAnswerFailed is returned when the answer stream ends with an error event.
var errAnswerFailed = errors.New("ask: answer failed")

// NewAskCmd constructs the `ragchat ask` command, which answers one question
// from the terminal using the same pipeline as the HTTP API.
func NewAskCmd() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question about the documentation",
		Long: `Ask a single question and stream the answer to stdout.

The retrieved sources are listed first, then the answer is printed as it is
generated. Follow-up searches made by the model are reported on stderr.

With --debug the raw event-stream frames are printed instead, exactly as
POST /api/chat would send them, and the frame order is checked at the end.

Examples:
  ragchat ask "What does config.ts do?"
  ragchat ask --debug "How do I deploy?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			deps, err := buildPipeline(ctx, log, true)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer deps.close(log)

			question := strings.Join(args, " ")
			events := deps.pipeline.Answer(ctx, question)
			if debug {
				return printFrames(cmd.OutOrStdout(), events)
			}
			return printAnswer(cmd.OutOrStdout(), cmd.ErrOrStderr(), events)
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Print raw event-stream frames and check their order")

	return cmd
}

// printAnswer renders events for a terminal: a source list, the streamed
// answer, and tool searches on errOut. An error event is printed to errOut
// and returned as errAnswerFailed.
func printAnswer(out, errOut io.Writer, events iter.Seq[stream.Event]) error {
	for ev := range events {
		switch ev.Kind {
		case stream.KindSources:
			printSources(out, ev.Sources)
		case stream.KindToken:
			fmt.Fprint(out, ev.Token)
		case stream.KindToolContext:
			if ev.Found {
				fmt.Fprintf(errOut, "[searched again: %d source(s)]\n", len(ev.Sources))
			} else {
				fmt.Fprintln(errOut, "[searched again: nothing found]")
			}
		case stream.KindEnd:
			fmt.Fprintln(out)
			return nil
		case stream.KindError:
			fmt.Fprintln(out)
			fmt.Fprintf(errOut, "error: %s\n", ev.Message)
			return fmt.Errorf("%w: %s", errAnswerFailed, ev.Message)
		}
	}
	return fmt.Errorf("%w: stream ended without a terminal event", errAnswerFailed)
}

// printSources lists sources as a numbered block followed by a blank line.
func printSources(out io.Writer, sources []rag.Source) {
	if len(sources) == 0 {
		fmt.Fprintln(out, "Sources: none")
		fmt.Fprintln(out)
		return
	}
	fmt.Fprintln(out, "Sources:")
	for i, s := range sources {
		fmt.Fprintf(out, "  [%d] %s (%s) score=%.3f\n", i+1, s.Title, s.FilePath, s.Score)
	}
	fmt.Fprintln(out)
}

// printFrames writes each event as its wire frame, then parses the frames
// back and verifies their order.
func printFrames(out io.Writer, events iter.Seq[stream.Event]) error {
	var written bytes.Buffer
	w := io.MultiWriter(out, &written)
	for ev := range events {
		frame, err := stream.Encode(ev)
		if err != nil {
			return fmt.Errorf("ask: encode %s frame: %w", ev.Kind, err)
		}
		if _, err := w.Write(frame); err != nil {
			return err
		}
		if ev.Terminal() {
			break
		}
	}
	frames, err := stream.Parse(&written)
	if err != nil {
		return fmt.Errorf("ask: parse frames: %w", err)
	}
	kinds := stream.Kinds(frames)
	if err := stream.CheckOrder(kinds); err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	if kinds[len(kinds)-1] == stream.KindError {
		return errAnswerFailed
	}
	return nil
}
