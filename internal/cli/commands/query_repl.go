package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/strata/internal/cli/config"
	"github.com/spf13/cobra"
)

const (
	replPrompt         = "strata> "
	replContinuePrompt = "   ...> "
)

func runQueryREPL(cmd *cobra.Command, cmdCtx *CommandContext, format string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	// model names are only used for completion
	if _, err := cmdCtx.Engine.Discover(); err != nil {
		cmdCtx.Logger.Debug("discovery for completion failed", "error", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyPath(cmdCtx.Cfg),
		AutoComplete:    newModelCompleter(cmdCtx),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(out, "strata query (%s, environment %s)\n", cmdCtx.Cfg.Target.Type, cmdCtx.Engine.Environment())
	_, _ = fmt.Fprintln(out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(out)

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if buf.Len() == 0 && strings.HasPrefix(line, ".") {
			if quit := handleDotCommand(cmd, cmdCtx, line, &format); quit {
				return nil
			}
			continue
		}

		// statements end at a semicolon
		buf.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			buf.WriteString(" ")
			rl.SetPrompt(replContinuePrompt)
			continue
		}
		rl.SetPrompt(replPrompt)

		query := strings.TrimSuffix(buf.String(), ";")
		buf.Reset()

		if err := executeAndRender(ctx, out, cmdCtx.Engine, query, format); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		}
		_, _ = fmt.Fprintln(out)
	}
}

// handleDotCommand runs a REPL meta command and reports whether to quit.
func handleDotCommand(cmd *cobra.Command, cmdCtx *CommandContext, line string, format *string) bool {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	parts := strings.Fields(line)
	var err error
	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true
	case ".help":
		printREPLHelp(out)
	case ".tables":
		err = executeAndRender(ctx, out, cmdCtx.Engine, relationsQuery(false), *format)
	case ".views":
		err = executeAndRender(ctx, out, cmdCtx.Engine, relationsQuery(true), *format)
	case ".schema":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .schema <relation>")
			return false
		}
		err = showSchema(ctx, out, cmdCtx.Engine, parts[1], *format)
	case ".models":
		for _, m := range cmdCtx.Engine.Models() {
			_, _ = fmt.Fprintf(out, "%s -> %s\n", m.Name, m.Relation(cmdCtx.Engine.DefaultSchema()))
		}
	case ".format":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(out, "format: %s\n", *format)
			return false
		}
		f, ferr := resolveFormat(parts[1], cmdCtx.Renderer)
		if ferr != nil {
			err = ferr
			break
		}
		*format = f
	default:
		_, _ = fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", parts[0])
	}
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
	}
	return false
}

func printREPLHelp(w io.Writer) {
	_, _ = fmt.Fprint(w, `
Commands:
  .help             Show this help message
  .tables           List tables and views in the target
  .views            List views only
  .schema <name>    Show the columns of a relation
  .models           List project models and their relations
  .format [fmt]     Show or set the result format (table, json, csv, md)
  .quit / .exit     Exit the REPL

Statements end with a semicolon and may span lines.

`)
}

// historyPath keeps REPL history next to the state database.
func historyPath(cfg *config.Config) string {
	if cfg.StatePath == "" || cfg.StatePath == ":memory:" {
		return ""
	}
	return filepath.Join(filepath.Dir(cfg.StatePath), "query_history")
}

// newModelCompleter completes dot commands and model names.
func newModelCompleter(cmdCtx *CommandContext) *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem(".help"),
		readline.PcItem(".tables"),
		readline.PcItem(".views"),
		readline.PcItem(".models"),
		readline.PcItem(".format",
			readline.PcItem(FormatTable),
			readline.PcItem(FormatJSON),
			readline.PcItem(FormatCSV),
			readline.PcItem(FormatMarkdown),
		),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	}

	var names []readline.PrefixCompleterInterface
	for _, m := range cmdCtx.Engine.Models() {
		names = append(names, readline.PcItem(m.Name))
	}
	items = append(items, readline.PcItem(".schema", names...))
	items = append(items, names...)

	return readline.NewPrefixCompleter(items...)
}
