// Package repl is the interactive shell of the admin CLI. Lines are
// either builtin commands (help, set, show, exit) or
// "<service> <action> key=value ..." invocations resolved through the
// command registry and sent to the archive server.
package repl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gamezipserver/internal/cli/command"
	httpclient "gamezipserver/internal/cli/http"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
)

const prompt = "gamezip> "

// Session is one interactive run of the CLI.
type Session struct {
	client      *httpclient.Client
	commands    map[string]command.Command
	historyPath string
	prettyJSON  bool
}

func New(client *httpclient.Client, commands map[string]command.Command, historyPath string, prettyJSON bool) *Session {
	return &Session{
		client:      client,
		commands:    commands,
		historyPath: historyPath,
		prettyJSON:  prettyJSON,
	}
}

// Run reads lines until EOF or an exit command. Ctrl-C cancels the
// current line only.
func (s *Session) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     s.historyPath,
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	for {
		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("read input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		done, handled := s.builtin(line)
		if done {
			return nil
		}
		if handled {
			continue
		}

		if err := s.invoke(ctx, rl, line); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func completer() readline.AutoCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("mount",
			readline.PcItem("add"),
			readline.PcItem("remove"),
			readline.PcItem("list"),
		),
		readline.PcItem("server",
			readline.PcItem("health"),
		),
		readline.PcItem("set",
			readline.PcItem("base"),
			readline.PcItem("timeout"),
		),
		readline.PcItem("show", readline.PcItem("config")),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}

// builtin handles shell-level commands. done means the REPL should
// exit; handled means the line was consumed either way.
func (s *Session) builtin(line string) (done, handled bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "exit", "quit":
		fmt.Println("bye")
		return true, true
	case "help":
		s.printHelp()
		return false, true
	case "set":
		s.setOption(fields[1:])
		return false, true
	case "show":
		if len(fields) > 1 && fields[1] == "config" {
			fmt.Printf("historyPath: %s\n", s.historyPath)
		} else {
			fmt.Println("usage: show config")
		}
		return false, true
	}
	return false, false
}

func (s *Session) setOption(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: set base <url> | set timeout <duration>")
		return
	}
	switch args[0] {
	case "base":
		s.client.SetBaseURL(args[1])
		fmt.Printf("base set to %s\n", args[1])
	case "timeout":
		dur, err := time.ParseDuration(args[1])
		if err != nil {
			fmt.Printf("invalid duration: %v\n", err)
			return
		}
		s.client.SetTimeout(dur)
		fmt.Printf("timeout set to %s\n", dur)
	default:
		fmt.Println("unknown set option")
	}
}

// invoke resolves a registry command, fills missing required fields
// interactively, and performs the HTTP call.
func (s *Session) invoke(ctx context.Context, rl *readline.Instance, line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command: %w", err)
	}
	if len(tokens) < 2 {
		return fmt.Errorf("usage: <service> <action> key=value ...")
	}

	cmd, ok := s.commands[tokens[0]+" "+tokens[1]]
	if !ok {
		return fmt.Errorf("unknown command: %s %s", tokens[0], tokens[1])
	}

	params := command.Params{}
	for _, tok := range tokens[2:] {
		k, v, found := strings.Cut(tok, "=")
		if !found {
			return fmt.Errorf("invalid param %q, want key=value", tok)
		}
		params.Set(k, v)
	}
	params.Canonicalize(cmd.Fields)

	for _, field := range cmd.Fields {
		if !field.Required || params.Get(field.Name) != "" {
			continue
		}
		value, err := ask(rl, field.Prompt)
		if err != nil {
			return err
		}
		params.Set(field.Name, value)
	}

	req, err := command.BuildRequest(cmd, params)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(ctx, req.Method, req.Path, req.Headers, req.Body)
	if err != nil {
		return err
	}
	s.render(resp)
	return nil
}

func ask(rl *readline.Instance, question string) (string, error) {
	rl.SetPrompt(question + ": ")
	defer rl.SetPrompt(prompt)
	line, err := rl.Readline()
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (s *Session) render(resp httpclient.ResponseInfo) {
	fmt.Printf("HTTP %d (%s)\n", resp.StatusCode, resp.Duration)
	if len(resp.Body) == 0 {
		return
	}
	if s.prettyJSON {
		var raw interface{}
		if json.Unmarshal(resp.Body, &raw) == nil {
			pretty, _ := json.MarshalIndent(raw, "", "  ")
			fmt.Println(string(pretty))
			return
		}
	}
	fmt.Println(string(resp.Body))
}

func (s *Session) printHelp() {
	fmt.Println("usage: <service> <action> key=value ...")
	fmt.Println("system: help | exit | set base|timeout | show config")
	fmt.Println("examples:")
	fmt.Println("  mount add id=pinball zip=games/pinball.zip")
	fmt.Println("  mount add id=pinball            (fetch from object storage)")
	fmt.Println("  mount remove id=pinball")
	fmt.Println("  mount list")
	fmt.Println("  server health")
}
