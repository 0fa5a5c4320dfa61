package repl

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"judgemicro/internal/cli/command"
	httpclient "judgemicro/internal/cli/http"
	"judgemicro/internal/cli/state"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
)

const replPrompt = "judge> "

// Session holds REPL state.
type Session struct {
	client       *httpclient.Client
	commands     map[string]command.Command
	session      *state.SessionState
	statePath    string
	prettyJSON   bool
	rl           *readline.Instance
	outputWriter *bufio.Writer
}

func New(client *httpclient.Client, commands map[string]command.Command, session *state.SessionState, statePath, historyPath string, prettyJSON bool) (*Session, error) {
	if historyPath != "" {
		if err := os.MkdirAll(filepath.Dir(historyPath), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir failed: %w", err)
		}
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyPath,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("init readline failed: %w", err)
	}
	return &Session{
		client:       client,
		commands:     commands,
		session:      session,
		statePath:    statePath,
		prettyJSON:   prettyJSON,
		rl:           rl,
		outputWriter: bufio.NewWriter(os.Stdout),
	}, nil
}

func (s *Session) Close() {
	_ = s.rl.Close()
}

func (s *Session) Run(ctx context.Context) {
	for {
		line, err := s.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				return
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			s.printLine("read input failed: %v", err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		handled, quit := s.handleSystemCommand(line)
		if quit {
			s.printLine("bye")
			return
		}
		if handled {
			continue
		}

		if err := s.handleCommand(ctx, line); err != nil {
			s.printLine("error: %v", err)
		}
	}
}

func (s *Session) handleSystemCommand(line string) (handled, quit bool) {
	switch line {
	case "exit", "quit":
		return true, true
	case "help":
		s.printHelp()
		return true, false
	}
	if strings.HasPrefix(line, "set ") {
		s.handleSet(strings.TrimSpace(strings.TrimPrefix(line, "set ")))
		return true, false
	}
	if strings.HasPrefix(line, "show ") {
		s.handleShow(strings.TrimSpace(strings.TrimPrefix(line, "show ")))
		return true, false
	}
	return false, false
}

func (s *Session) handleSet(args string) {
	parts := strings.SplitN(args, " ", 2)
	if len(parts) == 0 || parts[0] == "" {
		s.printLine("usage: set base|timeout|language|standard|flags")
		return
	}
	value := ""
	if len(parts) > 1 {
		value = strings.TrimSpace(parts[1])
	}
	switch parts[0] {
	case "base":
		if value == "" {
			s.printLine("usage: set base http://127.0.0.1:8000")
			return
		}
		s.client.SetBaseURL(value)
		s.printLine("base set to %s", value)
	case "timeout":
		if value == "" {
			s.printLine("usage: set timeout 2m")
			return
		}
		dur, err := time.ParseDuration(value)
		if err != nil {
			s.printLine("invalid duration: %v", err)
			return
		}
		s.client.SetTimeout(dur)
		s.printLine("timeout set to %s", dur)
	case "language":
		s.session.Language = value
		s.saveSession("language")
	case "standard":
		s.session.Standard = value
		s.saveSession("standard")
	case "flags":
		s.session.CompilerFlags = value
		s.saveSession("flags")
	default:
		s.printLine("unknown set command")
	}
}

func (s *Session) saveSession(what string) {
	if err := state.Save(s.statePath, *s.session); err != nil {
		s.printLine("save session failed: %v", err)
		return
	}
	s.printLine("%s updated", what)
}

func (s *Session) handleShow(args string) {
	switch args {
	case "session":
		s.printLine("language: %s", orEmpty(s.session.Language))
		s.printLine("standard: %s", orEmpty(s.session.Standard))
		s.printLine("flags: %s", orEmpty(s.session.CompilerFlags))
	case "config":
		s.printLine("statePath: %s", s.statePath)
	default:
		s.printLine("usage: show session|config")
	}
}

func orEmpty(value string) string {
	if value == "" {
		return "<empty>"
	}
	return value
}

func (s *Session) handleCommand(ctx context.Context, line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) == 0 {
		return fmt.Errorf("invalid command, use: <action> key=value ...")
	}
	action := tokens[0]
	cmd, ok := s.commands[action]
	if !ok {
		return fmt.Errorf("unknown command: %s", action)
	}
	params := command.Params{}
	for _, token := range tokens[1:] {
		parts := strings.SplitN(token, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid param: %s", token)
		}
		params.Set(parts[0], parts[1])
	}
	params.Canonicalize(cmd.Fields)

	s.applyParamShortcuts(&cmd, params)
	explicit := captureExplicit(params)
	s.applySessionDefaults(&cmd, params)
	if err := s.promptMissing(&cmd, params); err != nil {
		return err
	}
	req, err := command.BuildRequest(cmd, params)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(ctx, req.Method, req.Path, req.Body)
	if err != nil {
		return err
	}
	s.renderResponse(resp)
	s.persistSessionDefaults(cmd, explicit)
	return nil
}

func usesSource(cmd *command.Command) bool {
	switch cmd.Action {
	case "submit", "submit-async", "optimized":
		return true
	}
	return false
}

func (s *Session) applyParamShortcuts(cmd *command.Command, params command.Params) {
	if usesSource(cmd) {
		if params.Get("source_file") != "" && params.Get("user_code") == "" {
			params.Set("user_code", "_file_")
		}
	}
	if cmd.Action == "batch" {
		if params.Get("tests_file") != "" && params.Get("tests") == "" {
			params.Set("tests", "_file_")
		}
	}
	if cmd.Action == "optimized" {
		if params.Get("configs_file") != "" && params.Get("configs") == "" {
			params.Set("configs", "_file_")
		}
	}
}

func captureExplicit(params command.Params) state.SessionState {
	return state.SessionState{
		Language:      params.Get("language"),
		Standard:      params.Get("standard"),
		CompilerFlags: params.Get("flags"),
	}
}

// applySessionDefaults fills submit fields from the saved session so
// repeated submissions do not retype language and compiler settings.
func (s *Session) applySessionDefaults(cmd *command.Command, params command.Params) {
	if !usesSource(cmd) {
		return
	}
	if params.Get("language") == "" && s.session.Language != "" {
		params.Set("language", s.session.Language)
	}
	if params.Get("standard") == "" && s.session.Standard != "" {
		params.Set("standard", s.session.Standard)
	}
	if params.Get("flags") == "" && s.session.CompilerFlags != "" {
		params.Set("flags", s.session.CompilerFlags)
	}
}

func (s *Session) promptMissing(cmd *command.Command, params command.Params) error {
	for _, field := range cmd.Fields {
		if !field.Required {
			continue
		}
		if params.Has(field.Name) && params.Get(field.Name) != "" {
			continue
		}
		value, err := s.promptValue(field.Prompt)
		if err != nil {
			return err
		}
		params.Set(field.Name, value)
	}
	return nil
}

func (s *Session) promptValue(prompt string) (string, error) {
	s.rl.SetPrompt(prompt + ": ")
	defer s.rl.SetPrompt(replPrompt)
	line, err := s.rl.Readline()
	if err != nil {
		return "", fmt.Errorf("read input failed: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (s *Session) renderResponse(resp httpclient.ResponseInfo) {
	s.printLine("HTTP %d (%s)", resp.StatusCode, resp.Duration)
	if len(resp.Body) == 0 {
		return
	}
	if s.prettyJSON {
		var raw interface{}
		if err := json.Unmarshal(resp.Body, &raw); err == nil {
			formatted, _ := json.MarshalIndent(raw, "", "  ")
			s.printLine("%s", string(formatted))
			return
		}
	}
	s.printLine("%s", string(resp.Body))
}

// persistSessionDefaults remembers explicitly typed submit settings as
// the session defaults for the next command.
func (s *Session) persistSessionDefaults(cmd command.Command, explicit state.SessionState) {
	if !usesSource(&cmd) {
		return
	}
	changed := false
	if explicit.Language != "" && explicit.Language != s.session.Language {
		s.session.Language = explicit.Language
		changed = true
	}
	if explicit.Standard != "" && explicit.Standard != s.session.Standard {
		s.session.Standard = explicit.Standard
		changed = true
	}
	if explicit.CompilerFlags != "" && explicit.CompilerFlags != s.session.CompilerFlags {
		s.session.CompilerFlags = explicit.CompilerFlags
		changed = true
	}
	if changed {
		_ = state.Save(s.statePath, *s.session)
	}
}

func (s *Session) printHelp() {
	s.printLine("usage: <action> key=value ...")
	s.printLine("actions: submit | submit-async | batch | optimized | status | languages | limits | health")
	s.printLine("system: help | exit | set base|timeout|language|standard|flags | show session|config")
	s.printLine("examples:")
	s.printLine(`  submit language=c file=./solve.c params='[{"name":"a","type":"int","input_value":1}]' expected='{"a":42}' type=int`)
	s.printLine("  optimized language=cpp file=./solve.cpp configs_file=./configs.json std=cpp17")
	s.printLine("  batch tests_file=./tests.json show_progress=true")
	s.printLine("  status id=8f7f2b6e-1f2a-4c8e-9d35-0b5f4f1f2a10")
}

func (s *Session) printLine(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.outputWriter, format+"\n", args...)
	_ = s.outputWriter.Flush()
}
