package model

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
	"github.com/narravox/narravox/internal/config"
	"github.com/narravox/narravox/internal/frame"
)

// execBackend drives a long-lived inference worker process over a JSON line
// protocol on stdin/stdout. The process loads model weights once and keeps
// recurrent state between requests, so the backend is single-flight: the
// orchestrator serializes calls and resets state before each one.
type execBackend struct {
	cmd      []string
	markers  frame.Markers
	promptMk config.MarkerConfig

	mu     sync.Mutex
	proc   *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Scanner
}

type execCommand struct {
	Op                string  `json:"op"` // generate, reset
	Prompt            string  `json:"prompt,omitempty"`
	Seed              int64   `json:"seed,omitempty"`
	Temperature       float64 `json:"temperature,omitempty"`
	TopP              float64 `json:"top_p,omitempty"`
	MaxTokens         int     `json:"max_tokens,omitempty"`
	RepetitionPenalty float64 `json:"repetition_penalty,omitempty"`

	// Control token framing for prompt assembly inside the worker.
	HeaderStart int `json:"header_start,omitempty"`
	HeaderEnd   int `json:"header_end,omitempty"`
	AudioStart  int `json:"audio_start,omitempty"`
	TextEOT     int `json:"text_eot,omitempty"`
	CodeStart   int `json:"code_start,omitempty"`
	CodeEnd     int `json:"code_end,omitempty"`
}

type execReply struct {
	Tokens []int  `json:"tokens,omitempty"`
	OK     bool   `json:"ok,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewExecBackend parses the configured worker command. The process itself is
// started lazily on first use.
func NewExecBackend(cfg config.ModelConfig) (Backend, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse model command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("model command empty")
	}
	return &execBackend{
		cmd:      args,
		markers:  markersFromConfig(cfg.Markers),
		promptMk: cfg.Markers,
	}, nil
}

func (e *execBackend) ensureStarted() error {
	if e.proc != nil {
		return nil
	}
	cmd := exec.Command(e.cmd[0], e.cmd[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("model worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("model worker stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start model worker: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	// Token lists for a full chunk run to tens of kilobytes of JSON.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	e.proc = cmd
	e.stdin = stdin
	e.reader = scanner
	return nil
}

func (e *execBackend) roundTrip(ctx context.Context, cmd execCommand) (execReply, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return execReply{}, err
	}
	if err := e.ensureStarted(); err != nil {
		return execReply{}, err
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return execReply{}, err
	}
	data = append(data, '\n')
	if _, err := e.stdin.Write(data); err != nil {
		e.teardown()
		return execReply{}, fmt.Errorf("write to model worker: %w", err)
	}

	if !e.reader.Scan() {
		err := e.reader.Err()
		e.teardown()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return execReply{}, fmt.Errorf("read from model worker: %w", err)
	}
	var reply execReply
	if err := json.Unmarshal(e.reader.Bytes(), &reply); err != nil {
		return execReply{}, fmt.Errorf("decode model worker reply: %w", err)
	}
	if reply.Error != "" {
		return execReply{}, fmt.Errorf("model worker: %s", reply.Error)
	}
	return reply, nil
}

func (e *execBackend) Generate(ctx context.Context, req Request) ([]int, error) {
	reply, err := e.roundTrip(ctx, execCommand{
		Op:                "generate",
		Prompt:            PromptPayload(req.Voice, req.Text),
		Seed:              req.Seed,
		Temperature:       req.Sampling.Temperature,
		TopP:              req.Sampling.TopP,
		MaxTokens:         req.Sampling.MaxTokens,
		RepetitionPenalty: req.Sampling.RepetitionPenalty,
		HeaderStart:       e.promptMk.HeaderStart,
		HeaderEnd:         e.promptMk.HeaderEnd,
		AudioStart:        e.promptMk.AudioStart,
		TextEOT:           e.promptMk.TextEOT,
		CodeStart:         e.promptMk.CodeStart,
		CodeEnd:           e.promptMk.CodeEnd,
	})
	if err != nil {
		return nil, err
	}
	return reply.Tokens, nil
}

func (e *execBackend) Markers() frame.Markers { return e.markers }

func (e *execBackend) SingleFlight() bool { return true }

// Reset clears the worker's generation cache so no state bleeds from the
// previous chunk into the next.
func (e *execBackend) Reset(ctx context.Context) error {
	reply, err := e.roundTrip(ctx, execCommand{Op: "reset"})
	if err != nil {
		return err
	}
	if !reply.OK {
		return fmt.Errorf("model worker refused reset")
	}
	return nil
}

func (e *execBackend) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.teardown()
}

func (e *execBackend) teardown() error {
	if e.proc == nil {
		return nil
	}
	if e.stdin != nil {
		_ = e.stdin.Close()
	}
	err := e.proc.Wait()
	e.proc = nil
	e.stdin = nil
	e.reader = nil
	return err
}
