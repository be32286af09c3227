package cgi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/shlex"

	pkgerrors "gamezipserver/pkg/errors"
	"gamezipserver/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultMaxResponseSize = 32 * 1024 * 1024
	defaultStderrMaxBytes  = 64 * 1024
)

var errOutputLimit = errors.New("cgi stdout limit exceeded")

// Executor runs scripts through an external CGI-compliant interpreter. One
// subprocess per invocation, bounded lifetime, bounded captured output. No
// pooling: CGI invocations may have side effects, so a failed run is never
// retried here or anywhere above.
type Executor struct {
	cfg          Config
	interpreter  []string
	documentRoot string
	cgiBinPath   string
}

// NewExecutor validates the config and resolves the interpreter command line.
func NewExecutor(cfg Config) (*Executor, error) {
	if cfg.Interpreter == "" {
		return nil, fmt.Errorf("cgi interpreter is required")
	}
	args, err := shlex.Split(cfg.Interpreter)
	if err != nil || len(args) == 0 {
		return nil, fmt.Errorf("parse cgi interpreter command failed: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxResponseSize <= 0 {
		cfg.MaxResponseSize = defaultMaxResponseSize
	}
	if cfg.StderrMaxBytes <= 0 {
		cfg.StderrMaxBytes = defaultStderrMaxBytes
	}

	docRoot, err := filepath.Abs(cfg.DocumentRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve document root failed: %w", err)
	}
	cgiBin := ""
	if cfg.CgiBinPath != "" {
		cgiBin, err = filepath.Abs(cfg.CgiBinPath)
		if err != nil {
			return nil, fmt.Errorf("resolve cgi-bin path failed: %w", err)
		}
	}
	cfg.DocumentRoot = docRoot

	return &Executor{
		cfg:          cfg,
		interpreter:  args,
		documentRoot: docRoot,
		cgiBinPath:   cgiBin,
	}, nil
}

// DocumentRoot returns the resolved absolute document root.
func (e *Executor) DocumentRoot() string {
	return e.documentRoot
}

// Execute runs scriptPath through the interpreter and parses its output.
// scriptPath must resolve inside the document root or the cgi-bin directory.
func (e *Executor) Execute(ctx context.Context, scriptPath string, req Request) (Response, error) {
	absScript, err := filepath.Abs(scriptPath)
	if err != nil {
		return Response{}, pkgerrors.Wrap(err, pkgerrors.ScriptOutsideRoot)
	}
	if !insideRoot(absScript, e.documentRoot) && !insideRoot(absScript, e.cgiBinPath) {
		return Response{}, pkgerrors.Newf(pkgerrors.ScriptOutsideRoot, "script %s is outside the allowed roots", scriptPath)
	}

	env := BuildEnv(e.cfg, absScript, req)

	cmd := exec.Command(e.interpreter[0], e.interpreter[1:]...)
	cmd.Env = envSlice(env)
	cmd.Dir = filepath.Dir(absScript)
	cmd.SysProcAttr = sysProcAttr()
	if len(req.Body) > 0 {
		cmd.Stdin = bytes.NewReader(req.Body)
	}

	stdout := &limitedBuffer{max: e.cfg.MaxResponseSize}
	stderr := &limitedBuffer{max: e.cfg.StderrMaxBytes, silent: true}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Response{}, pkgerrors.Wrapf(err, pkgerrors.CgiSpawnFailed, "spawn %s failed", e.interpreter[0])
	}

	var timedOut atomic.Bool
	done := make(chan struct{})
	go func() {
		select {
		case <-time.After(e.cfg.Timeout):
			timedOut.Store(true)
			killProcessGroup(cmd.Process.Pid)
		case <-ctx.Done():
			killProcessGroup(cmd.Process.Pid)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)
	elapsed := time.Since(start)

	switch {
	case stdout.exceeded:
		killProcessGroup(cmd.Process.Pid)
		return Response{}, pkgerrors.Newf(pkgerrors.CgiResponseTooLarge,
			"script %s produced more than %d bytes", absScript, e.cfg.MaxResponseSize)

	case timedOut.Load():
		// Partial output is discarded, never returned.
		return Response{}, pkgerrors.Newf(pkgerrors.CgiTimeout,
			"script %s exceeded %s", absScript, e.cfg.Timeout).
			WithDetail("elapsed_ms", elapsed.Milliseconds())

	case ctx.Err() != nil:
		return Response{}, pkgerrors.Wrap(ctx.Err(), pkgerrors.CgiTimeout)
	}

	if sig, signaled := terminationSignal(cmd.ProcessState); signaled {
		return Response{}, pkgerrors.Newf(pkgerrors.CgiSignaled,
			"script %s terminated by signal %s", absScript, sig)
	}

	raw := stdout.buf.Bytes()
	if waitErr != nil {
		// A nonzero exit with a well-formed CGI response still counts; PHP
		// exits nonzero on some fatals after printing a usable error page.
		if resp, ok := wellFormed(raw); ok {
			logger.Warn(ctx, "cgi interpreter exited nonzero with parseable output",
				zap.String("script", absScript),
				zap.String("stderr", stderr.buf.String()),
			)
			return resp, nil
		}
		return Response{}, pkgerrors.Wrapf(waitErr, pkgerrors.CgiExitError,
			"script %s failed", absScript).
			WithDetail("stderr", stderr.buf.String())
	}

	if stderr.buf.Len() > 0 {
		logger.Debug(ctx, "cgi stderr", zap.String("script", absScript), zap.String("stderr", stderr.buf.String()))
	}
	return ParseOutput(raw), nil
}

// wellFormed reports whether raw contains a parseable CGI header block.
func wellFormed(raw []byte) (Response, bool) {
	header, _, found := splitHeadersBody(raw)
	if !found {
		return Response{}, false
	}
	if _, _, ok := parseHeaderBlock(header); !ok {
		return Response{}, false
	}
	return ParseOutput(raw), true
}

// limitedBuffer accumulates writes up to max bytes. In silent mode (stderr)
// excess bytes are dropped; otherwise the write fails so os/exec stops the
// pipe copy and the overflow is surfaced.
type limitedBuffer struct {
	buf      bytes.Buffer
	max      int64
	silent   bool
	exceeded bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	remaining := b.max - int64(b.buf.Len())
	if remaining <= 0 {
		b.exceeded = true
		if b.silent {
			return len(p), nil
		}
		return 0, errOutputLimit
	}
	if int64(len(p)) > remaining {
		b.exceeded = true
		if b.silent {
			_, _ = b.buf.Write(p[:remaining])
			return len(p), nil
		}
		return 0, errOutputLimit
	}
	return b.buf.Write(p)
}
