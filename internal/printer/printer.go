package printer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"printkiosk/internal/config"
)

// ErrUnsafePath is returned for paths the SMB client's command parser would split or misread.
var ErrUnsafePath = errors.New("unsafe print path")

const maxOutput = 2048

// Runner executes name with args and returns its combined stdout and stderr.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command directly, without a shell.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Result is what one invocation of the SMB client produced.
// ExitCode is -1 when the process never ran or was killed.
type Result struct {
	ExitCode int
	Output   string
	Err      error
}

// OK reports whether the job reached the share.
func (r Result) OK() bool {
	return r.Err == nil
}

// Option customises a Bridge.
type Option func(*Bridge)

// WithRunner replaces the process runner, mostly for tests.
func WithRunner(r Runner) Option {
	return func(b *Bridge) { b.run = r }
}

// Bridge forwards local files to a network printer share through smbclient.
type Bridge struct {
	cfg     config.PrinterConfig
	timeout time.Duration
	run     Runner
	jobs    *prometheus.CounterVec
	tracer  trace.Tracer
}

// NewBridge creates a print bridge and registers its job counter on reg.
func NewBridge(cfg config.PrinterConfig, reg prometheus.Registerer, opts ...Option) (*Bridge, error) {
	if cfg.Binary == "" {
		return nil, fmt.Errorf("printer binary is required")
	}
	if cfg.Host == "" || cfg.Share == "" {
		return nil, fmt.Errorf("printer host and share are required")
	}

	b := &Bridge{
		cfg:     cfg,
		timeout: cfg.PrintTimeout(),
		run:     ExecRunner,
		jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiosk_print_jobs_total",
				Help: "Print jobs handed to the SMB client, by result.",
			},
			[]string{"result"},
		),
		tracer: otel.Tracer("printkiosk/internal/printer"),
	}
	for _, opt := range opts {
		opt(b)
	}

	if err := reg.Register(b.jobs); err != nil {
		return nil, err
	}
	return b, nil
}

// Service is the UNC share path, e.g. //host.docker.internal/ShopPrinter.
func (b *Bridge) Service() string {
	return "//" + b.cfg.Host + "/" + b.cfg.Share
}

// Args builds the SMB client argument vector for path.
func (b *Bridge) Args(path string) ([]string, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	return []string{
		b.Service(),
		"-U", b.cfg.User + "%" + b.cfg.Password,
		"-c", `print "` + path + `"`,
	}, nil
}

// Print sends path to the printer share and waits for the client to exit or the
// job timeout to pass. The outcome is always returned, never swallowed.
func (b *Bridge) Print(ctx context.Context, path string) Result {
	ctx, span := b.tracer.Start(ctx, "printer.Print",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("print.file", path),
			attribute.String("print.share", b.Service()),
		),
	)
	defer span.End()

	res := b.print(ctx, path)

	span.SetAttributes(attribute.Int("print.exit_code", res.ExitCode))
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, "print failed")
		b.jobs.WithLabelValues("failed").Inc()
	} else {
		b.jobs.WithLabelValues("sent").Inc()
	}
	return res
}

func (b *Bridge) print(ctx context.Context, path string) Result {
	args, err := b.Args(path)
	if err != nil {
		return Result{ExitCode: -1, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	out, err := b.run(ctx, b.cfg.Binary, args...)
	res := Result{Output: truncate(strings.TrimSpace(string(out)))}
	if err == nil {
		return res
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.ExitCode = -1
		res.Err = fmt.Errorf("print timed out after %s: %w", b.timeout, context.DeadlineExceeded)
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		res.Err = fmt.Errorf("%s exited with status %d", b.cfg.Binary, res.ExitCode)
	default:
		res.ExitCode = -1
		res.Err = fmt.Errorf("run %s: %w", b.cfg.Binary, err)
	}
	return res
}

// checkPath rejects characters that smbclient -c would treat as command syntax.
func checkPath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty", ErrUnsafePath)
	}
	if strings.ContainsAny(path, `";`) {
		return fmt.Errorf("%w: %q", ErrUnsafePath, path)
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character in %q", ErrUnsafePath, path)
		}
	}
	return nil
}

func truncate(s string) string {
	if len(s) <= maxOutput {
		return s
	}
	cut := maxOutput
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
