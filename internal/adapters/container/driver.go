package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/poyrazK/dnsdiff/internal/core/ports"
	"github.com/testcontainers/testcontainers-go"
	tcexec "github.com/testcontainers/testcontainers-go/exec"
)

// DefaultRetryPause is the pause before a Command with Retry runs again.
const DefaultRetryPause = 2 * time.Second

// ServerContainer is the part of testcontainers.Container the driver uses.
type ServerContainer interface {
	CopyToContainer(ctx context.Context, fileContent []byte, containerFilePath string, fileMode int64) error
	Exec(ctx context.Context, cmd []string, options ...tcexec.ProcessOption) (int, io.Reader, error)
	Terminate(ctx context.Context, opts ...testcontainers.TerminateOption) error
}

// Spec describes a server container to create.
type Spec struct {
	Name     string
	Image    string
	HostPort int
}

// Runtime creates started server containers.
type Runtime interface {
	Run(ctx context.Context, spec Spec) (ServerContainer, error)
}

// Driver implements ports.ServerDriver for one server product.
type Driver struct {
	variant    Variant
	tag        string
	runtime    Runtime
	logger     *slog.Logger
	retryPause time.Duration

	mu         sync.Mutex
	containers map[string]ServerContainer
}

var _ ports.ServerDriver = (*Driver)(nil)

func NewDriver(variant Variant, tag string, runtime Runtime, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		variant:    variant,
		tag:        tag,
		runtime:    runtime,
		logger:     logger.With("implementation", variant.Name),
		retryPause: DefaultRetryPause,
		containers: make(map[string]ServerContainer),
	}
}

func (d *Driver) Image() string {
	return d.variant.Image + d.tag
}

// EnsureServing loads req.ZoneFile into the server. A new container is
// created when forced or when none exists yet; otherwise the running server
// is stopped and restarted on the new zone.
func (d *Driver) EnsureServing(ctx context.Context, req ports.ServeRequest) error {
	zone, err := os.ReadFile(req.ZoneFile)
	if err != nil {
		return fmt.Errorf("read zone file: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.containers[req.Container]
	if req.ForceRestart || !ok {
		if ok {
			if errTerm := c.Terminate(ctx); errTerm != nil {
				d.logger.Warn("failed to terminate container", "container", req.Container, "error", errTerm)
			}
			delete(d.containers, req.Container)
		}
		c, err = d.runtime.Run(ctx, Spec{Name: req.Container, Image: d.Image(), HostPort: req.Port})
		if err != nil {
			return fmt.Errorf("start %s: %w", req.Container, err)
		}
		d.containers[req.Container] = c
	} else if err := d.run(ctx, c, d.variant.Stop); err != nil {
		return err
	}

	zoneName := filepath.Base(req.ZoneFile)
	if err := c.CopyToContainer(ctx, zone, path.Join(d.variant.ZoneDir, zoneName), 0o644); err != nil {
		return fmt.Errorf("copy zone file: %w", err)
	}
	mode := d.variant.ConfigMode
	if mode == 0 {
		mode = 0o644
	}
	config := d.variant.Config(req.Origin, zoneName)
	if err := c.CopyToContainer(ctx, []byte(config), d.variant.ConfigPath, mode); err != nil {
		return fmt.Errorf("copy config: %w", err)
	}
	return d.run(ctx, c, d.variant.Start(zoneName))
}

// run executes cmds in order. Non-zero exits are logged; only failures to
// execute at all are returned.
func (d *Driver) run(ctx context.Context, c ServerContainer, cmds []Command) error {
	for _, cmd := range cmds {
		code, out, err := c.Exec(ctx, cmd.Args, tcexec.Multiplexed())
		if err != nil {
			return fmt.Errorf("exec %v: %w", cmd.Args, err)
		}
		if code != 0 && cmd.Retry {
			select {
			case <-time.After(d.retryPause):
			case <-ctx.Done():
				return ctx.Err()
			}
			code, out, err = c.Exec(ctx, cmd.Args, tcexec.Multiplexed())
			if err != nil {
				return fmt.Errorf("exec %v: %w", cmd.Args, err)
			}
		}
		if code != 0 {
			d.logger.Debug("command exited non-zero", "cmd", cmd.Args, "code", code, "output", readAll(out))
		}
	}
	return nil
}

func readAll(r io.Reader) string {
	if r == nil {
		return ""
	}
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	return string(b)
}

// Stop terminates every container the driver started.
func (d *Driver) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for name, c := range d.containers {
		if err := c.Terminate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("terminate %s: %w", name, err))
		}
		delete(d.containers, name)
	}
	return errors.Join(errs...)
}
