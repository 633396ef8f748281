package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/poyrazK/dnsdiff/internal/core/domain"
	"github.com/poyrazK/dnsdiff/internal/core/ports"
)

const (
	DefaultTag = ":oct"
	LatestTag  = ":latest"
)

// portBase is multiplied by the run id to get the host port, so that
// several runs can share one docker host.
var portBase = map[string]int{
	"bind":     8000,
	"nsd":      8100,
	"knot":     8200,
	"powerdns": 8300,
	"yadifa":   8400,
	"coredns":  8500,
	"maradns":  8600,
	"trustdns": 8700,
}

// Implementations lists the supported implementations in port order.
func Implementations() []string {
	names := make([]string, 0, len(portBase))
	for name := range portBase {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return portBase[names[i]] < portBase[names[j]] })
	return names
}

func ContainerName(runID int, impl string) string {
	return fmt.Sprintf("%d_%s_server", runID, impl)
}

func HostPort(impl string, runID int) (int, error) {
	base, ok := portBase[impl]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnknownImplementation, impl)
	}
	return base * runID, nil
}

// Registry resolves implementation names to drivers once per process.
type Registry struct {
	runtime Runtime
	runID   int
	tag     string
	logger  *slog.Logger
	drivers map[string]*Driver
}

func NewRegistry(runtime Runtime, runID int, latest bool, logger *slog.Logger) *Registry {
	tag := DefaultTag
	if latest {
		tag = LatestTag
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{runtime: runtime, runID: runID, tag: tag, logger: logger, drivers: make(map[string]*Driver)}
}

// Targets builds the targets for names, keeping their order.
func (r *Registry) Targets(names []string) ([]ports.Target, error) {
	targets := make([]ports.Target, 0, len(names))
	for _, name := range names {
		variant, ok := LookupVariant(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownImplementation, name)
		}
		port, err := HostPort(name, r.runID)
		if err != nil {
			return nil, err
		}
		d, ok := r.drivers[name]
		if !ok {
			d = NewDriver(variant, r.tag, r.runtime, r.logger)
			r.drivers[name] = d
		}
		targets = append(targets, ports.Target{
			Name:      name,
			Port:      port,
			Container: ContainerName(r.runID, name),
			Driver:    d,
		})
	}
	return targets, nil
}

// Stop terminates the containers of every driver handed out.
func (r *Registry) Stop(ctx context.Context) error {
	var errs []error
	for _, d := range r.drivers {
		if err := d.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
