package container

import (
	"context"
	"fmt"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
)

const dnsPort = nat.Port("53/udp")

// DockerRuntime starts server containers through testcontainers. Containers
// left over from an earlier process under the same name are removed first.
type DockerRuntime struct {
	docker *client.Client
}

func NewDockerRuntime() (*DockerRuntime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &DockerRuntime{docker: cli}, nil
}

func (r *DockerRuntime) Run(ctx context.Context, spec Spec) (ServerContainer, error) {
	if err := r.docker.ContainerRemove(ctx, spec.Name, container.RemoveOptions{Force: true}); err != nil && !client.IsErrNotFound(err) {
		return nil, fmt.Errorf("remove stale container %s: %w", spec.Name, err)
	}

	req := testcontainers.ContainerRequest{
		Image:              spec.Image,
		Name:               spec.Name,
		ExposedPorts:       []string{string(dnsPort)},
		HostConfigModifier: PortBinding(spec.HostPort),
	}
	return testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
}

func (r *DockerRuntime) Close() error {
	return r.docker.Close()
}

// PortBinding publishes the container's DNS port on hostPort.
func PortBinding(hostPort int) func(*container.HostConfig) {
	return func(hc *container.HostConfig) {
		hc.PortBindings = nat.PortMap{
			dnsPort: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: strconv.Itoa(hostPort)}},
		}
	}
}
