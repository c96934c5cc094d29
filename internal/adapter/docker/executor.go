package docker

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/aegislabs/aegis/internal/domain"
)

// gatewayPort is the port the agent gateway listens on inside the
// tenant container.
const gatewayPort = 8080

// Client is the subset of Docker operations the executor uses. Narrow
// on purpose so tests can fake it.
type Client interface {
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	NetworkInspect(ctx context.Context, networkID string, options network.InspectOptions) (network.Inspect, error)
	NetworkCreate(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
}

// ExecutorConfig configures the Docker step executor.
type ExecutorConfig struct {
	// Client is the Docker API client. Defaults to one built from the
	// environment with API version negotiation.
	Client Client
	// Image is the tenant runtime image to provision.
	Image string
}

func (c *ExecutorConfig) defaults() error {
	if c.Client == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return fmt.Errorf("creating docker client: %w", err)
		}
		c.Client = cli
	}
	if c.Image == "" {
		return fmt.Errorf("tenant image is required")
	}
	return nil
}

// Executor implements domain.StepExecutor against the Docker API. Every
// step self-checks before acting, so re-invoking a step for the same
// tenant is safe: the orchestrator retries in place and provides no
// rollback.
type Executor struct {
	client Client
	image  string
}

// Compile-time check: Executor implements domain.StepExecutor.
var _ domain.StepExecutor = (*Executor)(nil)

// NewExecutor creates a Docker-backed step executor.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Executor{client: cfg.Client, image: cfg.Image}, nil
}

// Execute performs one provisioning step for a tenant.
func (e *Executor) Execute(ctx context.Context, tenant domain.Tenant, step domain.Step) (domain.StepResult, error) {
	switch step {
	case domain.StepCreatingNamespace:
		return domain.StepResult{}, e.createNamespace(ctx, tenant)
	case domain.StepConfiguring:
		return e.configure(ctx, tenant)
	case domain.StepHealthCheck:
		return domain.StepResult{}, e.healthCheck(ctx, tenant)
	default:
		return domain.StepResult{}, fmt.Errorf("unknown provisioning step %q", step)
	}
}

func networkName(tenant domain.Tenant) string {
	return "aegis-net-" + strings.ToLower(tenant.ID)
}

func containerName(tenant domain.Tenant) string {
	return "aegis-" + strings.ToLower(tenant.ID)
}

// createNamespace allocates the tenant's isolated bridge network.
func (e *Executor) createNamespace(ctx context.Context, tenant domain.Tenant) error {
	name := networkName(tenant)

	// Already there from a previous attempt: done.
	if _, err := e.client.NetworkInspect(ctx, name, network.InspectOptions{}); err == nil {
		return nil
	} else if !client.IsErrNotFound(err) {
		return fmt.Errorf("inspecting network %s: %w", name, err)
	}

	_, err := e.client.NetworkCreate(ctx, name, network.CreateOptions{
		Driver: "bridge",
		Labels: map[string]string{
			"aegis.tenant.id":   tenant.ID,
			"aegis.tenant.slug": tenant.Slug,
		},
	})
	if err != nil {
		return fmt.Errorf("creating network %s: %w", name, err)
	}
	return nil
}

// configure pulls the tenant image and creates and starts the tenant
// container with the requested resource limits.
func (e *Executor) configure(ctx context.Context, tenant domain.Tenant) (domain.StepResult, error) {
	name := containerName(tenant)
	endpoint := fmt.Sprintf("http://%s:%d", name, gatewayPort)

	// Previous attempt may have left the container in any state.
	inspect, err := e.client.ContainerInspect(ctx, name)
	switch {
	case err == nil && inspect.State != nil && inspect.State.Running:
		return domain.StepResult{Endpoint: endpoint}, nil
	case err == nil:
		if err := e.client.ContainerStart(ctx, inspect.ID, container.StartOptions{}); err != nil {
			return domain.StepResult{}, fmt.Errorf("starting container %s: %w", name, err)
		}
		return domain.StepResult{Endpoint: endpoint}, nil
	case !client.IsErrNotFound(err):
		return domain.StepResult{}, fmt.Errorf("inspecting container %s: %w", name, err)
	}

	pull, err := e.client.ImagePull(ctx, e.image, image.PullOptions{})
	if err != nil {
		return domain.StepResult{}, fmt.Errorf("pulling image %s: %w", e.image, err)
	}
	// Consume the pull response to ensure it completes.
	_, _ = io.Copy(io.Discard, pull)
	pull.Close()

	created, err := e.client.ContainerCreate(ctx,
		&container.Config{
			Image: e.image,
			Env: []string{
				"AEGIS_TENANT_ID=" + tenant.ID,
				"AEGIS_TENANT_SLUG=" + tenant.Slug,
				"AEGIS_TENANT_PLAN=" + tenant.Plan,
			},
			Labels: map[string]string{
				"aegis.tenant.id":      tenant.ID,
				"aegis.tenant.slug":    tenant.Slug,
				"aegis.tenant.disk_gb": fmt.Sprintf("%d", tenant.Limits.DiskGB),
			},
		},
		&container.HostConfig{
			Resources: container.Resources{
				NanoCPUs: int64(tenant.Limits.CPUCores) * 1e9,
				Memory:   int64(tenant.Limits.MemoryMB) * 1024 * 1024,
			},
			RestartPolicy: container.RestartPolicy{
				Name: container.RestartPolicyUnlessStopped,
			},
		},
		&network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{
				networkName(tenant): {},
			},
		},
		nil, name,
	)
	if err != nil {
		return domain.StepResult{}, fmt.Errorf("creating container %s: %w", name, err)
	}

	if err := e.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return domain.StepResult{}, fmt.Errorf("starting container %s: %w", name, err)
	}

	return domain.StepResult{Endpoint: endpoint}, nil
}

// healthCheck verifies the tenant runtime is up. Containers with a
// HEALTHCHECK must report healthy; without one, running is enough.
// "starting" is an error so the orchestrator's retry backoff gives the
// runtime time to settle.
func (e *Executor) healthCheck(ctx context.Context, tenant domain.Tenant) error {
	name := containerName(tenant)

	inspect, err := e.client.ContainerInspect(ctx, name)
	if err != nil {
		return fmt.Errorf("inspecting container %s: %w", name, err)
	}
	if inspect.State == nil || !inspect.State.Running {
		return fmt.Errorf("container %s is not running", name)
	}
	if inspect.State.Health != nil && inspect.State.Health.Status != "healthy" {
		return fmt.Errorf("container %s health is %q", name, inspect.State.Health.Status)
	}
	return nil
}
