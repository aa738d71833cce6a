package synth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

const (
	DefaultEngineImage         = "artibex/piper-http:latest"
	DefaultEngineContainerName = "lectern-piper"
	DefaultEnginePort          = "5000"
	EngineContainerPort        = "5000/tcp"
	EngineVoicesDir            = "/voices"
	EngineLabel                = "lectern-engine"
)

// ContainerStatus represents the state of the engine container.
type ContainerStatus string

const (
	StatusRunning  ContainerStatus = "running"
	StatusStopped  ContainerStatus = "stopped"
	StatusNotFound ContainerStatus = "not_found"
	StatusStarting ContainerStatus = "starting"
)

// EngineContainer manages the piper-http Docker container lifecycle. The
// container serves the HTTP engine contract on the bound host port.
type EngineContainer struct {
	cli           *client.Client
	containerName string
	imageName     string
	voicesPath    string            // Host path with .onnx voice models (~/.lectern/voices)
	voice         string            // Model served by the container
	hostPort      string            // Host port to bind (default: 5000)
	labels        map[string]string // Container labels
}

// EngineContainerConfig holds configuration for the container manager.
type EngineContainerConfig struct {
	ContainerName string
	Image         string
	VoicesPath    string
	Voice         string
	Port          string
	Labels        map[string]string // Optional labels for container (used for test cleanup)
}

// NewEngineContainer creates a Docker manager for the synthesis engine.
func NewEngineContainer(cfg EngineContainerConfig) (*EngineContainer, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	if cfg.ContainerName == "" {
		cfg.ContainerName = DefaultEngineContainerName
	}
	if cfg.Image == "" {
		cfg.Image = DefaultEngineImage
	}
	if cfg.Port == "" {
		cfg.Port = DefaultEnginePort
	}

	labels := map[string]string{EngineLabel: "true"}
	for k, v := range cfg.Labels {
		labels[k] = v
	}

	return &EngineContainer{
		cli:           cli,
		containerName: cfg.ContainerName,
		imageName:     cfg.Image,
		voicesPath:    cfg.VoicesPath,
		voice:         cfg.Voice,
		hostPort:      cfg.Port,
		labels:        labels,
	}, nil
}

// Close closes the Docker client.
func (m *EngineContainer) Close() error {
	return m.cli.Close()
}

// Start starts the engine container, creating it first if needed.
func (m *EngineContainer) Start(ctx context.Context) error {
	if _, err := m.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker is not running: %w", err)
	}

	status, containerID, err := m.getContainerStatus(ctx)
	if err != nil {
		return err
	}

	switch status {
	case StatusRunning:
		return nil
	case StatusStopped:
		if err := m.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
			return fmt.Errorf("failed to start existing container: %w", err)
		}
		return m.waitForReady(ctx, 30*time.Second)
	case StatusNotFound:
		return m.createAndStart(ctx)
	default:
		return fmt.Errorf("container in unexpected state: %s", status)
	}
}

// Stop stops the engine container.
func (m *EngineContainer) Stop(ctx context.Context) error {
	status, containerID, err := m.getContainerStatus(ctx)
	if err != nil {
		return err
	}

	if status == StatusNotFound {
		return nil
	}

	timeout := 10
	if err := m.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}

	return nil
}

// Remove stops and removes the engine container.
func (m *EngineContainer) Remove(ctx context.Context) error {
	status, containerID, err := m.getContainerStatus(ctx)
	if err != nil {
		return err
	}

	if status == StatusNotFound {
		return nil
	}

	if status == StatusRunning {
		if err := m.Stop(ctx); err != nil {
			return err
		}
	}

	if err := m.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}

	return nil
}

// Status returns the current status of the engine container.
func (m *EngineContainer) Status(ctx context.Context) (ContainerStatus, error) {
	status, _, err := m.getContainerStatus(ctx)
	return status, err
}

// Logs returns the container logs.
func (m *EngineContainer) Logs(ctx context.Context, tail string) (string, error) {
	status, containerID, err := m.getContainerStatus(ctx)
	if err != nil {
		return "", err
	}

	if status == StatusNotFound {
		return "", fmt.Errorf("container not found")
	}

	logs, err := m.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       tail,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get logs: %w", err)
	}
	defer logs.Close()

	logBytes, err := io.ReadAll(logs)
	if err != nil {
		return "", fmt.Errorf("failed to read logs: %w", err)
	}

	return string(logBytes), nil
}

// URL returns the engine server URL on the host.
func (m *EngineContainer) URL() string {
	return fmt.Sprintf("http://localhost:%s", m.hostPort)
}

// ValidateExisting checks that an existing container matches the configured
// port and voices mount. Returns nil when compatible.
func (m *EngineContainer) ValidateExisting(ctx context.Context) error {
	status, containerID, err := m.getContainerStatus(ctx)
	if err != nil {
		return err
	}
	if status == StatusNotFound {
		return nil
	}

	info, err := m.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return fmt.Errorf("failed to inspect container: %w", err)
	}

	bindings := info.HostConfig.PortBindings[EngineContainerPort]
	if len(bindings) == 0 {
		return fmt.Errorf("existing container has no port binding for %s", EngineContainerPort)
	}
	boundPort := bindings[0].HostPort
	if boundPort != m.hostPort {
		return fmt.Errorf("existing container bound to port %s, expected %s", boundPort, m.hostPort)
	}

	if m.voicesPath != "" {
		foundMount := false
		for _, mnt := range info.Mounts {
			if mnt.Destination == EngineVoicesDir {
				if mnt.Source != m.voicesPath {
					return fmt.Errorf("existing container mounts %s, expected %s", mnt.Source, m.voicesPath)
				}
				foundMount = true
				break
			}
		}
		if !foundMount {
			return fmt.Errorf("existing container has no mount for %s", EngineVoicesDir)
		}
	}

	return nil
}

// WaitReady waits for the engine server to answer HTTP requests.
func (m *EngineContainer) WaitReady(ctx context.Context, timeout time.Duration) error {
	return m.waitForReady(ctx, timeout)
}

// createAndStart creates and starts a new engine container.
func (m *EngineContainer) createAndStart(ctx context.Context) error {
	if err := m.ensureImage(ctx); err != nil {
		return err
	}

	containerConfig := &container.Config{
		Image:  m.imageName,
		Labels: m.labels,
		ExposedPorts: nat.PortSet{
			EngineContainerPort: struct{}{},
		},
	}
	if m.voice != "" {
		containerConfig.Env = []string{
			fmt.Sprintf("MODEL=%s/%s.onnx", EngineVoicesDir, m.voice),
		}
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			EngineContainerPort: []nat.PortBinding{
				{HostIP: "127.0.0.1", HostPort: m.hostPort},
			},
		},
	}

	if m.voicesPath != "" {
		hostConfig.Mounts = []mount.Mount{
			{
				Type:     mount.TypeBind,
				Source:   m.voicesPath,
				Target:   EngineVoicesDir,
				ReadOnly: true,
			},
		}
	}

	resp, err := m.cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, m.containerName)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	if err := m.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = m.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return fmt.Errorf("failed to start container: %w", err)
	}

	return m.waitForReady(ctx, 30*time.Second)
}

// getContainerStatus returns the status and ID of the container.
func (m *EngineContainer) getContainerStatus(ctx context.Context) (ContainerStatus, string, error) {
	filterArgs := filters.NewArgs()
	filterArgs.Add("name", m.containerName)

	containers, err := m.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to list containers: %w", err)
	}

	if len(containers) == 0 {
		return StatusNotFound, "", nil
	}

	c := containers[0]
	switch c.State {
	case "running":
		return StatusRunning, c.ID, nil
	case "exited", "dead":
		return StatusStopped, c.ID, nil
	case "created", "restarting":
		return StatusStarting, c.ID, nil
	default:
		return ContainerStatus(c.State), c.ID, nil
	}
}

// waitForReady polls the engine server until it answers. Any HTTP response
// counts as ready; the server returns 404 for GET / but is still serving.
func (m *EngineContainer) waitForReady(ctx context.Context, timeout time.Duration) error {
	httpClient := &http.Client{Timeout: 2 * time.Second}
	url := m.URL() + "/"

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
			if err != nil {
				return err
			}
			resp, err := httpClient.Do(req)
			if err != nil {
				return err
			}
			_ = resp.Body.Close()
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(timeout.Seconds())),
		retry.Delay(1*time.Second),
	)
}

// ensureImage pulls the engine image if not present.
func (m *EngineContainer) ensureImage(ctx context.Context) error {
	_, err := m.cli.ImageInspect(ctx, m.imageName)
	if err == nil {
		return nil
	}

	reader, err := m.cli.ImagePull(ctx, m.imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}
