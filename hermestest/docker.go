package hermestest

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"testing"

	"github.com/ory/dockertest"
)

// DockerServiceConfig describes a container that backs an integration test
// and how to build a client for it once it accepts connections.
type DockerServiceConfig[T any] struct {
	DockerImage    string
	DockerImageTag string
	InternalPort   int
	Environment    map[string]string
	Builder        func(host string, port int) (T, error)
}

func (config DockerServiceConfig[T]) Env() []string {
	env := []string{}
	for key, value := range config.Environment {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}

	sort.Strings(env)

	return env
}

// GetDockerService starts the container, retries Builder until it succeeds
// and purges the container when the test ends. Skipped under -short.
func GetDockerService[T any](
	t *testing.T,
	config DockerServiceConfig[T],
) T {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping docker backed test in short mode.")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("Could not construct pool: %s", err)
	}

	if err := pool.Client.Ping(); err != nil {
		t.Fatalf("Could not connect to Docker: %s", err)
	}

	resource, err := pool.Run(
		config.DockerImage,
		config.DockerImageTag,
		config.Env(),
	)
	if err != nil {
		t.Fatalf("Could not start %s:%s: %s", config.DockerImage, config.DockerImageTag, err)
	}

	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Errorf("Could not purge %s: %s", config.DockerImage, err)
		}
	})

	host, port, err := serviceAddress(resource.GetHostPort(fmt.Sprintf("%d/tcp", config.InternalPort)))
	if err != nil {
		t.Fatalf("Error parsing docker address: %s", err)
	}

	var service T
	if err := pool.Retry(func() error {
		var err error
		service, err = config.Builder(host, port)

		return err
	}); err != nil {
		t.Fatalf("Could not connect to %s: %s", config.DockerImage, err)
	}

	return service
}

// serviceAddress returns the mapped host port, reached through the
// DOCKER_HOST machine when one is configured.
func serviceAddress(hostPort string) (string, int, error) {
	mapped, err := url.Parse("tcp://" + hostPort)
	if err != nil {
		return "", 0, err
	}

	port, err := strconv.Atoi(mapped.Port())
	if err != nil {
		return "", 0, err
	}

	host := mapped.Hostname()
	if dockerURL := os.Getenv("DOCKER_HOST"); dockerURL != "" {
		daemon, err := url.Parse(dockerURL)
		if err != nil {
			return "", 0, err
		}

		if daemon.Hostname() != "" {
			host = daemon.Hostname()
		}
	}

	return host, port, nil
}
