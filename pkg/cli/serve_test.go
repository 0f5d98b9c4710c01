package cli_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/contribview/pkg/cli"
)

func TestRun_ServeStopsWorkersWhenServerFails(t *testing.T) {
	// the port is taken, so ListenAndServe fails right after the workers started
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	gt.NoError(t, err).Required()
	defer ln.Close()

	configPath := writeFile(t, t.TempDir(), "config.toml", `
[[integration]]
id = "slack-main"
name = "Main workspace"
service = "slack"
team = "platform"
`)

	done := make(chan error, 1)
	go func() {
		done <- cli.Run(context.Background(), []string{
			"contribview", "serve",
			"--addr", ln.Addr().String(),
			"--repository-backend", "memory",
			"--config", configPath,
			"--sync-interval", "1h",
		}, "test")
	}()

	select {
	case err := <-done:
		gt.Value(t, err).NotNil()
		gt.String(t, err.Error()).Contains("failed to start server")
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after the server failed")
	}
}
