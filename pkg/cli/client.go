package cli

import (
	"io"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/cli/config"
	"github.com/secmon-lab/contribview/pkg/domain/interfaces"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/service/backend"
	"github.com/secmon-lab/contribview/pkg/service/notify"
	"github.com/urfave/cli/v3"
)

// output receives command results; tests replace it
var output io.Writer = os.Stdout

// clientEnv is what every backend client command needs
type clientEnv struct {
	backend  *backend.Client
	notifier interfaces.Notifier
	out      io.Writer
}

// clientFlags bundles the flags shared by client commands
type clientFlags struct {
	client config.Client
	slack  config.Slack
}

func (f *clientFlags) Flags() []cli.Flag {
	flags := f.client.Flags()
	return append(flags, f.slack.Flags()...)
}

func (f *clientFlags) configure() (*clientEnv, error) {
	client, err := f.client.Configure()
	if err != nil {
		return nil, err
	}

	notifiers := notify.Multi{notify.NewConsole(output)}
	svc, err := f.slack.Configure()
	if err != nil {
		return nil, err
	}
	if n := f.slack.Notifier(svc); n != nil {
		notifiers = append(notifiers, n)
	}

	return &clientEnv{
		backend:  client,
		notifier: notifiers,
		out:      output,
	}, nil
}

// resolveResources maps each ref (resource ID, external ID or name) to a resource ID
func resolveResources(resources []*model.Resource, refs []string) ([]model.ResourceID, error) {
	ids := make([]model.ResourceID, 0, len(refs))
	var unknown []string

	for _, ref := range refs {
		ref = strings.TrimPrefix(strings.TrimSpace(ref), "#")
		var found *model.Resource
		for _, r := range resources {
			if string(r.ID) == ref || r.ExternalID == ref || r.Name == ref {
				found = r
				break
			}
		}
		if found == nil {
			unknown = append(unknown, ref)
			continue
		}
		ids = append(ids, found.ID)
	}

	if len(unknown) > 0 {
		return nil, goerr.New("unknown resources", goerr.V("refs", unknown))
	}
	return ids, nil
}
