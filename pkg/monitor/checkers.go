package monitor

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
)

// Pinger is satisfied by backends exposing a Ping probe, such as the
// Postgres state store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck returns a CheckFunc probing p.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// HTTPCheck returns a CheckFunc issuing a HEAD request to url with client.
// Any completed response counts as reachable; only transport errors fail
// the probe.
func HTTPCheck(client *http.Client, url string) CheckFunc {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return errors.Wrap(err, "build request")
		}
		resp, err := client.Do(req)
		if err != nil {
			return errors.Wrapf(err, "reach %s", url)
		}
		return resp.Body.Close()
	}
}
