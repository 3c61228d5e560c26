package action

import (
	"context"
	"net/http"
	"strings"

	"github.com/sweeney/door-monitor/internal/config"
	"github.com/sweeney/door-monitor/internal/logger"
)

// TestHandler stands in for the remote devices while wiring up a site. It
// answers 200 on "/" and on "/<action>" for every defined action, 404 for
// anything else.
func TestHandler(ctx context.Context, defs config.Actions) http.Handler {
	ctx = logger.WithName(ctx, "action-server")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.Trim(r.URL.Path, "/")
		if name == "" {
			logger.Info(ctx, "Received root")
			w.WriteHeader(http.StatusOK)
			return
		}
		if _, ok := defs[name]; !ok {
			logger.WarnKV(ctx, "Received unknown action", "action", name)
			http.NotFound(w, r)
			return
		}
		logger.InfoKV(ctx, "Received action", "action", name)
		w.WriteHeader(http.StatusOK)
	})
}
