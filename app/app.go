package app

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/honeycombio/flowmeter/config"
	"github.com/honeycombio/flowmeter/internal/health"
	"github.com/honeycombio/flowmeter/logger"
	"github.com/honeycombio/flowmeter/route"
)

// heartbeatInterval is how often the app proves to the health system that its
// main goroutines are still running.
const heartbeatInterval = 3 * time.Second

type App struct {
	Config config.Config   `inject:""`
	Logger logger.Logger   `inject:""`
	Router *route.Router   `inject:""`
	Health health.Recorder `inject:""`
	Clock  clockwork.Clock `inject:""`

	// Version is the build ID so that the running process may answer requests
	// for the version
	Version string `inject:"version"`

	done chan struct{}
}

// Start launches the router and the background goroutines; it does not block.
// Call WaitForShutdown to block until a termination signal arrives.
func (a *App) Start() error {
	a.Logger.Debug().Logf("Starting up App...")

	a.done = make(chan struct{})

	a.Health.Register("app", 5*heartbeatInterval)
	a.Health.Ready("app", true)
	go a.heartbeat()

	// reload configs on USR1
	sigsToReload := make(chan os.Signal, 1)
	signal.Notify(sigsToReload, syscall.SIGUSR1)
	go a.listenForReload(sigsToReload)

	a.Router.SetVersion(a.Version)
	go a.Router.LnS()

	return nil
}

// WaitForShutdown blocks until the process receives SIGINT or SIGTERM.
func (a *App) WaitForShutdown() {
	sigsToExit := make(chan os.Signal, 1)
	signal.Notify(sigsToExit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigsToExit
	a.Logger.Warn().Logf("Caught signal \"%s\", shutting down", sig)
}

func (a *App) heartbeat() {
	tick := a.Clock.NewTicker(heartbeatInterval)
	defer tick.Stop()
	for {
		select {
		case <-tick.Chan():
			a.Health.Ready("app", true)
		case <-a.done:
			return
		}
	}
}

func (a *App) listenForReload(sigs chan os.Signal) {
	for {
		select {
		case sig := <-sigs:
			a.Logger.Debug().Logf("Caught signal \"%s\"; reloading configs", sig)
			if err := a.Config.Reload(); err != nil {
				a.Logger.Error().Logf("failed to reload configs: %s", err)
			}
		case <-a.done:
			return
		}
	}
}

func (a *App) Stop() error {
	a.Logger.Debug().Logf("Shutting down App...")
	a.Health.Ready("app", false)
	close(a.done)
	return nil
}
