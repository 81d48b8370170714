package harness_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixturelabs/appharness/pkg/app"
	"github.com/fixturelabs/appharness/pkg/command"
	"github.com/fixturelabs/appharness/pkg/config"
	"github.com/fixturelabs/appharness/pkg/echo"
	"github.com/fixturelabs/appharness/pkg/harness"
)

const echoConfigPath = "testdata/echo.yaml"

func newEchoHarness(t *testing.T, opts ...harness.Option[echo.Config]) *harness.Harness[echo.Config] {
	t.Helper()
	opts = append([]harness.Option[echo.Config]{harness.WithConfigPath[echo.Config](echoConfigPath)}, opts...)
	h, err := harness.New(echo.New, opts...)
	require.NoError(t, err)
	return h
}

func mustPort(t *testing.T) func(int, error) int {
	t.Helper()
	return func(port int, err error) int {
		t.Helper()
		require.NoError(t, err)
		require.NotZero(t, port)
		return port
	}
}

func TestHarnessLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newEchoHarness(t)

	require.NoError(t, h.Before(ctx))
	defer h.After(ctx)

	assert.Equal(t, harness.StateRunning, h.State())

	port := mustPort(t)
	localPort := port(h.LocalPort())
	adminPort := port(h.AdminPort())
	assert.NotEqual(t, localPort, adminPort)

	firstPort, err := h.Port(0)
	require.NoError(t, err)
	assert.Equal(t, localPort, firstPort)

	resp, err := http.Post(
		fmt.Sprintf("http://127.0.0.1:%d/echo", localPort),
		"text/plain",
		strings.NewReader("world"),
	)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	health, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/healthcheck", adminPort))
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)

	cfg, err := h.Configuration()
	require.NoError(t, err)
	assert.Equal(t, "hello", cfg.Greeting)

	env, err := h.Environment()
	require.NoError(t, err)
	assert.NotNil(t, env.Lifecycle())

	application, err := h.Application()
	require.NoError(t, err)
	echoApp, ok := application.(*echo.Application)
	require.True(t, ok)
	assert.True(t, echoApp.Running())
	assert.EqualValues(t, 1, echoApp.Echoed())

	require.NoError(t, h.After(ctx))
	assert.Equal(t, harness.StateIdle, h.State())
	assert.False(t, echoApp.Running())

	// Runtime accessors fail once idle; the application instance survives.
	var stateErr *harness.StateError
	_, err = h.LocalPort()
	require.ErrorAs(t, err, &stateErr)
	_, err = h.Configuration()
	require.ErrorAs(t, err, &stateErr)
	_, err = h.Environment()
	require.ErrorAs(t, err, &stateErr)
	_, err = h.Application()
	assert.NoError(t, err)
}

func TestHarnessBeforeIsIdempotentWhileRunning(t *testing.T) {
	ctx := context.Background()
	h := newEchoHarness(t)

	require.NoError(t, h.Before(ctx))
	defer h.After(ctx)

	port := mustPort(t)
	first := port(h.LocalPort())

	require.NoError(t, h.Before(ctx))
	assert.Equal(t, first, port(h.LocalPort()))
}

func TestHarnessAfterWithoutBefore(t *testing.T) {
	h := newEchoHarness(t)
	require.NoError(t, h.After(context.Background()))
	assert.Equal(t, harness.StateIdle, h.State())
}

func TestHarnessRestartAfterStop(t *testing.T) {
	ctx := context.Background()
	h := newEchoHarness(t)

	require.NoError(t, h.Before(ctx))
	first, err := h.Application()
	require.NoError(t, err)
	require.NoError(t, h.After(ctx))

	require.NoError(t, h.Before(ctx))
	defer h.After(ctx)

	// Each start builds a fresh application instance.
	second, err := h.Application()
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	mustPort(t)(h.LocalPort())
}

func TestHarnessOverrides(t *testing.T) {
	ctx := context.Background()
	h := newEchoHarness(t,
		harness.WithOverrides[echo.Config](config.NewOverride("greeting", "overridden")),
	)

	require.NoError(t, h.Before(ctx))
	defer h.After(ctx)

	assert.Equal(t, "overridden", os.Getenv("APP_GREETING"))

	cfg, err := h.Configuration()
	require.NoError(t, err)
	assert.Equal(t, "overridden", cfg.Greeting)

	require.NoError(t, h.After(ctx))
	_, present := os.LookupEnv("APP_GREETING")
	assert.False(t, present)
}

func TestHarnessOverridesRevertedOnStartupFailure(t *testing.T) {
	// No greeting anywhere: validation fails before anything binds.
	h, err := harness.New(echo.New,
		harness.WithSourceProvider[echo.Config](config.BytesSourceProvider{Data: []byte("server:\n  port: 0\n")}),
		harness.WithConfigPath[echo.Config]("in-memory.yaml"),
		harness.WithOverrides[echo.Config](config.NewOverride("server.host", "127.0.0.1")),
	)
	require.NoError(t, err)

	err = h.Before(context.Background())
	require.Error(t, err)

	var startupErr *harness.StartupError
	require.ErrorAs(t, err, &startupErr)

	assert.Equal(t, harness.StateIdle, h.State())
	_, present := os.LookupEnv("APP_SERVER_HOST")
	assert.False(t, present)
}

func TestHarnessBindFailureCleansUp(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()
	takenPort := taken.Addr().(*net.TCPAddr).Port

	h := newEchoHarness(t,
		harness.WithOverrides[echo.Config](
			config.NewOverride("server.port", strconv.Itoa(takenPort)),
		),
	)

	err = h.Before(context.Background())
	require.Error(t, err)

	var startupErr *harness.StartupError
	require.ErrorAs(t, err, &startupErr)

	assert.Equal(t, harness.StateIdle, h.State())
	_, present := os.LookupEnv("APP_SERVER_PORT")
	assert.False(t, present)
}

func TestHarnessPropertyPrefix(t *testing.T) {
	ctx := context.Background()
	h := newEchoHarness(t,
		harness.WithPropertyPrefix[echo.Config]("echotest"),
		harness.WithOverrides[echo.Config](
			config.NewPrefixedOverride("echotest", "greeting", "prefixed"),
		),
	)

	require.NoError(t, h.Before(ctx))
	defer h.After(ctx)

	assert.Equal(t, "prefixed", os.Getenv("ECHOTEST_GREETING"))

	cfg, err := h.Configuration()
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.Greeting)
}

func TestHarnessListeners(t *testing.T) {
	ctx := context.Background()
	h := newEchoHarness(t)

	var events []string
	portAtRun := 0
	h.AddListener(harness.ListenerFuncs[echo.Config]{
		Run: func(cfg echo.Config, env *app.Environment, fx *harness.Harness[echo.Config]) error {
			events = append(events, "first:run")
			assert.Equal(t, "hello", cfg.Greeting)
			require.NotNil(t, env)
			portAtRun, _ = fx.LocalPort()
			return nil
		},
		Stop: func(*harness.Harness[echo.Config]) error {
			events = append(events, "first:stop")
			return errors.New("swallowed")
		},
	})
	h.AddListener(harness.ListenerFuncs[echo.Config]{
		Run: func(echo.Config, *app.Environment, *harness.Harness[echo.Config]) error {
			events = append(events, "second:run")
			return nil
		},
		Stop: func(*harness.Harness[echo.Config]) error {
			events = append(events, "second:stop")
			return nil
		},
	})

	require.NoError(t, h.Before(ctx))
	assert.NotZero(t, portAtRun)

	// Stop listener errors are logged, not propagated.
	require.NoError(t, h.After(ctx))

	assert.Equal(t, []string{"first:run", "second:run", "first:stop", "second:stop"}, events)
}

func TestHarnessListenerRunErrorTriggersTeardown(t *testing.T) {
	h := newEchoHarness(t,
		harness.WithOverrides[echo.Config](config.NewOverride("greeting", "doomed")),
	)

	ranSecond := false
	h.AddListener(harness.ListenerFuncs[echo.Config]{
		Run: func(echo.Config, *app.Environment, *harness.Harness[echo.Config]) error {
			return errors.New("listener boom")
		},
	})
	h.AddListener(harness.ListenerFuncs[echo.Config]{
		Run: func(echo.Config, *app.Environment, *harness.Harness[echo.Config]) error {
			ranSecond = true
			return nil
		},
	})

	err := h.Before(context.Background())
	require.Error(t, err)

	var listenerErr *harness.ListenerError
	require.ErrorAs(t, err, &listenerErr)

	// Every run listener fires even when an earlier one fails.
	assert.True(t, ranSecond)

	assert.Equal(t, harness.StateIdle, h.State())
	_, present := os.LookupEnv("APP_GREETING")
	assert.False(t, present)
}

type recordingManaged struct {
	log *[]string
}

func (m recordingManaged) Start(context.Context) error {
	*m.log = append(*m.log, "managed:start")
	return nil
}

func (m recordingManaged) Stop(context.Context) error {
	*m.log = append(*m.log, "managed:stop")
	return nil
}

func TestHarnessManage(t *testing.T) {
	ctx := context.Background()
	h := newEchoHarness(t)

	var log []string
	h.Manage(recordingManaged{log: &log})

	require.NoError(t, h.Before(ctx))
	assert.Contains(t, log, "managed:start")

	require.NoError(t, h.After(ctx))
	assert.Equal(t, []string{"managed:start", "managed:stop"}, log)
}

func TestHarnessCheckCommand(t *testing.T) {
	ctx := context.Background()
	h := newEchoHarness(t,
		harness.WithCommand[echo.Config](command.CheckBuilder[echo.Config]()),
	)

	require.NoError(t, h.Before(ctx))

	cfg, err := h.Configuration()
	require.NoError(t, err)
	assert.Equal(t, "hello", cfg.Greeting)

	var stateErr *harness.StateError
	_, err = h.Environment()
	require.ErrorAs(t, err, &stateErr)
	_, err = h.LocalPort()
	require.ErrorAs(t, err, &stateErr)

	require.NoError(t, h.After(ctx))
	_, err = h.Configuration()
	require.ErrorAs(t, err, &stateErr)
}

func TestHarnessConstructionErrors(t *testing.T) {
	t.Run("nil factory", func(t *testing.T) {
		_, err := harness.New[echo.Config](nil)
		var cfgErr *harness.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("factory error", func(t *testing.T) {
		h, err := harness.New(func() (app.Application[echo.Config], error) {
			return nil, errors.New("no app today")
		})
		require.NoError(t, err)

		err = h.Before(context.Background())
		var constructionErr *harness.ConstructionError
		require.ErrorAs(t, err, &constructionErr)
		assert.Equal(t, harness.StateIdle, h.State())
	})
}
