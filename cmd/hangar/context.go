package main

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/five82/hangar/internal/apierr"
	"github.com/five82/hangar/internal/app"
)

const userAgent = "hangar-cli"

type globalFlags struct {
	config   string
	apiURL   string
	prefs    string
	logLevel string
}

type commandContext struct {
	flags *globalFlags

	runtimeOnce sync.Once
	runtime     *app.Runtime
	runtimeErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) options(cmd *cobra.Command) app.Options {
	return app.Options{
		ConfigPath: strings.TrimSpace(c.flags.config),
		PrefsPath:  strings.TrimSpace(c.flags.prefs),
		APIURL:     strings.TrimSpace(c.flags.apiURL),
		LogLevel:   strings.TrimSpace(c.flags.logLevel),
		LogOutput:  cmd.ErrOrStderr(),
		UserAgent:  userAgent,
	}
}

func (c *commandContext) ensureRuntime(cmd *cobra.Command) (*app.Runtime, error) {
	c.runtimeOnce.Do(func() {
		c.runtime, c.runtimeErr = app.New(c.options(cmd))
	})
	return c.runtime, c.runtimeErr
}

// withRuntime runs fn against the wired runtime and persists the session
// afterwards.
func (c *commandContext) withRuntime(cmd *cobra.Command, fn func(*app.Runtime) error) error {
	rt, err := c.ensureRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()
	return explain(fn(rt))
}

// explain turns a 401 into an actionable message; other errors pass through.
func explain(err error) error {
	if err == nil {
		return nil
	}
	if apiErr, ok := apierr.As(err); ok && apiErr.Status == http.StatusUnauthorized {
		return errors.New(apiErr.Error() + "; run `hangar login`")
	}
	return err
}
