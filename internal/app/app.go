package app

import (
	"context"
	"fmt"

	"github.com/five82/hangar/internal/config"
	"github.com/five82/hangar/internal/logging"
	"github.com/five82/hangar/internal/prefs"
	"github.com/five82/hangar/internal/state"
	"github.com/five82/hangar/internal/ui"
)

// Watch boots the live console until the context is cancelled or the user
// quits. Logs go to the state directory because the console owns the
// terminal.
func Watch(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logFile, err := logging.OpenFile(cfg.LogPath())
	if err != nil {
		return err
	}
	defer logFile.Close()
	opts.LogOutput = logFile

	rt, err := New(opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt.Session.WarmUp(ctx)
	if _, err := rt.CheckIdentity(ctx); err != nil {
		// The console still opens; the header shows the signed-out state.
		rt.Logger.Warn("identity check failed", "error", err)
	}
	rt.Store.SetVisible(state.ViewInstances, true)
	rt.StartPollers(ctx)

	userPrefs := prefs.Load(rt.PrefsPath)
	return ui.Run(ui.Options{
		Context:     ctx,
		Store:       rt.Store,
		Downloads:   rt.Downloads,
		Instances:   rt.Instances,
		AuthExpired: rt.AuthExpired,
		Wake:        rt.WakePollers,
		Refresh:     rt.RefreshView,
		APIURL:      rt.Config.APIURL,
		ThemeName:   userPrefs.Theme,
		PrefsPath:   rt.PrefsPath,
	})
}
