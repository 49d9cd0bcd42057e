package command

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"github.com/weiwangfds/scijournal/internal/app"
	"github.com/weiwangfds/scijournal/internal/logger"
	"github.com/weiwangfds/scijournal/internal/model"
	"github.com/weiwangfds/scijournal/internal/service/session"
)

func prefsCommand(opts []app.Option) *cli.Command {
	return &cli.Command{
		Name:  "prefs",
		Usage: "show and change display preferences",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "show local preferences",
				Action: withApp(opts, func(c *cli.Context, a *app.App) error {
					printPreferences(c, a.Preferences.Get())
					return nil
				}),
			},
			{
				Name:  "set",
				Usage: "change preferences locally and push supported fields to the server",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dark-mode"},
					&cli.BoolFlag{Name: "notifications"},
					&cli.StringFlag{Name: "view", Usage: "list or calendar"},
					&cli.StringFlag{Name: "date-format", Usage: "MM/DD/YYYY, DD/MM/YYYY or YYYY-MM-DD"},
					&cli.IntFlag{Name: "tags-to-show", Usage: "1-10"},
					&cli.BoolFlag{Name: "local", Usage: "do not push to the server"},
				},
				Action: withApp(opts, setPreferences),
			},
			{
				Name:  "toggle-dark",
				Usage: "switch between light and dark mode",
				Flags: []cli.Flag{localFlag()},
				Action: withApp(opts, func(c *cli.Context, a *app.App) error {
					prefs, err := a.Preferences.ToggleDarkMode(c.Context)
					if err != nil {
						return queryFailed(c, err)
					}
					printPreferences(c, prefs)
					return pushPreferences(c, a, model.PreferencesPatch{DarkMode: model.Ptr(prefs.DarkMode)})
				}),
			},
			{
				Name:  "reset",
				Usage: "restore default preferences",
				Flags: []cli.Flag{localFlag()},
				Action: withApp(opts, func(c *cli.Context, a *app.App) error {
					if err := a.Preferences.Reset(c.Context); err != nil {
						return queryFailed(c, err)
					}
					prefs := a.Preferences.Get()
					printPreferences(c, prefs)
					return pushPreferences(c, a, model.PatchFromPreferences(prefs))
				}),
			},
			{
				Name:  "pull",
				Usage: "merge server preferences into local ones",
				Action: withApp(opts, func(c *cli.Context, a *app.App) error {
					prefs, err := a.Sync.Fetch(c.Context)
					if err != nil {
						return queryFailed(c, err)
					}
					printPreferences(c, prefs)
					return nil
				}),
			},
			{
				Name:  "push",
				Usage: "push all local preferences to the server",
				Action: withApp(opts, func(c *cli.Context, a *app.App) error {
					if err := a.Sync.SaveAll(c.Context); err != nil {
						return queryFailed(c, err)
					}
					a.Notifications.Success(translate("prefs_saved"))
					printNotice(c.App.Writer, a.Notifications)
					return nil
				}),
			},
			{
				Name:  "watch",
				Usage: "print preference and session changes made by other processes",
				Action: withApp(opts, func(c *cli.Context, a *app.App) error {
					ctx, stop := signalContext(c.Context)
					defer stop()

					if err := a.Watch(ctx); err != nil {
						return err
					}
					w := c.App.Writer
					unsubPrefs := a.Preferences.OnChange(func(p model.Preferences) {
						fmt.Fprintln(w, "preferences changed")
						printPreferences(c, p)
					})
					defer unsubPrefs()
					unsubSession := a.Session.OnChange(func(s session.State) {
						if s.Authenticated {
							fmt.Fprintln(w, "session: signed in")
						} else {
							fmt.Fprintln(w, "session: signed out")
						}
					})
					defer unsubSession()

					fmt.Fprintln(w, "watching for changes, press Ctrl+C to stop")
					<-ctx.Done()
					return nil
				}),
			},
		},
	}
}

func setPreferences(c *cli.Context, a *app.App) error {
	var patch model.PreferencesPatch
	if c.IsSet("dark-mode") {
		patch.DarkMode = model.Ptr(c.Bool("dark-mode"))
	}
	if c.IsSet("notifications") {
		patch.NotificationsEnabled = model.Ptr(c.Bool("notifications"))
	}
	if c.IsSet("view") {
		patch.DefaultView = model.Ptr(model.View(c.String("view")))
	}
	if c.IsSet("date-format") {
		patch.DateFormat = model.Ptr(model.DateFormat(c.String("date-format")))
	}
	if c.IsSet("tags-to-show") {
		patch.TagsToShow = model.Ptr(c.Int("tags-to-show"))
	}
	if patch.IsEmpty() {
		return fmt.Errorf("nothing to change")
	}

	prefs, err := a.Preferences.Update(c.Context, patch)
	if err != nil {
		return queryFailed(c, err)
	}
	printPreferences(c, prefs)
	return pushPreferences(c, a, patch)
}

func localFlag() cli.Flag {
	return &cli.BoolFlag{Name: "local", Usage: "do not push to the server"}
}

// pushPreferences 已登录且未指定 --local 时推送服务端支持的字段
func pushPreferences(c *cli.Context, a *app.App, patch model.PreferencesPatch) error {
	if c.Bool("local") || !a.Session.IsAuthenticated() {
		return nil
	}
	// 本地已生效，推送失败只提示
	if err := a.Sync.Save(c.Context, patch); err != nil {
		logger.Warnf("[偏好同步] %v", err)
		a.Notifications.Warning(a.Sync.Status().Message())
	} else {
		a.Notifications.Success(translate("prefs_saved"))
	}
	printNotice(c.App.Writer, a.Notifications)
	return nil
}

func printPreferences(c *cli.Context, p model.Preferences) {
	w := c.App.Writer
	fmt.Fprintf(w, "Dark mode:      %v\n", p.DarkMode)
	fmt.Fprintf(w, "Notifications:  %v\n", p.NotificationsEnabled)
	fmt.Fprintf(w, "Default view:   %s\n", p.DefaultView)
	fmt.Fprintf(w, "Date format:    %s\n", p.DateFormat)
	fmt.Fprintf(w, "Tags to show:   %d\n", p.TagsToShow)
}
