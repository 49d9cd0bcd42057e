package command

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/weiwangfds/scijournal/internal/app"
	"github.com/weiwangfds/scijournal/internal/model"
	"github.com/weiwangfds/scijournal/internal/service/session"
)

func credentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true},
		&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true, EnvVars: []string{"JOURNAL_PASSWORD"}},
	}
}

func credentials(c *cli.Context) model.Credentials {
	return model.Credentials{Email: c.String("email"), Password: c.String("password")}
}

func loginCommand(opts []app.Option) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "sign in and store the access token",
		Flags: credentialFlags(),
		Action: withApp(opts, func(c *cli.Context, a *app.App) error {
			return finish(c, a, a.Journal.Login(c.Context, credentials(c)))
		}),
	}
}

func registerCommand(opts []app.Option) *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "create an account and sign in",
		Flags: credentialFlags(),
		Action: withApp(opts, func(c *cli.Context, a *app.App) error {
			return finish(c, a, a.Journal.Register(c.Context, credentials(c)))
		}),
	}
}

func logoutCommand(opts []app.Option) *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "forget the stored access token",
		Action: withApp(opts, func(c *cli.Context, a *app.App) error {
			return finish(c, a, a.Journal.Logout(c.Context))
		}),
	}
}

func statusCommand(opts []app.Option) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "show session and preference state",
		Action: withApp(opts, func(c *cli.Context, a *app.App) error {
			w := c.App.Writer
			fmt.Fprintf(w, "API:            %s\n", a.API.BaseURL())
			if a.Session.IsAuthenticated() {
				state := "signed in"
				if session.TokenExpired(a.Session.Token(), time.Now()) {
					state = "signed in (token expired)"
				}
				fmt.Fprintf(w, "Session:        %s\n", state)
			} else {
				fmt.Fprintln(w, "Session:        signed out")
			}
			printPreferences(c, a.Preferences.Get())
			return nil
		}),
	}
}
