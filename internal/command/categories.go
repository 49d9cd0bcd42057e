package command

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"github.com/weiwangfds/scijournal/internal/app"
	"github.com/weiwangfds/scijournal/internal/model"
)

func categoriesCommand(opts []app.Option) *cli.Command {
	categoryFlags := func(required bool) []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: required},
			&cli.StringFlag{Name: "color", Usage: "hex color, e.g. #0693E3", Required: required},
		}
	}

	return &cli.Command{
		Name:    "categories",
		Aliases: []string{"cat"},
		Usage:   "manage categories",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list categories",
				Action: withApp(opts, func(c *cli.Context, a *app.App) error {
					r := a.Journal.Categories(c.Context)
					if r.Err != nil && !r.HasData {
						return queryFailed(c, r.Err)
					}
					if len(r.Data) == 0 {
						fmt.Fprintln(c.App.Writer, "No categories.")
						return nil
					}
					for _, cat := range r.Data {
						fmt.Fprintf(c.App.Writer, "%-5d %-8s %s\n", cat.ID, cat.Color, cat.Name)
					}
					return nil
				}),
			},
			{
				Name:  "create",
				Usage: "create a category",
				Flags: categoryFlags(true),
				Action: withApp(opts, func(c *cli.Context, a *app.App) error {
					in := model.CategoryInput{Name: c.String("name"), Color: c.String("color")}
					_, err := a.Journal.CreateCategory(c.Context, in)
					return finish(c, a, err)
				}),
			},
			{
				Name:      "update",
				Usage:     "rename or recolor a category",
				ArgsUsage: "ID",
				Flags:     categoryFlags(false),
				Action: withApp(opts, func(c *cli.Context, a *app.App) error {
					id, err := argID(c)
					if err != nil {
						return err
					}
					in, err := currentCategory(c, a, id)
					if err != nil {
						return err
					}
					if c.IsSet("name") {
						in.Name = c.String("name")
					}
					if c.IsSet("color") {
						in.Color = c.String("color")
					}
					_, err = a.Journal.UpdateCategory(c.Context, id, in)
					return finish(c, a, err)
				}),
			},
			{
				Name:      "delete",
				Usage:     "delete a category, its entries become uncategorized",
				ArgsUsage: "ID",
				Action: withApp(opts, func(c *cli.Context, a *app.App) error {
					id, err := argID(c)
					if err != nil {
						return err
					}
					return finish(c, a, a.Journal.DeleteCategory(c.Context, id))
				}),
			},
		},
	}
}

// currentCategory 从缓存的分类列表取当前值作为更新基础
func currentCategory(c *cli.Context, a *app.App, id uint) (model.CategoryInput, error) {
	r := a.Journal.Categories(c.Context)
	if r.Err != nil && !r.HasData {
		return model.CategoryInput{}, queryFailed(c, r.Err)
	}
	for _, cat := range r.Data {
		if cat.ID == id {
			return model.CategoryInput{Name: cat.Name, Color: cat.Color}, nil
		}
	}
	return model.CategoryInput{}, fmt.Errorf("category %d not found", id)
}
