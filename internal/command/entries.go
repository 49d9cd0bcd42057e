package command

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/weiwangfds/scijournal/internal/app"
	apperrors "github.com/weiwangfds/scijournal/internal/errors"
	"github.com/weiwangfds/scijournal/internal/logger"
	"github.com/weiwangfds/scijournal/internal/model"
	"github.com/weiwangfds/scijournal/internal/service/cache"
)

func entriesCommand(opts []app.Option) *cli.Command {
	return &cli.Command{
		Name:    "entries",
		Aliases: []string{"e"},
		Usage:   "list and edit journal entries",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list entries, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "page", Value: model.DefaultPage},
					&cli.IntFlag{Name: "page-size", Value: model.DefaultPageSize},
					&cli.UintFlag{Name: "category", Usage: "filter by category id"},
					&cli.UintFlag{Name: "tag", Usage: "filter by tag id"},
					&cli.StringFlag{Name: "view", Usage: "list or calendar, defaults to the defaultView preference"},
					&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "keep running and re-render on changes"},
					&cli.DurationFlag{Name: "interval", Value: 30 * time.Second, Usage: "with --watch, how often to re-check the server, 0 disables"},
				},
				Action: withApp(opts, listEntries),
			},
			{
				Name:      "show",
				Usage:     "show one entry",
				ArgsUsage: "ID",
				Action:    withApp(opts, showEntry),
			},
			{
				Name:   "create",
				Usage:  "write a new entry",
				Flags:  entryFlags(true),
				Action: withApp(opts, createEntry),
			},
			{
				Name:      "update",
				Usage:     "edit an entry, unset flags keep their current value",
				ArgsUsage: "ID",
				Flags: append(entryFlags(false),
					&cli.StringSliceFlag{Name: "add-tag"},
					&cli.StringSliceFlag{Name: "remove-tag"},
					&cli.BoolFlag{Name: "no-category", Usage: "move the entry out of its category"},
				),
				Action: withApp(opts, updateEntry),
			},
			{
				Name:      "delete",
				Usage:     "delete an entry",
				ArgsUsage: "ID",
				Action: withApp(opts, func(c *cli.Context, a *app.App) error {
					id, err := argID(c)
					if err != nil {
						return err
					}
					return finish(c, a, a.Journal.DeleteEntry(c.Context, id))
				}),
			},
		},
	}
}

func entryFlags(required bool) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: required},
		&cli.StringFlag{Name: "content", Required: required},
		&cli.StringFlag{Name: "mood", Usage: "one of " + moodList()},
		&cli.UintFlag{Name: "category"},
		&cli.StringSliceFlag{Name: "tag"},
	}
}

func moodList() string {
	names := make([]string, len(model.Moods))
	for i, m := range model.Moods {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

func argID(c *cli.Context) (uint, error) {
	raw := c.Args().First()
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(id), nil
}

func listEntries(c *cli.Context, a *app.App) error {
	params := model.ListParams{Page: c.Int("page"), PageSize: c.Int("page-size")}
	if c.IsSet("category") {
		id := c.Uint("category")
		params.CategoryID = &id
	}
	if c.IsSet("tag") {
		id := c.Uint("tag")
		params.TagID = &id
	}
	params = params.Normalize()

	view := model.View(c.String("view"))
	if view != "" && !view.Valid() {
		return fmt.Errorf("invalid view %q", view)
	}

	if c.Bool("watch") {
		return watchEntries(c, a, params, view)
	}

	r := a.Journal.Entries(c.Context, params)
	if r.Err != nil && !r.HasData {
		return queryFailed(c, r.Err)
	}
	renderEntries(c.App.Writer, r.Data, params, a.Preferences.Get(), view)
	return nil
}

// watchEntries 持续渲染列表，缓存数据变化或偏好变化时重新输出
func watchEntries(c *cli.Context, a *app.App, params model.ListParams, view model.View) error {
	ctx, stop := signalContext(c.Context)
	defer stop()

	if err := a.Watch(ctx); err != nil {
		logger.Warnf("[存储监听] 启动失败: %v", err)
	}

	results := make(chan cache.Result[model.EntryList], 1)
	go a.Journal.WatchEntries(ctx, params, c.Duration("interval"), func(r cache.Result[model.EntryList]) {
		select {
		case results <- r:
		case <-ctx.Done():
		}
	})

	prefsChanged := make(chan struct{}, 1)
	unsubscribe := a.Preferences.OnChange(func(model.Preferences) {
		select {
		case prefsChanged <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	w := c.App.Writer
	var last *cache.Result[model.EntryList]
	render := func() {
		fmt.Fprintf(w, "-- %s --\n", time.Now().Format("15:04:05"))
		if last.Err != nil {
			fmt.Fprintf(w, "! %s\n", apperrors.UserMessage(last.Err))
		}
		if last.HasData {
			renderEntries(w, last.Data, params, a.Preferences.Get(), view)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-results:
			last = &r
			render()
		case <-prefsChanged:
			if last != nil {
				render()
			}
		}
	}
}

// renderEntries 按视图输出一页日记，calendar 视图按创建日期分组
func renderEntries(w io.Writer, list model.EntryList, params model.ListParams, prefs model.Preferences, view model.View) {
	if len(list.Entries) == 0 {
		fmt.Fprintln(w, "No entries yet.")
		return
	}
	if view == "" {
		view = prefs.DefaultView
	}

	if view == model.ViewCalendar {
		for _, g := range model.GroupByDay(list.Entries) {
			noun := "entries"
			if len(g.Entries) == 1 {
				noun = "entry"
			}
			fmt.Fprintf(w, "%s  (%d %s)\n", model.FormatDate(g.Day, prefs.DateFormat, false), len(g.Entries), noun)
			for _, e := range g.Entries {
				fmt.Fprint(w, "  ")
				printEntryLine(w, e, prefs, "3:04 PM")
			}
		}
	} else {
		for _, e := range list.Entries {
			printEntryLine(w, e, prefs, "")
		}
	}
	fmt.Fprintf(w, "page %d, %d of %d entries\n", params.Page, len(list.Entries), list.Total)
}

// printEntryLine 输出一行摘要，layout 为空时使用偏好的日期格式
func printEntryLine(w io.Writer, e model.Entry, prefs model.Preferences, layout string) {
	when := model.FormatDate(e.CreatedAt, prefs.DateFormat, false)
	if layout != "" {
		when = e.CreatedAt.Local().Format(layout)
	}
	fmt.Fprintf(w, "#%-5d %s  %s", e.ID, when, e.Title)
	if e.Mood != "" {
		fmt.Fprintf(w, "  [%s]", e.Mood)
	}
	if tags := formatTags(e, prefs.TagsToShow); tags != "" {
		fmt.Fprintf(w, "  %s", tags)
	}
	fmt.Fprintln(w)
}

func showEntry(c *cli.Context, a *app.App) error {
	id, err := argID(c)
	if err != nil {
		return err
	}
	r := a.Journal.Entry(c.Context, id)
	if r.Err != nil && !r.HasData {
		return queryFailed(c, r.Err)
	}
	printEntry(c.App.Writer, r.Data, a.Preferences.Get())
	return nil
}

func printEntry(w io.Writer, e model.Entry, prefs model.Preferences) {
	fmt.Fprintf(w, "#%d %s\n", e.ID, e.Title)
	fmt.Fprintf(w, "Created: %s\n", model.FormatDate(e.CreatedAt, prefs.DateFormat, true))
	if !e.UpdatedAt.IsZero() && !e.UpdatedAt.Equal(e.CreatedAt) {
		fmt.Fprintf(w, "Updated: %s\n", model.FormatDate(e.UpdatedAt, prefs.DateFormat, true))
	}
	if e.Mood != "" {
		fmt.Fprintf(w, "Mood:    %s\n", e.Mood)
	}
	if e.CategoryID != nil {
		fmt.Fprintf(w, "Category: %d\n", *e.CategoryID)
	}
	if tags := formatTags(e, prefs.TagsToShow); tags != "" {
		fmt.Fprintf(w, "Tags:    %s\n", tags)
	}
	fmt.Fprintf(w, "Words:   %d\n\n%s\n", e.WordCount, e.Content)
}

// formatTags 只显示前 n 个标签，其余以 +N 表示
func formatTags(e model.Entry, n int) string {
	visible := e.VisibleTags(n)
	if len(visible) == 0 {
		return ""
	}
	parts := make([]string, len(visible))
	for i, t := range visible {
		parts[i] = "#" + t.Name
	}
	out := strings.Join(parts, " ")
	if rest := len(e.Tags) - len(visible); rest > 0 {
		out += fmt.Sprintf(" +%d", rest)
	}
	return out
}

func createEntry(c *cli.Context, a *app.App) error {
	in := model.EntryInput{
		Title:   c.String("title"),
		Content: c.String("content"),
		Mood:    model.Mood(c.String("mood")),
		Tags:    c.StringSlice("tag"),
	}
	if c.IsSet("category") {
		id := c.Uint("category")
		in.CategoryID = &id
	}

	entry, err := a.Journal.CreateEntry(c.Context, in)
	if err := finish(c, a, err); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "#%d %s\n", entry.ID, entry.Title)
	return nil
}

func updateEntry(c *cli.Context, a *app.App) error {
	id, err := argID(c)
	if err != nil {
		return err
	}

	current := a.Journal.Entry(c.Context, id)
	if current.Err != nil && !current.HasData {
		return queryFailed(c, current.Err)
	}

	in := current.Data.ToInput()
	if c.IsSet("title") {
		in.Title = c.String("title")
	}
	if c.IsSet("content") {
		in.Content = c.String("content")
	}
	if c.IsSet("mood") {
		in.Mood = model.Mood(c.String("mood"))
	}
	if c.IsSet("category") {
		cid := c.Uint("category")
		in.CategoryID = &cid
	}
	if c.Bool("no-category") {
		in.CategoryID = nil
	}
	if c.IsSet("tag") {
		in.Tags = c.StringSlice("tag")
	}
	for _, name := range c.StringSlice("add-tag") {
		in.Tags = model.AddTagName(in.Tags, name)
	}
	for _, name := range c.StringSlice("remove-tag") {
		in.Tags = model.RemoveTagName(in.Tags, name)
	}

	_, err = a.Journal.UpdateEntry(c.Context, id, in)
	return finish(c, a, err)
}

func statsCommand(opts []app.Option) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "show journal statistics",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "keep running and refresh periodically"},
			&cli.DurationFlag{Name: "interval", Value: 30 * time.Second, Usage: "with --watch, refresh interval"},
		},
		Action: withApp(opts, func(c *cli.Context, a *app.App) error {
			w := c.App.Writer
			r := a.Journal.Stats(c.Context)
			if !c.Bool("watch") {
				if r.Err != nil && !r.HasData {
					return queryFailed(c, r.Err)
				}
				printStats(w, r)
				return nil
			}

			interval := c.Duration("interval")
			if interval <= 0 {
				return fmt.Errorf("interval must be positive")
			}
			ctx, stop := signalContext(c.Context)
			defer stop()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				fmt.Fprintf(w, "-- %s --\n", time.Now().Format("15:04:05"))
				printStats(w, r)
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
				// 忽略缓存新鲜度，每个周期都向服务端确认
				r = a.Journal.RefreshStats(ctx)
				if ctx.Err() != nil {
					return nil
				}
			}
		}),
	}
}

// printStats 输出统计，刷新失败但有旧数据时在数据后附上提示
func printStats(w io.Writer, r cache.Result[model.EntryStats]) {
	if !r.HasData {
		fmt.Fprintf(w, "! %s\n", apperrors.UserMessage(r.Err))
		return
	}
	s := r.Data
	fmt.Fprintf(w, "Total entries:      %d\n", s.TotalEntries)
	fmt.Fprintf(w, "Total words:        %d\n", s.TotalWords)
	fmt.Fprintf(w, "Avg words / entry:  %s\n", s.FormatAverage())
	fmt.Fprintf(w, "Categories:         %d\n", s.CategoryCount)
	fmt.Fprintf(w, "Tags:               %d\n", s.TagCount)
	if len(s.MoodDistribution) > 0 {
		fmt.Fprintln(w, "\nMood distribution")
		for _, m := range s.MoodDistribution {
			mood := m.Mood
			if mood == "" {
				mood = "(none)"
			}
			fmt.Fprintf(w, "  %-12s %d\n", mood, m.Count)
		}
	}
	if len(s.CategoryDistribution) > 0 {
		fmt.Fprintln(w, "\nCategory distribution")
		for _, cc := range s.CategoryDistribution {
			fmt.Fprintf(w, "  %-12s %d\n", cc.Category, cc.Count)
		}
	}
	if r.Err != nil {
		fmt.Fprintf(w, "\n! %s\n", apperrors.UserMessage(r.Err))
	}
}
