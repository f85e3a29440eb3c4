package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v2"
)

// ListCommand возвращает команду list.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Показать видимые записи каталога, новые первыми",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Вывести записи в JSON"},
		},
		Action: listAction,
	}
}

func listAction(c *cli.Context) error {
	rt, err := setup(c, false)
	if err != nil {
		return err
	}
	defer rt.close()

	records, err := rt.catalog.Repo.ListVisible(c.Context)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Ошибка чтения каталога: %v", err), ExitFailure)
	}

	w := c.App.Writer
	if c.Bool("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTITLE\tDURATION\tTHUMB\tUPLOADED")
	for _, r := range records {
		thumb := "-"
		if r.ThumbnailHandle != "" {
			thumb = "yes"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%.0fs\t%s\t%s\n",
			r.ID, r.Title, r.DurationSeconds, thumb,
			time.Unix(r.CreatedAt, 0).UTC().Format(time.DateTime))
	}
	return tw.Flush()
}
