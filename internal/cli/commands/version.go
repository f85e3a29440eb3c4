package commands

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/bigkaa/goartstore/catalog-module/internal/config"
)

// VersionCommand возвращает команду version.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Показать версию",
		Action: func(c *cli.Context) error {
			_, err := fmt.Fprintf(c.App.Writer, "catalogctl %s\n", config.Version)
			return err
		},
	}
}
