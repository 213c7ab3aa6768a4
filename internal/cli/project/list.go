package project

import (
	"fmt"
	"io"
	"log"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/thenoetrevino/tablero/internal/cli"
	"github.com/thenoetrevino/tablero/internal/cli/styles"
	"github.com/thenoetrevino/tablero/internal/models"
)

// ListCmd returns the project list subcommand
func ListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every project on the server",
		RunE:  runList,
	}
}

type projectRow struct {
	*models.Project
}

func (r projectRow) GetID() int { return r.ID }

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	formatter := cli.Formatter(cmd)

	cliInstance, err := cli.GetCLIFromContext(ctx)
	if err != nil {
		if fmtErr := formatter.Error("INITIALIZATION_ERROR", err.Error()); fmtErr != nil {
			log.Printf("Error formatting error message: %v", fmtErr)
		}
		return cli.Reported(err)
	}
	defer func() {
		if err := cliInstance.Close(); err != nil {
			log.Printf("Error closing CLI: %v", err)
		}
	}()

	projects, err := cliInstance.App.Projects.ListAllProjects(ctx)
	if err != nil {
		if fmtErr := formatter.Error("PROJECT_FETCH_ERROR", err.Error()); fmtErr != nil {
			log.Printf("Error formatting error message: %v", fmtErr)
		}
		return cli.Reported(err)
	}

	rows := make([]projectRow, len(projects))
	for i, p := range projects {
		rows[i] = projectRow{p}
	}

	return formatter.Render(rows, func(w io.Writer) error {
		if len(rows) == 0 {
			_, err := fmt.Fprintln(w, "No projects found")
			return err
		}
		cells := make([][]string, len(rows))
		for i, p := range rows {
			cells[i] = []string{fmt.Sprint(p.ID), p.Name, fmt.Sprint(p.OwnerID), humanize.Time(p.CreatedAt)}
		}
		_, err := fmt.Fprintln(w, styles.Table([]string{"ID", "Name", "Owner", "Created"}, cells))
		return err
	})
}
