package project

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"
	"github.com/thenoetrevino/tablero/internal/cli"
	"github.com/thenoetrevino/tablero/internal/cli/styles"
	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/models"
	projectservice "github.com/thenoetrevino/tablero/internal/services/project"
	userservice "github.com/thenoetrevino/tablero/internal/services/user"
)

// CreateCmd returns the project create subcommand
func CreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project owned by an existing user",
		Long: `Create a project, with its default columns, on behalf of a user.

Examples:
  # Simple project (human-readable output)
  tablero project create --name="Backend API" --owner=ada@example.com

  # Quiet mode for bash capture
  PROJECT_ID=$(tablero project create --name="Backend API" --owner=ada@example.com --quiet)
`,
		RunE: runCreate,
	}

	// Required flags
	cmd.Flags().String("name", "", "Project name (required)")
	cmd.Flags().String("owner", "", "Owner email (required)")
	for _, name := range []string{"name", "owner"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			log.Printf("Error marking flag as required: %v", err)
		}
	}

	// Optional flags
	cmd.Flags().String("description", "", "Project description")

	return cmd
}

type createdProject struct {
	*models.Project
	OwnerEmail string `json:"owner_email"`
}

func (p createdProject) GetID() int { return p.ID }

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	formatter := cli.Formatter(cmd)

	name, _ := cmd.Flags().GetString("name")
	ownerEmail, _ := cmd.Flags().GetString("owner")
	description, _ := cmd.Flags().GetString("description")

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

	owner, err := cliInstance.App.Store().GetUserByEmail(ctx, userservice.NormalizeEmail(ownerEmail))
	if errors.Is(err, database.ErrNotFound) {
		err = fmt.Errorf("%w: %s", userservice.ErrUserNotFound, ownerEmail)
		if fmtErr := formatter.ErrorWithSuggestion("USER_NOT_FOUND", err.Error(),
			"Create the account first with 'tablero user create'"); fmtErr != nil {
			log.Printf("Error formatting error message: %v", fmtErr)
		}
		return cli.Reported(err)
	}
	if err != nil {
		if fmtErr := formatter.Error("USER_FETCH_ERROR", err.Error()); fmtErr != nil {
			log.Printf("Error formatting error message: %v", fmtErr)
		}
		return cli.Reported(err)
	}

	project, err := cliInstance.App.Projects.CreateProject(ctx, projectservice.CreateProjectRequest{
		ActorID:     owner.ID,
		Name:        name,
		Description: description,
	})
	if err != nil {
		if fmtErr := formatter.Error("PROJECT_CREATE_ERROR", err.Error()); fmtErr != nil {
			log.Printf("Error formatting error message: %v", fmtErr)
		}
		return cli.Reported(err)
	}

	result := createdProject{Project: project, OwnerEmail: owner.Email}
	return formatter.Render(result, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s Project %s created\n  %s\n  %s\n",
			styles.SuccessStyle.Render("✓"),
			styles.TitleStyle.Render(project.Name),
			styles.Field("ID", fmt.Sprint(project.ID)),
			styles.Field("Owner", owner.Email))
		return err
	})
}
