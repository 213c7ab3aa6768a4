// Package user holds the account administration commands
//
// e.g., tablero user ...
package user

import (
	"fmt"
	"io"
	"log"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/thenoetrevino/tablero/internal/cli"
	"github.com/thenoetrevino/tablero/internal/cli/styles"
	"github.com/thenoetrevino/tablero/internal/models"
	userservice "github.com/thenoetrevino/tablero/internal/services/user"
)

// UserCmd returns the user parent command
func UserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	cmd.AddCommand(CreateCmd())
	cmd.AddCommand(ListCmd())

	return cmd
}

type userRow struct {
	*models.User
}

func (r userRow) GetID() int { return r.ID }

// CreateCmd returns the user create subcommand
func CreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register an account",
		Long: `Register an account without going through the HTTP API.

Examples:
  tablero user create --email=ada@example.com --name="Ada" --password=hunter22

  # Quiet mode for bash capture
  USER_ID=$(tablero user create --email=ada@example.com --name=Ada --password=hunter22 --quiet)
`,
		RunE: runCreate,
	}

	cmd.Flags().String("email", "", "Email address (required)")
	cmd.Flags().String("name", "", "Display name (required)")
	cmd.Flags().String("password", "", "Password, at least 8 characters (required)")
	for _, name := range []string{"email", "name", "password"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			log.Printf("Error marking flag as required: %v", err)
		}
	}

	return cmd
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	formatter := cli.Formatter(cmd)

	email, _ := cmd.Flags().GetString("email")
	name, _ := cmd.Flags().GetString("name")
	password, _ := cmd.Flags().GetString("password")

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

	created, err := cliInstance.App.Users.Register(ctx, userservice.RegisterRequest{
		Email:    email,
		Name:     name,
		Password: password,
	})
	if err != nil {
		if fmtErr := formatter.Error("USER_CREATE_ERROR", err.Error()); fmtErr != nil {
			log.Printf("Error formatting error message: %v", fmtErr)
		}
		return cli.Reported(err)
	}

	return formatter.Render(userRow{created}, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s Account %s created\n  %s\n  %s\n",
			styles.SuccessStyle.Render("✓"),
			styles.TitleStyle.Render(created.Email),
			styles.Field("ID", fmt.Sprint(created.ID)),
			styles.Field("Name", created.Name))
		return err
	})
}

// ListCmd returns the user list subcommand
func ListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE:  runList,
	}
}

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

	users, err := cliInstance.App.Users.ListUsers(ctx)
	if err != nil {
		if fmtErr := formatter.Error("USER_FETCH_ERROR", err.Error()); fmtErr != nil {
			log.Printf("Error formatting error message: %v", fmtErr)
		}
		return cli.Reported(err)
	}

	rows := make([]userRow, len(users))
	for i, u := range users {
		rows[i] = userRow{u}
	}

	return formatter.Render(rows, func(w io.Writer) error {
		if len(rows) == 0 {
			_, err := fmt.Fprintln(w, "No accounts found")
			return err
		}
		cells := make([][]string, len(rows))
		for i, u := range rows {
			cells[i] = []string{fmt.Sprint(u.ID), u.Email, u.Name, humanize.Time(u.CreatedAt)}
		}
		_, err := fmt.Fprintln(w, styles.Table([]string{"ID", "Email", "Name", "Joined"}, cells))
		return err
	})
}
