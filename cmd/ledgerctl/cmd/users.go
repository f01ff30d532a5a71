package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"truledgr/backend/internal/security"
	sessionrepo "truledgr/backend/internal/session/repository"
	"truledgr/backend/internal/user/domain"
	userrepo "truledgr/backend/internal/user/repository"
	userservice "truledgr/backend/internal/user/service"
)

// passwordEnv lets scripts pass a password without it showing up in the process list.
const passwordEnv = "LEDGERCTL_PASSWORD"

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts",
}

var (
	createEmail    string
	createFullName string
	createPassword string
	createAdmin    bool
)

var usersCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := createPassword
		if password == "" {
			password = os.Getenv(passwordEnv)
		}
		if password == "" {
			return fmt.Errorf("a password is required (--password or %s)", passwordEnv)
		}
		u, err := userService().Create(cmd.Context(), userservice.CreateInput{
			Username: args[0],
			Email:    createEmail,
			FullName: createFullName,
			Password: password,
			IsAdmin:  createAdmin,
		})
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		pterm.Success.Printf("Created %s (id %s, admin=%t)\n", u.Username, u.ID, u.IsAdmin)
		return nil
	},
}

var usersPromoteCmd = &cobra.Command{
	Use:   "promote <username>",
	Short: "Grant admin privileges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := userService().SetAdmin(cmd.Context(), args[0], true)
		if err != nil {
			return fmt.Errorf("promote: %w", err)
		}
		pterm.Success.Printf("%s is now an admin\n", u.Username)
		return nil
	},
}

var usersDemoteCmd = &cobra.Command{
	Use:   "demote <username>",
	Short: "Remove admin privileges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := userService().SetAdmin(cmd.Context(), args[0], false)
		if err != nil {
			return fmt.Errorf("demote: %w", err)
		}
		ended, err := sessionrepo.NewBunRepository(bunDB).EndAllImpersonationsByAdmin(cmd.Context(), u.ID, time.Now())
		if err != nil {
			return fmt.Errorf("end impersonations: %w", err)
		}
		pterm.Success.Printf("%s is no longer an admin; %d impersonation session(s) ended\n", u.Username, ended)
		return nil
	},
}

var usersDeactivateCmd = &cobra.Command{
	Use:   "deactivate <username>",
	Short: "Disable login, revoke every session and end the user's impersonations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := userService().Deactivate(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("deactivate: %w", err)
		}
		sessions := sessionrepo.NewBunRepository(bunDB)
		n, err := sessions.RevokeAllByUser(cmd.Context(), u.ID)
		if err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		ended, err := sessions.EndAllImpersonationsByAdmin(cmd.Context(), u.ID, time.Now())
		if err != nil {
			return fmt.Errorf("end impersonations: %w", err)
		}
		pterm.Success.Printf("%s deactivated; %d session(s) revoked, %d impersonation session(s) ended\n", u.Username, n, ended)
		return nil
	},
}

var usersPasswordCmd = &cobra.Command{
	Use:   "set-password <username>",
	Short: "Replace a user's password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := createPassword
		if password == "" {
			password = os.Getenv(passwordEnv)
		}
		if password == "" {
			return fmt.Errorf("a password is required (--password or %s)", passwordEnv)
		}
		if err := userService().SetPassword(cmd.Context(), args[0], password); err != nil {
			return fmt.Errorf("set password: %w", err)
		}
		pterm.Success.Printf("Password updated for %s\n", args[0])
		return nil
	},
}

var usersAdminsCmd = &cobra.Command{
	Use:   "admins",
	Short: "List admin users",
	RunE: func(cmd *cobra.Command, args []string) error {
		admins, err := userService().ListAdmins(cmd.Context())
		if err != nil {
			return fmt.Errorf("list admins: %w", err)
		}
		if len(admins) == 0 {
			pterm.Info.Println("No admin users")
			return nil
		}
		return pterm.DefaultTable.WithHasHeader().WithData(userTable(admins)).Render()
	},
}

func userService() *userservice.Service {
	return userservice.NewService(userrepo.NewBunRepository(bunDB), security.NewHasher(cfg.BcryptCost))
}

func userTable(users []*domain.User) pterm.TableData {
	table := pterm.TableData{{"USERNAME", "EMAIL", "ACTIVE", "CREATED"}}
	for _, u := range users {
		table = append(table, []string{u.Username, u.Email, fmt.Sprintf("%t", u.IsActive), u.CreatedAt.Format("2006-01-02 15:04")})
	}
	return table
}

func init() {
	usersCreateCmd.Flags().StringVar(&createEmail, "email", "", "Email address (required)")
	usersCreateCmd.Flags().StringVar(&createFullName, "full-name", "", "Display name")
	usersCreateCmd.Flags().StringVar(&createPassword, "password", "", "Password (or set "+passwordEnv+")")
	usersCreateCmd.Flags().BoolVar(&createAdmin, "admin", false, "Create the user as an admin")
	_ = usersCreateCmd.MarkFlagRequired("email")
	usersPasswordCmd.Flags().StringVar(&createPassword, "password", "", "New password (or set "+passwordEnv+")")

	usersCmd.AddCommand(usersCreateCmd)
	usersCmd.AddCommand(usersPromoteCmd)
	usersCmd.AddCommand(usersDemoteCmd)
	usersCmd.AddCommand(usersDeactivateCmd)
	usersCmd.AddCommand(usersPasswordCmd)
	usersCmd.AddCommand(usersAdminsCmd)
}
