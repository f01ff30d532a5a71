package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	auditrepo "truledgr/backend/internal/audit/repository"
	userrepo "truledgr/backend/internal/user/repository"
)

var (
	auditUser  string
	auditLimit int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List recent audit log entries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := ""
		if auditUser != "" {
			u, err := userrepo.NewBunRepository(bunDB).GetByUsername(cmd.Context(), auditUser)
			if err != nil {
				return fmt.Errorf("lookup user: %w", err)
			}
			if u == nil {
				return fmt.Errorf("user %q not found", auditUser)
			}
			userID = u.ID
		}
		entries, err := auditrepo.NewBunRepository(bunDB).List(cmd.Context(), userID, auditLimit, 0)
		if err != nil {
			return fmt.Errorf("list audit logs: %w", err)
		}
		if len(entries) == 0 {
			pterm.Info.Println("No audit entries")
			return nil
		}
		table := pterm.TableData{{"TIME", "ACTION", "ACTOR", "SUBJECT", "RESOURCE", "IP"}}
		for _, e := range entries {
			table = append(table, []string{
				e.CreatedAt.Format("2006-01-02 15:04:05"),
				e.Action,
				dash(e.ActorUserID),
				dash(e.SubjectUserID),
				dash(e.Resource + ":" + e.ResourceID),
				dash(e.IP),
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
	},
}

func dash(s string) string {
	if s == "" || s == ":" {
		return "-"
	}
	return s
}

func init() {
	auditCmd.Flags().StringVar(&auditUser, "user", "", "Only entries where this username is actor or subject")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "Maximum number of entries")
}
