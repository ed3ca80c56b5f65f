package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/landlordcomply/landlordcomply/internal/infrastructure/auth"
)

// IssuedToken is printed by token issue.
type IssuedToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// String prints the bare token so it can be captured by a shell.
func (t IssuedToken) String() string { return t.Token }

// NewTokenCmd issues bearer tokens signed with the configured secret.
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue API bearer tokens",
	}
	cmd.AddCommand(newTokenIssueCmd())
	return cmd
}

func newTokenIssueCmd() *cobra.Command {
	var (
		userID string
		email  string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:     "issue",
		Short:   "Sign a token for a user",
		Example: "  export LANDLORD_TOKEN=$(landlordctl token issue --user u-123)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg, err := cliCtx.Config()
			if err != nil {
				return err
			}
			svc, err := auth.NewTokenService(cfg.Auth, auth.WithClock(cliCtx.Deps.Now))
			if err != nil {
				return err
			}
			raw, exp, err := svc.Issue(userID, email, ttl)
			if err != nil {
				return err
			}
			return PrintResult(cmd, IssuedToken{Token: raw, UserID: userID, ExpiresAt: exp})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to put in the subject claim")
	cmd.Flags().StringVar(&email, "email", "", "optional email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: auth.token_ttl)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
