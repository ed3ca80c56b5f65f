package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/landlordcomply/landlordcomply/pkg/client"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

// NewCasesCmd works disposition cases through the API server.
func NewCasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cases",
		Short: "List, inspect and transition cases on the API server",
		Long:  "Requires --server and a bearer token from --token or $" + envToken + ".",
	}
	cmd.AddCommand(newCasesListCmd(), newCasesGetCmd(), newCasesTransitionCmd())
	return cmd
}

// CaseTable renders cases as rows.
type CaseTable struct {
	Cases []*client.Case `json:"cases"`
	Total int64          `json:"total"`
}

func (t CaseTable) TableHeaders() []string {
	return []string{"ID", "STATUS", "MOVE OUT", "DUE", "DAYS LEFT", "URGENCY", "REFUND"}
}

func (t CaseTable) TableRows() [][]string {
	rows := make([][]string, 0, len(t.Cases))
	for _, c := range t.Cases {
		rows = append(rows, []string{
			c.ID,
			c.Status,
			c.MoveOutDate.Format(dateLayout),
			c.DueDate.Format(dateLayout),
			strconv.Itoa(c.Deadline.DaysLeft),
			c.Deadline.Urgency,
			money(c.RefundAmount),
		})
	}
	return rows
}

// CaseView is one case in text form.
type CaseView struct {
	*client.Case
}

func (v CaseView) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Case %s  [%s]\n", v.ID, v.Status)
	fmt.Fprintf(&sb, "  Move-out:    %s\n", v.MoveOutDate.Format(dateLayout))
	fmt.Fprintf(&sb, "  Due:         %s (%d days, %s)\n", v.DueDate.Format(dateLayout), v.Deadline.DaysLeft, v.Deadline.Urgency)
	fmt.Fprintf(&sb, "  Deposit:     %s + interest %s\n", money(v.DepositAmount), money(v.DepositInterest))
	fmt.Fprintf(&sb, "  Deductions:  %s (%d)\n", money(v.TotalDeductions), len(v.Deductions))
	fmt.Fprintf(&sb, "  Refund:      %s\n", money(v.RefundAmount))
	if len(v.AllowedTransitions) > 0 {
		fmt.Fprintf(&sb, "  Next:        %s\n", strings.Join(v.AllowedTransitions, ", "))
	}
	for _, it := range v.Checklist {
		mark := " "
		if it.Completed {
			mark = "x"
		}
		fmt.Fprintf(&sb, "  [%s] %s\n", mark, it.Label)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func apiClient(cmd *cobra.Command) (*client.Client, error) {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return nil, err
	}
	return cliCtx.Client()
}

func newCasesListCmd() *cobra.Command {
	var (
		status        string
		limit, offset int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			list, err := c.Cases().List(ctx, client.ListCasesOptions{
				Status: strings.ToUpper(status),
				Limit:  limit,
				Offset: offset,
			})
			if err != nil {
				return err
			}
			return PrintResult(cmd, CaseTable{Cases: list.Cases, Total: list.Total})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only cases in this status")
	cmd.Flags().IntVar(&limit, "limit", 20, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	return cmd
}

func newCasesGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <case-id>",
		Short: "Show one case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			got, err := c.Cases().Get(ctx, args[0])
			if err != nil {
				return err
			}
			return PrintResult(cmd, CaseView{got})
		},
	}
}

func newCasesTransitionCmd() *cobra.Command {
	var (
		req    client.TransitionRequest
		sentAt string
	)
	cmd := &cobra.Command{
		Use:   "transition <case-id>",
		Short: "Move a case to another status",
		Example: "  landlordctl cases transition c-1 --to SENT --method CERTIFIED_MAIL \\\n" +
			"      --sent-at 2024-03-12 --tracking 9400100000000000000000",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(req.To) == "" {
				return errors.InvalidParam("--to is required")
			}
			req.To = strings.ToUpper(req.To)
			req.DeliveryMethod = strings.ToUpper(req.DeliveryMethod)
			if sentAt != "" {
				req.SentAt = &sentAt
			}
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			updated, err := c.Cases().Transition(ctx, args[0], req)
			if err != nil {
				return err
			}
			return PrintResult(cmd, CaseView{updated})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.To, "to", "", "target status")
	f.StringVar(&req.DeliveryMethod, "method", "", "delivery method, required for SENT")
	f.StringVar(&sentAt, "sent-at", "", "date the letter was sent, YYYY-MM-DD")
	f.StringVar(&req.TrackingNumber, "tracking", "", "carrier tracking number")
	f.StringVar(&req.DeliveryAddress, "address", "", "address the letter was sent to")
	f.StringSliceVar(&req.ProofIDs, "proof", nil, "ids of proof documents")
	f.StringVar(&req.ClosureReason, "reason", "", "closure reason, for CLOSED")
	return cmd
}
