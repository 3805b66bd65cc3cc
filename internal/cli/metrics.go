package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/trustlens/internal/analytics"
	"github.com/roach88/trustlens/internal/config"
	"github.com/roach88/trustlens/internal/model"
)

// NewMetricsCommand creates the metrics command.
func NewMetricsCommand(rootOpts *RootOptions) *cobra.Command {
	var equivalent string

	cmd := &cobra.Command{
		Use:   "metrics <pid>",
		Short: "Compute participant analytics",
		Long: `Compute balances and activity for <pid>. With --equivalent, also
counterparty concentration, the net-position distribution and rank, and
capacity with bottleneck lines below --threshold.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			api, cfg, closeFn, err := rootOpts.openAPI(formatter)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := api.ParticipantMetrics(cmd.Context(), args[0], model.MetricsParams{
				Equivalent: equivalent,
				Threshold:  cfg.BottleneckThreshold,
			})
			return render(formatter, res, err, metricsText)
		},
	}

	cmd.Flags().StringVarP(&equivalent, "equivalent", "e", "", "equivalent code for the per-equivalent sections")
	cmd.Flags().String("threshold", "", "bottleneck ratio of available to limit (default from config, 0.1)")
	_ = rootOpts.viper.BindPFlag(config.KeyBottleneckThreshold, cmd.Flags().Lookup("threshold"))

	return cmd
}

func metricsText(m analytics.ParticipantMetrics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "participant %s\n\n", m.PID)

	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EQ\tOUT LIMIT\tOUT USED\tIN LIMIT\tIN USED\tDEBT\tCREDIT\tNET")
	for _, r := range m.Balances {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Equivalent, r.OutgoingLimit, r.OutgoingUsed, r.IncomingLimit, r.IncomingUsed,
			r.TotalDebt, r.TotalCredit, r.Net)
	}
	w.Flush()

	if c := m.Concentration; c != nil {
		fmt.Fprintf(&b, "\nconcentration (%s)\n", m.Equivalent)
		w = tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SIDE\tTOP1\tTOP5\tHHI\tLEVEL")
		fmt.Fprintf(w, "creditors\t%s\t%s\t%s\t%s\n", c.Creditors.Top1, c.Creditors.Top5, c.Creditors.HHI, c.Creditors.Level)
		fmt.Fprintf(w, "debtors\t%s\t%s\t%s\t%s\n", c.Debtors.Top1, c.Debtors.Top5, c.Debtors.HHI, c.Debtors.Level)
		w.Flush()
	}
	if r := m.Rank; r != nil {
		fmt.Fprintf(&b, "\nrank %d of %d (net %s, percentile %s)\n", r.Rank, r.Of, r.Net, r.Percentile)
	}
	if c := m.Capacity; c != nil {
		fmt.Fprintf(&b, "\ncapacity: outgoing %s, incoming %s (threshold %s)\n",
			c.OutgoingUtilization, c.IncomingUtilization, c.Threshold)
	}

	b.WriteString("\nactivity\n")
	w = tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DAYS\tTRUSTLINES\tTRANSACTIONS\tINCIDENTS")
	for _, a := range m.Activity {
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\n", a.Days, a.TrustLinesCreated, a.TransactionsInitiated, a.Incidents)
	}
	w.Flush()
	return strings.TrimRight(b.String(), "\n")
}
