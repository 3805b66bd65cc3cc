package cli

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/trustlens/internal/model"
)

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	var equivalent string

	cmd := &cobra.Command{
		Use:           "snapshot",
		Short:         "Fetch the aggregate graph snapshot",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			api, _, closeFn, err := rootOpts.openAPI(formatter)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := api.GraphSnapshot(cmd.Context(), model.SnapshotParams{Equivalent: equivalent})
			return render(formatter, res, err, snapshotText)
		},
	}

	cmd.Flags().StringVarP(&equivalent, "equivalent", "e", "", "restrict to one equivalent code")

	return cmd
}

// EgoOptions holds flags for the ego command.
type EgoOptions struct {
	Depth      int
	Equivalent string
	Statuses   []string
}

// NewEgoCommand creates the ego command.
func NewEgoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EgoOptions{}

	cmd := &cobra.Command{
		Use:   "ego <pid>",
		Short: "Fetch the ego network around a participant",
		Long: `Fetch the participants within --depth trust-line hops of <pid>, and the
trust lines among them. An unknown <pid> returns the whole snapshot.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			api, _, closeFn, err := rootOpts.openAPI(formatter)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := api.GraphEgo(cmd.Context(), model.EgoParams{
				Root:       args[0],
				Depth:      opts.Depth,
				Equivalent: opts.Equivalent,
				Statuses:   opts.Statuses,
			})
			return render(formatter, res, err, snapshotText)
		},
	}

	cmd.Flags().IntVar(&opts.Depth, "depth", 1, "hops from the root")
	cmd.Flags().StringVarP(&opts.Equivalent, "equivalent", "e", "", "restrict to one equivalent code")
	cmd.Flags().StringSliceVar(&opts.Statuses, "status", nil, "trust-line statuses to follow (default all)")

	return cmd
}

// NewCyclesCommand creates the cycles command.
func NewCyclesCommand(rootOpts *RootOptions) *cobra.Command {
	var equivalent string

	cmd := &cobra.Command{
		Use:           "cycles",
		Short:         "List clearing cycles",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			api, _, closeFn, err := rootOpts.openAPI(formatter)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := api.ClearingCycles(cmd.Context(), model.SnapshotParams{Equivalent: equivalent})
			return render(formatter, res, err, cyclesText)
		},
	}

	cmd.Flags().StringVarP(&equivalent, "equivalent", "e", "", "restrict to one equivalent code")

	return cmd
}

func snapshotText(s model.GraphSnapshot) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "participants\t%d\n", len(s.Participants))
	fmt.Fprintf(w, "trustlines\t%d\n", len(s.TrustLines))
	fmt.Fprintf(w, "equivalents\t%d\n", len(s.Equivalents))
	fmt.Fprintf(w, "debts\t%d\n", len(s.Debts))
	fmt.Fprintf(w, "incidents\t%d\n", len(s.Incidents))
	fmt.Fprintf(w, "transactions\t%d\n", len(s.Transactions))
	w.Flush()

	if len(s.TrustLines) > 0 {
		b.WriteString("\n")
		w = tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "EQ\tFROM\tTO\tLIMIT\tUSED\tSTATUS")
		for _, tl := range s.TrustLines {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", tl.Equivalent, tl.From, tl.To, tl.Limit, tl.Used, tl.Status)
		}
		w.Flush()
	}
	return strings.TrimRight(b.String(), "\n")
}

func cyclesText(c model.ClearingCycles) string {
	if len(c) == 0 {
		return "no clearing cycles"
	}
	codes := make([]string, 0, len(c))
	for code := range c {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	var b strings.Builder
	for _, code := range codes {
		set := c[code]
		fmt.Fprintf(&b, "%s: %d cycle(s)\n", code, len(set.Cycles))
		for _, cyc := range set.Cycles {
			if len(cyc) == 0 {
				continue
			}
			path := make([]string, 0, len(cyc)+1)
			for _, e := range cyc {
				path = append(path, e.Debtor)
			}
			path = append(path, cyc[len(cyc)-1].Creditor)
			fmt.Fprintf(&b, "  %s (%s)\n", strings.Join(path, " -> "), cyc[0].Amount)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
