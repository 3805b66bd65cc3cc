package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/trustlens/internal/model"
)

// ParticipantsOptions holds flags for the participants command.
type ParticipantsOptions struct {
	Query   string
	Page    int
	PerPage int
	Filters map[string]string
}

// NewParticipantsCommand creates the participants command.
func NewParticipantsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParticipantsOptions{}

	cmd := &cobra.Command{
		Use:   "participants",
		Short: "List participants",
		Long: `List participants one page at a time.

--query matches display names and PIDs case-insensitively; --filter
narrows by exact field value (e.g. --filter status=frozen,type=person).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParticipants(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "free-text search")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number (1-based)")
	cmd.Flags().IntVar(&opts.PerPage, "per-page", model.DefaultPerPage, "items per page")
	cmd.Flags().StringToStringVar(&opts.Filters, "filter", nil, "exact field filters (key=value)")

	return cmd
}

func runParticipants(rootOpts *RootOptions, opts *ParticipantsOptions, cmd *cobra.Command) error {
	formatter := rootOpts.formatter(cmd)

	api, _, closeFn, err := rootOpts.openAPI(formatter)
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := api.Participants(cmd.Context(), model.ListParams{
		Q:       opts.Query,
		Page:    opts.Page,
		PerPage: opts.PerPage,
		Filters: opts.Filters,
	})
	return render(formatter, res, err, participantsText)
}

func participantsText(p model.Page[model.Participant]) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PID\tNAME\tTYPE\tSTATUS")
	for _, it := range p.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.PID, it.DisplayName, it.Type, it.Status.ToDisplay())
	}
	w.Flush()
	fmt.Fprintf(&b, "page %d: %d of %d", p.Page, len(p.Items), p.Total)
	return b.String()
}
