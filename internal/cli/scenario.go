package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/trustlens/internal/gateway"
	"github.com/roach88/trustlens/internal/simulator"
)

// ScenarioList is the output of the scenario command.
type ScenarioList struct {
	Current   string   `json:"current"`
	Available []string `json:"available"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "List simulator scenarios",
		Long: `List the scenarios found in the fixture tree and mark the one selected
by configuration (--scenario, TRUSTLENS_SCENARIO or the config file).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(rootOpts, cmd)
		},
	}

	return cmd
}

func runScenario(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig(formatter)
	if err != nil {
		return err
	}
	fsys, err := gateway.Fixtures(cfg.FixturesRoot)
	if err != nil {
		if ferr := formatter.Error(ErrCodeConfig, err.Error(), nil); ferr != nil {
			return ferr
		}
		return WrapExitError(ExitCommandError, "open fixtures", err)
	}
	names, err := simulator.ScenarioNames(fsys)
	if err != nil {
		return formatter.Raised(err)
	}

	current := cfg.Scenario
	if current == "" {
		current = simulator.DefaultScenario
	}
	list := ScenarioList{Current: current, Available: names}
	if list.Available == nil {
		list.Available = []string{}
	}
	return formatter.Result(list, func() string { return scenarioText(list) })
}

func scenarioText(l ScenarioList) string {
	if len(l.Available) == 0 {
		return "no scenarios (no latency, no overrides)"
	}
	lines := make([]string, len(l.Available))
	for i, name := range l.Available {
		mark := "  "
		if name == l.Current {
			mark = "* "
		}
		lines[i] = mark + name
	}
	return strings.Join(lines, "\n")
}
