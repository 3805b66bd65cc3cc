// Package analytics computes per-participant financial metrics from a graph
// snapshot.
//
// Compute derives, for one participant:
//
//   - balance rows per equivalent (trust-line limits and usage in both
//     directions, debt and credit totals, net = credit - debt)
//   - the counterparty split of debts into creditors (those the participant
//     owes) and debtors (those who owe the participant), with shares
//   - concentration of each side: top1, top5, HHI and a level label
//   - the population distribution of net positions in equal-width bins
//   - rank and percentile of the participant's net position
//   - capacity (limit, usage, utilization) and bottleneck trust lines
//   - recent activity counts over fixed windows
//
// Everything except balance rows and activity is scoped to one equivalent and
// is omitted when Params.Equivalent is empty, since amounts in different
// equivalents cannot be added.
//
// All arithmetic is exact: amounts become atoms (package amount) and ratios are
// shopspring decimals rounded to amount.RatioPlaces. Outputs are strings, never
// floats.
package analytics
