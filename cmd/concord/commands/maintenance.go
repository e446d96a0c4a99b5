package commands

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.trai.ch/concord/internal/core/domain"
)

const fieldWidth = 12

func (c *CLI) newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation pass now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep, err := c.app.Reconcile(cmd.Context())
			if err != nil {
				return err
			}

			p := c.printer(cmd)
			if rep.Open > 0 {
				p.Warn("reconciled with %d open discrepancies", rep.Open)
			} else {
				p.Success("reconciled")
			}
			p.Field(fieldWidth, "scanned", strconv.Itoa(rep.Scanned))
			p.Field(fieldWidth, "detected", strconv.Itoa(rep.Detected))
			p.Field(fieldWidth, "resolved", strconv.Itoa(rep.Resolved))
			p.Field(fieldWidth, "exhausted", strconv.Itoa(rep.Exhausted))
			p.Field(fieldWidth, "duration", rep.Duration.Round(time.Millisecond).String())
			return nil
		},
	}
}

func (c *CLI) newDiscrepanciesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "discrepancies",
		Aliases: []string{"disc"},
		Short:   "List derived stores lagging the canonical version",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, err := c.app.Discrepancies(cmd.Context())
			if err != nil {
				return err
			}

			p := c.printer(cmd)
			if len(ds) == 0 {
				p.Success("no discrepancies")
				return nil
			}
			rows := make([][]string, 0, len(ds))
			for _, d := range ds {
				rows = append(rows, []string{
					d.Key.String(),
					string(d.Role),
					formatVersion(d.CanonicalVersion),
					formatVersion(d.ObservedVersion),
					strconv.Itoa(d.Attempts),
					discrepancyState(d),
				})
			}
			p.Table([]string{"key", "role", "canonical", "observed", "attempts", "state"}, rows)
			return nil
		},
	}
}

func (c *CLI) newSuppressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suppress <type> <id> <role>",
		Short: "Stop alerting on a discrepancy until the entity changes",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, id, err := entityArgs(args)
			if err != nil {
				return err
			}
			role, err := domain.ParseStoreRole(args[2])
			if err != nil {
				return err
			}
			if err := c.app.Suppress(cmd.Context(), t, id, role); err != nil {
				return err
			}
			c.printer(cmd).Success("suppressed %s:%s on %s", t, id, role)
			return nil
		},
	}
}

func (c *CLI) newDeadLettersCmd() *cobra.Command {
	var replay bool
	cmd := &cobra.Command{
		Use:   "deadletters",
		Short: "List propagation failures that were given up on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := c.printer(cmd)
			if replay {
				rep, err := c.app.ReplayDeadLetters(cmd.Context())
				if err != nil {
					return err
				}
				if rep.Failed > 0 {
					p.Warn("replayed %d, %d still failing", rep.Replayed, rep.Failed)
				} else {
					p.Success("replayed %d", rep.Replayed)
				}
				if rep.Dropped > 0 {
					p.Field(fieldWidth, "dropped", strconv.Itoa(rep.Dropped))
				}
				return nil
			}

			dls, err := c.app.DeadLetters(cmd.Context())
			if err != nil {
				return err
			}
			if len(dls) == 0 {
				p.Success("no dead letters")
				return nil
			}
			rows := make([][]string, 0, len(dls))
			for _, dl := range dls {
				rows = append(rows, []string{
					dl.Key.String(),
					string(dl.Role),
					formatVersion(dl.Version),
					strconv.Itoa(dl.Attempts),
					dl.FailedAt.UTC().Format(time.RFC3339),
					dl.Reason,
				})
			}
			p.Table([]string{"key", "role", "version", "attempts", "failed at", "reason"}, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&replay, "replay", false, "Re-apply every dead letter from the canonical store")

	return cmd
}

func (c *CLI) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show propagation, cache and reconciliation counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := c.app.Stats(cmd.Context())
			if err != nil {
				return err
			}

			p := c.printer(cmd)
			p.Text("propagation\n")
			p.Field(fieldWidth, "applied", strconv.FormatInt(s.Propagation.Applied, 10))
			p.Field(fieldWidth, "coalesced", strconv.FormatInt(s.Propagation.Coalesced, 10))
			p.Field(fieldWidth, "stale", strconv.FormatInt(s.Propagation.Stale, 10))
			p.Field(fieldWidth, "retried", strconv.FormatInt(s.Propagation.Retried, 10))
			p.Field(fieldWidth, "failed", strconv.FormatInt(s.Propagation.Failed, 10))
			p.Field(fieldWidth, "shed", strconv.FormatInt(s.Propagation.Shed, 10))
			p.Field(fieldWidth, "in flight", strconv.Itoa(s.Propagation.InFlight))
			p.Field(fieldWidth, "queued", strconv.Itoa(s.Propagation.Queued))
			p.Text("cache\n")
			p.Field(fieldWidth, "hits", strconv.FormatInt(s.CacheHits, 10))
			p.Field(fieldWidth, "misses", strconv.FormatInt(s.CacheMisses, 10))
			p.Field(fieldWidth, "bypasses", strconv.FormatInt(s.CacheBypasses, 10))
			p.Text("consistency\n")
			p.Field(fieldWidth, "passes", strconv.FormatInt(s.ReconcilePasses, 10))
			p.Field(fieldWidth, "open", strconv.Itoa(s.OpenDiscrepancies))
			p.Field(fieldWidth, "suppressed", strconv.Itoa(s.Suppressed))
			p.Field(fieldWidth, "exhausted", strconv.Itoa(s.Exhausted))
			p.Field(fieldWidth, "dead letters", strconv.Itoa(s.DeadLetters))
			return nil
		},
	}
}

func formatVersion(v domain.Version) string {
	return strconv.FormatInt(int64(v), 10)
}

func discrepancyState(d domain.Discrepancy) string {
	switch {
	case d.Suppressed:
		return "suppressed"
	case d.Exhausted:
		return "exhausted"
	default:
		return "open"
	}
}
