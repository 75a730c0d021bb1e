package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"weatherbot/config"
	"weatherbot/metrics"
)

const adminUsage = `usage: weatherbot admin <command> [args...]

commands:
  list [--all]                      list participants
  set-score <user_id> <total>       override a running total
  set-active <user_id> <true|false> toggle a participant
  reconcile [--fix]                 compare running totals with daily sums
  backfill                          score observations recorded before scoring existed
  award                             run an immediate check for every active user
  quota                             show today's provider budget`

// Admin runs one admin subcommand against the configured storage
func Admin(ctx context.Context, args []string, out io.Writer) error {
	cfg := config.Get()
	ConfigureLogging(cfg)

	app, err := NewApp(ctx, cfg, metrics.New())
	if err != nil {
		return err
	}
	defer app.Close()

	return runAdmin(ctx, app, adminID(), args, out)
}

func adminID() string {
	if id := os.Getenv("ADMIN_ID"); id != "" {
		return id
	}
	return "cli"
}

func runAdmin(ctx context.Context, app *App, admin string, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%s", adminUsage)
	}

	switch args[0] {
	case "list":
		all := len(args) > 1 && args[1] == "--all"
		users, err := app.Engine.ListUsers(ctx, all)
		if err != nil {
			return err
		}
		if len(users) == 0 {
			fmt.Fprintln(out, "No participants")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USER\tNAME\tLOCATION\tACTIVE\tJOINED")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", u.UserID, u.DisplayName, u.DisplayLocation(), u.IsActive, u.JoinedAt.Format("2006-01-02"))
		}
		return w.Flush()

	case "set-score":
		if len(args) != 3 {
			return fmt.Errorf("usage: weatherbot admin set-score <user_id> <total>")
		}
		total, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid total %q: %w", args[2], err)
		}
		if err := app.Engine.SetScore(ctx, admin, args[1], total); err != nil {
			return err
		}
		fmt.Fprintf(out, "Set score of %s to %d\n", args[1], total)
		return nil

	case "set-active":
		if len(args) != 3 {
			return fmt.Errorf("usage: weatherbot admin set-active <user_id> <true|false>")
		}
		active, err := strconv.ParseBool(args[2])
		if err != nil {
			return fmt.Errorf("invalid active flag %q: %w", args[2], err)
		}
		if err := app.Engine.SetActive(ctx, admin, args[1], active); err != nil {
			return err
		}
		fmt.Fprintf(out, "Set %s active=%t\n", args[1], active)
		return nil

	case "reconcile":
		fix := len(args) > 1 && args[1] == "--fix"
		drifts, err := app.Engine.Reconcile(ctx, fix)
		if err != nil {
			return err
		}
		if len(drifts) == 0 {
			fmt.Fprintln(out, "No drift found")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USER\tSTORED\tEXPECTED")
		for _, d := range drifts {
			fmt.Fprintf(w, "%s\t%d\t%d\n", d.UserID, d.Stored, d.Expected)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if fix {
			fmt.Fprintf(out, "Repaired %d running totals\n", len(drifts))
		}
		return nil

	case "backfill":
		n, err := app.Engine.BackfillLegacy(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Backfilled %d observations\n", n)
		return nil

	case "award":
		result, err := app.Engine.AwardPoints(ctx)
		if err != nil {
			return err
		}
		if result.SkipReason != "" {
			fmt.Fprintf(out, "Skipped: %s\n", result.SkipReason)
			return nil
		}
		fmt.Fprintf(out, "Checked %d of %d users, %d failed, %d awards totalling %d points\n",
			result.Checked, result.Users, result.Failed, result.Awards, result.Points)
		return nil

	case "quota":
		state, err := app.Engine.QuotaStatus(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %d of %d calls used, %d remaining\n",
			state.Date.Format("2006-01-02"), state.Used, state.Limit, state.Remaining)
		return nil
	}

	return fmt.Errorf("unknown admin command: %s\n%s", args[0], adminUsage)
}
