package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/feedback-service/internal/domain"
	"github.com/spec-kit/feedback-service/internal/notify"
	"github.com/spec-kit/feedback-service/internal/service"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema for the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx.forceMigrations = true
			if _, err := ctx.open(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date (%s)\n", ctx.config.Store.Driver)
			return nil
		},
	}
}

func newCategoriesCommand(ctx *commandContext) *cobra.Command {
	categoriesCmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage the department/category taxonomy",
	}
	categoriesCmd.AddCommand(&cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Upsert every category listed in a YAML taxonomy file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taxonomy, err := service.LoadTaxonomyFile(args[0])
			if err != nil {
				return err
			}
			backend, err := ctx.open(cmd.Context())
			if err != nil {
				return err
			}
			written, err := service.NewCategoryService(backend.Stores.Categories, ctx.logger).Seed(cmd.Context(), taxonomy)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d categories\n", written)
			return nil
		},
	})
	categoriesCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show the taxonomy",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := ctx.open(cmd.Context())
			if err != nil {
				return err
			}
			taxonomy, err := service.NewCategoryService(backend.Stores.Categories, ctx.logger).Taxonomy(cmd.Context())
			if err != nil {
				return err
			}
			printTaxonomy(cmd.OutOrStdout(), taxonomy)
			return nil
		},
	})
	return categoriesCmd
}

func printTaxonomy(out io.Writer, taxonomy domain.Taxonomy) {
	if len(taxonomy) == 0 {
		fmt.Fprintln(out, "No categories")
		return
	}
	var rows [][]string
	departments := make([]string, 0, len(taxonomy))
	for dept := range taxonomy {
		departments = append(departments, dept)
	}
	sort.Strings(departments)
	for _, dept := range departments {
		mains := make([]string, 0, len(taxonomy[dept]))
		for main := range taxonomy[dept] {
			mains = append(mains, main)
		}
		sort.Strings(mains)
		for _, main := range mains {
			rows = append(rows, []string{dept, main, strings.Join(taxonomy[dept][main], ", ")})
		}
	}
	fmt.Fprintln(out, renderTable("", []string{"Department", "Category", "Subcategories"}, rows, nil))
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var ownerID string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print ticket statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := ctx.open(cmd.Context())
			if err != nil {
				return err
			}
			svc := service.NewStatsService(backend.Stores.Tickets)
			var stats *domain.TicketStats
			if ownerID != "" {
				stats, err = svc.ForOwner(cmd.Context(), ownerID)
			} else {
				stats, err = svc.Global(cmd.Context())
			}
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			printStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
	cmd.Flags().StringVar(&ownerID, "owner", "", "Limit statistics to one submitter id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of tables")
	return cmd
}

func printStats(out io.Writer, stats *domain.TicketStats) {
	summary := [][]string{
		{"Total", strconv.FormatInt(stats.TotalCount, 10)},
		{"Feedback", strconv.FormatInt(stats.FeedbackCount, 10)},
		{"Requests", strconv.FormatInt(stats.RequestCount, 10)},
		{"Average rating", strconv.FormatFloat(stats.AverageRating, 'f', 2, 64)},
	}
	for _, s := range stats.StatusCounts {
		summary = append(summary, []string{"Status " + string(s.Status), strconv.FormatInt(s.Count, 10)})
	}
	fmt.Fprintln(out, renderTable("Tickets", []string{"Metric", "Value"}, summary, []columnAlignment{alignLeft, alignRight}))

	if len(stats.RatingDistribution) > 0 {
		rows := make([][]string, 0, len(stats.RatingDistribution))
		for _, b := range stats.RatingDistribution {
			rows = append(rows, []string{strconv.Itoa(int(b.Rating)), strconv.FormatInt(b.Count, 10)})
		}
		fmt.Fprintln(out, renderTable("Ratings", []string{"Rating", "Count"}, rows, []columnAlignment{alignRight, alignRight}))
	}
	if len(stats.PopularCategories) > 0 {
		rows := make([][]string, 0, len(stats.PopularCategories))
		for _, c := range stats.PopularCategories {
			rows = append(rows, []string{c.Category, strconv.FormatInt(c.Count, 10)})
		}
		fmt.Fprintln(out, renderTable("Popular categories", []string{"Category", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	}
}

func newUsersCommand(ctx *commandContext) *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage accounts",
	}
	setRole := func(role domain.Role) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			backend, err := ctx.open(cmd.Context())
			if err != nil {
				return err
			}
			auth := service.NewAuthService(ctx.config.Auth, backend.Stores.Users, ctx.logger)
			user, err := auth.SetRole(cmd.Context(), args[0], role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", user.Email, user.Role)
			return nil
		}
	}
	usersCmd.AddCommand(&cobra.Command{
		Use:   "promote <email>",
		Short: "Grant the admin role",
		Args:  cobra.ExactArgs(1),
		RunE:  setRole(domain.RoleAdmin),
	})
	usersCmd.AddCommand(&cobra.Command{
		Use:   "demote <email>",
		Short: "Revoke the admin role",
		Args:  cobra.ExactArgs(1),
		RunE:  setRole(domain.RoleUser),
	})
	return usersCmd
}

func newNotificationsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	notificationsCmd := &cobra.Command{
		Use:   "notifications",
		Short: "Inspect notification delivery",
	}
	failedCmd := &cobra.Command{
		Use:   "failed",
		Short: "List failed deliveries recorded in Redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := ctx.open(cmd.Context())
			if err != nil {
				return err
			}
			if !backend.Redis.Enabled() {
				return errors.New("failed deliveries are only kept across processes when REDIS_ADDR is set")
			}
			sink := notify.NewRedisFailureSink(backend.Redis.Client,
				ctx.config.Notification.FailedListKey, ctx.config.Notification.FailedListMaxLen)
			failures, err := sink.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(failures) == 0 {
				fmt.Fprintln(out, "No failed deliveries")
				return nil
			}
			rows := make([][]string, 0, len(failures))
			for _, f := range failures {
				rows = append(rows, []string{f.FailedAt.Local().Format(time.DateTime), string(f.Kind), f.CardID, f.To, f.Error})
			}
			fmt.Fprintln(out, renderTable("Failed deliveries", []string{"When", "Kind", "Card", "To", "Error"}, rows, nil))
			return nil
		},
	}
	failedCmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to show")
	notificationsCmd.AddCommand(failedCmd)
	return notificationsCmd
}
