package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"nedwiyt/internal/auth"
	"nedwiyt/internal/backend"
	"nedwiyt/internal/config"
	"nedwiyt/internal/core"
	"nedwiyt/internal/datastore"
	"nedwiyt/internal/log"
	"nedwiyt/internal/storage"
)

// Options are the collaborators of the admin commands. Zero values fall
// back to the process environment.
type Options struct {
	LoadConfig func() (*config.Config, error)
	Logger     *log.Logger
	Now        func() time.Time
}

type admin struct {
	opts     Options
	email    string
	password string
}

// NewRootCommand builds the nedwiyt-admin command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.LoadConfig == nil {
		opts.LoadConfig = LoadConfig
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	a := &admin{opts: opts}

	root := &cobra.Command{
		Use:           "nedwiyt-admin",
		Short:         "Administer a nedwiyt inventory backend",
		Long:          `Create users, inspect categories and stats, and apply schema migrations against the backend configured in the environment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.email, "login-email", "", "account to sign in with on hosted backends")
	root.PersistentFlags().StringVar(&a.password, "login-password", "", "password for --login-email")

	root.AddCommand(a.userCmd())
	root.AddCommand(a.categoriesCmd())
	root.AddCommand(a.statsCmd())
	root.AddCommand(a.migrateCmd())
	return root
}

func (a *admin) userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage dashboard accounts",
	}

	var email, password string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create an account on a self-hosted backend",
		Long:  `Create a dashboard account in the sqlite or postgres backend. An existing email is left untouched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.opts.LoadConfig()
			if err != nil {
				return err
			}
			switch backend.BackendType(cfg.Backend) {
			case backend.SQLiteBackend, backend.PostgresBackend:
			default:
				return fmt.Errorf("user add needs a persistent self-hosted backend, not %q", cfg.Backend)
			}

			res, err := OpenBackend(cmd.Context(), cfg, a.opts.Logger)
			if err != nil {
				return err
			}
			defer res.Close()

			u, created, err := auth.EnsureUser(cmd.Context(), res.Users, email, password)
			if err != nil {
				return fmt.Errorf("add user: %s", core.UserMessage(err))
			}
			out := cmd.OutOrStdout()
			if !created {
				fmt.Fprintf(out, "User %s already exists (%s)\n", u.Email, u.ID)
				return nil
			}
			fmt.Fprintf(out, "Created user %s (%s)\n", u.Email, u.ID)
			return nil
		},
	}
	add.Flags().StringVar(&email, "email", "", "account email")
	add.Flags().StringVar(&password, "password", "", "account password, at least 8 characters")
	_ = add.MarkFlagRequired("email")
	_ = add.MarkFlagRequired("password")

	cmd.AddCommand(add)
	return cmd
}

func (a *admin) categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Inspect product categories",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd.Context(), func(_ *config.Config, store datastore.Store) error {
				cats, err := store.ListCategories(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(cats) == 0 {
					fmt.Fprintln(out, "No categories found.")
					return nil
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tCOLOR\tDESCRIPTION")
				for _, c := range cats {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Color, c.Description)
				}
				return w.Flush()
			})
		},
	})
	return cmd
}

func (a *admin) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print revenue, cost and profit totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd.Context(), func(cfg *config.Config, store datastore.Store) error {
				items, err := store.ListStockItems(cmd.Context())
				if err != nil {
					return err
				}
				now := a.opts.Now().In(cfg.Location())
				s := core.CalculateBusinessStats(items, now)
				printBusinessStats(cmd.OutOrStdout(), s, len(items))
				return nil
			})
		},
	}
}

func printBusinessStats(out io.Writer, s core.BusinessStats, items int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	rows := []struct {
		label string
		value string
	}{
		{"Stock items", fmt.Sprint(items)},
		{"Units bought", fmt.Sprint(s.TotalItemsBought)},
		{"Units sold", fmt.Sprint(s.TotalItemsSold)},
		{"Revenue today", core.FormatAmount(s.DailyRevenue)},
		{"Profit today", core.FormatAmount(s.DailyProfit)},
		{"Revenue this month", core.FormatAmount(s.MonthlyRevenue)},
		{"Profit this month", core.FormatAmount(s.MonthlyProfit)},
		{"Total revenue", core.FormatAmount(s.TotalRevenue)},
		{"Total cost of sold units", core.FormatAmount(s.TotalCosts)},
		{"Total profit", core.FormatAmount(s.TotalProfit)},
		{"Total investment", core.FormatAmount(s.TotalInvestment)},
		{"Net profit", core.FormatAmount(s.NetProfit)},
		{"Inventory value", core.FormatAmount(s.InventoryValue)},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\n", r.label, r.value)
	}
	_ = w.Flush()
}

func (a *admin) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long:  `Apply the embedded SQLite migrations or the postgres schema. Hosted backends manage their own schema.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.opts.LoadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch backend.BackendType(cfg.Backend) {
			case backend.SQLiteBackend:
				if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
					return err
				}
				v, dirty, err := storage.MigrationVersion(cfg.SQLiteDBPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "SQLite schema at version %d (dirty=%t)\n", v, dirty)
			case backend.PostgresBackend:
				// opening the store migrates it
				res, err := OpenBackend(cmd.Context(), cfg, a.opts.Logger)
				if err != nil {
					return err
				}
				defer res.Close()
				fmt.Fprintln(out, "Postgres schema is up to date")
			default:
				fmt.Fprintf(out, "Nothing to migrate for the %s backend\n", cfg.Backend)
			}
			return nil
		},
	}
}

// withStore opens the configured backend and hands its store to fn. Hosted
// backends have no shared store, so the command signs in first.
func (a *admin) withStore(ctx context.Context, fn func(*config.Config, datastore.Store) error) error {
	cfg, err := a.opts.LoadConfig()
	if err != nil {
		return err
	}
	res, err := OpenBackend(ctx, cfg, a.opts.Logger)
	if err != nil {
		return err
	}
	defer res.Close()

	store := res.Store
	if store == nil {
		if a.email == "" || a.password == "" {
			return fmt.Errorf("the %s backend needs --login-email and --login-password", cfg.Backend)
		}
		session, err := res.Authenticator.SignIn(ctx, a.email, a.password)
		if err != nil {
			return fmt.Errorf("sign in: %s", core.UserMessage(err))
		}
		defer func() { _ = res.Authenticator.SignOut(ctx, session) }()
		store = res.Connector.Connect(session)
	}
	return fn(cfg, store)
}
