package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gigline/internal/app"
	"gigline/internal/assistant"
	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/migrate"
	"gigline/internal/repo"
	"gigline/internal/server"
	"gigline/internal/webhook"
)

var rootCmd = &cobra.Command{
	Use:   "gig",
	Short: "Gigline CLI",
	Long: `Gigline manages freelance work through a bilingual chat assistant.
Talk to it in French or English: "Créer une tâche 'Facture' pour demain à 14h"
or "delete all my completed tasks". Destructive requests are echoed back for
confirmation before anything is removed.

The workspace is a .gigline directory holding a SQLite database; plans and
assistant settings live in gigline.yml next to it (run 'gig init').`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initViper)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initViper() {
	viper.SetEnvPrefix("GIGLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("email", "local@gigline.dev", "acting user email")
	rootCmd.PersistentFlags().String("plan", "", "subscription plan for the acting user")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("email", rootCmd.PersistentFlags().Lookup("email"))
	_ = viper.BindPFlag("plan", rootCmd.PersistentFlags().Lookup("plan"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(clientCmd())
	rootCmd.AddCommand(orderCmd())
	rootCmd.AddCommand(eventCmd())
	rootCmd.AddCommand(usageCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(serveCmd())
}

// cliContext bundles everything a command needs once the workspace is open.
type cliContext struct {
	Repo      repo.Repo
	Config    *config.Config
	User      domain.User
	Assistant *assistant.Assistant
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func withApp(ctx context.Context, fn func(context.Context, cliContext) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	u, err := app.EnsureUser(ctx, r, viper.GetString("email"), "", viper.GetString("plan"), "")
	if err != nil {
		return err
	}
	return fn(ctx, cliContext{
		Repo:      r,
		Config:    cfg,
		User:      u,
		Assistant: assistant.New(r, cfg, webhook.New(cfg.Webhook.BaseURL, cfg.Webhook.Secret)),
	})
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfgPath := config.Path(workspace)
			if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
				if err := os.WriteFile(cfgPath, []byte(config.GenerateDefault()), 0o644); err != nil {
					return err
				}
				fmt.Println("Created", cfgPath)
			} else {
				fmt.Println("Config already exists at", cfgPath)
			}
			fmt.Println("Database ready at", db.Path(workspace))
			return nil
		},
	}
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [message]",
		Short: "Send a message to the assistant",
		Long: `Sends one message to the assistant. When the assistant asks for
confirmation (deletes, bulk updates), the reply is read from stdin.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")
			return withApp(cmd.Context(), func(ctx context.Context, c cliContext) error {
				resp := c.Assistant.Handle(ctx, c.User, assistant.Request{Message: message})
				fmt.Println(resp.Text)

				reader := bufio.NewReader(os.Stdin)
				for resp.RequiresConfirmation {
					fmt.Print("> ")
					reply, err := reader.ReadString('\n')
					if err != nil {
						return err
					}
					resp = c.Assistant.Handle(ctx, c.User, assistant.Request{
						Message: strings.TrimSpace(reply),
						Pending: resp.Pending,
					})
					fmt.Println(resp.Text)
				}
				if viper.GetBool("json") && resp.Data != nil {
					return printJSON(resp.Data)
				}
				return nil
			})
		},
	}
}

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Manage tasks"}
	cmd.AddCommand(taskListCmd())
	return cmd
}

func taskListCmd() *cobra.Command {
	var status, search string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, c cliContext) error {
				items, err := c.Repo.ListTasks(ctx, c.User.ID, repo.ListFilter{
					Status: status, Search: search, Limit: limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Priority", "Due"})
				for _, t := range items {
					due := ""
					if t.DueDate != nil {
						due = *t.DueDate
					}
					tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.Priority, due})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&search, "search", "", "title search")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}

func clientCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "client", Short: "Manage clients"}
	cmd.AddCommand(clientListCmd())
	return cmd
}

func clientListCmd() *cobra.Command {
	var search string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, c cliContext) error {
				items, err := c.Repo.ListClients(ctx, c.User.ID, repo.ListFilter{Search: search, Limit: limit})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Email", "Company"})
				for _, cl := range items {
					tw.AppendRow(table.Row{cl.ID, cl.Name, cl.Email, cl.Company})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "name search")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}

func orderCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "order", Short: "Manage orders"}
	cmd.AddCommand(orderListCmd())
	return cmd
}

func orderListCmd() *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, c cliContext) error {
				items, err := c.Repo.ListOrders(ctx, c.User.ID, repo.ListFilter{Status: status, Limit: limit})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Amount", "Currency", "Status"})
				for _, o := range items {
					tw.AppendRow(table.Row{o.ID, o.Title, fmt.Sprintf("%.2f", o.Amount), o.Currency, o.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}

func eventCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "event", Short: "Manage calendar events"}
	cmd.AddCommand(eventListCmd())
	return cmd
}

func eventListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List calendar events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, c cliContext) error {
				items, err := c.Repo.ListEvents(ctx, c.User.ID, repo.ListFilter{Limit: limit})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Start", "Location"})
				for _, e := range items {
					tw.AppendRow(table.Row{e.ID, e.Title, e.StartAt, e.Location})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}

func usageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show this month's assistant usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, c cliContext) error {
				now := time.Now().UTC()
				used, err := c.Repo.MonthlyUsage(ctx, c.User.ID, now)
				if err != nil {
					return err
				}
				byResource, err := c.Repo.MonthlyUsageByResource(ctx, c.User.ID, now)
				if err != nil {
					return err
				}
				limit := c.Config.Plans[c.User.Plan].MonthlyActions
				if viper.GetBool("json") {
					return printJSON(map[string]any{
						"plan": c.User.Plan, "used": used, "limit": limit, "by_resource": byResource,
					})
				}
				fmt.Printf("Plan %s: %d/%d actions used this month\n", c.User.Plan, used, limit)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Resource", "Actions"})
				for resource, count := range byResource {
					tw.AppendRow(table.Row{resource, count})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "audit", Short: "Inspect the assistant audit log"}
	var limit int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show recent assistant actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, c cliContext) error {
				entries, err := c.Repo.ListAudit(ctx, c.User.ID, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"When", "Summary", "Resource"})
				for _, e := range entries {
					tw.AppendRow(table.Row{e.CreatedAt, e.Summary, e.Resource})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	cmd.AddCommand(tail)
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			secret := cfg.Auth.JWTSecret
			if env := os.Getenv("GIGLINE_JWT_SECRET"); env != "" {
				secret = env
			}
			if secret == "" {
				return fmt.Errorf("jwt secret required: set auth.jwt_secret in gigline.yml or GIGLINE_JWT_SECRET")
			}
			r := repo.Repo{DB: conn}
			handler, err := server.New(server.Config{
				Repo:      r,
				App:       cfg,
				Assistant: assistant.New(r, cfg, webhook.New(cfg.Webhook.BaseURL, cfg.Webhook.Secret)),
				BasePath:  basePath,
				Auth:      server.AuthConfig{JWTSecret: secret},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Gigline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
