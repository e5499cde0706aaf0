// Command admin runs operational tasks: schema migrations and operator provisioning.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-idcard-api/internal/dto"
	"github.com/noah-isme/sma-idcard-api/internal/models"
	"github.com/noah-isme/sma-idcard-api/internal/repository"
	"github.com/noah-isme/sma-idcard-api/internal/service"
	"github.com/noah-isme/sma-idcard-api/migrations"
	"github.com/noah-isme/sma-idcard-api/pkg/config"
	"github.com/noah-isme/sma-idcard-api/pkg/database"
	"github.com/noah-isme/sma-idcard-api/pkg/logger"
)

// app lazily opens the shared resources so flag errors never touch the database.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
}

func (a *app) open(ctx context.Context) error {
	if a.db != nil {
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	a.cfg, a.logger, a.db = cfg, logr, db
	return nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{}
	defer a.close()

	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "admin",
		Short:        "Administrative tasks for the ID card API",
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCmd(a), newCreateUserCmd(a))
	return root
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|redo|reset] [args...]",
		Short:     "Run database migrations",
		Args:      cobra.MatchAll(cobra.MinimumNArgs(1), validMigrateCommand),
		ValidArgs: []string{database.MigrateUp, database.MigrateDown, database.MigrateStatus, database.MigrateRedo, database.MigrateReset},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			if err := database.Migrate(a.db.DB, migrations.FS, args[0], args[1:]...); err != nil {
				return err
			}
			a.logger.Info("migration finished", zap.String("command", args[0]))
			return nil
		},
	}
}

func validMigrateCommand(cmd *cobra.Command, args []string) error {
	for _, valid := range cmd.ValidArgs {
		if args[0] == valid {
			return nil
		}
	}
	return fmt.Errorf("unknown migrate command %q", args[0])
}

func newCreateUserCmd(a *app) *cobra.Command {
	var req dto.CreateUserRequest
	var role string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Provision a dashboard operator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.Role = models.UserRole(role)
			if !req.Role.Valid() {
				return fmt.Errorf("role must be %s or %s", models.RoleAdmin, models.RoleStaff)
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}

			users := service.NewUserService(repository.NewUserRepository(a.db), validator.New(), a.logger)
			user, err := users.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s user %s (%s)\n", user.Role, user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "login email")
	cmd.Flags().StringVar(&req.FullName, "name", "", "display name")
	cmd.Flags().StringVar(&req.Password, "password", "", "initial password (min 8 characters)")
	cmd.Flags().StringVar(&role, "role", string(models.RoleStaff), "ADMIN or STAFF")
	for _, name := range []string{"email", "name", "password"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
