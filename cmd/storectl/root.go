package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/AnshRaj112/storefront-backend/internal/config"
	"github.com/AnshRaj112/storefront-backend/internal/database"
	"github.com/AnshRaj112/storefront-backend/internal/logger"
	"github.com/AnshRaj112/storefront-backend/internal/services"
	"github.com/AnshRaj112/storefront-backend/pkg/utils"
)

var version = "dev"

var (
	cfg *config.Config
	lg  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "storectl",
	Short:         "Storefront operator tool",
	Long:          "storectl bootstraps admin accounts and database indexes for the storefront API.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = c
		lg = logger.New(cfg.Environment, cfg.LogLevel)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if lg != nil {
			_ = lg.Sync()
		}
	},
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create or promote an admin account",
	Long: `Creates an admin account, or promotes an existing account with the same
email and resets its password. The password is read from --password or
STOREFRONT_ADMIN_PASSWORD.`,
	Args: cobra.NoArgs,
	RunE: runCreateAdmin,
}

var ensureIndexesCmd = &cobra.Command{
	Use:   "ensure-indexes",
	Short: "Create the MongoDB indexes the API relies on",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd.Context(), func(ctx context.Context, db *mongo.Database) error {
			return database.EnsureIndexes(ctx, db, lg)
		})
	},
}

var setRoleCmd = &cobra.Command{
	Use:   "set-role",
	Short: "Change the role of an existing account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		role, _ := cmd.Flags().GetString("role")
		return withDatabase(cmd.Context(), func(ctx context.Context, db *mongo.Database) error {
			u, err := services.SetUserRole(ctx, services.NewMongoUserStore(db), email, role)
			if err != nil {
				return err
			}
			lg.Info("role updated", zap.String("email", u.Email), zap.String("role", string(u.Role)))
			return nil
		})
	},
}

func init() {
	f := createAdminCmd.Flags()
	f.String("email", "", "admin email (required)")
	f.String("name", "", "display name")
	f.String("password", "", "admin password")
	_ = createAdminCmd.MarkFlagRequired("email")

	rf := setRoleCmd.Flags()
	rf.String("email", "", "account email (required)")
	rf.String("role", "", "user, lead-guide or admin (required)")
	_ = setRoleCmd.MarkFlagRequired("email")
	_ = setRoleCmd.MarkFlagRequired("role")

	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(ensureIndexesCmd)
	rootCmd.AddCommand(setRoleCmd)
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	name, _ := cmd.Flags().GetString("name")
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv("STOREFRONT_ADMIN_PASSWORD")
	}
	if password == "" {
		return errors.New("a password is required: pass --password or set STOREFRONT_ADMIN_PASSWORD")
	}

	return withDatabase(cmd.Context(), func(ctx context.Context, db *mongo.Database) error {
		store := services.NewMongoUserStore(db)
		hasher := utils.NewBcryptHasher(cfg.BcryptCost)
		created, err := services.EnsureAdmin(ctx, store, hasher, services.AdminAccount{
			Name:     name,
			Email:    email,
			Password: password,
		}, time.Now())
		if err != nil {
			return err
		}
		if created {
			lg.Info("admin account created", zap.String("email", utils.NormalizeEmail(email)))
		} else {
			lg.Info("existing account promoted to admin", zap.String("email", utils.NormalizeEmail(email)))
		}
		return nil
	})
}

func withDatabase(ctx context.Context, fn func(context.Context, *mongo.Database) error) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDB, lg); err != nil {
		return err
	}
	defer database.Disconnect()
	return fn(ctx, database.DB)
}
