package main

import (
	"context"
	"dentalshop/cache"
	"dentalshop/config"
	"dentalshop/events"
	"dentalshop/handlers"
	"dentalshop/jwt"
	"dentalshop/logger"
	"dentalshop/mail"
	"dentalshop/models"
	"dentalshop/routers"
	"dentalshop/storage"
	"errors"
	"fmt"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	shutdownTimeout      = 10 * time.Second
	tokenCleanupInterval = time.Hour
)

var configPath string

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "啟動HTTP伺服器",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}

	rootCmd := &cobra.Command{
		Use:           "dentalshop",
		Short:         "牙科器材商城後端",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serveCmd.RunE,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "設定檔路徑")

	rootCmd.AddCommand(
		serveCmd,
		&cobra.Command{
			Use:   "migrate",
			Short: "建立或更新資料表",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := loadConfig()
				if err != nil {
					return err
				}
				db, err := openDatabase(cfg)
				if err != nil {
					return err
				}
				defer closeDatabase(db)

				if err := config.Migrate(db); err != nil {
					return err
				}
				log.Info("資料表已更新")
				return nil
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "寫入管理員、預設分類與預設設定",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := loadConfig()
				if err != nil {
					return err
				}
				db, err := openDatabase(cfg)
				if err != nil {
					return err
				}
				defer closeDatabase(db)

				if err := config.Migrate(db); err != nil {
					return err
				}
				if err := config.Seed(db, cfg); err != nil {
					return err
				}
				log.Info("預設資料已寫入")
				return nil
			},
		},
		newGenKeysCmd(),
	)
	return rootCmd
}

func newGenKeysCmd() *cobra.Command {
	var bits int
	cmd := &cobra.Command{
		Use:   "genkeys",
		Short: "產生JWT使用的RSA金鑰",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if err := jwt.GenerateKeyPair(cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath, bits); err != nil {
				return err
			}
			log.Info("已產生RSA金鑰", "private", cfg.JWT.PrivateKeyPath, "public", cfg.JWT.PublicKeyPath)
			return nil
		},
	}
	cmd.Flags().IntVar(&bits, "bits", 2048, "金鑰長度")
	return cmd
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return cfg, nil, fmt.Errorf("讀取設定失敗: %w", err)
	}
	return cfg, logger.Setup(cfg.App.Env, cfg.App.LogLevel), nil
}

func openDatabase(cfg config.Config) (*gorm.DB, error) {
	db, err := config.SetupDatabaseConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("無法連接到資料庫: %w", err)
	}
	return db, nil
}

func closeDatabase(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// 未設定SMTP主機時只寫log
func newMailer(cfg config.MailConfig) mail.Mailer {
	if cfg.Host == "" {
		return mail.LogMailer{}
	}
	return mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
		FromName: cfg.FromName,
	})
}

func serve(ctx context.Context) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db)
	if err := config.Migrate(db); err != nil {
		return err
	}

	//Redis無法連線時不使用快取
	rdb, err := config.SetupRedisConnection(cfg)
	if err != nil {
		log.Warn("無法連接到Redis，停用快取", "error", err)
	} else {
		defer rdb.Close()
	}

	manager, err := jwt.LoadManager(cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath)
	if err != nil {
		return fmt.Errorf("讀取JWT金鑰失敗，請先執行genkeys: %w", err)
	}

	disk, err := storage.New(ctx, storage.Config{
		Disk:       cfg.Storage.Disk,
		LocalRoot:  cfg.Storage.LocalRoot,
		LocalURL:   cfg.Storage.LocalURL,
		S3Bucket:   cfg.Storage.S3Bucket,
		S3Region:   cfg.Storage.S3Region,
		S3Key:      cfg.Storage.S3Key,
		S3Secret:   cfg.Storage.S3Secret,
		S3Endpoint: cfg.Storage.S3Endpoint,
		S3URL:      cfg.Storage.S3URL,
	})
	if err != nil {
		return err
	}

	publisher, err := events.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ClientID)
	if err != nil {
		return err
	}
	defer publisher.Close()

	svc := &handlers.Services{
		Config:  cfg,
		Cache:   cache.New(rdb),
		JWT:     manager,
		Mailer:  newMailer(cfg.Mail),
		Storage: disk,
		Events:  publisher,
	}

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           routers.SetupRouters(db, svc, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("伺服器啟動", "addr", server.Addr, "env", cfg.App.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("伺服器關閉中")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		cleanupExpiredTokens(ctx, db, log, tokenCleanupInterval)
		return nil
	})

	return g.Wait()
}

// 定期刪除已過期的LoginToken
func cleanupExpiredTokens(ctx context.Context, db *gorm.DB, log *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result := db.WithContext(ctx).
			Unscoped().
			Where("expiration_time < ?", time.Now()).
			Delete(&models.LoginToken{})
		if result.Error != nil && ctx.Err() == nil {
			log.Error("清除過期Token失敗", "error", result.Error)
		} else if result.RowsAffected > 0 {
			log.Info("已清除過期Token", "count", result.RowsAffected)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
