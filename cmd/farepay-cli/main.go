package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"farepay/internal/client"
)

var Version = "dev"

func main() {
	v := viper.New()
	v.SetEnvPrefix("FAREPAY")
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:           "farepay-cli",
		Short:         "Pay a fare by mobile-money push and follow it to the end",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "farepay API base URL (FAREPAY_SERVER)")
	rootCmd.PersistentFlags().Duration("timeout", 15*time.Second, "per-request timeout (FAREPAY_TIMEOUT)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log every status query (FAREPAY_VERBOSE)")
	_ = v.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = v.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	_ = v.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(payCmd(v))
	rootCmd.AddCommand(statusCmd(v))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger(v *viper.Viper) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if v.GetBool("verbose") {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func newClient(v *viper.Viper, logger *zap.Logger) *client.Client {
	return client.New(v.GetString("server"), v.GetDuration("timeout"), logger)
}
