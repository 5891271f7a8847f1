package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/juju/errors"
	"github.com/richinsley/semmutex"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	Version = "0.1.0"
)

var (
	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "semctl",
		Short: "cross-process semaphore tool",
		Long: fmt.Sprintf(`semctl (v%s)

Creates, inspects and exercises the shared mutex sets and refcounted
semaphores other processes of the same deployment use.`, Version),
		PersistentPreRunE: setup,
		SilenceUsage:      true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of semctl",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("semctl v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(semCmd)
	rootCmd.AddCommand(counterCmd)
	rootCmd.AddCommand(versionCmd)

	f := rootCmd.PersistentFlags()
	f.String("key-path", "", "file the IPC key is derived from")
	f.String("fallback-path", semmutex.DefaultFallbackPath, "path used when key-path is unusable")
	f.String("tag", string(semmutex.DefaultTag), "project byte of the IPC key")
	f.Int("count", semmutex.DefaultMutexCount, "number of slots in the mutex set")
	f.Int("max-tries", semmutex.DefaultMaxTries, "polls while waiting for another process to initialize the set")
	f.Duration("retry-interval", semmutex.DefaultRetryInterval, "sleep between initialization polls")
	f.Int("max-acquire", semmutex.DefaultMaxAcquire, "gate capacity of refcounted semaphores")
	f.String("log-level", "info", "log level (debug, info, warn, error)")
}

// initConfig loads .env files and maps SEMCTL_* environment variables onto
// flags.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("semctl")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return errors.Trace(err)
	}
	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return errors.Annotate(err, "parsing log level")
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	return nil
}

// options builds the library options from flags and environment.
func options() (semmutex.Options, error) {
	tag := viper.GetString("tag")
	if len(tag) != 1 {
		return semmutex.Options{}, errors.NotValidf("tag %q (must be one byte)", tag)
	}
	return semmutex.Options{
		KeyPath:       viper.GetString("key-path"),
		FallbackPath:  viper.GetString("fallback-path"),
		Tag:           tag[0],
		Count:         viper.GetInt("count"),
		MaxTries:      viper.GetInt("max-tries"),
		RetryInterval: viper.GetDuration("retry-interval"),
		MaxAcquire:    viper.GetInt("max-acquire"),
		Reporter:      semmutex.LogReporter{Logger: log.Logger},
	}, nil
}
