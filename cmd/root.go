// Package cmd implements the command line interface for training and
// evaluating agents
package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var logger zerolog.Logger

var rootCmd = &cobra.Command{
	Use:   "goatari",
	Short: "Deep Q-learning on Atari screens",
	Long: `Train and evaluate a deep Q-learning agent on Atari games.

Screen frames are preprocessed to 84x84 grayscale, stacked into states,
and stored in a circular experience replay memory from which
minibatches are sampled for learning.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("env", "BreakoutNoFrameskip-v4",
		"Gym ID of the Atari environment")
	rootCmd.PersistentFlags().Int64("seed", 24, "random seed")
	rootCmd.PersistentFlags().String("config", "",
		"config file (default goatari.yaml in the working directory)")

	viper.BindPFlag("env", rootCmd.PersistentFlags().Lookup("env"))
	viper.BindPFlag("seed", rootCmd.PersistentFlags().Lookup("seed"))
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	viper.SetEnvPrefix("GOATARI")
	viper.AutomaticEnv()

	logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

// initConfig reads in the config file, if one exists
func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("goatari")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err == nil {
		logger.Info().Str("file", viper.ConfigFileUsed()).
			Msg("using config file")
	}
}
