package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/samuelfneumann/goatari/agent/dqn"
	"github.com/samuelfneumann/goatari/environment/atari"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Evaluate a trained agent",
	Long: `Run evaluation episodes with checkpointed weights.

Evaluation runs on the raw, unclipped rewards so that the logged
returns are true game scores.`,
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().String("weights", "", "checkpointed weights file")
	playCmd.Flags().Int("episodes", 1, "evaluation episodes to run")
	playCmd.Flags().Float64("epsilon", 0.05,
		"exploration rate during evaluation")
	playCmd.Flags().Int("history-length", dqn.DefaultHistoryLength,
		"frames stacked to form a state")
	playCmd.MarkFlagRequired("weights")
}

func runPlay(cmd *cobra.Command, args []string) error {
	game := viper.GetString("env")
	seed := viper.GetInt64("seed")

	weights, err := cmd.Flags().GetString("weights")
	if err != nil {
		return fmt.Errorf("play: %v", err)
	}
	episodes, err := cmd.Flags().GetInt("episodes")
	if err != nil {
		return fmt.Errorf("play: %v", err)
	}
	epsilon, err := cmd.Flags().GetFloat64("epsilon")
	if err != nil {
		return fmt.Errorf("play: %v", err)
	}
	history, err := cmd.Flags().GetInt("history-length")
	if err != nil {
		return fmt.Errorf("play: %v", err)
	}

	e, _, err := atari.New(game, dqn.DefaultDiscount, uint64(seed))
	if err != nil {
		return fmt.Errorf("play: could not create environment: %v", err)
	}
	defer e.Close()

	features := history * e.ObservationSpec().Shape.Len()
	actions := int(e.ActionSpec().UpperBound.AtVec(0)) + 1
	p, vm, err := loadPolicy(weights, epsilon, features, actions, seed)
	if err != nil {
		return fmt.Errorf("play: %v", err)
	}
	defer vm.Close()

	for i := 0; i < episodes; i++ {
		episodeReturn, steps, err := evalEpisode(e, p, vm, history, nil)
		if err != nil {
			return fmt.Errorf("play: %v", err)
		}
		logger.Info().Str("game", game).Int("episode", i+1).
			Float64("return", episodeReturn).Int("steps", steps).
			Msg("evaluation episode")
	}

	return nil
}
