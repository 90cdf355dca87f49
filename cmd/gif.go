package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/samuelfneumann/goatari/agent/dqn"
	"github.com/samuelfneumann/goatari/environment/atari"
	"github.com/samuelfneumann/goatari/experiment/gifsaver"
)

var gifCmd = &cobra.Command{
	Use:   "gif",
	Short: "Record an evaluation episode as an animated GIF",
	RunE:  runGif,
}

func init() {
	rootCmd.AddCommand(gifCmd)

	gifCmd.Flags().String("weights", "", "checkpointed weights file")
	gifCmd.Flags().String("out", "episode.gif", "output GIF file")
	gifCmd.Flags().Int("scale", 4, "upscaling factor for frames")
	gifCmd.Flags().Int("delay", 4,
		"delay between frames in hundredths of a second")
	gifCmd.Flags().Float64("epsilon", 0.05,
		"exploration rate during evaluation")
	gifCmd.Flags().Int("history-length", dqn.DefaultHistoryLength,
		"frames stacked to form a state")
	gifCmd.MarkFlagRequired("weights")
}

func runGif(cmd *cobra.Command, args []string) error {
	game := viper.GetString("env")
	seed := viper.GetInt64("seed")

	weights, err := cmd.Flags().GetString("weights")
	if err != nil {
		return fmt.Errorf("gif: %v", err)
	}
	out, err := cmd.Flags().GetString("out")
	if err != nil {
		return fmt.Errorf("gif: %v", err)
	}
	scale, err := cmd.Flags().GetInt("scale")
	if err != nil {
		return fmt.Errorf("gif: %v", err)
	}
	delay, err := cmd.Flags().GetInt("delay")
	if err != nil {
		return fmt.Errorf("gif: %v", err)
	}
	epsilon, err := cmd.Flags().GetFloat64("epsilon")
	if err != nil {
		return fmt.Errorf("gif: %v", err)
	}
	history, err := cmd.Flags().GetInt("history-length")
	if err != nil {
		return fmt.Errorf("gif: %v", err)
	}

	e, _, err := atari.New(game, dqn.DefaultDiscount, uint64(seed))
	if err != nil {
		return fmt.Errorf("gif: could not create environment: %v", err)
	}
	defer e.Close()

	features := history * e.ObservationSpec().Shape.Len()
	actions := int(e.ActionSpec().UpperBound.AtVec(0)) + 1
	p, vm, err := loadPolicy(weights, epsilon, features, actions, seed)
	if err != nil {
		return fmt.Errorf("gif: %v", err)
	}
	defer vm.Close()

	saver, err := gifsaver.New(atari.FrameWidth, atari.FrameWidth, scale,
		delay, out)
	if err != nil {
		return fmt.Errorf("gif: %v", err)
	}

	episodeReturn, steps, err := evalEpisode(e, p, vm, history,
		saver.Record)
	if err != nil {
		return fmt.Errorf("gif: %v", err)
	}

	if err := saver.Save(); err != nil {
		return fmt.Errorf("gif: %v", err)
	}

	logger.Info().Str("game", game).Float64("return", episodeReturn).
		Int("steps", steps).Int("frames", saver.Len()).Str("file", out).
		Msg("recorded evaluation episode")
	return nil
}
