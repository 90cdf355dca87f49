package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/samuelfneumann/goatari/agent/dqn"
	"github.com/samuelfneumann/goatari/environment/atari"
	"github.com/samuelfneumann/goatari/environment/wrappers"
	"github.com/samuelfneumann/goatari/experiment"
	"github.com/samuelfneumann/goatari/experiment/checkpointer"
	"github.com/samuelfneumann/goatari/experiment/tracker"
	"github.com/samuelfneumann/goatari/initwfn"
	"github.com/samuelfneumann/goatari/solver"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a deep Q-learning agent",
	Long: `Train a deep Q-learning agent on an Atari game.

Training runs on rewards clipped to [-1, 1]. Episodic returns and
episode lengths are tracked and saved to the data directory, and the
learned weights are checkpointed at a fixed step interval.

The full agent configuration, including the network architecture,
solver, and weight initializer, can be given as a JSON file through
--agent-config. Flags that are set explicitly override the file.`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().Int("steps", 10_000_000,
		"environment steps to train for")
	trainCmd.Flags().Int("log-interval", 100,
		"episodes between log lines")
	trainCmd.Flags().Int("save-weight-interval", 300_000,
		"steps between weight checkpoints (0 to disable)")
	trainCmd.Flags().Bool("timestamp-weights", false,
		"name weight checkpoints by time instead of by counter")
	trainCmd.Flags().String("data-dir", "data",
		"directory for tracked data and checkpoints")
	trainCmd.Flags().String("agent-config", "",
		"JSON file holding the agent configuration")

	trainCmd.Flags().Int("capacity", dqn.DefaultReplayCapacity,
		"replay memory capacity")
	trainCmd.Flags().Int("batch-size", dqn.DefaultBatchSize,
		"minibatch size")
	trainCmd.Flags().Int("history-length", dqn.DefaultHistoryLength,
		"frames stacked to form a state")
	trainCmd.Flags().Int("replay-start", dqn.DefaultReplayStartSize,
		"steps of pure exploration before updates")
	trainCmd.Flags().Float64("discount", dqn.DefaultDiscount,
		"discount factor")
	trainCmd.Flags().Int("update-interval", dqn.DefaultUpdateInterval,
		"environment steps between updates")
	trainCmd.Flags().Int("target-sync", dqn.DefaultTargetSyncInterval,
		"gradient steps between target network syncs")

	trainCmd.Flags().String("solver", "adam",
		"solver for learning weights (adam|rmsprop|vanilla)")
	trainCmd.Flags().Float64("lr", 1e-4, "solver step size")
	trainCmd.Flags().String("init", "glorotu",
		"weight initializer (glorotu|glorotn|heu|hen|zeroes|ones)")
	trainCmd.Flags().Float64("gain", 1.0, "weight initializer gain")

	viper.BindPFlags(trainCmd.Flags())
}

func runTrain(cmd *cobra.Command, args []string) error {
	game := viper.GetString("env")
	seed := viper.GetInt64("seed")
	flags := cmd.Flags()

	config, err := dqn.DefaultConfig()
	if err != nil {
		return fmt.Errorf("train: %v", err)
	}

	configPath := viper.GetString("agent-config")
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("train: could not read agent "+
				"configuration: %v", err)
		}
		if err := json.Unmarshal(data, &config); err != nil {
			return fmt.Errorf("train: could not parse agent "+
				"configuration: %v", err)
		}
	}

	// Without an agent configuration file, all flags apply; with one,
	// the file's values win unless a flag was set explicitly
	scalars := []struct {
		flag  string
		apply func()
	}{
		{"capacity", func() { config.ReplayCapacity = viper.GetInt("capacity") }},
		{"batch-size", func() { config.BatchSize = viper.GetInt("batch-size") }},
		{"history-length", func() { config.HistoryLength = viper.GetInt("history-length") }},
		{"replay-start", func() { config.ReplayStartSize = viper.GetInt("replay-start") }},
		{"discount", func() { config.Discount = viper.GetFloat64("discount") }},
		{"update-interval", func() { config.UpdateInterval = viper.GetInt("update-interval") }},
		{"target-sync", func() { config.TargetSyncInterval = viper.GetInt("target-sync") }},
	}
	for _, s := range scalars {
		if configPath == "" || flags.Changed(s.flag) {
			s.apply()
		}
	}

	if configPath == "" || flags.Changed("solver") || flags.Changed("lr") {
		sol, err := newSolver(viper.GetString("solver"),
			viper.GetFloat64("lr"), config.BatchSize)
		if err != nil {
			return fmt.Errorf("train: could not create solver: %v", err)
		}
		config.Solver = sol
	}

	if configPath == "" || flags.Changed("init") || flags.Changed("gain") {
		init, err := newInitWFn(viper.GetString("init"),
			viper.GetFloat64("gain"))
		if err != nil {
			return fmt.Errorf("train: could not create weight "+
				"initializer: %v", err)
		}
		config.InitWFn = init
	}

	e, _, err := atari.New(game, config.Discount, uint64(seed))
	if err != nil {
		return fmt.Errorf("train: could not create environment: %v", err)
	}
	defer e.Close()

	// Train on clipped rewards
	clipped, err := wrappers.NewClipReward(e, -1.0, 1.0)
	if err != nil {
		return fmt.Errorf("train: could not wrap environment: %v", err)
	}

	agent, err := dqn.New(clipped, config, seed)
	if err != nil {
		return fmt.Errorf("train: could not create agent: %v", err)
	}
	defer agent.Close()

	dataDir := viper.GetString("data-dir")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("train: could not create data directory: %v", err)
	}

	trackers := []tracker.Tracker{
		tracker.NewReturn(filepath.Join(dataDir, "returns.bin")),
		tracker.NewEpisodeLength(filepath.Join(dataDir, "episodes.bin")),
	}

	var checkpointers []checkpointer.Checkpointer
	if interval := viper.GetInt("save-weight-interval"); interval > 0 {
		weights := agent.TargetPolicy().(checkpointer.Serializable)
		name := filepath.Join(dataDir, "weights")
		naming := checkpointer.FilenameEnumerator(0, name, ".bin")
		if viper.GetBool("timestamp-weights") {
			naming = checkpointer.FileTimer(name, ".bin")
		}
		checkpointers = append(checkpointers, checkpointer.NewNStep(
			interval, weights, naming))
	}

	exp := experiment.NewOnline(clipped, agent, uint(viper.GetInt("steps")),
		logger.With().Str("game", game).Logger(),
		viper.GetInt("log-interval"), trackers, checkpointers)

	logger.Info().Str("game", game).Int64("seed", seed).
		Str("run", exp.RunID().String()).Msg("training")
	if err := exp.Run(); err != nil {
		return fmt.Errorf("train: %v", err)
	}
	return exp.Save()
}

// newSolver builds the solver selected by name. Every solver uses the
// given step size; the remaining hyperparameters keep their usual
// defaults.
func newSolver(name string, stepSize float64,
	batchSize int) (*solver.Solver, error) {
	switch strings.ToLower(name) {
	case "adam":
		return solver.NewAdam(stepSize, 1e-6, 0.9, 0.999, batchSize)
	case "rmsprop":
		return solver.NewRMSProp(stepSize, 1e-6, 0.001, 0.95, batchSize,
			-1.0)
	case "vanilla":
		return solver.NewVanilla(stepSize, batchSize, -1.0)
	default:
		return nil, fmt.Errorf("unknown solver %q", name)
	}
}

// newInitWFn builds the weight initializer selected by name. The gain
// applies to the Glorot and He families only.
func newInitWFn(name string, gain float64) (*initwfn.InitWFn, error) {
	switch strings.ToLower(name) {
	case "glorotu":
		return initwfn.NewGlorotU(gain)
	case "glorotn":
		return initwfn.NewGlorotN(gain)
	case "heu":
		return initwfn.NewHeU(gain)
	case "hen":
		return initwfn.NewHeN(gain)
	case "zeroes":
		return initwfn.NewZeroes()
	case "ones":
		return initwfn.NewOnes()
	default:
		return nil, fmt.Errorf("unknown weight initializer %q", name)
	}
}
