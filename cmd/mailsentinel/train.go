package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raaihank/mail-sentinel/internal/classifier"
	"github.com/raaihank/mail-sentinel/internal/etl"
	"github.com/raaihank/mail-sentinel/internal/privacy"
	"github.com/raaihank/mail-sentinel/internal/store"
)

var trainFlags struct {
	dataset     string
	output      string
	parquetOut  string
	toStore     bool
	testSize    float64
	seed        uint64
	maxFeatures int
	workers     int
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Mask a labelled dataset and train the email classifier",
	Long: `Reads a labelled dataset (xlsx, csv, json lines or parquet), masks every
email, holds out a test split, trains the TF-IDF naive Bayes classifier and
saves it to the configured model path.`,
	RunE: runTrain,
}

func init() {
	f := trainCmd.Flags()
	f.StringVar(&trainFlags.dataset, "dataset", "", "Dataset file (defaults to training.dataset_path)")
	f.StringVarP(&trainFlags.output, "output", "o", "", "Model output path (defaults to classifier.model_path)")
	f.StringVar(&trainFlags.parquetOut, "parquet-out", "", "Also export the masked dataset to this Parquet file")
	f.BoolVar(&trainFlags.toStore, "store", false, "Write masked records to the Postgres store")
	f.Float64Var(&trainFlags.testSize, "test-size", 0, "Held-out fraction (defaults to training.test_size)")
	f.Uint64Var(&trainFlags.seed, "seed", 0, "Split seed (defaults to training.seed)")
	f.IntVar(&trainFlags.maxFeatures, "max-features", 0, "Vocabulary size (defaults to training.max_features)")
	f.IntVar(&trainFlags.workers, "workers", 0, "Masking workers (defaults to training.worker_count)")
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	training := cfg.Training
	if trainFlags.dataset != "" {
		training.DatasetPath = trainFlags.dataset
	}
	if cmd.Flags().Changed("test-size") {
		training.TestSize = trainFlags.testSize
	}
	if cmd.Flags().Changed("seed") {
		training.Seed = trainFlags.seed
	}
	if trainFlags.maxFeatures > 0 {
		training.MaxFeatures = trainFlags.maxFeatures
	}
	if trainFlags.workers > 0 {
		training.WorkerCount = trainFlags.workers
	}
	if training.TestSize < 0 || training.TestSize >= 1 {
		return fmt.Errorf("test size must be in [0, 1), got %v", training.TestSize)
	}

	modelPath := cfg.Classifier.ModelPath
	if trainFlags.output != "" {
		modelPath = trainFlags.output
	}

	masker, err := privacy.New(cfg.Privacy, log.WithComponent("privacy"))
	if err != nil {
		return err
	}

	var sink etl.Sink
	if trainFlags.toStore {
		st, err := store.New(cfg.Storage, log)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.EnsureSchema(cmd.Context()); err != nil {
			return err
		}
		sink = st
	}

	pipeline := etl.NewPipeline(masker, sink, etl.ConfigFromTraining(training), log)
	records, result, err := pipeline.ProcessFile(cmd.Context(), training.DatasetPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printProcessingResult(out, result)

	if trainFlags.parquetOut != "" {
		if err := etl.WriteParquet(trainFlags.parquetOut, records); err != nil {
			return err
		}
		log.Info("Masked dataset exported", zap.String("path", trainFlags.parquetOut), zap.Int("rows", len(records)))
	}

	texts, labels := etl.Split(records)
	trainIdx, testIdx := classifier.TrainTestSplit(len(records), training.TestSize, training.Seed)

	model := classifier.NewModel(classifier.Options{
		MaxFeatures: training.MaxFeatures,
		Alpha:       training.Alpha,
	})

	start := time.Now()
	if err := model.Train(classifier.Subset(texts, trainIdx), classifier.Subset(labels, trainIdx)); err != nil {
		return fmt.Errorf("training failed: %w", err)
	}
	log.Info("Classifier trained",
		zap.Int("train_samples", len(trainIdx)),
		zap.Int("features", model.Vectorizer.NumFeatures()),
		zap.Strings("classes", model.Classes()),
		zap.Duration("duration", time.Since(start)))

	if len(testIdx) > 0 {
		accuracy, err := model.Score(classifier.Subset(texts, testIdx), classifier.Subset(labels, testIdx))
		if err != nil {
			return fmt.Errorf("evaluation failed: %w", err)
		}
		fmt.Fprint(out, "Model accuracy: ")
		color.New(color.FgGreen, color.Bold).Fprintf(out, "%.4f", accuracy)
		fmt.Fprintf(out, " (%d held out)\n", len(testIdx))
	} else {
		color.New(color.FgYellow).Fprintln(out, "No held-out samples, accuracy not computed")
	}

	if err := model.Save(modelPath); err != nil {
		return err
	}
	fmt.Fprintf(out, "Model saved to %s\n", modelPath)

	return nil
}

func printProcessingResult(out io.Writer, result *etl.ProcessingResult) {
	label := color.New(color.FgCyan)

	label.Fprint(out, "Records read:    ")
	fmt.Fprintln(out, result.TotalRecords)
	label.Fprint(out, "Masked:          ")
	fmt.Fprintln(out, result.ProcessedOK)
	label.Fprint(out, "Skipped:         ")
	fmt.Fprintln(out, result.Skipped)
	if result.Duplicates > 0 {
		label.Fprint(out, "Duplicates:      ")
		fmt.Fprintln(out, result.Duplicates)
	}
	label.Fprint(out, "Entities masked: ")
	fmt.Fprintln(out, result.EntitiesMasked)

	if result.ProcessedFailed > 0 {
		color.New(color.FgRed).Fprintf(out, "Failed:          %d\n", result.ProcessedFailed)
	}
	for _, e := range result.Errors {
		color.New(color.FgRed).Fprintf(out, "  %s\n", e)
	}
}
