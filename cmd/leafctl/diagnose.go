package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/leafdoctor/internal/config"
	"github.com/example/leafdoctor/internal/diagnosis"
	"github.com/example/leafdoctor/internal/grpcclient"
	"github.com/example/leafdoctor/internal/imageprocessor"
	"github.com/example/leafdoctor/internal/inference"
	"github.com/example/leafdoctor/internal/logging"
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Diagnose a leaf photo",
	Long:  "Runs a leaf photo through the configured model, or demo mode when no model is reachable, and prints the report as JSON.",
	RunE:  runDiagnose,
}

var (
	diagnoseImage      string
	diagnoseProfile    string
	diagnoseClassifier string
	diagnoseTFLite     string
	diagnoseDemo       bool
	diagnoseEnhance    bool
	diagnoseSeed       int64
	diagnoseTimeout    time.Duration
	diagnoseLogLevel   string
)

func init() {
	diagnoseCmd.Flags().StringVarP(&diagnoseImage, "image", "i", "", "Path to a JPEG or PNG leaf photo (required)")
	diagnoseCmd.Flags().StringVarP(&diagnoseProfile, "profile", "p", "", "Path to a YAML model profile")
	diagnoseCmd.Flags().StringVar(&diagnoseClassifier, "classifier", "", "Address of a gRPC leaf classifier")
	diagnoseCmd.Flags().StringVar(&diagnoseTFLite, "tflite", "", "Path to a local .tflite model")
	diagnoseCmd.Flags().BoolVar(&diagnoseDemo, "demo", false, "Skip models and use demo scores")
	diagnoseCmd.Flags().BoolVar(&diagnoseEnhance, "enhance", false, "Boost contrast, brightness and saturation before analysis")
	diagnoseCmd.Flags().Int64Var(&diagnoseSeed, "seed", 0, "Seed for demo scores (0 uses the clock)")
	diagnoseCmd.Flags().DurationVar(&diagnoseTimeout, "timeout", 10*time.Second, "Model call timeout")
	diagnoseCmd.Flags().StringVar(&diagnoseLogLevel, "log-level", "error", "Log level")

	if err := diagnoseCmd.MarkFlagRequired("image"); err != nil {
		panic(fmt.Sprintf("failed to mark image flag as required: %v", err))
	}

	rootCmd.AddCommand(diagnoseCmd)
}

type diagnoseOutput struct {
	*diagnosis.Diagnosis
	DisplayLabel string           `json:"display_label"`
	Source       inference.Source `json:"source"`
	Provider     string           `json:"provider"`
}

func runDiagnose(cmd *cobra.Command, _ []string) error {
	logger, err := logging.NewLogger(diagnoseLogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	profile, err := config.LoadProfile(diagnoseProfile)
	if err != nil {
		return err
	}

	var src diagnosis.RandomSource
	if diagnoseSeed != 0 {
		src = rand.New(rand.NewSource(diagnoseSeed))
	}
	analyzer, demo, err := diagnosis.NewAnalyzer(profile, src)
	if err != nil {
		return fmt.Errorf("invalid model profile: %w", err)
	}

	data, err := os.ReadFile(diagnoseImage)
	if err != nil {
		return fmt.Errorf("failed to read image %s: %w", diagnoseImage, err)
	}
	img, err := imageprocessor.Prepare(http.DetectContentType(data), data, imageprocessor.Options{Enhance: diagnoseEnhance})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var primary inference.Provider
	if !diagnoseDemo {
		var closer io.Closer
		primary, closer = openProvider(ctx, len(profile.Labels), logger)
		if closer != nil {
			defer closer.Close()
		}
	}
	predictor := inference.NewFallback(primary, demo, logger)

	prediction, err := predictor.Predict(ctx, "", img)
	if err != nil {
		return fmt.Errorf("unable to analyze image: %w", err)
	}
	result, err := analyzer.Analyze(prediction.Scores)
	if err != nil {
		return fmt.Errorf("unable to analyze image: %w", err)
	}

	out, err := json.MarshalIndent(diagnoseOutput{
		Diagnosis:    result,
		DisplayLabel: result.DisplayLabel(),
		Source:       prediction.Source,
		Provider:     prediction.Provider,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func openProvider(ctx context.Context, labels int, logger *zap.Logger) (inference.Provider, io.Closer) {
	if diagnoseClassifier != "" {
		provider, conn, err := grpcclient.DialLeafClassifier(ctx, diagnoseClassifier, diagnoseTimeout, logger)
		if err == nil {
			return provider, conn
		}
		logger.Warn("leaf classifier unavailable", zap.Error(err))
	}
	if diagnoseTFLite != "" {
		provider, err := inference.NewTFLiteProvider(diagnoseTFLite, labels, 0, logger)
		if err == nil {
			return provider, provider
		}
		logger.Warn("tflite model unavailable", zap.Error(err))
	}
	return nil, nil
}
