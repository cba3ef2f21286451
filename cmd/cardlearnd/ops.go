package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slabworks/cardlearn/internal/learning"
)

// contextPairs holds repeated --context key=value flags.
var contextPairs []string

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train models from the correction log",
	Long: `Run one full training pass over the correction log and persist the
resulting model artifacts. Fields with too few corrections keep no model.`,
	RunE: runTrain,
}

var predictCmd = &cobra.Command{
	Use:   "predict <field> <value>",
	Short: "Evaluate one field value against the trained models",
	Long: `Evaluate a single extracted value and print the override the engine
would apply, if any.

Examples:
  cardlearnd predict team "cubs"
  cardlearnd predict sport "base ball" --context brand=topps`,
	Args: cobra.ExactArgs(2),
	RunE: runPredict,
}

var correctCmd = &cobra.Command{
	Use:   "correct <field> <original> <corrected>",
	Short: "Record one human correction",
	Long: `Append a correction to the log. Models pick it up on the next
training run.

Examples:
  cardlearnd correct team "cubs" "chicago cubs"
  cardlearnd correct year "'89" "1989" --context brand=fleer`,
	Args: cobra.ExactArgs(3),
	RunE: runCorrect,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine and correction log status",
	RunE:  runStatus,
}

func init() {
	predictCmd.Flags().StringArrayVar(&contextPairs, "context", nil, "card attribute as key=value (repeatable)")
	correctCmd.Flags().StringArrayVar(&contextPairs, "context", nil, "card attribute as key=value (repeatable)")
}

// parseContext turns repeated key=value flags into an attribute map.
func parseContext(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	attrs := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid context pair %q, want key=value", pair)
		}
		attrs[key] = value
	}
	return attrs, nil
}

func runTrain(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.engine.Train(cmd.Context()); err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	meta := a.engine.Meta()
	fmt.Printf("State:       %s\n", a.engine.State())
	fmt.Printf("Version:     %s\n", meta.Version)
	fmt.Printf("Corrections: %d\n", meta.CorrectionCount)
	fmt.Printf("Fields:      %d\n", len(meta.Fields))
	for _, f := range meta.Fields {
		fmt.Printf("  - %s\n", f)
	}
	return nil
}

func runPredict(cmd *cobra.Command, args []string) error {
	field, value := learning.Field(args[0]), args[1]
	if !learning.Recognized(field) {
		return fmt.Errorf("unrecognized field %q", args[0])
	}
	attrs, err := parseContext(contextPairs)
	if err != nil {
		return err
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.engine.Init(cmd.Context()); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	ov := a.engine.Predict(field, value, attrs)
	if ov == nil {
		fmt.Printf("%s: %q stands (no override)\n", field, value)
		return nil
	}

	fmt.Printf("%s: %q -> %q\n", field, ov.UpstreamValue, ov.Value)
	fmt.Printf("  confidence: %.3f\n", ov.Confidence)
	fmt.Printf("  support:    %d\n", ov.Support)
	fmt.Printf("  model:      %s\n", ov.Model)
	return nil
}

func runCorrect(cmd *cobra.Command, args []string) error {
	field := learning.Field(args[0])
	if !learning.Recognized(field) {
		return fmt.Errorf("unrecognized field %q", args[0])
	}
	attrs, err := parseContext(contextPairs)
	if err != nil {
		return err
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.store.Append(cmd.Context(), field, args[1], args[2], attrs); err != nil {
		return fmt.Errorf("failed to record correction: %w", err)
	}

	total, err := a.store.TotalCorrections(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read correction count: %w", err)
	}
	fmt.Printf("Recorded. Correction log now holds %d corrections.\n", total)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.engine.Init(cmd.Context()); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	total, err := a.store.TotalCorrections(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read correction count: %w", err)
	}

	meta := a.engine.Meta()
	fmt.Printf("State:           %s\n", a.engine.State())
	fmt.Printf("Model version:   %s\n", meta.Version)
	if !meta.TrainedAt.IsZero() {
		fmt.Printf("Trained at:      %s\n", meta.TrainedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Printf("Trained on:      %d corrections\n", meta.CorrectionCount)
	fmt.Printf("Log size:        %d corrections\n", total)
	fmt.Printf("Fields modeled:  %d\n", len(meta.Fields))
	for _, f := range meta.Fields {
		fmt.Printf("  - %s\n", f)
	}
	return nil
}
