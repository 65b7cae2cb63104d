package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/leafdoctor/internal/config"
	"github.com/example/leafdoctor/internal/diagnosis"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect model profiles",
}

var profileValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that a model profile is complete",
	RunE:  runProfileValidate,
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a model profile as YAML",
	Long:  "Prints the given profile, or the built-in tomato leaf profile when none is given, in the format MODEL_PROFILE expects.",
	RunE:  runProfileShow,
}

var profilePath string

func init() {
	profileValidateCmd.Flags().StringVarP(&profilePath, "profile", "p", "", "Path to a YAML model profile (required)")
	if err := profileValidateCmd.MarkFlagRequired("profile"); err != nil {
		panic(fmt.Sprintf("failed to mark profile flag as required: %v", err))
	}
	profileShowCmd.Flags().StringVarP(&profilePath, "profile", "p", "", "Path to a YAML model profile")

	profileCmd.AddCommand(profileValidateCmd, profileShowCmd)
	rootCmd.AddCommand(profileCmd)
}

func runProfileValidate(cmd *cobra.Command, _ []string) error {
	profile, err := config.LoadProfile(profilePath)
	if err != nil {
		return err
	}
	if _, _, err := diagnosis.NewAnalyzer(profile, nil); err != nil {
		return fmt.Errorf("invalid model profile: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "profile OK: %d labels\n", len(profile.Labels))
	return nil
}

func runProfileShow(cmd *cobra.Command, _ []string) error {
	profile, err := config.LoadProfile(profilePath)
	if err != nil {
		return err
	}
	out, err := config.MarshalProfile(profile)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
