// Package main provides leafctl, an offline tomato leaf diagnosis tool.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "leafctl",
	Short: "Tomato leaf disease diagnosis",
	Long:  "leafctl classifies tomato leaf photos as Early Blight, Late Blight or Healthy and prints care recommendations.",
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
