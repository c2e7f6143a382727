package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "photo-curator",
	Short: "A photo library curator with face clustering and AI tagging",
	Long: `Photo Curator manages the analysis pipeline of a photo library:
face detection, adaptive face clustering, whole-image embeddings and
AI-generated captions with tag suggestions. Work runs as durable jobs
with crash recovery; results are served over a web API.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
