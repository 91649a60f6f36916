package main

import (
	"fmt"
	"os"

	"github.com/jonathan/codecraft/internal/gemini"
	"github.com/jonathan/codecraft/internal/observability"
	"github.com/spf13/cobra"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Write the Gemini CLI configuration into a working tree",
	Long:  "Writes .gemini/config.yaml, .geminiignore and .gemini/README.md into a directory, backing up any existing configuration first. Without project flags the default rules are written.",
	RunE:  runBootstrap,
}

var (
	bootstrapDir        string
	bootstrapProject    string
	bootstrapCategory   string
	bootstrapDifficulty string
	bootstrapTechStack  []string
)

func init() {
	bootstrapCmd.Flags().StringVarP(&bootstrapDir, "dir", "d", ".", "Repository working tree")
	bootstrapCmd.Flags().StringVar(&bootstrapProject, "project-name", "", "Project name rendered into the rules")
	bootstrapCmd.Flags().StringVar(&bootstrapCategory, "category", "", "Recommendation category")
	bootstrapCmd.Flags().StringVar(&bootstrapDifficulty, "difficulty", "", "Recommendation difficulty")
	bootstrapCmd.Flags().StringSliceVar(&bootstrapTechStack, "tech-stack", nil, "Technologies used by the project")
	rootCmd.AddCommand(bootstrapCmd)
}

func runBootstrap(cmd *cobra.Command, _ []string) error {
	info, err := os.Stat(bootstrapDir)
	if err != nil {
		return fmt.Errorf("invalid --dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("invalid --dir: %s is not a directory", bootstrapDir)
	}

	b := gemini.NewBootstrapper()
	result, err := b.Bootstrap(cmd.Context(), bootstrapDir, gemini.TemplateContext{
		ProjectName: bootstrapProject,
		Category:    bootstrapCategory,
		Difficulty:  bootstrapDifficulty,
		TechStack:   bootstrapTechStack,
	})
	if err != nil {
		return err
	}

	if outputFormat == "text" {
		observability.NewPrinter(cmd.OutOrStdout()).PrintBootstrap(result)
		return nil
	}
	return writeJSON(cmd.OutOrStdout(), result)
}
