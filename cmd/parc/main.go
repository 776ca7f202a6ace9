package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"parc-go/internal/app"
	"parc-go/internal/archive"
	"parc-go/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
func newApp() (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "parc",
	Short: "Photo deduplication and archival tool",
}

// config command

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Printf("Database: %s\n", cfg.DatabasePath)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Database:     %s\n", cfg.DatabasePath)
		fmt.Printf("Sources:      %s\n", strings.Join(cfg.SourceDirectories, ", "))
		fmt.Printf("File Endings: %s\n", strings.Join(cfg.FileEndings, ", "))
		fmt.Printf("Batch Size:   %d\n", cfg.BatchSize)
		mode := "copy"
		if cfg.MoveFiles {
			mode = "move"
		}
		fmt.Printf("Mode:         %s\n", mode)
		return nil
	},
}

// archive command

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Manage the archive binding",
}

var archiveInitCmd = &cobra.Command{
	Use:   "init NAME LOCATION",
	Short: "Create the index database and bind it to a new archive location",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		binding, err := app.InitArchive(cfg, args[0], description, args[1])
		if err != nil {
			return fmt.Errorf("initializing archive: %w", err)
		}

		fmt.Printf("Archive %q initialized at %s\n", binding.DatabaseName, binding.ArchiveLocation)
		return nil
	},
}

var archiveBackupCmd = &cobra.Command{
	Use:   "backup DEST",
	Short: "Write a consistent snapshot of the index database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		dest, err := a.BackupIndex(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Index backed up to %s\n", dest)
		return nil
	},
}

var archiveInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "View the archive binding",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		b, err := a.ArchiveInfo()
		if err != nil {
			return err
		}

		fmt.Printf("Name:           %s\n", b.DatabaseName)
		if b.Description != "" {
			fmt.Printf("Description:    %s\n", b.Description)
		}
		fmt.Printf("Location:       %s\n", b.ArchiveLocation)
		if b.SeparateVideoArchive {
			fmt.Printf("Video Location: %s\n", b.VideoArchiveLocation)
		}
		fmt.Printf("Created:        %s\n", b.CreatedDate.Format("2006-01-02 15:04:05"))
		fmt.Printf("Last Used:      %s\n", b.LastUsedDate.Format("2006-01-02 15:04:05"))
		fmt.Printf("Schema Version: %d\n", b.SchemaVersion)
		fmt.Printf("Total Photos:   %d\n", b.TotalPhotos)
		return nil
	},
}

var archiveRelocateCmd = &cobra.Command{
	Use:   "relocate LOCATION",
	Short: "Rebind the index after the archive tree has been moved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		location, err := a.RelocateArchive(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Archive location updated to %s\n", location)
		return nil
	},
}

var archiveVideoCmd = &cobra.Command{
	Use:   "video [LOCATION]",
	Short: "Route videos to a separate archive location",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		disable, _ := cmd.Flags().GetBool("disable")
		if !disable && len(args) == 0 {
			return fmt.Errorf("provide a LOCATION or --disable")
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		location := ""
		if !disable {
			location = args[0]
		}
		if err := a.SetVideoArchive(location); err != nil {
			return err
		}

		if disable {
			fmt.Println("Separate video archive disabled")
		} else {
			fmt.Printf("Videos will be archived under %s\n", location)
		}
		return nil
	},
}

// run command

var runCmd = &cobra.Command{
	Use:   "run [SOURCE...]",
	Short: "Deduplicate and archive photos from the source directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		if cmd.Flags().Changed("recursive") {
			cfg.IncludeSubdirectories, _ = cmd.Flags().GetBool("recursive")
		}
		if move, _ := cmd.Flags().GetBool("move"); move {
			cfg.MoveFiles = true
			cfg.CopyFiles = false
		}

		a, err := app.NewApp(cfg)
		if err != nil {
			return fmt.Errorf("initializing app: %w", err)
		}
		defer a.Close()

		// Ctrl-C stops cleanly between files; the current batch commits.
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, err := a.Run(ctx, args)
		if err != nil {
			return fmt.Errorf("run failed: %w", err)
		}

		fmt.Printf("Processed %d file(s): %d new, %d duplicate(s), %d filtered, %d failed\n",
			summary.Processed, summary.Unique, summary.Duplicates, summary.Filtered, summary.Failed)
		if summary.Filtered > 0 {
			fmt.Println("\nFiltered by reason:")
			for _, rc := range summary.FilterStats.ByReason() {
				fmt.Printf("  %-24s %d\n", rc.Reason, rc.Count)
			}
		}
		return nil
	},
}

// stats command

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "View archive statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.Stats()
		if err != nil {
			return err
		}

		fmt.Printf("Archive %q at %s\n", stats.Binding.DatabaseName, stats.Binding.ArchiveLocation)
		fmt.Printf("Total photos: %d\n\n", stats.Binding.TotalPhotos)
		for _, yc := range stats.ByYear {
			year := yc.Year
			if year == archive.SentinelYear {
				year = "undated"
			}
			fmt.Printf("%8s  %d\n", year, yc.Count)
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// archive subcommands
	archiveCmd.AddCommand(archiveInitCmd)
	archiveInitCmd.Flags().StringP("description", "d", "", "Archive description")
	archiveCmd.AddCommand(archiveInfoCmd)
	archiveCmd.AddCommand(archiveBackupCmd)
	archiveCmd.AddCommand(archiveRelocateCmd)
	archiveCmd.AddCommand(archiveVideoCmd)
	archiveVideoCmd.Flags().Bool("disable", false, "Archive videos alongside photos again")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolP("recursive", "r", false, "Recurse into source subdirectories")
	runCmd.Flags().Bool("move", false, "Move files into the archive instead of copying")
	rootCmd.AddCommand(statsCmd)
}
