package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// printResponse writes a raw JSON response body to stdout, matching the
// teacher's thin-wrapper-over-curl CLI style.
func printResponse(body []byte) {
	fmt.Println(string(body))
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a file and create a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := UploadFile(args[0])
		if err != nil {
			return err
		}
		printResponse(body)
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start <job_id>",
	Short: "Freeze settings and enqueue a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := StartJob(args[0], defaultSettingsFromFlags())
		if err != nil {
			return err
		}
		printResponse(body)
		return nil
	},
}

var (
	startModel          string
	startLanguage       string
	startDemucsMode     string
	startWordTimestamps bool
)

func init() {
	startCmd.Flags().StringVar(&startModel, "model", "", "ASR model name")
	startCmd.Flags().StringVar(&startLanguage, "language", "", "sent as settings.language; the server's settings have no language field, so the language is still auto-detected")
	startCmd.Flags().StringVar(&startDemucsMode, "demucs", "", "vocal separation mode: never|on_demand|always")
	startCmd.Flags().BoolVar(&startWordTimestamps, "word-timestamps", false, "request word-level timestamps")
}

func defaultSettingsFromFlags() map[string]interface{} {
	settings := map[string]interface{}{}
	if startModel != "" {
		settings["model"] = startModel
	}
	if startLanguage != "" {
		settings["language"] = startLanguage
	}
	if startDemucsMode != "" {
		settings["demucs"] = map[string]interface{}{"mode": startDemucsMode}
	}
	if startWordTimestamps {
		settings["word_timestamps"] = true
	}
	return settings
}

var cancelDeleteData bool

var cancelCmd = &cobra.Command{
	Use:   "cancel <job_id>",
	Short: "Cancel a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := CancelJob(args[0], cancelDeleteData)
		if err != nil {
			return err
		}
		printResponse(body)
		return nil
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause <job_id>",
	Short: "Pause a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := PauseJob(args[0])
		if err != nil {
			return err
		}
		printResponse(body)
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <job_id>",
	Short: "Resume a paused job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := ResumeJob(args[0])
		if err != nil {
			return err
		}
		printResponse(body)
		return nil
	},
}

var prioritizeMode string

var prioritizeCmd = &cobra.Command{
	Use:   "prioritize <job_id>",
	Short: "Move a job to the head of the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if prioritizeMode != "gentle" && prioritizeMode != "force" {
			return newUsageError("--mode must be gentle or force, got %q", prioritizeMode)
		}
		body, err := PrioritizeJob(args[0], prioritizeMode)
		if err != nil {
			return err
		}
		printResponse(body)
		return nil
	},
}

var reorderCmd = &cobra.Command{
	Use:   "reorder <job_id>...",
	Short: "Replace the queue order",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := ReorderQueue(args)
		if err != nil {
			return err
		}
		printResponse(body)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <job_id>",
	Short: "Show a job's full status snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := JobStatus(args[0])
		if err != nil {
			return err
		}
		printResponse(body)
		return nil
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the queue, the running job, and interrupted jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := QueueStatus()
		if err != nil {
			return err
		}
		printResponse(body)
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "List every known job",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := SyncTasks()
		if err != nil {
			return err
		}
		printResponse(body)
		return nil
	},
}

func init() {
	cancelCmd.Flags().BoolVar(&cancelDeleteData, "delete-data", false, "also remove the job's working directory")
	prioritizeCmd.Flags().StringVar(&prioritizeMode, "mode", "gentle", "gentle or force")

	rootCmd.AddCommand(uploadCmd, startCmd, cancelCmd, pauseCmd, resumeCmd, prioritizeCmd, reorderCmd, statusCmd, queueCmd, syncCmd)
}
