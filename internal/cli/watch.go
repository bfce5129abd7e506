package cli

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [folder]",
	Short: "Watch a folder for new audio/video files and upload them",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	folder := args[0]
	absPath, err := filepath.Abs(folder)
	if err != nil {
		return newUsageError("failed to resolve folder: %v", err)
	}
	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return newUsageError("folder does not exist: %s", absPath)
	}

	if _, err := SaveConfig("", "", absPath); err != nil {
		fmt.Printf("Warning: failed to save watch folder to config: %v\n", err)
	}

	return watchFolder(absPath)
}

// watchFolder debounces filesystem events per-file (2s quiet period) before
// uploading, and exits with code 130 on SIGINT/SIGTERM rather than hanging
// forever the way a bare <-done channel would.
func watchFolder(path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start filesystem watcher: %w", err)
	}
	defer watcher.Close()

	timers := make(map[string]*time.Timer)
	var mu sync.Mutex

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
					ext := strings.ToLower(filepath.Ext(event.Name))
					if !isMediaFile(ext) {
						continue
					}

					mu.Lock()
					if t, exists := timers[event.Name]; exists {
						t.Stop()
					}
					timers[event.Name] = time.AfterFunc(2*time.Second, func() {
						mu.Lock()
						delete(timers, event.Name)
						mu.Unlock()

						log.Printf("Uploading %s...\n", event.Name)
						if _, err := UploadFile(event.Name); err != nil {
							log.Printf("Failed to upload %s: %v\n", event.Name, err)
						} else {
							log.Printf("Successfully uploaded %s\n", event.Name)
						}
					})
					mu.Unlock()
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Println("watch error:", err)
			}
		}
	}()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	log.Printf("Watching %s for new files...\n", path)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	return errInterrupted
}

func isMediaFile(ext string) bool {
	switch ext {
	case ".mp3", ".wav", ".m4a", ".flac", ".ogg", ".aac", ".wma", ".mp4", ".mov", ".mkv", ".webm":
		return true
	default:
		return false
	}
}
