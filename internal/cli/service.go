package cli

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	installCmd = &cobra.Command{
		Use:   "install [folder]",
		Short: "Install the watcher as a background service",
		Args:  cobra.MaximumNArgs(1),
		Run:   runInstall,
	}

	serviceStartCmd = &cobra.Command{
		Use:   "service-start",
		Short: "Start the watcher service",
		Run:   runServiceStart,
	}

	serviceStopCmd = &cobra.Command{
		Use:   "service-stop",
		Short: "Stop the watcher service",
		Run:   runServiceStop,
	}

	uninstallCmd = &cobra.Command{
		Use:   "uninstall",
		Short: "Uninstall the watcher service",
		Run:   runUninstall,
	}

	logsCmd = &cobra.Command{
		Use:   "logs",
		Short: "Tail the service logs",
		Run:   runLogs,
	}
)

func init() {
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(serviceStartCmd)
	rootCmd.AddCommand(serviceStopCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(logsCmd)
}

type program struct{}

func (p *program) Start(s service.Service) error {
	go p.run()
	return nil
}

func (p *program) run() {
	if err := setupServiceLogging(); err != nil {
		log.Printf("Failed to setup file logging: %v", err)
	}

	log.Println("Service starting...")

	config := GetConfig()
	log.Printf("Loaded config: ServerURL=%s, WatchFolder=%s, TokenSet=%v", config.ServerURL, config.WatchFolder, config.Token != "")

	if config.WatchFolder == "" {
		log.Println("No watch folder configured. Please run 'orchestratorctl install [folder]' first.")
		return
	}

	if err := watchFolder(config.WatchFolder); err != nil {
		log.Printf("Watcher stopped: %v", err)
	}
}

func (p *program) Stop(s service.Service) error {
	log.Println("Service stopping...")
	return nil
}

func getServiceConfig(configPath string) *service.Config {
	ex, err := os.Executable()
	if err != nil {
		log.Fatal(err)
	}

	args := []string{"service-run"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}

	return &service.Config{
		Name:        "orchestratorctl-watcher",
		DisplayName: "Transcription Orchestrator Watcher",
		Description: "Watches a folder and uploads files to the transcription job orchestrator.",
		Executable:  ex,
		Arguments:   args,
	}
}

// serviceRunCmd is the hidden command the service manager itself invokes.
var serviceRunCmd = &cobra.Command{
	Use:    "service-run",
	Hidden: true,
	Run: func(cmd *cobra.Command, args []string) {
		if err := setupServiceLogging(); err != nil {
			log.Printf("Failed to setup file logging: %v", err)
		}
		log.Println("Starting service-run command...")

		prg := &program{}
		s, err := service.New(prg, getServiceConfig(""))
		if err != nil {
			log.Fatalf("Failed to create service: %v", err)
		}

		svcLogger, err := s.Logger(nil)
		if err != nil {
			log.Printf("Failed to get system logger: %v", err)
		} else {
			_ = svcLogger.Info("orchestratorctl watcher starting...")
		}

		if err = s.Run(); err != nil {
			if svcLogger != nil {
				_ = svcLogger.Error(err)
			}
			log.Fatalf("Service failed to run: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serviceRunCmd)
}

func runInstall(cmd *cobra.Command, args []string) {
	var configPath string
	if len(args) > 0 {
		folder := args[0]
		absPath, err := filepath.Abs(folder)
		if err != nil {
			log.Fatalf("Failed to get absolute path: %v", err)
		}

		token := viper.GetString("token")
		serverURL := viper.GetString("server_url")

		// If running as root (sudo), try to inherit config from the
		// original user so the service authenticates as them.
		if os.Geteuid() == 0 {
			sudoUser := os.Getenv("SUDO_USER")
			if sudoUser != "" {
				if u, err := user.Lookup(sudoUser); err == nil {
					userConfigPath := filepath.Join(u.HomeDir, ".orchestratorctl.yaml")
					if _, err := os.Stat(userConfigPath); err == nil {
						v := viper.New()
						v.SetConfigFile(userConfigPath)
						if err := v.ReadInConfig(); err == nil {
							if userToken := v.GetString("token"); userToken != "" {
								token = userToken
								fmt.Printf("Inherited token from user %s\n", sudoUser)
							}
							if userURL := v.GetString("server_url"); userURL != "" {
								serverURL = userURL
								fmt.Printf("Inherited server URL from user %s\n", sudoUser)
							}
						}
					}
				}
			}
		}

		var errSave error
		configPath, errSave = SaveConfig(serverURL, token, absPath)
		if errSave != nil {
			log.Fatalf("Failed to save config: %v", errSave)
		}
		fmt.Printf("Configured to watch: %s\n", absPath)
	} else {
		config := GetConfig()
		if config.WatchFolder == "" {
			log.Fatalf("No watch folder specified. Usage: orchestratorctl install [folder]")
		}
		if cfgFile != "" {
			configPath = cfgFile
		} else {
			home, err := os.UserHomeDir()
			if err == nil {
				configPath = filepath.Join(home, ".orchestratorctl.yaml")
			}
		}
	}

	s, err := service.New(&program{}, getServiceConfig(configPath))
	if err != nil {
		log.Fatal(err)
	}
	if err = s.Install(); err != nil {
		log.Fatalf("Failed to install service: %v", err)
	}
	fmt.Println("Service installed successfully.")
}

func runServiceStart(cmd *cobra.Command, args []string) {
	s, err := service.New(&program{}, getServiceConfig(""))
	if err != nil {
		log.Fatal(err)
	}
	if err = s.Start(); err != nil {
		log.Fatalf("Failed to start service: %v", err)
	}
	fmt.Println("Service started.")
}

func runServiceStop(cmd *cobra.Command, args []string) {
	s, err := service.New(&program{}, getServiceConfig(""))
	if err != nil {
		log.Fatal(err)
	}
	if err = s.Stop(); err != nil {
		log.Fatalf("Failed to stop service: %v", err)
	}
	fmt.Println("Service stopped.")
}

func runUninstall(cmd *cobra.Command, args []string) {
	s, err := service.New(&program{}, getServiceConfig(""))
	if err != nil {
		log.Fatal(err)
	}
	if err = s.Uninstall(); err != nil {
		log.Fatalf("Failed to uninstall service: %v", err)
	}
	fmt.Println("Service uninstalled.")
}

func getLogFilePath() string {
	return "/tmp/orchestratorctl-watcher.log"
}

func setupServiceLogging() error {
	logFile := getLogFilePath()
	f, err := os.OpenFile(logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("error opening file: %v", err)
	}
	log.SetOutput(f)
	return nil
}

func runLogs(cmd *cobra.Command, args []string) {
	logFile := getLogFilePath()
	fmt.Printf("Tailing logs from %s...\n", logFile)

	c := exec.Command("tail", "-f", logFile)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		fmt.Printf("Error tailing logs: %v\n", err)
	}
}
