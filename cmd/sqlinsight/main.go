package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/term"

	"sqlinsight/internal/api"
	"sqlinsight/internal/config"
	"sqlinsight/internal/logger"
)

func main() {
	if isRunningAsService() {
		runAsService()
		return
	}

	// Check for CLI subcommands
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "create-user":
			handleCreateUser(os.Args[2:])
			return
		case "reset-password":
			handleResetPassword(os.Args[2:])
			return
		case "run-dashboard":
			handleRunDashboard(os.Args[2:])
			return
		case "install":
			installService()
			return
		case "uninstall":
			uninstallService()
			return
		case "start":
			startService()
			return
		case "stop":
			stopService()
			return
		case "help", "--help", "-h":
			printHelp()
			return
		default:
			fmt.Printf("Unknown command: %s\n", os.Args[1])
			printHelp()
			os.Exit(1)
		}
	}

	// No subcommand: start server until SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		<-stop
		close(done)
	}()
	startServer(done)
}

func printHelp() {
	fmt.Println("SQLInsight - natural language SQL dashboards")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  sqlinsight                                 Start the server")
	fmt.Println("  sqlinsight create-user -u <user>           Create a user and print its API key")
	fmt.Println("  sqlinsight reset-password -u <user>        Reset user password (interactive)")
	fmt.Println("  sqlinsight run-dashboard -u <user> -d <id> Re-run every query of a dashboard")
	fmt.Println("  sqlinsight install|uninstall|start|stop    Manage the Windows service")
	fmt.Println("  sqlinsight help                            Show this help")
}

// bootstrap loads config, the logger and all services for CLI commands.
func bootstrap() *app {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(logOptions(cfg)); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	a, err := newApp(cfg)
	if err != nil {
		fmt.Printf("Failed to init: %v\n", err)
		os.Exit(1)
	}
	return a
}

func logOptions(cfg *config.Config) logger.Options {
	return logger.Options{
		Dir:        cfg.LogDir,
		Level:      cfg.LogLevel,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	}
}

func readPassword(prompt string) string {
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // newline after hidden input
	if err != nil {
		fmt.Printf("Failed to read password: %v\n", err)
		os.Exit(1)
	}
	return string(b)
}

// readNewPassword asks twice and rejects empty or mismatching input.
func readNewPassword() string {
	password := readPassword("New password: ")
	if password != readPassword("Confirm password: ") {
		fmt.Println("Passwords do not match.")
		os.Exit(1)
	}
	if password == "" {
		fmt.Println("Password cannot be empty.")
		os.Exit(1)
	}
	return password
}

func handleCreateUser(args []string) {
	fs := flag.NewFlagSet("create-user", flag.ExitOnError)
	username := fs.String("u", "", "Username to create")
	fs.Parse(args)

	if *username == "" {
		fmt.Println("Usage: sqlinsight create-user -u <username>")
		os.Exit(1)
	}
	password := readNewPassword()

	a := bootstrap()
	defer a.Close()

	user, key, err := a.auth.CreateUser(context.Background(), *username, password)
	if err != nil {
		fmt.Printf("Failed to create user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("User '%s' created (id %d).\n", user.Username, user.ID)
	fmt.Printf("API key (shown once): %s\n", key)
}

func handleResetPassword(args []string) {
	fs := flag.NewFlagSet("reset-password", flag.ExitOnError)
	username := fs.String("u", "", "Username to reset")
	fs.Parse(args)

	if *username == "" {
		fmt.Println("Usage: sqlinsight reset-password -u <username>")
		os.Exit(1)
	}
	password := readNewPassword()

	a := bootstrap()
	defer a.Close()

	if err := a.auth.ResetPassword(context.Background(), *username, password); err != nil {
		fmt.Printf("Failed to reset password: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Password for user '%s' has been reset successfully.\n", *username)
}

func handleRunDashboard(args []string) {
	fs := flag.NewFlagSet("run-dashboard", flag.ExitOnError)
	username := fs.String("u", "", "Owner of the dashboard")
	dashboardID := fs.Int64("d", 0, "Dashboard ID")
	fs.Parse(args)

	if *username == "" || *dashboardID == 0 {
		fmt.Println("Usage: sqlinsight run-dashboard -u <username> -d <dashboard id>")
		os.Exit(1)
	}
	password := readPassword("Password: ")

	a := bootstrap()
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	user, err := a.auth.Authenticate(ctx, *username, password)
	if err != nil {
		fmt.Println("Invalid credentials.")
		os.Exit(1)
	}

	runs, err := a.runner.Run(ctx, user.ID, *dashboardID)
	if err != nil {
		fmt.Printf("Dashboard run failed: %v\n", err)
		os.Exit(1)
	}
	failed := 0
	for _, run := range runs {
		switch {
		case run.Error != "":
			failed++
			fmt.Printf("  query %d: FAILED %s\n", run.QueryID, run.Error)
		case run.Blocked:
			fmt.Printf("  query %d: blocked by guardrails\n", run.QueryID)
		default:
			fmt.Printf("  query %d: ok\n", run.QueryID)
		}
	}
	fmt.Printf("Dashboard %d: %d queries, %d failed.\n", *dashboardID, len(runs), failed)
}

// startServer runs the HTTP server until stop is closed.
func startServer(stop <-chan struct{}) {
	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\nCheck .env file or SQLINSIGHT_KEY environment variable.\n", err)
		os.Exit(1)
	}

	// 2. Initialize Logger
	if err := logger.Init(logOptions(cfg)); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info.Println("Starting SQLInsight...")

	// 3. Initialize store, repositories and services
	a, err := newApp(cfg)
	if err != nil {
		logger.Error.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Hot reload of prompt templates
	go func() {
		if err := a.prompts.Watch(ctx); err != nil {
			logger.Error.Printf("Prompt watcher stopped: %v", err)
		}
	}()

	// 5. Start Server
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	routes := a.handler(ctx).Routes()
	r.Mount("/api", routes)

	docs := api.NewDocHandler(routes, "/api")
	r.Get("/docs", docs.ServeSwaggerUI)
	r.Get("/docs/openapi.json", docs.GetOpenAPISpec)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info.Printf("Server listening on port %d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error.Fatalf("Server startup failed: %v", err)
		}
	}()

	<-stop
	logger.Info.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error.Printf("Server shutdown error: %v", err)
	}
	logger.Info.Println("Server stopped")
}
