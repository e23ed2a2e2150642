package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/felixgeelhaar/blackbird/internal/config"
)

// cmdStart starts the daemon in the background
func cmdStart() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	addr := daemonURL(cfg)

	if isRunning(addr) {
		fmt.Println("✓ Daemon is already running")
		return nil
	}

	dir, err := config.EnsureBlackbirdDir()
	if err != nil {
		return fmt.Errorf("setup blackbird directory: %w", err)
	}

	daemonPath, err := findDaemonBinary()
	if err != nil {
		return fmt.Errorf("find daemon binary: %w", err)
	}

	cmd := exec.Command(daemonPath)
	cmd.Dir = dir
	cmd.Stdout = nil
	cmd.Stderr = nil

	// Detach from parent process (platform-specific)
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	fmt.Print("Starting daemon...")
	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if isRunning(addr) {
			fmt.Println(" ✓")
			fmt.Printf("Daemon running at %s\n", addr)
			return nil
		}
		fmt.Print(".")
	}

	fmt.Println(" ✗")
	return fmt.Errorf("daemon failed to start (check logs with 'blackbird logs')")
}

// cmdStop stops the daemon
func cmdStop() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	addr := daemonURL(cfg)

	if !isRunning(addr) {
		fmt.Println("Daemon is not running")
		return nil
	}

	dir, err := config.BlackbirdDir()
	if err != nil {
		return err
	}

	pid, err := readPID(filepath.Join(dir, pidFile))
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}

	fmt.Print("Stopping daemon...")
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send signal: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !isRunning(addr) {
			fmt.Println(" ✓")
			return nil
		}
		fmt.Print(".")
	}

	fmt.Println(" ✗")
	return fmt.Errorf("daemon did not stop gracefully")
}

// daemonStatus is the body of GET /health
type daemonStatus struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int    `json:"uptime_s"`
	Sessions int    `json:"sessions"`
	Views    int    `json:"views"`
}

// cmdStatus shows daemon status
func cmdStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	addr := daemonURL(cfg)

	resp, err := http.Get(addr + "/health")
	if err != nil {
		fmt.Println("Status: stopped")
		return nil
	}
	defer resp.Body.Close()

	var status daemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("parse status: %w", err)
	}

	fmt.Printf("Status:    %s\n", status.Status)
	fmt.Printf("Version:   %s\n", status.Version)
	fmt.Printf("Uptime:    %s\n", time.Duration(status.UptimeS)*time.Second)
	fmt.Printf("Sessions:  %d exercise, %d lesson views\n", status.Sessions, status.Views)
	fmt.Printf("Address:   %s\n", addr)
	fmt.Printf("API:       %s\n", cfg.API.BaseURL)

	return nil
}

// cmdLogs prints the tail of the daemon log
func cmdLogs() error {
	dir, err := config.BlackbirdDir()
	if err != nil {
		return err
	}

	logPath := filepath.Join(dir, "logs", "blackbirdd.log")

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Println("No log file found. Start the daemon first.")
		return nil
	}

	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	// Seek to end and go back ~4KB for recent logs
	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}
	offset := max(info.Size()-4096, 0)
	if _, err := file.Seek(offset, 0); err != nil {
		return fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReader(file)
	if offset > 0 {
		// Skip the partial first line
		_, _ = reader.ReadString('\n')
	}

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		fmt.Println(scanner.Text())
	}

	return scanner.Err()
}

func daemonURL(cfg *config.Config) string {
	return "http://" + cfg.Server.Addr()
}

// isRunning checks if the daemon is running by calling the health endpoint
func isRunning(addr string) bool {
	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get(addr + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse PID: %w", err)
	}
	return pid, nil
}

// findDaemonBinary locates the blackbirdd binary
func findDaemonBinary() (string, error) {
	if path, err := exec.LookPath("blackbirdd"); err == nil {
		return path, nil
	}

	// Next to this binary
	if self, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(self), "blackbirdd")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	for _, path := range []string{
		"/usr/local/bin/blackbirdd",
		"./blackbirdd",
		"./cmd/blackbirdd/blackbirdd",
	} {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("blackbirdd binary not found (build with 'go build ./cmd/blackbirdd')")
}
