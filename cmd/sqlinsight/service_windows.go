//go:build windows

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

const (
	serviceName        = "SQLInsight"
	serviceDisplayName = "SQLInsight Dashboard Server"
	serviceDescription = "Natural language SQL queries and dashboards over registered databases"
	serviceStopWait    = 10 * time.Second
)

// insightService runs the HTTP server under the Service Control Manager.
type insightService struct{}

func (insightService) Execute(_ []string, changes <-chan svc.ChangeRequest, status chan<- svc.Status) (bool, uint32) {
	status <- svc.Status{State: svc.StartPending}

	// .env, prompts and the store are resolved next to the executable.
	if exe, err := os.Executable(); err == nil {
		_ = os.Chdir(filepath.Dir(exe))
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		startServer(stop)
	}()

	status <- svc.Status{State: svc.Running, Accepts: svc.AcceptStop | svc.AcceptShutdown}
	for c := range changes {
		switch c.Cmd {
		case svc.Interrogate:
			status <- c.CurrentStatus
		case svc.Stop, svc.Shutdown:
			status <- svc.Status{State: svc.StopPending}
			close(stop)
			select {
			case <-stopped:
			case <-time.After(serviceStopWait):
			}
			return false, 0
		}
	}
	return false, 0
}

func isRunningAsService() bool {
	ok, err := svc.IsWindowsService()
	return err == nil && ok
}

func runAsService() {
	if err := svc.Run(serviceName, insightService{}); err != nil {
		exitService("run", err)
	}
}

func installService() { manageService("install", createService) }

func uninstallService() { manageService("uninstall", deleteService) }

func startService() { manageService("start", startInstalled) }

func stopService() { manageService("stop", stopInstalled) }

// manageService connects to the service manager and runs one action against it.
func manageService(action string, fn func(*mgr.Mgr) error) {
	m, err := mgr.Connect()
	if err != nil {
		fmt.Println("Hint: service management needs an Administrator prompt.")
		exitService(action, err)
	}
	defer m.Disconnect()

	if err := fn(m); err != nil {
		exitService(action, err)
	}
}

func exitService(action string, err error) {
	fmt.Printf("Service %s failed: %v\n", action, err)
	os.Exit(1)
}

var errNotInstalled = errors.New("service " + serviceName + " is not installed, run 'sqlinsight install' first")

func openInstalled(m *mgr.Mgr) (*mgr.Service, error) {
	s, err := m.OpenService(serviceName)
	if err != nil {
		return nil, errNotInstalled
	}
	return s, nil
}

func createService(m *mgr.Mgr) error {
	if s, err := m.OpenService(serviceName); err == nil {
		s.Close()
		fmt.Printf("Service '%s' is already installed.\n", serviceName)
		return nil
	}
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	s, err := m.CreateService(serviceName, exe, mgr.Config{
		DisplayName: serviceDisplayName,
		Description: serviceDescription,
		StartType:   mgr.StartAutomatic,
	})
	if err != nil {
		return err
	}
	s.Close()
	fmt.Printf("Service '%s' installed. Start it with: sqlinsight start\n", serviceName)
	return nil
}

func deleteService(m *mgr.Mgr) error {
	s, err := openInstalled(m)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Delete(); err != nil {
		return err
	}
	fmt.Printf("Service '%s' uninstalled.\n", serviceName)
	return nil
}

func startInstalled(m *mgr.Mgr) error {
	s, err := openInstalled(m)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Start(); err != nil {
		return err
	}
	fmt.Printf("Service '%s' started.\n", serviceName)
	return nil
}

// stopInstalled asks the service to stop and waits for the manager to report it stopped.
func stopInstalled(m *mgr.Mgr) error {
	s, err := openInstalled(m)
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.Control(svc.Stop)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(serviceStopWait + 5*time.Second)
	for st.State != svc.Stopped {
		if time.Now().After(deadline) {
			return errors.New("timed out waiting for the service to stop")
		}
		time.Sleep(300 * time.Millisecond)
		if st, err = s.Query(); err != nil {
			return err
		}
	}
	fmt.Printf("Service '%s' stopped.\n", serviceName)
	return nil
}
