//go:build !windows

package main

import (
	"fmt"
	"os"
)

func isRunningAsService() bool { return false }

func runAsService() {}

func installService()   { unsupportedService() }
func uninstallService() { unsupportedService() }
func startService()     { unsupportedService() }
func stopService()      { unsupportedService() }

func unsupportedService() {
	fmt.Println("Service management is only available on Windows; use systemd or similar here.")
	os.Exit(1)
}
