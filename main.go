package main

import (
	"fmt"
	"os"
	"time"

	"rp6502-attest/api"
	"rp6502-attest/config"
	"rp6502-attest/driver"
	"rp6502-attest/logger"
)

func main() {
	// 1. Load Config
	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Println(err)
		config.Usage()
		os.Exit(1)
	}

	if err := logger.Init("logs"); err != nil {
		fmt.Println("logger:", err)
	}
	defer logger.Close()

	// 2. Scan mode: find the device and exit
	if cfg.Scan {
		scanner := driver.NewScanner(cfg.BaudRate)
		if port, ok := scanner.Scan(); ok {
			fmt.Printf("Device found on %s\n", port)
			return
		}
		fmt.Println("No device answered")
		os.Exit(1)
	}

	// 3. Optional live trace monitor
	var hub *api.Hub
	if cfg.WSAddr != "" {
		hub = api.NewHub()
		go hub.Serve(cfg.WSAddr)
		fmt.Printf("Trace monitor on ws://%s/ws\n", cfg.WSAddr)
	}

	// 4. Open the port
	fmt.Printf("Opening %s at %d baud...\n", cfg.Port, cfg.BaudRate)
	port, err := driver.OpenPort(cfg.Port, cfg.BaudRate)
	if err != nil {
		logger.Error("Failed to open port: %v", err)
		fmt.Printf("Failed to open %s: %v\n", cfg.Port, err)
		os.Exit(1)
	}
	defer port.Close()

	// Let the device settle, then flush any startup banner noise
	time.Sleep(500 * time.Millisecond)
	port.ResetInputBuffer()

	// 5. Run the scripted session
	trace := func(dir, text string) {
		fmt.Printf("%s %s\n", dir, text)
		logger.Trace(dir, text)
		if hub != nil {
			hub.Broadcast(dir, text)
		}
	}

	sess := driver.NewSession(port, trace)
	params := driver.ScriptParams{
		SSID:     cfg.SSID,
		Password: cfg.Password,
		Host:     cfg.Host,
		Port:     cfg.TargetPort,
		SendText: cfg.SendText,
		Payload:  cfg.Payload,
		RecvCap:  cfg.RecvCap,
	}

	var steps []driver.Step
	if cfg.Preset == config.PresetLocal {
		steps = driver.LocalEchoScript(params)
	} else {
		steps = driver.PublicEchoScript(params)
	}

	if err := sess.Run(steps); err != nil {
		logger.Error("Session aborted: %v", err)
		fmt.Println("Session aborted:", err)
		port.Close() // os.Exit skips the defers
		logger.Close()
		os.Exit(1)
	}

	fmt.Println("Test complete!")
}
