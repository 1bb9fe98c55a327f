package main

import (
	"fmt"
	"log"
	"os"

	"github.com/ironsheep/hough-circles/internal/monitoring"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("hough-circles %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		}
	}

	// Configure logging to stderr (stdout carries results or MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if os.Getenv("HOUGH_CIRCLES_LOG_LEVEL") == "debug" {
		monitoring.SetDebug(true)
		log.Printf("hough-circles v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func printHelp() {
	fmt.Println("hough-circles - circle detection with the Hough transform")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  hough-circles detect [flags] image...   Detect circles, print JSON results")
	fmt.Println("  hough-circles edges [flags] image...    Run the edge stage only")
	fmt.Println("  hough-circles serve [flags]             MCP server over stdin/stdout (default)")
	fmt.Println()
	fmt.Println("Flags (detect, edges):")
	fmt.Println("  -config file.json   Detector configuration (see config/detector.defaults.json)")
	fmt.Println("  -strategy name      direct, gradient or pyramid")
	fmt.Println("  -mode 2d|3d         Accumulator mode")
	fmt.Println("  -min-radius n       Smallest radius to vote for")
	fmt.Println("  -max-radius n       Largest radius (0 = half the shorter side)")
	fmt.Println("  -threshold n        Edge threshold (0-255)")
	fmt.Println("  -max-circles n      Keep the n strongest circles (0 = all)")
	fmt.Println("  -workers n          Parallel voting workers")
	fmt.Println("  -vote-weight w      constant, distance or magnitude")
	fmt.Println("  -out dir            Write overlay, edge mask and heatmap images to dir")
	fmt.Println("  -heatmap            Also plot the strongest accumulator slice (detect)")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  HOUGH_CIRCLES_LOG_LEVEL=debug    Enable debug logging")
}
