// otpctl signs in to the OTP API from a terminal and caches the session on this machine.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func defaultSessionDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "otpctl")
	}
	return ".otpctl"
}

func newApp() *cli.App {
	mobileFlag := &cli.StringFlag{
		Name:     "mobile",
		Aliases:  []string{"m"},
		Usage:    "phone number (7 to 15 digits, optional leading +)",
		Required: true,
	}
	profileFlags := []cli.Flag{
		&cli.StringFlag{Name: "name", Usage: "name stored on first sign in"},
		&cli.StringFlag{Name: "business-name", Usage: "business name stored on first sign in"},
	}

	return &cli.App{
		Name:    "otpctl",
		Usage:   "Sign in with a one-time code sent by SMS",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "base URL of the OTP API",
				Value:   "http://localhost:8080",
				EnvVars: []string{"OTPCTL_API_URL"},
			},
			&cli.StringFlag{
				Name:    "session-dir",
				Usage:   "directory holding the cached session",
				Value:   defaultSessionDir(),
				EnvVars: []string{"OTPCTL_SESSION_DIR"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Request a code and enter it interactively",
				Flags:  append([]cli.Flag{mobileFlag}, profileFlags...),
				Action: login,
			},
			{
				Name:   "request",
				Usage:  "Request a code without waiting for it",
				Flags:  []cli.Flag{mobileFlag},
				Action: request,
			},
			{
				Name:  "verify",
				Usage: "Submit a code received earlier",
				Flags: append([]cli.Flag{
					mobileFlag,
					&cli.StringFlag{Name: "otp", Usage: "the code from the SMS", Required: true},
				}, profileFlags...),
				Action: verify,
			},
			{
				Name:   "status",
				Usage:  "Show whether a session is cached",
				Action: status,
			},
			{
				Name:   "whoami",
				Usage:  "Show the signed-in user as the server sees it",
				Action: whoami,
			},
			{
				Name:   "logout",
				Usage:  "Revoke the session and remove it from this machine",
				Action: logout,
			},
		},
	}
}

func main() {
	_ = godotenv.Load(".env")

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
