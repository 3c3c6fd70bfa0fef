package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/tharamac2/Tharamac/internal/auth"
	"github.com/tharamac2/Tharamac/internal/client"
	"github.com/tharamac2/Tharamac/internal/clock"
)

func newFlow(cCtx *cli.Context) (*client.Flow, *client.APIClient, client.SessionStore) {
	api := client.NewAPIClient(cCtx.String("api-url"))
	store := client.NewFileStore(cCtx.String("session-dir"))
	flow := client.NewFlow(api, store, clock.New())
	flow.Start()
	return flow, api, store
}

func profileFrom(cCtx *cli.Context) client.Profile {
	return client.Profile{Name: cCtx.String("name"), BusinessName: cCtx.String("business-name")}
}

// describe turns a typed failure into the line shown to the user.
func describe(err error) string {
	var authErr *auth.Error
	if !errors.As(err, &authErr) {
		return err.Error()
	}
	switch authErr.Kind {
	case auth.KindInvalidCode:
		return fmt.Sprintf("Wrong code, %d attempts left", authErr.AttemptsLeft)
	case auth.KindExpired:
		return "The code has expired, request a new one"
	case auth.KindTooManyAttempts:
		return "Too many attempts, request a new code"
	case auth.KindNotFound:
		return "No code was requested for this number"
	case auth.KindNetwork:
		return "Network error: " + authErr.Message
	default:
		return authErr.Message
	}
}

func printChallenge(cCtx *cli.Context, c client.Challenge) {
	out := cCtx.App.Writer
	fmt.Fprintf(out, "Code sent to %s, valid for %ds\n", c.Mobile, int(client.Countdown(clock.New().Now(), c.ExpiresAt).Seconds()))
	if c.DevOTP != "" {
		fmt.Fprintf(out, "Dev code: %s\n", c.DevOTP)
	}
}

func printSession(cCtx *cli.Context, s client.Session) {
	fmt.Fprintf(cCtx.App.Writer, "Signed in as %s (%s, %s)\n", s.User.Mobile, s.User.Name, s.User.BusinessName)
}

// login runs the whole flow: request, then read codes from stdin until one
// works. "r" resends, "q" gives up.
func login(cCtx *cli.Context) error {
	ctx := cCtx.Context
	flow, _, _ := newFlow(cCtx)
	out := cCtx.App.Writer
	if flow.State() == client.LoggedIn {
		printSession(cCtx, *flow.Session())
		return nil
	}

	mobile := strings.TrimSpace(cCtx.String("mobile"))
	c, err := flow.RequestOTP(ctx, mobile)
	if err != nil {
		return cli.Exit(describe(err), 1)
	}
	printChallenge(cCtx, c)

	scanner := bufio.NewScanner(cCtx.App.Reader)
	for {
		fmt.Fprint(out, "Enter code (r to resend, q to quit): ")
		if !scanner.Scan() {
			flow.Restart()
			return cli.Exit("no code entered", 1)
		}
		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "q":
			flow.Restart()
			return cli.Exit("login cancelled", 1)
		case "r":
			c, err := flow.RequestOTP(ctx, mobile)
			if err != nil {
				fmt.Fprintln(out, describe(err))
				continue
			}
			printChallenge(cCtx, c)
			continue
		}

		s, err := flow.Verify(ctx, input, profileFrom(cCtx))
		if err == nil {
			printSession(cCtx, s)
			return nil
		}
		fmt.Fprintln(out, describe(err))
		switch auth.KindOf(err) {
		case auth.KindExpired, auth.KindTooManyAttempts, auth.KindNotFound:
			fmt.Fprintln(out, "Type r to get a new code")
		case auth.KindNetwork, auth.KindPersistence, auth.KindInternal:
			return cli.Exit("login failed", 1)
		}
	}
}

func request(cCtx *cli.Context) error {
	api := client.NewAPIClient(cCtx.String("api-url"))
	c, err := api.RequestOTP(cCtx.Context, strings.TrimSpace(cCtx.String("mobile")))
	if err != nil {
		return cli.Exit(describe(err), 1)
	}
	printChallenge(cCtx, c)
	return nil
}

func verify(cCtx *cli.Context) error {
	api := client.NewAPIClient(cCtx.String("api-url"))
	store := client.NewFileStore(cCtx.String("session-dir"))
	s, err := api.Verify(cCtx.Context, strings.TrimSpace(cCtx.String("mobile")), cCtx.String("otp"), profileFrom(cCtx))
	if err != nil {
		return cli.Exit(describe(err), 1)
	}
	s.SavedAt = clock.New().Now()
	if err := store.Save(s); err != nil {
		return cli.Exit(fmt.Sprintf("signed in but could not save the session: %v", err), 1)
	}
	printSession(cCtx, s)
	return nil
}

func status(cCtx *cli.Context) error {
	flow, _, _ := newFlow(cCtx)
	out := cCtx.App.Writer
	fmt.Fprintf(out, "State: %s\n", flow.State())
	if s := flow.Session(); s != nil {
		fmt.Fprintf(out, "User: %s (%s)\nSaved: %s\n", s.User.Mobile, s.User.Name, s.SavedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func whoami(cCtx *cli.Context) error {
	flow, api, _ := newFlow(cCtx)
	s := flow.Session()
	if s == nil {
		return cli.Exit("not logged in", 1)
	}
	user, err := api.Me(contextOf(cCtx), s.Token)
	if err != nil {
		return cli.Exit(describe(err), 1)
	}
	fmt.Fprintf(cCtx.App.Writer, "%s\t%s\t%s\t%s\n", user.ID, user.Mobile, user.Name, user.BusinessName)
	return nil
}

func logout(cCtx *cli.Context) error {
	flow, _, _ := newFlow(cCtx)
	if flow.State() != client.LoggedIn {
		fmt.Fprintln(cCtx.App.Writer, "Not logged in")
		return nil
	}
	if err := flow.Logout(contextOf(cCtx)); err != nil {
		fmt.Fprintf(cCtx.App.Writer, "Logged out locally; server said: %s\n", describe(err))
		return nil
	}
	fmt.Fprintln(cCtx.App.Writer, "Logged out")
	return nil
}

func contextOf(cCtx *cli.Context) context.Context {
	if cCtx.Context != nil {
		return cCtx.Context
	}
	return context.Background()
}
