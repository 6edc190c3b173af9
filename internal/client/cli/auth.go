package cli

import (
	"context"
	"fmt"
)

// getSimpleText and getSecret are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getSecret = GetSecret
var confirm = Confirm

// Login adopts an access token as the current identity. The token is taken
// from args or prompted for without echo.
//
// On success the organization is bootstrapped and, when online, live sync
// starts for the new user.
func (a *App) Login(ctx context.Context, args []string) error {
	var token string
	if len(args) > 0 {
		token = args[0]
	} else {
		var err error
		token, err = getSecret(a.reader, "Access token", a.out)
		if err != nil {
			return err
		}
	}

	if err := a.session.Login(ctx, token); err != nil {
		return fmt.Errorf("login unsuccessful: %w", err)
	}

	org, err := a.orgs.EnsureLocal(ctx)
	if err != nil {
		a.logger.Warn(ctx, "organization not available", "error", err)
	}

	a.startLive(ctx)

	name := a.session.Email()
	if org != nil {
		name = fmt.Sprintf("%s (%s)", name, org.Name)
	}
	fmt.Fprintln(a.out, "Signed in as", name)
	return nil
}

// Logout stops live sync and forgets the token. Local projects and fixtures
// stay on the device.
func (a *App) Logout(ctx context.Context) error {
	a.live.Stop()
	a.projects.Wait()
	a.fixtures.Wait()

	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}
