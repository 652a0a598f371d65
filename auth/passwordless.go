package auth

import (
	"context"
	"io"

	"github.com/johnsto/go-passwordless"
)

func (a *Auth) getTransport() string {
	if a.Environment == EnvProduction {
		return "Email"
	}
	return "Log"
}

// Request will email a login PIN and sign-in link to the user
func (a *Auth) Request(ctx context.Context, uid, recipient string) error {
	return a.pw.RequestToken(ctx, a.getTransport(), uid, recipient)
}

// Verify checks if the login PIN is valid and corresponds to the user
func (a *Auth) Verify(ctx context.Context, uid, token string) (bool, error) {
	valid, err := a.pw.VerifyToken(ctx, uid, token)
	switch err {
	case passwordless.ErrNoResponseWriter, passwordless.ErrNoStore, passwordless.ErrNoTransport, passwordless.ErrNotValidForContext:
		return valid, err
	default:
		return valid, nil
	}
}

func composeFuncGetter(options EmailOption) passwordless.ComposerFunc {
	return func(ctx context.Context, token, uid, recipient string, w io.Writer) error {
		e := &passwordless.Email{
			Subject: options.Name + " console sign-in PIN",
			To:      recipient,
		}

		link := options.LinkGenerator(uid, token)

		text := "Someone asked to sign in to the " + options.Name + " console " +
			"with this email address.\n\n" +
			"Your PIN is " + token + " (valid for 15 minutes), " +
			"or sign in directly: " + link + "\n\n" +
			"If this wasn't you, no action is needed - the PIN expires on its own."
		html := "<!doctype html><html><body>" +
			"<p>Someone asked to sign in to the " + options.Name + " console " +
			"with this email address.</p>" +
			"<p>Your PIN is <b>" + token + "</b> (valid for 15 minutes), " +
			"or <a href=\"" + link + "\">sign in directly</a>.</p>" +
			"<p>If this wasn't you, no action is needed - the PIN expires on its own.</p>" +
			"</body></html>"

		e.AddBody("text/plain", text)
		e.AddBody("text/html", html)

		_, err := e.Write(w)

		return err
	}
}
