package gdrive

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const callbackTimeout = 5 * time.Minute

// LocalServerAuth runs the installed-app flow: the browser is redirected back to a listener on
// localhost which receives the authorization code.
type LocalServerAuth struct {
	Config *oauth2.Config
	// Addr to listen on, e.g. "localhost:8080".
	Addr        string
	Out         io.Writer
	OpenBrowser func(url string) error
}

type callbackResult struct {
	code string
	err  error
}

func (a *LocalServerAuth) Authorize(ctx context.Context) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", a.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", a.Addr, err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	cfg := *a.Config
	cfg.RedirectURL = fmt.Sprintf("http://localhost:%d/", port)
	state := uuid.NewString()

	results := make(chan callbackResult, 1)
	srv := &http.Server{
		Handler:           callbackHandler(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("oauth callback server failed", "err", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(a.Out, "\nOpening browser for Google sign-in...\n")
	fmt.Fprintf(a.Out, "If the browser doesn't open, visit:\n\n  %s\n\n", authURL)
	if a.OpenBrowser != nil {
		if err := a.OpenBrowser(authURL); err != nil {
			slog.Debug("could not open browser", "err", err)
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, callbackTimeout)
	defer cancel()

	var res callbackResult
	select {
	case res = <-results:
	case <-waitCtx.Done():
		return nil, fmt.Errorf("waiting for authorization: %w", waitCtx.Err())
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := cfg.Exchange(ctx, res.code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	return tok, nil
}

func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res callbackResult
		switch {
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		case q.Get("error") != "":
			res.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
		case q.Get("code") == "":
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		default:
			res.code = q.Get("code")
		}

		select {
		case results <- res:
		default:
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if res.err != nil {
			fmt.Fprintf(w, "<p>Authentication failed: %s</p>", html.EscapeString(res.err.Error()))
			return
		}
		io.WriteString(w, "<p>Authentication complete. You can close this window.</p>")
	})
}

// OpenBrowser asks the desktop to open url.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
