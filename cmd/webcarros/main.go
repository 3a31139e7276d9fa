// webcarros is a command-line client for the webcarros API: sign in, browse
// the catalog and manage your own listings.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"webcarros-backend/internal/client"
	"webcarros-backend/internal/pkg/validation"
	"webcarros-backend/internal/session"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultAPIURL = "http://localhost:8080"

type cli struct {
	v      *viper.Viper
	out    io.Writer
	client *client.Client
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".webcarros-session"
	}
	return filepath.Join(dir, "webcarros", "session")
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &cli{v: viper.New(), out: out}

	root := &cobra.Command{
		Use:           "webcarros",
		Short:         "Browse and sell used cars on webcarros",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.v.GetBool("verbose") {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.WarnLevel)
			}
			store := client.FileStore{Path: a.v.GetString("session_file")}
			a.client = client.New(a.v.GetString("api_url"), client.WithSessionStore(store))
			return nil
		},
	}
	root.SetOut(out)
	root.SetErr(out)

	root.PersistentFlags().String("api", defaultAPIURL, "API base URL (WEBCARROS_API_URL)")
	root.PersistentFlags().String("session-file", defaultSessionFile(), "where the session is kept (WEBCARROS_SESSION_FILE)")
	root.PersistentFlags().BoolP("verbose", "v", false, "debug logging")
	_ = a.v.BindPFlag("api_url", root.PersistentFlags().Lookup("api"))
	_ = a.v.BindPFlag("session_file", root.PersistentFlags().Lookup("session-file"))
	_ = a.v.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))
	a.v.SetEnvPrefix("WEBCARROS")
	a.v.AutomaticEnv()

	root.AddCommand(
		a.registerCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.profileCmd(),
		a.browseCmd(),
		a.showCmd(),
		a.mineCmd(),
		a.newCmd(),
		a.editCmd(),
		a.rmImageCmd(),
		a.deleteCmd(),
		a.historyCmd(),
	)
	return root
}

// requireUser resolves the session through the gate; owner-only commands
// never run while the state is unknown.
func (a *cli) requireUser(ctx context.Context) (*client.User, error) {
	gate := session.NewGate()
	gate.Start(a.client)
	defer gate.Stop()

	if _, err := a.client.Restore(ctx); err != nil {
		return nil, fmt.Errorf("checking session: %w", err)
	}
	u, err := gate.Require(ctx)
	if errors.Is(err, session.ErrSignInRequired) {
		return nil, fmt.Errorf("not signed in, run `webcarros login` first (%s)", session.SignInPath)
	}
	return u, err
}

// describe renders an error for the terminal, with one line per invalid field.
func describe(err error) string {
	fields := map[string]string{}
	var apiErr *client.APIError
	var fe validation.FieldErrors
	msg := err.Error()
	switch {
	case errors.As(err, &fe):
		msg = "invalid form"
		fields = fe
	case errors.As(err, &apiErr):
		msg = apiErr.Message
		fields = apiErr.Fields
	}
	if len(fields) == 0 {
		return msg
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  %s: %s", k, fields[k])
	}
	return b.String()
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	root := newRootCmd(os.Stdout)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", describe(err))
		os.Exit(1)
	}
}
