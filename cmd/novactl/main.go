package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"novacore.dev/internal/api"
	"novacore.dev/internal/config"
	"novacore.dev/internal/notify"
	"novacore.dev/internal/obs"
	"novacore.dev/internal/session"
)

var version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.New(os.Getenv("NOVACORE_ENV_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "novactl: load config: %v\n", err)
		os.Exit(1)
	}
	log := obs.InitLogger(cfg.LogLevel)
	obs.Init()

	client, err := api.New(cfg.APIBaseURL,
		api.WithLogger(log),
		api.WithCredentialStore(api.NewFileStore(cfg.CredentialsFile)),
		api.WithTimeout(cfg.HTTPTimeout),
	)
	if err != nil {
		fatal("api client: %v", err)
	}
	store, err := session.New(client, client, session.WithLogger(log))
	if err != nil {
		fatal("session store: %v", err)
	}

	ctx := context.Background()
	switch os.Args[1] {
	case "login":
		runLogin(ctx, store, os.Args[2:])
	case "logout":
		store.Logout()
		fmt.Println("logged out")
	case "whoami":
		runWhoami(ctx, store)
	case "can":
		runCan(ctx, store, os.Args[2:])
	case "watch":
		runWatch(ctx, store, client, cfg)
	case "version":
		fmt.Printf("novactl %s\n", version)
	default:
		usage()
		os.Exit(2)
	}
}

func runLogin(ctx context.Context, store *session.Store, args []string) {
	flags := pflag.NewFlagSet("login", pflag.ExitOnError)
	email := flags.String("email", "", "account email")
	password := flags.String("password", "", "account password")
	_ = flags.Parse(args)

	if *email == "" || *password == "" {
		fatal("login requires --email and --password")
	}
	if err := store.Login(ctx, *email, *password); err != nil {
		fatal("login failed: %v", err)
	}
	identity, _ := store.Identity()
	tenant := store.Tenant()
	fmt.Printf("logged in as %s (%s) at %s\n", identity.DisplayName, identity.Role, tenant.Name)
}

func runWhoami(ctx context.Context, store *session.Store) {
	store.Initialize(ctx)
	identity, ok := store.Identity()
	if !ok {
		fatal("not logged in")
	}
	tenant := store.Tenant()
	fmt.Printf("user:    %s (%s)\n", identity.DisplayName, identity.ID)
	fmt.Printf("role:    %s\n", identity.Role)
	fmt.Printf("company: %s (plan %s, %d seats)\n", tenant.Name, tenant.Plan, tenant.SeatLimit)
	fmt.Printf("grants:  %s\n", strings.Join(session.PermissionsForRole(identity.Role), ", "))
}

func runCan(ctx context.Context, store *session.Store, args []string) {
	if len(args) != 1 {
		fatal("usage: novactl can <permission-tag>")
	}
	store.Initialize(ctx)
	if store.HasPermission(args[0]) {
		fmt.Println("yes")
		return
	}
	fmt.Println("no")
	os.Exit(1)
}

func runWatch(ctx context.Context, store *session.Store, client *api.Client, cfg config.Config) {
	store.Initialize(ctx)
	if !store.Authenticated() {
		fatal("not logged in")
	}
	identity, _ := store.Identity()

	zlog := obs.Logger()
	dial := notify.HTTPDialer(http.DefaultClient, cfg.StreamURL, client.Token)
	center := notify.NewCenter(client, dial,
		notify.WithCenterLogger(zlog),
		notify.WithAlerter(&notify.LogAlerter{Log: zlog}),
		notify.WithReconcileInterval(cfg.ReconcileInterval),
		notify.WithChannelOptions(notify.WithReconnectRange(cfg.ReconnectMin, cfg.ReconnectMax)),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	center.Start(runCtx)
	defer center.Stop()

	events := center.Feed().Subscribe(runCtx)
	fmt.Printf("watching notifications for %s (ctrl-c to stop)\n", identity.DisplayName)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case n, ok := <-events:
			if !ok {
				return
			}
			ts := n.CreatedAt
			if ts.IsZero() {
				ts = time.Now()
			}
			fmt.Printf("[%s] %-8s %s: %s (unread: %d)\n",
				ts.Format(time.TimeOnly), n.Priority, n.Title, n.Message, center.Feed().Unread())
		case <-stop:
			fmt.Println("\nstopping")
			return
		}
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "novactl: "+format+"\n", args...)
	os.Exit(1)
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: novactl <command> [flags]

commands:
  login    --email <email> --password <password>
  logout   discard the stored credential
  whoami   show the current identity, tenant and grants
  can      check a permission tag for the current identity
  watch    stream live notifications until interrupted
  version  print the client version`)
}
