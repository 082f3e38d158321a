package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dmitrijs2005/bookauth/internal/client/client"
	"github.com/dmitrijs2005/bookauth/internal/client/config"
	"github.com/dmitrijs2005/bookauth/internal/client/services"
	"github.com/dmitrijs2005/bookauth/internal/flagx"
)

type App struct {
	config      *config.Config
	authService services.AuthService
	email       string
	loggedIn    bool
	reader      *bufio.Reader
	out         io.Writer
}

func NewApp(c *config.Config) (*App, error) {

	ctx := context.Background()

	db, err := client.InitDatabase(ctx, c.SessionDBPath)
	if err != nil {
		log.Printf("error initializing database: %s", err.Error())
		return nil, err
	}

	apiClient, err := client.NewGRPCClient(c.ServerEndpointAddr)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	as := services.NewAuthService(apiClient, db)

	a := newApp(c, as, os.Stdin, os.Stdout)
	if err := a.restore(ctx); err != nil {
		_ = as.Close(ctx)
		return nil, err
	}
	return a, nil
}

func newApp(c *config.Config, as services.AuthService, in io.Reader, out io.Writer) *App {
	return &App{config: c, authService: as, reader: bufio.NewReader(in), out: out}
}

// restore picks up the session saved by a previous run, if any.
func (a *App) restore(ctx context.Context) error {
	email, err := a.authService.Restore(ctx)
	if errors.Is(err, services.ErrNoSession) {
		return nil
	}
	if err != nil {
		return err
	}
	a.email = email
	a.loggedIn = true
	return nil
}

// Run executes the command named in args, or starts the REPL when args is
// empty. The client is closed before Run returns.
func (a *App) Run(ctx context.Context, args []string) error {
	defer a.authService.Close(ctx)

	if len(args) == 0 {
		printlnFn("Welcome to authctl (type 'help' for commands)")
		runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
		return nil
	}

	_, err := dispatch(ctx, a, args[0])
	return err
}

func (a *App) isLoggedIn() bool {
	return a.loggedIn
}

func (a *App) getStatus() string {
	if a.email == "" {
		return ""
	}
	return fmt.Sprintf("(%s)", a.email)
}

// withTimeout bounds a single server round trip.
func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config == nil || a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}

// Args strips the configuration flags from args, leaving the command.
func Args(args []string) []string {
	flags := flagx.FilterArgs(args, []string{"-a", "-d", "-t", "-c", "-config"})

	rest := make([]string, 0, len(args))
	j := 0
	for _, arg := range args {
		if j < len(flags) && arg == flags[j] {
			j++
			continue
		}
		rest = append(rest, arg)
	}
	return rest
}
