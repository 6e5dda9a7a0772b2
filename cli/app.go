// Package cli is the command line front end of the functions client. It wires
// the session store, the gateway and the backend clients together and renders
// their results for a terminal.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/byuoitav/functions"
	"github.com/byuoitav/functions/account"
	"github.com/byuoitav/functions/api"
	"github.com/byuoitav/functions/config"
	"github.com/byuoitav/functions/gateway"
	"github.com/byuoitav/functions/guard"
	"github.com/byuoitav/functions/log"
	"github.com/byuoitav/functions/plot"
	"github.com/byuoitav/functions/session"
	"github.com/byuoitav/functions/session/filestore"
	"github.com/byuoitav/functions/session/jar"
	"github.com/byuoitav/functions/session/memory"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/labstack/gommon/color"
	"golang.org/x/term"
)

// ErrNotSignedIn is returned for commands that need a session when there is none
var ErrNotSignedIn = errors.New("not signed in: run 'functions login' first")

// MsgSessionExpired is shown once when a 401 signed the user out
const MsgSessionExpired = "your session has expired, please log in again"

// App is one running client: a single session store shared by every request
type App struct {
	Config    config.Config
	Store     *session.Store
	Gateway   *gateway.Client
	Account   *account.Service
	Functions *api.Client
	Navigator *guard.Navigator

	out   io.Writer
	color *color.Color
}

// OpenStorage returns the storage the session is persisted in and the storage
// the backend's cookies are persisted in. Ephemeral sessions keep both in
// memory; a nil cookie storage keeps the jar in memory.
func OpenStorage(cfg config.Config, ephemeral bool) (functions.Storage, functions.Storage, error) {
	if ephemeral {
		return memory.NewStorage(), nil, nil
	}

	key, err := cfg.Key()
	if err != nil {
		return nil, nil, err
	}

	opt := filestore.WithKeyFile(cfg.KeyFile())
	if key != nil {
		opt = filestore.WithKey(key)
	}

	storage, err := filestore.NewStore(cfg.SessionFile, opt)
	if err != nil {
		return nil, nil, err
	}

	cookies, err := filestore.NewStore(cfg.CookieFile(), opt)
	if err != nil {
		return nil, nil, err
	}

	return storage, cookies, nil
}

// NewApp builds an App on top of storage and restores the persisted session.
// The backend's session cookie is kept in cookies.
func NewApp(cfg config.Config, storage, cookies functions.Storage, out io.Writer) (*App, error) {
	a := &App{
		Config:    cfg,
		Store:     session.NewStore(storage),
		Navigator: guard.NewNavigator(guard.Home),
		out:       out,
		color:     color.New(),
	}

	if !isTerminal(out) {
		a.color.Disable()
	}

	if err := a.Store.Initialize(); err != nil {
		return nil, fmt.Errorf("unable to restore session: %w", err)
	}

	j, err := jar.New(cookies)
	if err != nil {
		return nil, fmt.Errorf("unable to restore cookies: %w", err)
	}

	a.Gateway = gateway.New(cfg.APIURL, a.Store,
		gateway.WithTimeout(cfg.Timeout),
		gateway.WithCookieJar(j),
		gateway.WithUserAgent("functions-cli"),
		gateway.WithUnauthorizedHandler(a.signedOut),
	)

	a.Account = account.NewService(a.Gateway, a.Store, account.WithServerLogout(cfg.ServerLogout))
	a.Functions = api.NewClient(a.Gateway)

	log.L.Debugf("client for %s ready, signed in: %v", cfg.APIURL, !a.Store.State().Anonymous())
	return a, nil
}

// Enter moves the app to route, refusing protected routes without a session
func (a *App) Enter(route guard.Route) error {
	if guard.Resolve(route, a.Store.State()) != route {
		a.Navigator.Navigate(guard.Login)
		return ErrNotSignedIn
	}

	a.Navigator.Navigate(route)
	return nil
}

func (a *App) signedOut() {
	if a.Navigator.Navigate(guard.Login) {
		a.warn(MsgSessionExpired)
	}
}

func (a *App) success(msg string) {
	fmt.Fprintln(a.out, a.color.Green(msg))
}

func (a *App) warn(msg string) {
	fmt.Fprintln(a.out, a.color.Yellow(msg))
}

func (a *App) login(ctx context.Context, username, password string) error {
	res := a.Account.Login(ctx, username, password)
	if !res.OK {
		return errors.New(res.Message)
	}

	a.success("signed in as " + a.Store.State().Username)
	return nil
}

func (a *App) register(ctx context.Context, username, password string) error {
	res := a.Account.Register(ctx, username, password)
	if !res.OK {
		return errors.New(res.Message)
	}

	a.success(res.Message)
	return nil
}

func (a *App) logout(ctx context.Context) {
	<-a.Account.Logout(ctx)
	a.success("signed out")
}

func (a *App) whoami(ctx context.Context, remote bool) error {
	st := a.Store.State()
	if st.Anonymous() {
		fmt.Fprintln(a.out, "not signed in")
		return nil
	}

	if !remote {
		fmt.Fprintln(a.out, st.Username)
		return nil
	}

	u, err := a.Account.Me(ctx)
	if err != nil {
		return failure(err)
	}

	fmt.Fprintf(a.out, "%s (%s) %s\n", u.Username, u.Role, u.ID)
	return nil
}

func (a *App) printFunctions(fns []functions.Function) {
	if len(fns) == 0 {
		fmt.Fprintln(a.out, "no functions yet")
		return
	}

	t := a.table()
	t.AppendHeader(table.Row{"#", "ID", "NAME", "TYPE", "POINTS"})
	for i, f := range fns {
		t.AppendRow(table.Row{i, f.ID, f.Name, f.Type, len(f.Points)})
	}

	t.Render()
}

func (a *App) printFunction(f functions.Function) {
	fmt.Fprintf(a.out, "%s %s\n", a.color.Bold(f.Name), f.ID)
	fmt.Fprintf(a.out, "type: %s\n", f.Type)

	if len(f.Points) == 0 {
		fmt.Fprintln(a.out, "no points")
		return
	}

	t := a.table()
	t.AppendHeader(table.Row{"#", "X", "Y", "REF"})
	for i, p := range f.Points {
		t.AppendRow(table.Row{i, formatFloat(p.X), formatFloat(p.Y), f.PointRef(i)})
	}

	t.Render()
}

func (a *App) plotFunction(f functions.Function, opts plot.Options) error {
	fmt.Fprintln(a.out, a.color.Bold(f.Name))
	return plot.Render(a.out, f.Points, opts)
}

func (a *App) table() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(a.out)
	t.SetStyle(table.StyleLight)
	return t
}

// pointRef turns a point argument into a reference for the backend. A small
// integer addresses a point by its position in f, anything else is taken as a
// point id.
func pointRef(f functions.Function, arg string) (string, error) {
	if i, err := strconv.Atoi(arg); err == nil {
		ref := f.PointRef(i)
		if ref == "" {
			return "", gateway.Validation(fmt.Sprintf("%s has no point #%d", f.Name, i))
		}

		return ref, nil
	}

	if _, err := uuid.Parse(arg); err != nil {
		return "", gateway.Validation("invalid point reference: " + arg)
	}

	return arg, nil
}

func parseID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, gateway.Validation("invalid function id: " + arg)
	}

	return id, nil
}

func parseCoordinates(xs, ys string) (float64, float64, error) {
	x, errX := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	y, errY := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if errX != nil || errY != nil {
		return 0, 0, gateway.Validation(fmt.Sprintf("invalid point %s,%s", xs, ys))
	}

	return x, y, nil
}

// parsePlotSize reads a width and height given as text. Both must be whole
// numbers of at least two cells.
func parsePlotSize(ws, hs string) (int, int, error) {
	w, errW := strconv.Atoi(strings.TrimSpace(ws))
	h, errH := strconv.Atoi(strings.TrimSpace(hs))
	if errW != nil || errH != nil || w < 2 || h < 2 {
		return 0, 0, gateway.Validation(fmt.Sprintf("invalid plot size %s x %s", ws, hs))
	}

	return w, h, nil
}

// failure reduces err to the message a user should see
func failure(err error) error {
	if err == nil {
		return nil
	}

	return errors.New(gateway.Message(err))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("unable to read password: %w", err)
		}

		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("unable to read password: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
