package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/abiosoft/ishell/v2"
	"github.com/byuoitav/functions"
	"github.com/byuoitav/functions/api"
	"github.com/byuoitav/functions/gateway"
	"github.com/byuoitav/functions/guard"
	"github.com/byuoitav/functions/plot"
	"github.com/byuoitav/functions/session"
	"github.com/byuoitav/functions/view"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	errDiscarded = errors.New("the session changed while loading, result discarded")
	errNoOpen    = errors.New("no function open, use 'open' first")
)

type shellCmd struct {
	help  string
	route guard.Route
	run   func(args []string) error
}

// Shell is an interactive session. It lives as long as the process, so every
// view it shows is dropped as soon as the session changes.
type Shell struct {
	app *App
	ctx context.Context

	list view.Loader[[]functions.Function]
	open view.Loader[functions.Function]

	cmds         map[string]shellCmd
	prompt       string
	readPassword func() string
	sh           *ishell.Shell
	unsubscribe  func()
	mu           sync.Mutex
}

func newShellCmd(r *root) *cobra.Command {
	return &cobra.Command{
		Use:         "shell",
		Short:       "Start an interactive session",
		Args:        cobra.NoArgs,
		Annotations: annotate(guard.Home),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := NewShell(cmd.Context(), r.app)
			defer s.Close()

			s.Run()
			return nil
		},
	}
}

// NewShell returns a Shell for app. Close it to stop following the session.
func NewShell(ctx context.Context, app *App) *Shell {
	s := &Shell{
		app: app,
		ctx: ctx,
	}

	s.cmds = map[string]shellCmd{
		"login":    {"login <username> [password]: sign in", guard.Login, s.login},
		"register": {"register <username> [password]: create an account", guard.Register, s.register},
		"logout":   {"logout: sign out", guard.Home, s.logout},
		"whoami":   {"whoami: show the signed in user", guard.Home, s.whoami},
		"list":     {"list: list your functions", guard.Functions, s.listFunctions},
		"open":     {"open <#|id>: open a function from the list", guard.FunctionEdit, s.openFunction},
		"create":   {"create <name> [x1,y1; x2,y2; ...]: create a function", guard.FunctionNew, s.create},
		"rename":   {"rename <name>: rename the open function", guard.FunctionEdit, s.rename},
		"add":      {"add <x> <y>: add a point to the open function", guard.FunctionEdit, s.addPoint},
		"rm":       {"rm <#|point id>: delete a point of the open function", guard.FunctionEdit, s.deletePoint},
		"plot":     {"plot [width height]: draw the open function", guard.FunctionPlot, s.plot},
		"delete":   {"delete: delete the open function", guard.Functions, s.deleteFunction},
	}

	s.follow(app.Store.State())
	s.unsubscribe = app.Store.Subscribe(s.follow)
	return s
}

// Run reads commands until the user exits
func (s *Shell) Run() {
	sh := ishell.New()

	names := make([]string, 0, len(s.cmds))
	for name := range s.cmds {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		name := name
		sh.AddCmd(&ishell.Cmd{
			Name: name,
			Help: s.cmds[name].help,
			Func: func(c *ishell.Context) {
				s.mu.Lock()
				s.readPassword = c.ReadPassword
				s.mu.Unlock()

				if err := s.Exec(name, c.Args...); err != nil {
					c.Println(s.app.color.Red(err.Error()))
				}
			},
		})
	}

	s.mu.Lock()
	s.sh = sh
	sh.SetPrompt(s.prompt)
	s.mu.Unlock()

	sh.Println("functions shell, type 'help' for commands")
	sh.Run()
}

// Close stops following the session
func (s *Shell) Close() {
	s.unsubscribe()
}

// Prompt returns the current prompt
func (s *Shell) Prompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.prompt
}

// Exec runs one shell command after checking its route against the session
func (s *Shell) Exec(name string, args ...string) error {
	cmd, ok := s.cmds[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}

	if err := s.app.Enter(cmd.route); err != nil {
		return err
	}

	return cmd.run(args)
}

// follow keeps the shell in step with the session. Anything loaded for the
// previous session is dropped, including loads still in flight.
func (s *Shell) follow(st session.State) {
	s.list.Invalidate()
	s.open.Invalidate()

	prompt := "functions> "
	if !st.Anonymous() {
		prompt = st.Username + "@functions> "
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompt = prompt
	if s.sh != nil {
		s.sh.SetPrompt(prompt)
	}
}

func (s *Shell) credentials(args []string) (string, string, error) {
	if len(args) == 0 {
		return "", "", errors.New("a username is required")
	}

	if len(args) > 1 {
		return args[0], args[1], nil
	}

	s.mu.Lock()
	read := s.readPassword
	s.mu.Unlock()

	if read == nil {
		return args[0], "", nil
	}

	fmt.Fprint(s.app.out, "password: ")
	return args[0], read(), nil
}

func (s *Shell) login(args []string) error {
	username, password, err := s.credentials(args)
	if err != nil {
		return err
	}

	return s.app.login(s.ctx, username, password)
}

func (s *Shell) register(args []string) error {
	username, password, err := s.credentials(args)
	if err != nil {
		return err
	}

	return s.app.register(s.ctx, username, password)
}

func (s *Shell) logout(args []string) error {
	s.app.logout(s.ctx)
	return nil
}

func (s *Shell) whoami(args []string) error {
	return s.app.whoami(s.ctx, len(args) > 0 && args[0] == "--remote")
}

func (s *Shell) listFunctions(args []string) error {
	fns, applied, err := s.list.Load(func() ([]functions.Function, error) {
		return s.app.Functions.List(s.ctx)
	})

	switch {
	case err != nil:
		return failure(err)
	case !applied:
		return errDiscarded
	}

	s.app.printFunctions(fns)
	return nil
}

// lookup resolves a position in the last list, or a function id
func (s *Shell) lookup(arg string) (uuid.UUID, error) {
	if i, err := strconv.Atoi(arg); err == nil {
		if !s.list.Loaded() {
			return uuid.Nil, errors.New("nothing listed yet, use 'list' first")
		}

		fns, _, _ := s.list.Snapshot()
		if i < 0 || i >= len(fns) {
			return uuid.Nil, fmt.Errorf("no function #%d", i)
		}

		return fns[i].ID, nil
	}

	id, err := parseID(arg)
	if err != nil {
		return uuid.Nil, failure(err)
	}

	return id, nil
}

func (s *Shell) load(id uuid.UUID) (functions.Function, error) {
	f, applied, err := s.open.Load(func() (functions.Function, error) {
		return s.app.Functions.Get(s.ctx, id)
	})

	switch {
	case err != nil:
		return functions.Function{}, failure(err)
	case !applied:
		return functions.Function{}, errDiscarded
	}

	return f, nil
}

// current returns the open function
func (s *Shell) current() (functions.Function, error) {
	if !s.open.Loaded() {
		return functions.Function{}, errNoOpen
	}

	f, _, err := s.open.Snapshot()
	if err != nil {
		return functions.Function{}, errNoOpen
	}

	return f, nil
}

func (s *Shell) openFunction(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: open <#|id>")
	}

	id, err := s.lookup(args[0])
	if err != nil {
		return err
	}

	f, err := s.load(id)
	if err != nil {
		return err
	}

	s.app.printFunction(f)
	return nil
}

func (s *Shell) create(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: create <name> [x1,y1; x2,y2; ...]")
	}

	points, err := functions.ParsePoints(strings.Join(args[1:], " "))
	if err != nil {
		return err
	}

	f, err := s.app.Functions.Create(s.ctx, api.NewFunction{Name: args[0], Points: points})
	if err != nil {
		return failure(err)
	}

	s.list.Invalidate()
	if _, err := s.load(f.ID); err != nil {
		return err
	}

	s.app.success(fmt.Sprintf("created %s %s", f.Name, f.ID))
	return nil
}

func (s *Shell) rename(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: rename <name>")
	}

	f, err := s.current()
	if err != nil {
		return err
	}

	if _, err := s.app.Functions.Update(s.ctx, f.ID, strings.Join(args, " "), ""); err != nil {
		return failure(err)
	}

	s.list.Invalidate()
	f, err = s.load(f.ID)
	if err != nil {
		return err
	}

	s.app.success("renamed to " + f.Name)
	return nil
}

func (s *Shell) addPoint(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: add <x> <y>")
	}

	f, err := s.current()
	if err != nil {
		return err
	}

	x, y, err := parseCoordinates(args[0], args[1])
	if err != nil {
		return failure(err)
	}

	if _, err := s.app.Functions.AddPoint(s.ctx, f.ID, x, y); err != nil {
		return failure(err)
	}

	f, err = s.load(f.ID)
	if err != nil {
		return err
	}

	s.app.printFunction(f)
	return nil
}

func (s *Shell) deletePoint(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: rm <#|point id>")
	}

	f, err := s.current()
	if err != nil {
		return err
	}

	ref, err := pointRef(f, args[0])
	if err != nil {
		return failure(err)
	}

	if err := s.app.Functions.DeletePoint(s.ctx, f.ID, ref); err != nil {
		return failure(err)
	}

	f, err = s.load(f.ID)
	if err != nil {
		return err
	}

	s.app.printFunction(f)
	return nil
}

func (s *Shell) plot(args []string) error {
	opts := plot.Options{}
	switch len(args) {
	case 0:
	case 2:
		w, h, err := parsePlotSize(args[0], args[1])
		if err != nil {
			return err
		}

		opts.Width, opts.Height = w, h
	default:
		return gateway.Validation("usage: plot [width height]")
	}

	f, err := s.current()
	if err != nil {
		return err
	}

	return s.app.plotFunction(f, opts)
}

func (s *Shell) deleteFunction(args []string) error {
	f, err := s.current()
	if err != nil {
		return err
	}

	if err := s.app.Functions.Delete(s.ctx, f.ID); err != nil {
		return failure(err)
	}

	s.open.Invalidate()
	s.list.Invalidate()
	s.app.success("deleted " + f.Name)
	return nil
}
