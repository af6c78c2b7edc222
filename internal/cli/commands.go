package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"smartbill/internal/budget"
	"smartbill/internal/config"
	"smartbill/internal/core"
	"smartbill/internal/gateway"
	"smartbill/internal/services"
	"smartbill/internal/session"
	"smartbill/internal/timeline"
)

// ErrUsage is returned for an unknown command or bad flags. The usage text
// has already been written.
var ErrUsage = errors.New("usage error")

const usage = `Usage: smartbill-cli <command> [flags]

Commands:
  login     -email -password        sign in and store the session
  register  -name -email -password  create an account and store the session
  logout                            forget the stored session
  bills                             list analyzed bills
  history                           print the bill and savings timeline
  budget    [-limit]                compare spending with the budget
  show      -id                     print one bill analysis
  savings   -monthly [-percent]     project yearly savings
`

// App runs CLI subcommands against the backend. The session token is kept
// in Sessions between runs.
type App struct {
	Loader   *services.Loader
	Sessions session.Store
	Settings config.Settings
	Out      io.Writer
}

type command func(ctx context.Context, args []string) error

func (a *App) commands() map[string]command {
	return map[string]command{
		"login":    a.login,
		"register": a.register,
		"logout":   a.logout,
		"bills":    a.listBills,
		"history":  a.history,
		"budget":   a.budgetStatus,
		"show":     a.show,
		"savings":  a.savings,
	}
}

// Run dispatches args[0] to its subcommand.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.Out, usage)
		return ErrUsage
	}
	cmd, ok := a.commands()[args[0]]
	if !ok {
		fmt.Fprintf(a.Out, "unknown command %q\n\n%s", args[0], usage)
		return ErrUsage
	}
	return cmd(ctx, args[1:])
}

func (a *App) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.Out)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}
	return nil
}

// loadSession returns the stored session or session.ErrNoSession.
func (a *App) loadSession(ctx context.Context) (session.Session, error) {
	s, err := a.Sessions.Load(ctx)
	if err != nil {
		return session.Session{}, err
	}
	if !s.Authenticated() {
		return session.Session{}, session.ErrNoSession
	}
	return s, nil
}

// expired drops a token the backend no longer accepts.
func (a *App) expired(ctx context.Context, err error) error {
	if !errors.Is(err, gateway.ErrUnauthorized) {
		return err
	}
	if clearErr := a.Sessions.Clear(ctx); clearErr != nil {
		return errors.Join(err, clearErr)
	}
	return fmt.Errorf("%w: session expired, log in again", session.ErrNoSession)
}

func (a *App) login(ctx context.Context, args []string) error {
	fs := a.flags("login")
	email := fs.String("email", "", "account e-mail")
	password := fs.String("password", "", "account password")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		fmt.Fprintln(a.Out, "login requires -email and -password")
		return ErrUsage
	}

	s, err := a.Loader.Login(ctx, *email, *password)
	if err != nil {
		return errors.New(gateway.Message(err, "Login failed"))
	}
	return a.store(ctx, s)
}

func (a *App) register(ctx context.Context, args []string) error {
	fs := a.flags("register")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account e-mail")
	password := fs.String("password", "", "account password")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *name == "" || *email == "" || *password == "" {
		fmt.Fprintln(a.Out, "register requires -name, -email and -password")
		return ErrUsage
	}

	s, err := a.Loader.Register(ctx, *name, *email, *password)
	if err != nil {
		return errors.New(gateway.Message(err, "Register failed"))
	}
	return a.store(ctx, s)
}

func (a *App) store(ctx context.Context, s session.Session) error {
	if err := a.Sessions.Save(ctx, s); err != nil {
		return err
	}
	fmt.Fprintln(a.Out, "Logged in.")
	return nil
}

func (a *App) logout(ctx context.Context, _ []string) error {
	if err := a.Sessions.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.Out, "Logged out.")
	return nil
}

func (a *App) listBills(ctx context.Context, _ []string) error {
	s, err := a.loadSession(ctx)
	if err != nil {
		return err
	}
	bills, err := a.Loader.Bills(ctx, s)
	if err != nil {
		return a.expired(ctx, err)
	}
	if len(bills) == 0 {
		fmt.Fprintln(a.Out, "No bills analyzed yet.")
		return nil
	}

	c := a.Settings.CurrencySymbol()
	tw := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tAMOUNT\tDATE")
	for _, b := range bills {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.ID, b.Category, c.Format(b.TotalAmount), core.FormatDate(b.BillDate))
	}
	return tw.Flush()
}

func (a *App) history(ctx context.Context, _ []string) error {
	s, err := a.loadSession(ctx)
	if err != nil {
		return err
	}
	entries, err := a.Loader.History(ctx, s, timeline.WithCurrency(a.Settings.CurrencySymbol()))
	if err != nil {
		return a.expired(ctx, err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.Out, "No history found. Start by analyzing a bill.")
		return nil
	}

	tw := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", core.FormatDate(e.Date), e.Title, e.Text)
	}
	return tw.Flush()
}

func (a *App) budgetStatus(ctx context.Context, args []string) error {
	fs := a.flags("budget")
	limitArg := fs.String("limit", "", "monthly budget (default from settings)")
	if err := parse(fs, args); err != nil {
		return err
	}

	limit := a.Settings.BudgetLimit()
	if *limitArg != "" {
		l, err := core.ParseAmount(*limitArg)
		if err != nil {
			fmt.Fprintf(a.Out, "invalid -limit %q\n", *limitArg)
			return ErrUsage
		}
		limit = l
	}

	s, err := a.loadSession(ctx)
	if err != nil {
		return err
	}
	d, err := a.Loader.Dashboard(ctx, s, services.DashboardOptions{
		RecentLimit: a.Settings.Budget.RecentLimit,
		BudgetLimit: limit,
	})
	if err != nil {
		return a.expired(ctx, err)
	}

	c := a.Settings.CurrencySymbol()
	st := d.Budget
	fmt.Fprintf(a.Out, "Spent:   %s of %s (%.0f%%)\n", c.Format(st.TotalSpent), c.Format(st.Limit), budget.ClampPercent(st.UtilizationRatio))
	fmt.Fprintf(a.Out, "Savings: %s\n", c.Format(st.TotalSavings))
	if st.OverBudget {
		fmt.Fprintf(a.Out, "Over budget by %s\n", c.Format(st.Excess()))
	} else {
		fmt.Fprintf(a.Out, "%s remaining\n", c.Format(st.Remaining()))
	}
	return nil
}

func (a *App) show(ctx context.Context, args []string) error {
	fs := a.flags("show")
	id := fs.String("id", "", "bill id")
	if err := parse(fs, args); err != nil {
		return err
	}

	s, err := a.loadSession(ctx)
	if err != nil {
		return err
	}
	b, err := a.Loader.Bill(ctx, s, *id)
	if errors.Is(err, services.ErrBillNotFound) {
		fmt.Fprintln(a.Out, services.ErrBillNotFound.Error())
		return nil
	}
	if err != nil {
		return a.expired(ctx, err)
	}

	c := a.Settings.CurrencySymbol()
	opts := a.Settings.ReflowOptions()
	fmt.Fprintf(a.Out, "%s Analysis\n", b.Category)
	fmt.Fprintf(a.Out, "Total Amount: %s\n", c.FormatFixed(b.TotalAmount))
	fmt.Fprintf(a.Out, "Bill Date:    %s\n", core.FormatDate(b.BillDate))
	for _, t := range b.Taxes {
		fmt.Fprintf(a.Out, "  %s: %s\n", t.Name, c.FormatFixed(t.Amount))
	}

	section := func(title string, paragraphs []string) {
		if len(paragraphs) == 0 {
			return
		}
		fmt.Fprintf(a.Out, "\n%s\n%s\n", title, strings.Repeat("-", len(title)))
		fmt.Fprintln(a.Out, strings.Join(paragraphs, "\n\n"))
	}
	section("Summary", opts.Reflow(b.AISummary))
	section("Analysis", opts.Reflow(b.Analysis))
	switch v := b.Suggestions.(type) {
	case core.SuggestionList:
		items := make([]string, 0, len(v))
		for _, item := range v {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, "- "+item)
			}
		}
		if len(items) > 0 {
			fmt.Fprintf(a.Out, "\nSuggestions\n-----------\n%s\n", strings.Join(items, "\n"))
		}
	case core.SuggestionText:
		section("Suggestions", opts.Reflow(string(v)))
	}
	return nil
}

func (a *App) savings(_ context.Context, args []string) error {
	fs := a.flags("savings")
	monthlyArg := fs.String("monthly", "", "monthly bill amount")
	percent := fs.Int("percent", a.Settings.Savings.DefaultPercent, "share of the bill to save")
	if err := parse(fs, args); err != nil {
		return err
	}

	monthly, err := core.ParseAmount(*monthlyArg)
	if err != nil {
		fmt.Fprintf(a.Out, "invalid -monthly %q\n", *monthlyArg)
		return ErrUsage
	}
	p := budget.ClampSavingsPercent(*percent)
	yearly := budget.ProjectYearlySavings(monthly, p)
	fmt.Fprintf(a.Out, "Saving %d%% of %s a month: %s a year\n", p, a.Settings.CurrencySymbol().Format(monthly), a.Settings.CurrencySymbol().Format(yearly))
	return nil
}
