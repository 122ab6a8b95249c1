package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/workaholic/internal/auth"
	"github.com/mmynk/workaholic/internal/calculator"
	"github.com/mmynk/workaholic/internal/groupstore"
	"github.com/mmynk/workaholic/internal/models"
	"github.com/mmynk/workaholic/pkg/api"
)

type runFunc func(ctx context.Context, args []string) error

// command is one subcommand. setup registers its flags and returns the func
// that runs it with the remaining arguments.
type command struct {
	name    string
	args    string
	summary string
	// sync commands need the group cache loaded before they run.
	sync  bool
	setup func(a *app, fs *flag.FlagSet) runFunc
}

var commands = []command{
	{name: "register", args: "-email EMAIL [-name NAME]", summary: "create an account and sign in", setup: registerCmd},
	{name: "login", args: "-email EMAIL", summary: "sign in", setup: loginCmd},
	{name: "logout", summary: "sign out and forget the saved session", setup: logoutCmd},
	{name: "whoami", summary: "show the signed-in user", setup: whoamiCmd},
	{name: "profile", args: "-name NAME", summary: "change your display name", setup: profileCmd},
	{name: "passwd", summary: "change your password", setup: passwdCmd},
	{name: "groups", summary: "list your groups", sync: true, setup: groupsCmd},
	{name: "create", args: "[-code CODE] NAME", summary: "create a group", sync: true, setup: createCmd},
	{name: "import", args: "CODE", summary: "join a group by its code", sync: true, setup: importCmd},
	{name: "rename", args: "GROUP NAME", summary: "rename a group", sync: true, setup: renameCmd},
	{name: "delete", args: "GROUP", summary: "delete a group you own", sync: true, setup: deleteCmd},
	{name: "add-product", args: "-group GROUP -name NAME -enumber N [-price P] [-markup %] [-vat %] [-qty N]", summary: "add a product to a group", sync: true, setup: addProductCmd},
	{name: "add-cost", args: "-group GROUP -info TEXT [-hours H] [-rate R] [-travel T] [-date YYYY-MM-DD]", summary: "add a cost entry to a group", sync: true, setup: addCostCmd},
	{name: "products", args: "GROUP", summary: "list a group's products", sync: true, setup: productsCmd},
	{name: "edit-product", args: "-group GROUP -index N [-name NAME] [-enumber N] [-price P] [-markup %] [-vat %] [-qty N]", summary: "change a listed product", sync: true, setup: editProductCmd},
	{name: "rm-product", args: "GROUP INDEX", summary: "remove a listed product", sync: true, setup: rmProductCmd},
	{name: "costs", args: "GROUP", summary: "list a group's cost entries", sync: true, setup: costsCmd},
	{name: "edit-cost", args: "-group GROUP -index N [-info TEXT] [-hours H] [-rate R] [-travel T] [-date YYYY-MM-DD]", summary: "change a listed cost entry", sync: true, setup: editCostCmd},
	{name: "rm-cost", args: "GROUP INDEX", summary: "remove a listed cost entry", sync: true, setup: rmCostCmd},
	{name: "settle", args: "GROUP", summary: "show a group's settlement", sync: true, setup: settleCmd},
	{name: "badges", summary: "show badge counts", setup: badgesCmd},
	{name: "mark-read", summary: "mark your notifications read", setup: markReadCmd},
	{name: "watch", summary: "follow groups and badges until interrupted", sync: true, setup: watchCmd},
}

func (a *app) execute(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		a.usage()
		return flag.ErrHelp
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		a.usage()
		return fmt.Errorf("unknown command %q", args[0])
	}

	fs := flag.NewFlagSet(cmd.name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	fs.Usage = func() {
		fmt.Fprintf(a.out, "usage: workaholic %s %s\n", cmd.name, cmd.args)
		fs.PrintDefaults()
	}
	run := cmd.setup(a, fs)
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	if err := a.resume(ctx); err != nil {
		return err
	}
	if cmd.sync {
		stop, err := a.startSync(ctx)
		if err != nil {
			return err
		}
		defer stop()
	}
	return run(ctx, fs.Args())
}

func (a *app) usage() {
	fmt.Fprintln(a.out, "usage: workaholic COMMAND [flags] [args]")
	fmt.Fprintln(a.out)
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, c := range commands {
		fmt.Fprintf(w, "  %s\t%s\n", c.name, c.summary)
	}
	w.Flush()
}

func registerCmd(a *app, fs *flag.FlagSet) runFunc {
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password (read from stdin when empty)")
	name := fs.String("name", "", "display name")
	return func(ctx context.Context, _ []string) error {
		pw, err := a.passwordOrPrompt(*password, "Password: ")
		if err != nil {
			return err
		}
		actor, err := a.session.Register(ctx, *email, pw, *name)
		if err != nil {
			return err
		}
		return a.signedIn(actor)
	}
}

func loginCmd(a *app, fs *flag.FlagSet) runFunc {
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password (read from stdin when empty)")
	return func(ctx context.Context, _ []string) error {
		pw, err := a.passwordOrPrompt(*password, "Password: ")
		if err != nil {
			return err
		}
		actor, err := a.session.SignIn(ctx, *email, pw)
		if err != nil {
			return err
		}
		return a.signedIn(actor)
	}
}

func (a *app) signedIn(actor auth.Actor) error {
	if err := a.saveToken(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Signed in as %s\n", displayName(actor))
	return nil
}

func logoutCmd(a *app, _ *flag.FlagSet) runFunc {
	return func(context.Context, []string) error {
		a.session.SignOut()
		if err := a.forgetToken(); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Signed out")
		return nil
	}
}

func whoamiCmd(a *app, _ *flag.FlagSet) runFunc {
	return func(context.Context, []string) error {
		actor, err := a.requireSignedIn()
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s <%s> (%s)\n", displayName(actor), actor.Email, actor.UID)
		return nil
	}
}

func profileCmd(a *app, fs *flag.FlagSet) runFunc {
	name := fs.String("name", "", "new display name")
	return func(ctx context.Context, _ []string) error {
		actor, err := a.requireSignedIn()
		if err != nil {
			return err
		}
		resp, err := a.authClient.UpdateProfile(ctx, connect.NewRequest(&api.UpdateProfileRequest{DisplayName: *name}))
		if err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		actor.DisplayName = resp.Msg.User.DisplayName
		a.session.Set(actor)
		fmt.Fprintf(a.out, "Display name is now %s\n", displayName(actor))
		return nil
	}
}

func passwdCmd(a *app, fs *flag.FlagSet) runFunc {
	current := fs.String("current", "", "current password (read from stdin when empty)")
	next := fs.String("new", "", "new password (read from stdin when empty)")
	return func(ctx context.Context, _ []string) error {
		if _, err := a.requireSignedIn(); err != nil {
			return err
		}
		cur, err := a.passwordOrPrompt(*current, "Current password: ")
		if err != nil {
			return err
		}
		pw, err := a.passwordOrPrompt(*next, "New password: ")
		if err != nil {
			return err
		}
		_, err = a.authClient.ChangePassword(ctx, connect.NewRequest(&api.ChangePasswordRequest{
			CurrentPassword: cur,
			NewPassword:     pw,
		}))
		if err != nil {
			return fmt.Errorf("change password: %w", err)
		}
		fmt.Fprintln(a.out, "Password changed")
		return nil
	}
}

func groupsCmd(a *app, _ *flag.FlagSet) runFunc {
	return func(context.Context, []string) error {
		a.printGroups()
		return nil
	}
}

func (a *app) printGroups() {
	groups := a.groups.Groups()
	if len(groups) == 0 {
		fmt.Fprintln(a.out, "No groups")
		return
	}
	uid := a.session.Current().UID
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCODE\tNAME\tMEMBERS\tTOTAL\t")
	for _, g := range groups {
		name := g.Name
		if g.OwnerUID == uid {
			name += " *"
		}
		total := calculator.SettleGroup(g).TotalCost
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t\n", g.ID, g.Code, name, len(g.Members), calculator.FormatKronor(total))
	}
	w.Flush()
}

func createCmd(a *app, fs *flag.FlagSet) runFunc {
	code := fs.String("code", "", "join code (generated when empty)")
	return func(ctx context.Context, args []string) error {
		c := *code
		if c == "" {
			c = groupstore.NewCode()
		}
		g, err := a.groups.CreateGroup(ctx, strings.Join(args, " "), c)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Created %s (%s), join code %s\n", g.Name, g.ID, g.Code)
		return nil
	}
}

func importCmd(a *app, _ *flag.FlagSet) runFunc {
	return func(ctx context.Context, args []string) error {
		if len(args) != 1 {
			return errors.New("import takes exactly one code")
		}
		g, err := a.groups.ImportGroup(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Joined %s (%s)\n", g.Name, g.ID)
		return nil
	}
}

func renameCmd(a *app, _ *flag.FlagSet) runFunc {
	return func(ctx context.Context, args []string) error {
		if len(args) < 2 {
			return errors.New("rename takes a group and a new name")
		}
		g, err := a.findGroup(args[0])
		if err != nil {
			return err
		}
		if err := a.groups.RenameGroup(ctx, g.ID, strings.Join(args[1:], " ")); err != nil {
			return err
		}
		renamed, _ := a.groups.Group(g.ID)
		fmt.Fprintf(a.out, "Renamed %s to %s\n", g.Name, renamed.Name)
		return nil
	}
}

func deleteCmd(a *app, _ *flag.FlagSet) runFunc {
	return func(ctx context.Context, args []string) error {
		if len(args) != 1 {
			return errors.New("delete takes exactly one group")
		}
		g, err := a.findGroup(args[0])
		if err != nil {
			return err
		}
		if err := a.groups.DeleteGroup(ctx, g.ID); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Deleted %s\n", g.Name)
		return nil
	}
}

func addProductCmd(a *app, fs *flag.FlagSet) runFunc {
	var in models.ProductInput
	group := fs.String("group", "", "group ID or join code")
	fs.StringVar(&in.Name, "name", "", "product name")
	fs.StringVar(&in.ENumber, "enumber", "", "E-number")
	fs.StringVar(&in.PurchasePrice, "price", "", "purchase price per unit")
	fs.StringVar(&in.Markup, "markup", "", "markup percentage")
	fs.StringVar(&in.VAT, "vat", "", "VAT percentage")
	fs.StringVar(&in.Quantity, "qty", "", "quantity (default 1)")
	return func(ctx context.Context, _ []string) error {
		g, err := a.findGroup(*group)
		if err != nil {
			return err
		}
		p, err := in.Normalize()
		if err != nil {
			return err
		}
		if err := a.groups.ReplaceProducts(ctx, g.ID, append(g.Products, p)); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Added %d × %s at %s to %s\n", p.Quantity, p.Name, calculator.FormatKronor(p.TotalPrice), g.Name)
		return nil
	}
}

func addCostCmd(a *app, fs *flag.FlagSet) runFunc {
	var in models.CostEntryInput
	group := fs.String("group", "", "group ID or join code")
	fs.StringVar(&in.Description, "info", "", "what the work was")
	fs.StringVar(&in.Hours, "hours", "", "hours worked")
	fs.StringVar(&in.HourlyRate, "rate", "", "hourly rate")
	fs.StringVar(&in.TravelCost, "travel", "", "travel cost")
	fs.StringVar(&in.Date, "date", "", "date as YYYY-MM-DD (default today)")
	return func(ctx context.Context, _ []string) error {
		g, err := a.findGroup(*group)
		if err != nil {
			return err
		}
		c, err := in.Normalize(time.Now())
		if err != nil {
			return err
		}
		if err := a.groups.ReplaceCostEntries(ctx, g.ID, append(g.CostEntries, c)); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Added %s on %s to %s\n", c.Description, c.Date, g.Name)
		return nil
	}
}

func productsCmd(a *app, _ *flag.FlagSet) runFunc {
	return func(_ context.Context, args []string) error {
		if len(args) != 1 {
			return errors.New("products takes exactly one group")
		}
		g, err := a.findGroup(args[0])
		if err != nil {
			return err
		}
		if len(g.Products) == 0 {
			fmt.Fprintf(a.out, "No products in %s\n", g.Name)
			return nil
		}

		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tNAME\tE-NUMBER\tPRICE\tMARKUP\tVAT\tQTY\tUNIT\tROW\t")
		for i, p := range g.Products {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s%%\t%s%%\t%d\t%s\t%s\t\n", i+1, p.Name, p.ENumber,
				calculator.FormatKronor(p.PurchasePrice), calculator.FormatAmount(p.Markup), calculator.FormatAmount(p.VAT),
				p.Units(), calculator.FormatKronor(p.UnitTotal()), calculator.FormatKronor(p.UnitTotal()*float64(p.Units())))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Purchase: %s  Total: %s\n",
			calculator.FormatKronor(calculator.SumPurchase(g.Products)), calculator.FormatKronor(calculator.SumTotal(g.Products)))
		return nil
	}
}

func editProductCmd(a *app, fs *flag.FlagSet) runFunc {
	var in models.ProductInput
	group := fs.String("group", "", "group ID or join code")
	index := fs.Int("index", 0, "product number as listed by products")
	fs.StringVar(&in.Name, "name", "", "product name")
	fs.StringVar(&in.ENumber, "enumber", "", "E-number")
	fs.StringVar(&in.PurchasePrice, "price", "", "purchase price per unit")
	fs.StringVar(&in.Markup, "markup", "", "markup percentage")
	fs.StringVar(&in.VAT, "vat", "", "VAT percentage")
	fs.StringVar(&in.Quantity, "qty", "", "quantity")
	return func(ctx context.Context, _ []string) error {
		g, err := a.findGroup(*group)
		if err != nil {
			return err
		}
		i, err := lineIndex(*index, len(g.Products))
		if err != nil {
			return err
		}

		products := slices.Clone(g.Products)
		p := &products[i]
		set := setFlags(fs)
		if set["name"] {
			name, err := models.RequireText("name", in.Name)
			if err != nil {
				return err
			}
			p.Name = models.CapitalizeFirst(name)
		}
		if set["enumber"] {
			if p.ENumber = models.DigitsOnly(in.ENumber); p.ENumber == "" {
				return models.NewValidationError("eNumber", "required")
			}
		}
		if set["price"] {
			p.PurchasePrice = models.ParseAmount(in.PurchasePrice)
		}
		if set["markup"] {
			p.Markup = models.ParseAmount(in.Markup)
		}
		if set["vat"] {
			p.VAT = models.ParseAmount(in.VAT)
		}
		if set["qty"] {
			p.Quantity = models.ParseQuantity(in.Quantity)
		}
		p.Recompute()

		if err := a.groups.ReplaceProducts(ctx, g.ID, products); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Updated %d × %s at %s in %s\n", p.Quantity, p.Name, calculator.FormatKronor(p.TotalPrice), g.Name)
		return nil
	}
}

func rmProductCmd(a *app, _ *flag.FlagSet) runFunc {
	return func(ctx context.Context, args []string) error {
		g, i, err := a.findLine(args, "rm-product", func(g models.Group) int { return len(g.Products) })
		if err != nil {
			return err
		}
		removed := g.Products[i]
		if err := a.groups.ReplaceProducts(ctx, g.ID, slices.Delete(slices.Clone(g.Products), i, i+1)); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Removed %s from %s\n", removed.Name, g.Name)
		return nil
	}
}

func costsCmd(a *app, _ *flag.FlagSet) runFunc {
	return func(_ context.Context, args []string) error {
		if len(args) != 1 {
			return errors.New("costs takes exactly one group")
		}
		g, err := a.findGroup(args[0])
		if err != nil {
			return err
		}
		if len(g.CostEntries) == 0 {
			fmt.Fprintf(a.out, "No cost entries in %s\n", g.Name)
			return nil
		}

		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tDATE\tINFO\tHOURS\tRATE\tLABOR\tTRAVEL\t")
		for i, c := range g.CostEntries {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t\n", i+1, c.Date, c.Description,
				calculator.FormatAmount(c.Hours), calculator.FormatKronor(c.HourlyRate),
				calculator.FormatKronor(c.Labor()), calculator.FormatKronor(c.TravelCost))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Hours: %s  Labor: %s  Travel: %s\n", calculator.FormatAmount(calculator.SumHours(g.CostEntries)),
			calculator.FormatKronor(calculator.SumLabor(g.CostEntries)), calculator.FormatKronor(calculator.SumTravel(g.CostEntries)))
		return nil
	}
}

func editCostCmd(a *app, fs *flag.FlagSet) runFunc {
	var in models.CostEntryInput
	group := fs.String("group", "", "group ID or join code")
	index := fs.Int("index", 0, "entry number as listed by costs")
	fs.StringVar(&in.Description, "info", "", "what the work was")
	fs.StringVar(&in.Hours, "hours", "", "hours worked")
	fs.StringVar(&in.HourlyRate, "rate", "", "hourly rate")
	fs.StringVar(&in.TravelCost, "travel", "", "travel cost")
	fs.StringVar(&in.Date, "date", "", "date as YYYY-MM-DD")
	return func(ctx context.Context, _ []string) error {
		g, err := a.findGroup(*group)
		if err != nil {
			return err
		}
		i, err := lineIndex(*index, len(g.CostEntries))
		if err != nil {
			return err
		}

		entries := slices.Clone(g.CostEntries)
		c := &entries[i]
		set := setFlags(fs)
		if set["info"] {
			desc, err := models.RequireText("info", in.Description)
			if err != nil {
				return err
			}
			c.Description = models.CapitalizeFirst(desc)
		}
		if set["hours"] {
			c.Hours = models.ParseAmount(in.Hours)
		}
		if set["rate"] {
			c.HourlyRate = models.ParseAmount(in.HourlyRate)
		}
		if set["travel"] {
			c.TravelCost = models.ParseAmount(in.TravelCost)
		}
		if set["date"] {
			c.Date = strings.TrimSpace(in.Date)
		}

		if err := a.groups.ReplaceCostEntries(ctx, g.ID, entries); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Updated %s on %s in %s\n", c.Description, c.Date, g.Name)
		return nil
	}
}

func rmCostCmd(a *app, _ *flag.FlagSet) runFunc {
	return func(ctx context.Context, args []string) error {
		g, i, err := a.findLine(args, "rm-cost", func(g models.Group) int { return len(g.CostEntries) })
		if err != nil {
			return err
		}
		removed := g.CostEntries[i]
		if err := a.groups.ReplaceCostEntries(ctx, g.ID, slices.Delete(slices.Clone(g.CostEntries), i, i+1)); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Removed %s from %s\n", removed.Description, g.Name)
		return nil
	}
}

// findLine resolves the GROUP INDEX arguments of the rm commands. count
// reports how many lines the group holds.
func (a *app) findLine(args []string, cmd string, count func(models.Group) int) (models.Group, int, error) {
	if len(args) != 2 {
		return models.Group{}, 0, fmt.Errorf("%s takes a group and an index", cmd)
	}
	g, err := a.findGroup(args[0])
	if err != nil {
		return models.Group{}, 0, err
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return models.Group{}, 0, fmt.Errorf("bad index %q", args[1])
	}
	i, err := lineIndex(n, count(g))
	if err != nil {
		return models.Group{}, 0, err
	}
	return g, i, nil
}

// lineIndex maps a 1-based listed index onto a slice of length n.
func lineIndex(index, n int) (int, error) {
	if index < 1 || index > n {
		return 0, fmt.Errorf("index %d out of range, the list has %d", index, n)
	}
	return index - 1, nil
}

// setFlags reports which flags were given on the command line.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func settleCmd(a *app, _ *flag.FlagSet) runFunc {
	return func(_ context.Context, args []string) error {
		if len(args) != 1 {
			return errors.New("settle takes exactly one group")
		}
		g, err := a.findGroup(args[0])
		if err != nil {
			return err
		}
		s, err := a.groups.Settlement(g.ID)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintf(w, "%s\t\n", g.Name)
		for _, row := range []struct {
			label string
			value float64
		}{
			{"Material", s.MaterialSum},
			{"Purchase", s.PurchaseSum},
			{"Product profit", s.ProductProfit},
			{"Labor", s.Labor},
			{"Travel", s.Travel},
			{"Labor cost", s.LaborCost},
			{"Total cost", s.TotalCost},
			{"Total profit", s.TotalProfit},
		} {
			fmt.Fprintf(w, "%s\t%s\t\n", row.label, calculator.FormatKronor(row.value))
		}
		fmt.Fprintf(w, "Hours\t%s\t\n", calculator.FormatAmount(s.Hours))
		fmt.Fprintf(w, "Outcome\t%s\t\n", s.Outcome())
		return w.Flush()
	}
}

func badgesCmd(a *app, _ *flag.FlagSet) runFunc {
	return func(ctx context.Context, _ []string) error {
		if _, err := a.requireSignedIn(); err != nil {
			return err
		}
		counts, err := a.badges.Snapshot(ctx)
		if err != nil {
			return err
		}
		a.printCounts(counts.PendingCosts, counts.NewProducts, counts.Notifications)
		return nil
	}
}

func (a *app) printCounts(pending, products, notifications int) {
	fmt.Fprintf(a.out, "Pending costs: %d  New products: %d  Notifications: %d\n", pending, products, notifications)
}

func markReadCmd(a *app, _ *flag.FlagSet) runFunc {
	return func(ctx context.Context, _ []string) error {
		if _, err := a.requireSignedIn(); err != nil {
			return err
		}
		if err := a.badges.MarkNotificationsRead(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Notifications marked read")
		return nil
	}
}

func watchCmd(a *app, _ *flag.FlagSet) runFunc {
	return func(ctx context.Context, _ []string) error {
		badgeErr := make(chan error, 1)
		go func() { badgeErr <- a.badges.Run(ctx) }()

		a.printGroups()
		for {
			select {
			case <-ctx.Done():
				return <-badgeErr
			case <-a.groups.Changes():
				a.printGroups()
			case <-a.badges.Changes():
				c := a.badges.Counts()
				a.printCounts(c.PendingCosts, c.NewProducts, c.Notifications)
			}
		}
	}
}

// findGroup resolves a group by ID or by join code.
func (a *app) findGroup(ref string) (models.Group, error) {
	if ref == "" {
		return models.Group{}, errors.New("no group given")
	}
	if g, ok := a.groups.Group(ref); ok {
		return g, nil
	}
	code := groupstore.NormalizeCode(ref)
	for _, g := range a.groups.Groups() {
		if g.Code == code {
			return g, nil
		}
	}
	return models.Group{}, fmt.Errorf("%w: %s", groupstore.ErrNotFound, ref)
}

// passwordOrPrompt returns flagValue, or reads one line from the app's input.
func (a *app) passwordOrPrompt(flagValue, prompt string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(a.out, prompt)
	if a.lines == nil {
		a.lines = bufio.NewScanner(a.in)
	}
	if !a.lines.Scan() {
		if err := a.lines.Err(); err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return "", errors.New("no password given")
	}
	return strings.TrimSpace(a.lines.Text()), nil
}

func displayName(actor auth.Actor) string {
	if actor.DisplayName != "" {
		return actor.DisplayName
	}
	return actor.Email
}
