package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/oksasatya/go-ddd-accounts/internal/application"
	"github.com/oksasatya/go-ddd-accounts/internal/auth"
	"github.com/oksasatya/go-ddd-accounts/internal/domain"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/entity"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/repository"
	"github.com/oksasatya/go-ddd-accounts/internal/infrastructure/export"
	"github.com/oksasatya/go-ddd-accounts/internal/infrastructure/search"
	"github.com/oksasatya/go-ddd-accounts/pkg/validation"
)

var errUsage = errors.New("usage")

type cli struct {
	svc      *application.AccountService
	perms    repository.PermissionRepository
	search   *search.Indexer
	exporter *export.GCSExporter
	out      io.Writer
}

type command struct {
	name  string
	usage string
	run   func(c *cli, ctx context.Context, args []string) error
}

var commands = []command{
	{"createuser", "create a regular account", (*cli).createUser},
	{"createsuperuser", "create a staff superuser", (*cli).createSuperuser},
	{"list", "list accounts, newest first", (*cli).list},
	{"delete", "soft-delete an account", (*cli).delete},
	{"grant", "grant a permission to an account, directly or through a group", (*cli).grant},
	{"withperm", "list accounts holding a permission", (*cli).withPerm},
	{"login", "check a password and, with the token backend, issue tokens", (*cli).login},
	{"refresh", "rotate a token pair from its refresh token", (*cli).refresh},
	{"verify", "resolve an access token to its account", (*cli).verify},
	{"logout", "revoke an account's token session", (*cli).logout},
	{"setpassword", "set an account's password", (*cli).setPassword},
	{"search", "search indexed accounts", (*cli).searchAccounts},
	{"export", "upload an NDJSON snapshot of all accounts to GCS", (*cli).export},
}

func findCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: accountctl <command> [flags]")
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  migrate\tapply pending schema migrations")
	for _, c := range commands {
		fmt.Fprintf(tw, "  %s\t%s\n", c.name, c.usage)
	}
	_ = tw.Flush()
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		usage(c.out)
		return errUsage
	}
	cmd, ok := findCommand(args[0])
	if !ok {
		usage(c.out)
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
	return cmd.run(c, ctx, args[1:])
}

// validateInput checks a command's tagged input struct.
func validateInput(in any) error {
	if err := validation.Struct(in); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

func newFlags(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

type accountFlags struct {
	email, password, first, last string
}

func (f *accountFlags) bind(fs *flag.FlagSet) {
	fs.StringVar(&f.email, "email", "", "email address (required)")
	fs.StringVar(&f.password, "password", "", "password; empty leaves the account without a usable password")
	fs.StringVar(&f.first, "first-name", "", "first name")
	fs.StringVar(&f.last, "last-name", "", "last name")
}

func (c *cli) createUser(ctx context.Context, args []string) error {
	fs := newFlags("createuser", c.out)
	var f accountFlags
	f.bind(fs)
	staff := fs.Bool("staff", false, "grant staff status")
	inactive := fs.Bool("inactive", false, "create the account inactive")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := c.svc.CreateUser(ctx, f.email, f.password, application.ExtraFields{
		FirstName: f.first,
		LastName:  f.last,
		IsStaff:   application.Bool(*staff),
		IsActive:  application.Bool(!*inactive),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "created %s id=%s\n", a, a.ID)
	return nil
}

func (c *cli) createSuperuser(ctx context.Context, args []string) error {
	fs := newFlags("createsuperuser", c.out)
	var f accountFlags
	f.bind(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := c.svc.CreateSuperuser(ctx, f.email, f.password, application.ExtraFields{FirstName: f.first, LastName: f.last})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "created superuser %s id=%s\n", a, a.ID)
	return nil
}

// parseTriState maps "true", "false" and "any" to a filter pointer.
func parseTriState(v string) (*bool, error) {
	switch strings.ToLower(v) {
	case "", "any":
		return nil, nil
	case "true", "yes", "1":
		return application.Bool(true), nil
	case "false", "no", "0":
		return application.Bool(false), nil
	}
	return nil, fmt.Errorf("%w: expected true, false or any, got %q", domain.ErrInvalidInput, v)
}

func (c *cli) printAccounts(accounts []*entity.Account) {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tSTAFF\tSUPERUSER\tACTIVE\tCREATED")
	for _, a := range accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\t%t\t%s\n",
			a.ID, a.Email, a.FullName(), a.IsStaff, a.IsSuperuser, a.IsActive, a.CreatedOn.Format("2006-01-02 15:04:05"))
	}
	_ = tw.Flush()
}

func (c *cli) list(ctx context.Context, args []string) error {
	fs := newFlags("list", c.out)
	active := fs.String("active", "any", "filter on active: true, false or any")
	staff := fs.String("staff", "any", "filter on staff: true, false or any")
	deleted := fs.Bool("include-deleted", false, "include soft-deleted accounts")
	limit := fs.Int("limit", 50, "maximum rows, 0 for all")
	offset := fs.Int("offset", 0, "rows to skip")
	if err := fs.Parse(args); err != nil {
		return err
	}
	opts := repository.ListOptions{IncludeDeleted: *deleted, Limit: *limit, Offset: *offset}
	var err error
	if opts.IsActive, err = parseTriState(*active); err != nil {
		return err
	}
	if opts.IsStaff, err = parseTriState(*staff); err != nil {
		return err
	}
	accounts, err := c.svc.List(ctx, opts)
	if err != nil {
		return err
	}
	c.printAccounts(accounts)
	return nil
}

func (c *cli) delete(ctx context.Context, args []string) error {
	fs := newFlags("delete", c.out)
	id := fs.String("id", "", "account id")
	email := fs.String("email", "", "account email, when no id is given")
	if err := fs.Parse(args); err != nil {
		return err
	}
	in := struct {
		ID    string `json:"id" validate:"omitempty,uuid"`
		Email string `json:"email" validate:"omitempty,email"`
	}{ID: *id, Email: *email}
	if in.ID == "" && in.Email == "" {
		return fmt.Errorf("%w: -id or -email is required", domain.ErrInvalidInput)
	}
	if err := validateInput(in); err != nil {
		return err
	}
	target := in.ID
	if target == "" {
		a, err := c.svc.GetByEmail(ctx, in.Email)
		if err != nil {
			return err
		}
		target = a.ID
	}
	a, err := c.svc.SoftDelete(ctx, target)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "deleted %s\n", a)
	return nil
}

func (c *cli) grant(ctx context.Context, args []string) error {
	fs := newFlags("grant", c.out)
	email := fs.String("email", "", "account email")
	perm := fs.String("perm", "", "permission as app_label.codename")
	name := fs.String("name", "", "human readable permission name")
	group := fs.String("group", "", "grant through this group instead of directly")
	if err := fs.Parse(args); err != nil {
		return err
	}
	in := struct {
		Email string `json:"email" validate:"required,email"`
		Perm  string `json:"perm" validate:"required,perm"`
		Group string `json:"group" validate:"omitempty,nowhitespace,max=150"`
	}{Email: *email, Perm: *perm, Group: *group}
	if err := validateInput(in); err != nil {
		return err
	}
	appLabel, codename, err := entity.ParsePerm(in.Perm)
	if err != nil {
		return err
	}
	a, err := c.svc.GetByEmail(ctx, in.Email)
	if err != nil {
		return err
	}
	p := &entity.Permission{AppLabel: appLabel, Codename: codename, Name: *name}
	if err := c.perms.EnsurePermission(ctx, p); err != nil {
		return err
	}
	if *group == "" {
		if err := c.perms.GrantToAccount(ctx, a.ID, p.String()); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "granted %s to %s\n", p, a.Email)
		return nil
	}
	g := &entity.Group{Name: *group}
	if err := c.perms.EnsureGroup(ctx, g); err != nil {
		return err
	}
	if err := c.perms.GrantToGroup(ctx, g.ID, p.String()); err != nil {
		return err
	}
	if err := c.perms.AddToGroup(ctx, a.ID, g.ID); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "granted %s to %s through group %s\n", p, a.Email, g.Name)
	return nil
}

func (c *cli) withPerm(ctx context.Context, args []string) error {
	fs := newFlags("withperm", c.out)
	perm := fs.String("perm", "", "permission as app_label.codename")
	active := fs.String("active", "true", "filter on active: true, false or any")
	superusers := fs.Bool("superusers", true, "include superusers")
	backend := fs.String("backend", "", "authentication backend; required when several are configured")
	if err := fs.Parse(args); err != nil {
		return err
	}
	in := struct {
		Perm string `json:"perm" validate:"required,perm"`
	}{Perm: *perm}
	if err := validateInput(in); err != nil {
		return err
	}
	isActive, err := parseTriState(*active)
	if err != nil {
		return err
	}
	opts := []application.PermOption{application.IncludeSuperusers(*superusers), application.UsingBackend(*backend)}
	if isActive == nil {
		opts = append(opts, application.AnyActiveState())
	} else {
		opts = append(opts, application.ActiveOnly(*isActive))
	}
	accounts, err := c.svc.WithPerm(ctx, in.Perm, opts...)
	if err != nil {
		return err
	}
	c.printAccounts(accounts)
	return nil
}

func (c *cli) searchAccounts(ctx context.Context, args []string) error {
	fs := newFlags("search", c.out)
	q := fs.String("q", "", "query text")
	size := fs.Int("size", 10, "maximum hits (1-50)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	in := struct {
		Query string `json:"q" validate:"required"`
		Size  int    `json:"size" validate:"min=1,max=50"`
	}{Query: *q, Size: *size}
	if err := validateInput(in); err != nil {
		return err
	}
	if c.search == nil || c.search.ES == nil {
		return fmt.Errorf("%w: elasticsearch is not configured", domain.ErrConfiguration)
	}
	hits, err := c.search.SearchAccounts(ctx, in.Query, in.Size)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tID\tEMAIL\tNAME")
	for _, h := range hits {
		fmt.Fprintf(tw, "%.2f\t%s\t%s\t%s\n", h.Score, h.Account.ID, h.Account.Email, h.Account.FullName)
	}
	return tw.Flush()
}

func (c *cli) export(ctx context.Context, args []string) error {
	fs := newFlags("export", c.out)
	deleted := fs.Bool("include-deleted", false, "include soft-deleted accounts")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if c.exporter == nil || c.exporter.Bucket == "" {
		return fmt.Errorf("%w: GCS_BUCKET is not set", domain.ErrConfiguration)
	}
	accounts, err := c.svc.List(ctx, repository.ListOptions{IncludeDeleted: *deleted})
	if err != nil {
		return err
	}
	url, n, err := c.exporter.Export(ctx, accounts)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "exported %d accounts to %s\n", n, url)
	return nil
}

// tokens returns the token backend when it is configured.
func (c *cli) tokens() (*auth.TokenBackend, error) {
	b, err := c.svc.Backends.Load(auth.TokenBackendName)
	if err != nil {
		return nil, err
	}
	tb, ok := b.(*auth.TokenBackend)
	if !ok {
		return nil, fmt.Errorf("%w: backend %q cannot issue tokens", domain.ErrConfiguration, b.Name())
	}
	return tb, nil
}

func (c *cli) printTokens(pair auth.TokenPair) {
	fmt.Fprintf(c.out, "access_token=%s\naccess_expires=%s\n", pair.AccessToken, pair.AccessTokenExpiry.Format(time.RFC3339))
	fmt.Fprintf(c.out, "refresh_token=%s\nrefresh_expires=%s\n", pair.RefreshToken, pair.RefreshTokenExpiry.Format(time.RFC3339))
}

type credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := newFlags("login", c.out)
	var in credentials
	fs.StringVar(&in.Email, "email", "", "account email")
	fs.StringVar(&in.Password, "password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := validateInput(in); err != nil {
		return err
	}
	a, err := c.svc.Authenticate(ctx, in.Email, in.Password)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "logged in %s at %s\n", a, a.LastLogin.Format(time.RFC3339))

	tb, err := c.tokens()
	if errors.Is(err, domain.ErrConfiguration) {
		return nil
	}
	if err != nil {
		return err
	}
	pair, err := tb.IssueTokens(ctx, a)
	if err != nil {
		return err
	}
	c.printTokens(pair)
	return nil
}

type tokenInput struct {
	Token string `json:"token" validate:"required"`
}

func (c *cli) tokenArg(name string, args []string) (tokenInput, error) {
	fs := newFlags(name, c.out)
	var in tokenInput
	fs.StringVar(&in.Token, "token", "", "JWT")
	if err := fs.Parse(args); err != nil {
		return in, err
	}
	return in, validateInput(in)
}

func (c *cli) refresh(ctx context.Context, args []string) error {
	in, err := c.tokenArg("refresh", args)
	if err != nil {
		return err
	}
	tb, err := c.tokens()
	if err != nil {
		return err
	}
	pair, err := tb.Refresh(ctx, in.Token)
	if err != nil {
		return err
	}
	c.printTokens(pair)
	return nil
}

func (c *cli) verify(ctx context.Context, args []string) error {
	in, err := c.tokenArg("verify", args)
	if err != nil {
		return err
	}
	tb, err := c.tokens()
	if err != nil {
		return err
	}
	a, err := tb.Authenticate(ctx, in.Token)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "token belongs to %s id=%s\n", a, a.ID)
	return nil
}

func (c *cli) logout(ctx context.Context, args []string) error {
	fs := newFlags("logout", c.out)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	in := struct {
		Email string `json:"email" validate:"required,email"`
	}{Email: *email}
	if err := validateInput(in); err != nil {
		return err
	}
	tb, err := c.tokens()
	if err != nil {
		return err
	}
	a, err := c.svc.GetByEmail(ctx, in.Email)
	if err != nil {
		return err
	}
	if err := tb.Revoke(ctx, a.ID); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "revoked session of %s\n", a.Email)
	return nil
}

func (c *cli) setPassword(ctx context.Context, args []string) error {
	fs := newFlags("setpassword", c.out)
	in := struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,pwd"`
	}{}
	fs.StringVar(&in.Email, "email", "", "account email")
	fs.StringVar(&in.Password, "password", "", "new password, at least 8 characters")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := validateInput(in); err != nil {
		return err
	}
	a, err := c.svc.GetByEmail(ctx, in.Email)
	if err != nil {
		return err
	}
	if err := c.svc.SetPassword(ctx, a.ID, in.Password); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "password updated for %s\n", a.Email)
	return nil
}

// describe renders an error for the terminal, one line per invalid field.
func describe(err error) string {
	if !validation.HasDetails(err) {
		return err.Error()
	}
	details := validation.ToDetails(err)
	fields := make([]string, 0, len(details))
	for f := range details {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	var b strings.Builder
	b.WriteString("invalid input:")
	for _, f := range fields {
		fmt.Fprintf(&b, "\n  %s: %s", f, details[f])
	}
	return b.String()
}
