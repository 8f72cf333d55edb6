package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	redisadapter "github.com/fieldops/installer-portal/internal/adapters/redis"
	"github.com/fieldops/installer-portal/internal/bootstrap"
	"github.com/fieldops/installer-portal/internal/data"
	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
	"github.com/fieldops/installer-portal/internal/domain/model"
)

type userFlags struct {
	ID       string
	Email    string
	FullName string
	Role     string
	Phone    string
}

func newUserFlagSet(name string, opts *userFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.StringVar(&opts.ID, "id", "", "User ID (the identity provider subject, a UUID)")
	return fs
}

func parseUserGetFlags(args []string) (userFlags, error) {
	var opts userFlags
	if err := newUserFlagSet("user", &opts).Parse(args); err != nil {
		return userFlags{}, err
	}
	opts.ID = strings.TrimSpace(opts.ID)
	if opts.ID == "" {
		return userFlags{}, errors.New("--id is required")
	}
	return opts, nil
}

func parseUserUpsertFlags(args []string) (domainauth.Identity, error) {
	var opts userFlags
	fs := newUserFlagSet("user-upsert", &opts)
	fs.StringVar(&opts.Email, "email", "", "Email address (required)")
	fs.StringVar(&opts.FullName, "name", "", "Full name")
	fs.StringVar(&opts.Role, "role", string(domainauth.RoleInstaller), "Role: admin or installer")
	fs.StringVar(&opts.Phone, "phone", "", "Contact phone")
	if err := fs.Parse(args); err != nil {
		return domainauth.Identity{}, err
	}

	identity := domainauth.Identity{
		ID:       strings.TrimSpace(opts.ID),
		Email:    strings.TrimSpace(opts.Email),
		FullName: strings.TrimSpace(opts.FullName),
		Role:     domainauth.Role(strings.ToLower(strings.TrimSpace(opts.Role))),
		Phone:    strings.TrimSpace(opts.Phone),
	}
	switch {
	case identity.ID == "":
		return domainauth.Identity{}, errors.New("--id is required")
	case identity.Email == "":
		return domainauth.Identity{}, errors.New("--email is required")
	case !identity.Role.Valid():
		return domainauth.Identity{}, fmt.Errorf("--role must be admin or installer, got %q", opts.Role)
	}
	return identity, nil
}

func parseSetRoleFlags(args []string) (string, domainauth.Role, error) {
	var opts userFlags
	fs := newUserFlagSet("user-set-role", &opts)
	fs.StringVar(&opts.Role, "role", "", "New role: admin or installer (required)")
	if err := fs.Parse(args); err != nil {
		return "", "", err
	}
	id := strings.TrimSpace(opts.ID)
	role := domainauth.Role(strings.ToLower(strings.TrimSpace(opts.Role)))
	if id == "" {
		return "", "", errors.New("--id is required")
	}
	if !role.Valid() {
		return "", "", fmt.Errorf("--role must be admin or installer, got %q", opts.Role)
	}
	return id, role, nil
}

func runUserGet(cmdCtx *commandContext, args []string) error {
	opts, err := parseUserGetFlags(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	return withDB(ctx, cmdCtx, func(db *sql.DB) error {
		identity, gerr := data.NewUserRepo(db).GetByID(ctx, opts.ID)
		if gerr != nil {
			return gerr
		}
		return printUsers(cmdCtx.Out, []domainauth.Identity{identity})
	})
}

func runUserUpsert(cmdCtx *commandContext, args []string) error {
	identity, err := parseUserUpsertFlags(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	return withDB(ctx, cmdCtx, func(db *sql.DB) error {
		saved, uerr := data.NewUserRepo(db).Upsert(ctx, identity)
		if uerr != nil {
			return uerr
		}
		if ierr := invalidateIdentity(ctx, cmdCtx, saved.ID); ierr != nil {
			cmdCtx.Logger.Warn("identity cache not invalidated", "user_id", saved.ID, "error", ierr)
		}
		return printUsers(cmdCtx.Out, []domainauth.Identity{saved})
	})
}

func runUserSetRole(cmdCtx *commandContext, args []string) error {
	id, role, err := parseSetRoleFlags(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	return withDB(ctx, cmdCtx, func(db *sql.DB) error {
		if cerr := data.NewUserRepo(db).ChangeRole(ctx, id, role); cerr != nil {
			return cerr
		}
		// A stale cached role would keep routing the user to the old area until the TTL ran out.
		if ierr := invalidateIdentity(ctx, cmdCtx, id); ierr != nil {
			return fmt.Errorf("role changed but identity cache not invalidated: %w", ierr)
		}
		cmdCtx.Logger.Info("role changed", "user_id", id, "role", role)
		return nil
	})
}

// invalidateIdentity drops the cached identity when Redis is configured.
func invalidateIdentity(ctx context.Context, cmdCtx *commandContext, id string) error {
	client, err := bootstrap.ConnectRedis(ctx, bootstrap.DatabaseConfig{
		RedisConfig: cmdCtx.Config.Redis,
		Logger:      cmdCtx.Logger,
	})
	if err != nil || client == nil {
		return err
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	cache := redisadapter.NewIdentityCache(redisadapter.IdentityCacheOptions{
		Client: client,
		// Invalidate never reads through, but the cache requires a backing store.
		Next:     data.NewUserRepo(nil),
		Settings: redisadapter.CacheSettings{TTL: cmdCtx.Config.Cache.IdentityTTL},
	})
	return cache.Invalidate(ctx, id)
}

func runUsersList(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("users", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	roleFlag := fs.String("role", string(domainauth.RoleInstaller), "Role to list: admin or installer")
	if err := fs.Parse(args); err != nil {
		return err
	}
	role := domainauth.Role(strings.ToLower(strings.TrimSpace(*roleFlag)))
	if !role.Valid() {
		return fmt.Errorf("--role must be admin or installer, got %q", *roleFlag)
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	return withDB(ctx, cmdCtx, func(db *sql.DB) error {
		users, lerr := data.NewUserRepo(db).ListByRole(ctx, role)
		if lerr != nil {
			return lerr
		}
		return printUsers(cmdCtx.Out, users)
	})
}

func runPushList(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("push-list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	userID := fs.String("user-id", "", "Owner of the subscriptions (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*userID) == "" {
		return errors.New("--user-id is required")
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	return withDB(ctx, cmdCtx, func(db *sql.DB) error {
		subs, lerr := data.NewPushSubscriptionRepo(db).ListByUser(ctx, strings.TrimSpace(*userID))
		if lerr != nil {
			return lerr
		}
		return printSubscriptions(cmdCtx.Out, subs)
	})
}

func printUsers(w io.Writer, users []domainauth.Identity) error {
	if len(users) == 0 {
		return writef(w, "No users found.\n")
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writef(tw, "ID\tEMAIL\tNAME\tROLE\tPHONE\n"); err != nil {
		return err
	}
	for _, u := range users {
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Email, dash(u.FullName), u.Role, dash(u.Phone)); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printSubscriptions(w io.Writer, subs []model.PushSubscription) error {
	if len(subs) == 0 {
		return writef(w, "No push subscriptions found.\n")
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writef(tw, "ID\tENDPOINT\tCREATED\tUPDATED\n"); err != nil {
		return err
	}
	for _, s := range subs {
		if err := writef(tw, "%s\t%s\t%s\t%s\n",
			s.ID, s.Endpoint, s.CreatedAt.UTC().Format("2006-01-02 15:04"), s.UpdatedAt.UTC().Format("2006-01-02 15:04"),
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
