package cmd

import (
	"errors"
	"fmt"

	"github.com/km3py/km3db/cmd/common"
	"github.com/km3py/km3db/internal/cookies"
	"github.com/km3py/km3db/pkg/km3db"
	"github.com/urfave/cli"
)

var cookieFlags = []cli.Flag{
	cli.BoolFlag{
		Name:  "B",
		Usage: "request the cookie for a class B network (12.23.X.Y)",
	},
	cli.BoolFlag{
		Name:  "C",
		Usage: "request the cookie for a class C network (12.23.45.Y)",
	},
	cli.StringFlag{
		Name:  "o",
		Usage: "file to store the cookie in (default: ~/.km3netdb_cookie)",
	},
	cli.StringFlag{
		Name:  "from-browser",
		Usage: "import the session from a browser cookie store instead of logging in",
	},
}

func networkClass(ctx *cli.Context) (km3db.NetworkClass, error) {
	switch {
	case ctx.Bool("B") && ctx.Bool("C"):
		return km3db.ClassA, errors.New("-B and -C are mutually exclusive")
	case ctx.Bool("B"):
		return km3db.ClassB, nil
	case ctx.Bool("C"):
		return km3db.ClassC, nil
	}
	return km3db.ClassA, nil
}

func cookie(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	class, err := networkClass(ctx)
	if err != nil {
		return common.PrintErrWithCmdHelp(ctx, err)
	}
	env, err := newClientEnv(ctx, envOptions{class: class, cookieFile: ctx.String("o")})
	if err != nil {
		return common.RuntimeErr(ctx, "cookie", "setup", err)
	}
	defer env.Close()

	if store := ctx.String("from-browser"); store != "" {
		return importCookie(ctx, env, store)
	}

	if _, err := env.resolver.Authenticate(env.ctx); err != nil {
		return common.RuntimeErr(ctx, "cookie", "login", err)
	}
	fmt.Fprintf(ctx.App.Writer, "Session cookie (class %s) stored in %s\n", class, env.resolver.CookiePath())
	return nil
}

func importCookie(ctx *cli.Context, env *clientEnv, store string) error {
	c, src, err := cookies.ImportSession(store, env.domain())
	if err != nil {
		return common.RuntimeErr(ctx, "cookie", "import", err)
	}
	if err := env.resolver.Persist(km3db.Credential(c.Value)); err != nil {
		return common.RuntimeErr(ctx, "cookie", "persist", err)
	}
	fmt.Fprintf(ctx.App.Writer, "Imported session cookie from %s store %s into %s\n",
		src.Format, src.Path, env.resolver.CookiePath())
	return nil
}
