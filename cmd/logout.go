package cmd

import (
	"fmt"

	"github.com/km3py/km3db/cmd/common"
	"github.com/urfave/cli"
)

func logout(ctx *cli.Context) error {
	env, err := newClientEnv(ctx, envOptions{})
	if err != nil {
		return common.RuntimeErr(ctx, "logout", "setup", err)
	}
	defer env.Close()

	if err := env.resolver.Forget(); err != nil {
		return common.RuntimeErr(ctx, "logout", "forget", err)
	}
	fmt.Fprintf(ctx.App.Writer, "Session cookie removed from %s\n", env.resolver.CookiePath())
	return nil
}
