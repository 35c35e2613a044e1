package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/km3py/km3db/cmd/common"
	"github.com/km3py/km3db/pkg/km3db"
	"github.com/urfave/cli"
)

func streams(ctx *cli.Context) error {
	name := ctx.Args().First()
	if name == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	env, err := newClientEnv(ctx, envOptions{})
	if err != nil {
		return common.RuntimeErr(ctx, "streams", "setup", err)
	}
	defer env.Close()

	sds, err := km3db.NewStreamDS(env.ctx, env.client, env.log)
	if err != nil {
		return common.RuntimeErr(ctx, "streams", "discover", err)
	}

	if name != "" {
		help, err := sds.Help(name)
		if err != nil {
			return common.RuntimeErr(ctx, "streams", "help", err)
		}
		fmt.Fprint(ctx.App.Writer, help)
		return nil
	}

	tw := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STREAM\tFORMATS\tMANDATORY\tDESCRIPTION")
	for _, s := range sds.Streams() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			s.Name,
			strings.Join(s.Formats, ","),
			km3db.JoinOrDash(s.Mandatory),
			s.Description,
		)
	}
	return tw.Flush()
}
