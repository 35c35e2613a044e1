package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/km3py/km3db/cmd/common"
	"github.com/km3py/km3db/pkg/km3db"
	"github.com/urfave/cli"
)

var getFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "format, f",
		Value: km3db.DefaultFormat,
		Usage: "output format, one of the stream's formats",
	},
}

// parseSelectors converts key=value arguments into stream selectors.
// Input: ["detid=D_ARCA001", "minrun=1"]
// Output: {"detid": "D_ARCA001", "minrun": "1"}
//
// Returns an error if any argument is malformed (missing '=' or key).
func parseSelectors(args []string) (map[string]string, error) {
	selectors := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(strings.TrimSpace(arg), "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid selector format: %q (expected 'key=value')", arg)
		}
		selectors[key] = value
	}
	return selectors, nil
}

func get(ctx *cli.Context) error {
	stream := ctx.Args().First()
	if stream == "" {
		return common.PrintErrWithCmdHelp(ctx, errors.New("no stream provided"))
	} else if stream == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	selectors, err := parseSelectors(ctx.Args().Tail())
	if err != nil {
		return common.PrintErrWithCmdHelp(ctx, err)
	}

	env, err := newClientEnv(ctx, envOptions{})
	if err != nil {
		return common.RuntimeErr(ctx, "get", "setup", err)
	}
	defer env.Close()

	sds, err := km3db.NewStreamDS(env.ctx, env.client, env.log)
	if err != nil {
		return common.RuntimeErr(ctx, "get", "discover", err)
	}
	data, err := sds.Query(env.ctx, stream, ctx.String("format"), selectors)
	if err != nil {
		return common.RuntimeErr(ctx, "get", "query", err)
	}
	fmt.Fprint(ctx.App.Writer, data)
	if !strings.HasSuffix(data, "\n") {
		fmt.Fprintln(ctx.App.Writer)
	}
	return nil
}
