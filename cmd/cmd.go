package cmd

import (
	"fmt"
	"runtime"

	"github.com/km3py/km3db/cmd/common"
	"github.com/urfave/cli"
)

type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file (default: ~/.km3db.toml)",
	},
	cli.StringFlag{
		Name:  "url",
		Usage: "database base URL",
	},
	cli.BoolFlag{
		Name:  "debug",
		Usage: "print debug messages",
	},
}

func Execute(args []string, bArgs BuildArgs) error {
	return newApp(bArgs).Run(args)
}

func newApp(bArgs BuildArgs) *cli.App {
	app := cli.NewApp()
	app.Name = "km3db"
	app.HelpName = "km3db"
	app.Usage = "KM3NeT database client."
	app.Version = fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType)
	app.UsageText = "km3db [global options] <command> [arguments...]"
	app.Description = DESCRIPTION
	app.CustomAppHelpTemplate = HELP_TEMPL
	app.OnUsageError = common.UsageErrorCallback
	app.Flags = globalFlags
	app.Commands = []cli.Command{
		{
			Name:                   "cookie",
			Usage:                  "request and store a session cookie",
			UsageText:              "[-B | -C] [-o COOKIEFILE] [--from-browser STORE]",
			Description:            CookieDescription,
			OnUsageError:           common.UsageErrorCallback,
			CustomHelpTemplate:     CMD_HELP_TEMPL,
			Action:                 cookie,
			Flags:                  cookieFlags,
			UseShortOptionHandling: true,
		},
		{
			Name:               "streams",
			Aliases:            []string{"s"},
			Usage:              "list streams or describe one",
			UsageText:          "[STREAM]",
			Description:        StreamsDescription,
			OnUsageError:       common.UsageErrorCallback,
			CustomHelpTemplate: CMD_HELP_TEMPL,
			Action:             streams,
		},
		{
			Name:               "get",
			Aliases:            []string{"g"},
			Usage:              "query a stream",
			UsageText:          "[-f FORMAT] STREAM [key=value ...]",
			Description:        GetDescription,
			OnUsageError:       common.UsageErrorCallback,
			CustomHelpTemplate: CMD_HELP_TEMPL,
			Action:             get,
			Flags:              getFlags,
		},
		{
			Name:               "logout",
			Usage:              "delete the stored session cookie",
			UsageText:          " ",
			Description:        LogoutDescription,
			CustomHelpTemplate: CMD_HELP_TEMPL,
			Action:             logout,
		},
		{
			Name:    "help",
			Aliases: []string{"h"},
			Usage:   "prints the help message",
			Action:  common.Help,
		},
		{
			Name:               "version",
			Aliases:            []string{"v"},
			Usage:              "prints installed version of km3db",
			UsageText:          " ",
			CustomHelpTemplate: CMD_HELP_TEMPL,
			Action:             common.GetVersion,
		},
	}
	app.Action = common.Help
	app.HideHelp = true
	app.HideVersion = true

	common.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s\n",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	return app
}
