package authctl

import (
	"context"
	"fmt"
	"io"
)

const usage = `usage: authctl <command> [flags]

commands:
  create-admin  create an active administrator
                -email, -username, -first-name, -second-name (prompted when absent)

server config flags (-d, -c, ...) and DELIVEROO_* variables select the database.
`

// Open builds the service a command runs against. The returned func
// releases it.
type Open func(ctx context.Context) (AdminCreator, func(), error)

// Run dispatches args[0] and returns the process exit code.
func Run(ctx context.Context, args []string, open Open, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	switch args[0] {
	case "create-admin":
		svc, release, err := open(ctx)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		defer release()

		if err := CreateAdmin(ctx, svc, args[1:], stdin, stdout); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		return 0
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
}
