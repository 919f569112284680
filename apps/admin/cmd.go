package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"

	"github.com/trezcool/kazi/core/grading"
	"github.com/trezcool/kazi/core/task"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db         *sql.DB
	taskSvc    *task.Service
	gradingSvc *grading.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [args...]      - run database migrations (up, down, status, ...)")
	fmt.Println("  reject-overdue                 - reject all open tasks past their deadline")
	fmt.Println("  recompute-pool -course ID      - recompute the point pool for a course")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	recomputeCmd := flag.NewFlagSet("recompute-pool", flag.ExitOnError)
	recomputeCourse := recomputeCmd.Int("course", 0, "The course ID whose point pool to recompute.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "reject-overdue":
		n, err := cli.taskSvc.RejectOverdue(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("rejected %d overdue task(s)\n", n)
		return nil
	case "recompute-pool":
		if err := recomputeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *recomputeCourse <= 0 {
			recomputeCmd.Usage()
			return errHelp
		}
		return cli.gradingSvc.RecomputePointPool(context.Background(), *recomputeCourse)
	default:
		cli.printUsage()
		return errHelp
	}
}
