// Command catsit は休暇中の猫の世話当番を決める共有カレンダー。
//
// 使い方:
//
//	catsit [serve|show|toggle|share|summary|export|healthcheck] [-link URL] [-as ID] [YYYY-MM-DD...]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/catsit/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "catsit: %v\n", err)
		os.Exit(1)
	}
}
