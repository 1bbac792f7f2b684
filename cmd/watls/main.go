// Package main provides the watls CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/watlang/watls/internal/service"
)

func main() {
	if err := service.NewServer().Run(context.Background(), os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "watls:", err)
		os.Exit(1)
	}
}
