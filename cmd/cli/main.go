package main

import (
	"fmt"
	"os"

	"github.com/crucial707/audit-search/cmd/cli/audit"
	"github.com/crucial707/audit-search/cmd/cli/auth"
	"github.com/crucial707/audit-search/cmd/cli/dbcmd"
	"github.com/crucial707/audit-search/cmd/cli/root"
)

func main() {
	rootCmd := root.GetRoot()
	auth.InitAuth(rootCmd)
	audit.InitAudit(rootCmd)
	dbcmd.InitDB(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
