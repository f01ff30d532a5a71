// ledgerctl administers TruLedgr users and inspects the audit trail directly against the database.
package main

import "truledgr/backend/cmd/ledgerctl/cmd"

func main() {
	cmd.Execute()
}
