// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
)

func main() {
	fmt.Println("🛒 tamali-sync - Offline-First POS Synchronization Core")
	fmt.Println("=======================================================")
	fmt.Println()
	fmt.Println("tamali-sync keeps a point-of-sale client fully usable without connectivity:")
	fmt.Println("reads fall back to a durable SQLite cache, mutations queue with local shadow")
	fmt.Println("records, and a replayer drains the queue in causal order once the server is")
	fmt.Println("verified reachable again.")
	fmt.Println()

	fmt.Println("📚 Packages:")
	fmt.Println()
	fmt.Println("1. 🗄️  Client Core (tamalisync/)")
	fmt.Println("   Persistent local store, network monitor, offline-aware gateway,")
	fmt.Println("   dedup/consolidation engine, sync replayer, stock availability overlay")
	fmt.Println()

	fmt.Println("2. 🌐 Wire Contract (posapi/)")
	fmt.Println("   Typed mutations, route descriptors, receipt numbers, JWT helpers,")
	fmt.Println("   and an in-memory reference POS server used by tests and the simulator")
	fmt.Println()

	fmt.Println("3. 📱 Simulator (cmd/tamali-sim/)")
	fmt.Println("   Drives an offline working session end to end against the reference server")
	fmt.Println("   Run: go run ./cmd/tamali-sim simulate")
	fmt.Println()
}
