// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command marketstats serves and reports statistics over a marketplace app
// catalog.
//
// # Usage
//
//	# Serve the HTTP API over the configured sources
//	marketstats serve --config marketstats.yaml
//
//	# One-off report from a catalog file
//	MARKETSTATS_FILE=apps.json marketstats report --source file --graph library
//
//	# List the available graphs
//	marketstats graphs
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
