/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides build version information.
package version

// Version is the current version of Segue. Set at build time via
// ldflags:
//
//	-X github.com/friendsincode/segue/internal/version.Version=X.Y.Z
var Version = "0.3.0"

// Commit is the git commit the binary was built from.
var Commit = "unknown"
