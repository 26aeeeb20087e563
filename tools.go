// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dailymoji Contributors

//go:build tools

// Package main records build-time tools in go.mod so `go run` picks the
// pinned versions:
//
//	go run github.com/onsi/ginkgo/v2/ginkgo -tags integration ./test/... ./internal/store/...
//	go run ./cmd/gen-schema
package main

import (
	_ "github.com/onsi/ginkgo/v2/ginkgo"
)
