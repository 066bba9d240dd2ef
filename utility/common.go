/*
 * Copyright (c) 2022 Serena Tiede
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package utility holds small helpers shared across packages that aren't
// specific enough to any one of them to live there.
package utility

import (
	"fmt"
	"io"
	"log"
	"strings"
)

// WrappedClose closes closer and panics on error, for use in defers where
// the caller has no meaningful recovery path (a flush failure on a report
// archive or compressor is as fatal as the write that preceded it).
func WrappedClose(closer io.Closer) {
	if err := closer.Close(); err != nil {
		log.Panicf("could not close closer properly: %v", err)
	}
}

// ConfirmDialog prompts on stdout and reads a single token from stdin,
// returning true only for a case-insensitive "y". Used to gate destructive
// commit operations behind an interactive confirmation.
func ConfirmDialog(messageFormat string, a ...any) bool {
	response := ""
	fmt.Printf(messageFormat, a...)
	_, err := fmt.Scan(&response)
	if err != nil {
		return false
	}
	return strings.EqualFold(response, "y")
}
