/*-
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package probe pkg/probe/interfaces.go
package probe

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mock_prober.go -package=probe github.com/mfreeman451/portalwatch/pkg/probe Prober

// Prober checks whether a single host is reachable.
type Prober interface {
	// Probe reports reachability of host. It never returns an error and
	// never blocks much longer than timeout.
	Probe(ctx context.Context, host string, timeout time.Duration) bool
}

// ProberFunc adapts a plain function to Prober.
type ProberFunc func(ctx context.Context, host string, timeout time.Duration) bool

func (f ProberFunc) Probe(ctx context.Context, host string, timeout time.Duration) bool {
	return f(ctx, host, timeout)
}
