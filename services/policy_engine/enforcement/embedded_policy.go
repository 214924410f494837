// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package enforcement embeds the fallback credit policy definitions so the
// orchestrator never depends on the network to produce a (conservative)
// quote.
package enforcement

import _ "embed"

// FallbackCreditPolicies is the raw YAML policy grid compiled into the binary.
//
//go:embed credit_policies.yaml
var FallbackCreditPolicies []byte
