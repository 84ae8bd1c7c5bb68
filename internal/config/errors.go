// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "errors"

var (
	// ErrInvalidSetting classifies settings that failed validation.
	// Use errors.Is(err, ErrInvalidSetting) instead of string matching.
	ErrInvalidSetting = errors.New("invalid setting")
)
