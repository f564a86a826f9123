// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package command

import "fmt"

// ReturnCode is the signed outcome of a command: 0 success, positive
// warnings, negative errors
type ReturnCode int

const (
	CodeUndefined    ReturnCode = -100
	CodeSuccess      ReturnCode = 0
	CodeWarning      ReturnCode = 1
	CodeError        ReturnCode = -1
	CodeUnknown      ReturnCode = -2
	CodeLocked       ReturnCode = -3
	CodeInvalidValue ReturnCode = -4
)

// Fixed error texts
const (
	TextError        = "undefined error"
	TextUnknown      = "invalid command"
	TextLocked       = "locked"
	TextInvalidValue = "invalid value"
	TextNoChange     = "already as requested"
	TextTooLong      = "value too long"
)

// IsError reports whether the code is an error
func (c ReturnCode) IsError() bool {
	return c < 0
}

// IsWarning reports whether the code is a warning
func (c ReturnCode) IsWarning() bool {
	return c > 0
}

// String returns the name of the code
func (c ReturnCode) String() string {
	switch c {
	case CodeUndefined:
		return "undefined"
	case CodeSuccess:
		return "success"
	case CodeWarning:
		return "warning"
	case CodeError:
		return "error"
	case CodeUnknown:
		return "unknown command"
	case CodeLocked:
		return "locked"
	case CodeInvalidValue:
		return "invalid value"
	default:
		return fmt.Sprintf("code %d", int(c))
	}
}
