// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing errors with actionable context:
// what operation failed, what resource was involved, and suggestions for
// how to fix it.
package issue

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// ActionableError is an error with context for user-facing messages.
	//
	// Use the Context builder for convenient construction:
	//
	//	err := issue.NewContext().
	//		WithOperation("load blocked-content manifest").
	//		WithResource("./blocked.toml").
	//		WithSuggestion("Run 'modgate get --manifest' to generate one").
	//		Wrap(originalErr).
	//		BuildError()
	ActionableError struct {
		// Operation describes what was being attempted
		// (e.g., "resolve dependencies", "install content").
		Operation string

		// Resource identifies the file, package, or entity involved.
		Resource string

		// Suggestions provides hints on how to fix the issue.
		Suggestions []string

		// Cause is the underlying error.
		Cause error
	}

	// Context is a fluent builder for ActionableError values.
	Context struct {
		operation   string
		resource    string
		suggestions []string
		cause       error
	}
)

// NewContext creates a new error-context builder.
func NewContext() *Context {
	return &Context{}
}

// WithOperation sets the operation being performed; a verb phrase like
// "fetch package details" or "copy matched files".
func (c *Context) WithOperation(op string) *Context {
	c.operation = op
	return c
}

// WithResource sets the resource (file, package id, directory) involved.
func (c *Context) WithResource(res string) *Context {
	c.resource = res
	return c
}

// WithSuggestion adds one suggestion; call repeatedly for several.
func (c *Context) WithSuggestion(sug string) *Context {
	c.suggestions = append(c.suggestions, sug)
	return c
}

// Wrap records the underlying error as the cause.
func (c *Context) Wrap(err error) *Context {
	c.cause = err
	return c
}

// BuildError materializes the ActionableError.
func (c *Context) BuildError() *ActionableError {
	return &ActionableError{
		Operation:   c.operation,
		Resource:    c.resource,
		Suggestions: c.suggestions,
		Cause:       c.cause,
	}
}

// Error implements the error interface with a concise, non-verbose message.
func (e *ActionableError) Error() string {
	var msg strings.Builder
	msg.WriteString("failed to ")
	msg.WriteString(e.Operation)
	if e.Resource != "" {
		msg.WriteString(": ")
		msg.WriteString(e.Resource)
	}
	if e.Cause != nil {
		msg.WriteString(": ")
		msg.WriteString(e.Cause.Error())
	}
	return msg.String()
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *ActionableError) Unwrap() error { return e.Cause }

// Format renders the error for display. Suggestions are listed as bullets;
// verbose mode appends the full error chain.
func (e *ActionableError) Format(verbose bool) string {
	var msg strings.Builder
	msg.WriteString(e.Error())

	if len(e.Suggestions) > 0 {
		msg.WriteString("\n")
		for _, suggestion := range e.Suggestions {
			msg.WriteString("\n  • ")
			msg.WriteString(suggestion)
		}
	}

	if verbose && e.Cause != nil {
		msg.WriteString("\n\nError chain:")
		err := e.Cause
		depth := 1
		for err != nil {
			fmt.Fprintf(&msg, "\n  %d. %s", depth, err.Error())
			err = errors.Unwrap(err)
			depth++
		}
	}

	return msg.String()
}
