package domain

import "errors"

var (
	// ErrValidation marks malformed or incomplete input.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing record.
	ErrNotFound = errors.New("not found")

	// ErrNotConfigured marks a channel with no usable credentials. No
	// message record is written on this path.
	ErrNotConfigured = errors.New("channel not configured")

	// ErrTemplateNotFound and ErrTemplateInactive are terminal template
	// resolution failures; callers must not retry the same slug.
	ErrTemplateNotFound = errors.New("template not found")
	ErrTemplateInactive = errors.New("template inactive")

	// ErrOptedOut marks a send denied by the recipient's notification
	// preferences. A normal business outcome, not an exception.
	ErrOptedOut = errors.New("recipient opted out")

	// ErrRateLimited marks a send rejected by the hourly channel cap.
	ErrRateLimited = errors.New("rate limit exceeded")
)
