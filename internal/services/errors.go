package services

import "errors"

var (
	// ErrOrderRepositoryMissing indicates the order repository dependency was not wired.
	ErrOrderRepositoryMissing = errors.New("services: order repository is required")
	// ErrUserRepositoryMissing indicates the user repository dependency was not wired.
	ErrUserRepositoryMissing = errors.New("services: user repository is required")
	// ErrCouponRepositoryMissing indicates the coupon repository dependency was not wired.
	ErrCouponRepositoryMissing = errors.New("services: coupon repository is required")
	// ErrCouponLookupRepositoryMissing indicates the coupon lookup repository dependency was not wired.
	ErrCouponLookupRepositoryMissing = errors.New("services: coupon lookup repository is required")
	// ErrBuildStateRepositoryMissing indicates the build state repository dependency was not wired.
	ErrBuildStateRepositoryMissing = errors.New("services: build state repository is required")
	// ErrStrategySelectorMissing indicates the strategy selector dependency was not wired.
	ErrStrategySelectorMissing = errors.New("services: strategy selector is required")
	// ErrFormatterMissing indicates the order formatter dependency was not wired.
	ErrFormatterMissing = errors.New("services: order formatter is required")
	// ErrUnknownCouponEvent indicates an unrecognised lifecycle event type.
	ErrUnknownCouponEvent = errors.New("services: unknown coupon event type")
)
