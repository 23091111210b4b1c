// Package expo delivers push messages through the Expo push HTTP API.
//
// Messages are validated against the Expo token shape, split into chunks of
// at most 100, and posted concurrently under a shared rate limiter. Tickets
// reporting DeviceNotRegistered are returned as invalid tokens so callers can
// deactivate them.
package expo
