// Package cache keeps synthesized speech so re-running or resuming a thread
// does not pay for the same clip twice. Clips live in an in-memory LRU (L1)
// backed by a zstd-compressed directory (L2) that survives restarts.
package cache
