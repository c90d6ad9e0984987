// Package config turns the raw settings store into the documents the process
// server and the export format consume.
//
// # Architecture
//
// Settings are resolved through layers, higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← SANDBOXCTL_*, read-only
//	├─────────────────────────────┤
//	│  2. Workspace               │
//	├─────────────────────────────┤
//	│  1. Global                  │
//	├─────────────────────────────┤
//	│  0. Registry Defaults       │  ← Lowest priority, never stored
//	└─────────────────────────────┘
//
// # Sub-packages
//
//   - registry: declared settings with defaults and constraints
//   - store: the store contract plus memory, file and SQL backends
//   - layer: layer management and merging
//   - loader: JSON, TOML and YAML codecs and environment variables
//   - schema: JSON Schema checks for exported snapshots
//   - watcher: file watching for live reload
//   - notify: change notification and observers
//
// # Basic Usage
//
//	st := store.NewMemoryStore()
//	doc := config.Generate(st)          // security.Document
//	server := config.GenerateServer(st) // export "server" section
//	conn := config.Connection(st)       // timeouts as time.Duration
//
// Generation never fails. Absent or nil values resolve to the registry
// default, and values of the wrong type are passed through for the
// validation engine to report.
package config
